package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
)

var ErrOnboardingNotAllowed = errors.New("only members go through onboarding")

var (
	validGoals      = []string{"lose_weight", "build_muscle", "endurance", "general_fitness"}
	validLevels     = []string{"beginner", "intermediate", "advanced"}
	validDiets      = []string{"any", "vegetarian", "vegan"}
	validGenders    = []string{"male", "female", "other"}
	profileDefaults = domain.Profile{ExperienceLevel: "beginner", DietPreference: "any", Goal: "general_fitness"}
)

// UserService covers a member's own profile.
type UserService interface {
	CompleteOnboarding(ctx context.Context, userID primitive.ObjectID, profile domain.Profile) (*domain.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	plans    PlanService
}

func NewUserService(userRepo repository.UserRepository, plans PlanService) UserService {
	return &userService{userRepo: userRepo, plans: plans}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func normalizeProfile(p domain.Profile) (domain.Profile, error) {
	p.Goal = strings.ToLower(strings.TrimSpace(p.Goal))
	p.ExperienceLevel = strings.ToLower(strings.TrimSpace(p.ExperienceLevel))
	p.DietPreference = strings.ToLower(strings.TrimSpace(p.DietPreference))
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.Phone = strings.TrimSpace(p.Phone)

	if p.Goal == "" {
		p.Goal = profileDefaults.Goal
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = profileDefaults.ExperienceLevel
	}
	if p.DietPreference == "" {
		p.DietPreference = profileDefaults.DietPreference
	}

	switch {
	case p.Age < 13 || p.Age > 100:
		return p, invalid("age must be between 13 and 100")
	case p.HeightCm < 100 || p.HeightCm > 250:
		return p, invalid("height must be between 100 and 250 cm")
	case p.WeightKg < 30 || p.WeightKg > 300:
		return p, invalid("weight must be between 30 and 300 kg")
	case !oneOf(p.Goal, validGoals):
		return p, invalid("goal must be one of " + strings.Join(validGoals, ", "))
	case !oneOf(p.ExperienceLevel, validLevels):
		return p, invalid("experience level must be one of " + strings.Join(validLevels, ", "))
	case !oneOf(p.DietPreference, validDiets):
		return p, invalid("diet preference must be one of " + strings.Join(validDiets, ", "))
	case p.Gender != "" && !oneOf(p.Gender, validGenders):
		return p, invalid("gender must be one of " + strings.Join(validGenders, ", "))
	}
	return p, nil
}

// CompleteOnboarding stores the profile and gives the member generic
// workout and meal plans. Calling it again updates the profile; existing
// active plans are left alone.
func (s *userService) CompleteOnboarding(ctx context.Context, userID primitive.ObjectID, profile domain.Profile) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsMember() {
		return nil, ErrOnboardingNotAllowed
	}
	profile, err = normalizeProfile(profile)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.CompleteOnboarding(ctx, userID, profile); err != nil {
		return nil, err
	}
	if err := s.plans.AssignGeneric(ctx, userID, profile); err != nil {
		// The profile is saved; plans can still be created by a trainer or AI draft.
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("assigning generic plans failed")
	}

	user.Profile = profile
	user.OnboardingCompleted = true
	user.PasswordHash = ""
	return user, nil
}
