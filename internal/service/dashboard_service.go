package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
)

var ErrCannotChangeSelf = errors.New("admins cannot change their own role or status")

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	Members           int64            `json:"members"`
	Trainers          int64            `json:"trainers"`
	ActiveMemberships int64            `json:"activeMemberships"`
	PendingRequests   int64            `json:"pendingRequests"`
	CheckInsToday     int64            `json:"checkInsToday"`
	Revenue           map[string]int64 `json:"revenue"` // completed payments by currency, minor units
}

// TrainerStats is the trainer dashboard summary.
type TrainerStats struct {
	Trainees         int64 `json:"trainees"`
	PendingRequests  int64 `json:"pendingRequests"`
	Drafts           int64 `json:"drafts"`
	AwaitingApproval int64 `json:"awaitingApproval"` // submitted, not yet activated by the member
}

// TrainerSummary is the public face of a member's trainer.
type TrainerSummary struct {
	ID        primitive.ObjectID `json:"id"`
	Name      string             `json:"name"`
	Specialty string             `json:"specialty,omitempty"`
}

// UserStats is the member dashboard summary.
type UserStats struct {
	WorkoutPlan        *domain.PlanVersion `json:"workoutPlan,omitempty"`
	MealPlan           *domain.PlanVersion `json:"mealPlan,omitempty"`
	Membership         domain.Membership   `json:"membership"`
	MembershipActive   bool                `json:"membershipActive"`
	Trainer            *TrainerSummary     `json:"trainer,omitempty"`
	PendingRequest     *domain.PlanRequest `json:"pendingRequest,omitempty"`
	CheckInsThisMonth  int                 `json:"checkInsThisMonth"`
	OnboardingComplete bool                `json:"onboardingComplete"`
}

// NewTrainer is what an admin provides to create a trainer account.
type NewTrainer struct {
	Name      string
	Email     string
	Password  string
	Specialty string
	Bio       string
}

type DashboardService interface {
	AdminStats(ctx context.Context) (*AdminStats, error)
	TrainerStats(ctx context.Context, trainerID primitive.ObjectID) (*TrainerStats, error)
	UserStats(ctx context.Context, userID primitive.ObjectID) (*UserStats, error)

	ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error)
	CreateTrainer(ctx context.Context, in NewTrainer) (*domain.User, error)
	ChangeRole(ctx context.Context, adminID, userID primitive.ObjectID, role domain.Role) (*domain.User, error)
	SetDisabled(ctx context.Context, adminID, userID primitive.ObjectID, disabled bool) error
}

type dashboardService struct {
	userRepo       repository.UserRepository
	requestRepo    repository.PlanRequestRepository
	assignmentRepo repository.AssignmentRepository
	versionRepo    repository.PlanVersionRepository
	paymentRepo    repository.PaymentRepository
	attendanceRepo repository.AttendanceRepository
	loc            *time.Location
}

// Repositories groups the repositories the dashboards read from.
type Repositories struct {
	Users       repository.UserRepository
	Requests    repository.PlanRequestRepository
	Assignments repository.AssignmentRepository
	Versions    repository.PlanVersionRepository
	Payments    repository.PaymentRepository
	Attendance  repository.AttendanceRepository
}

func NewDashboardService(repos Repositories, loc *time.Location) DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &dashboardService{
		userRepo:       repos.Users,
		requestRepo:    repos.Requests,
		assignmentRepo: repos.Assignments,
		versionRepo:    repos.Versions,
		paymentRepo:    repos.Payments,
		attendanceRepo: repos.Attendance,
		loc:            loc,
	}
}

func (s *dashboardService) AdminStats(ctx context.Context) (*AdminStats, error) {
	var (
		stats AdminStats
		err   error
	)
	now := timeNow()
	if stats.Members, err = s.userRepo.Count(ctx, domain.RoleUser); err != nil {
		return nil, err
	}
	if stats.Trainers, err = s.userRepo.Count(ctx, domain.RoleTrainer); err != nil {
		return nil, err
	}
	if stats.ActiveMemberships, err = s.userRepo.CountActiveMembers(ctx, now); err != nil {
		return nil, err
	}
	if stats.PendingRequests, err = s.requestRepo.CountByStatus(ctx, nil, domain.RequestPending); err != nil {
		return nil, err
	}
	if stats.CheckInsToday, err = s.attendanceRepo.CountByDay(ctx, now.In(s.loc).Format(dayLayout)); err != nil {
		return nil, err
	}
	if stats.Revenue, err = s.paymentRepo.RevenueByCurrency(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *dashboardService) TrainerStats(ctx context.Context, trainerID primitive.ObjectID) (*TrainerStats, error) {
	var (
		stats TrainerStats
		err   error
	)
	if stats.Trainees, err = s.assignmentRepo.CountActiveByTrainer(ctx, trainerID); err != nil {
		return nil, err
	}
	if stats.PendingRequests, err = s.requestRepo.CountByStatus(ctx, &trainerID, domain.RequestPending); err != nil {
		return nil, err
	}
	if stats.Drafts, err = s.versionRepo.CountByAuthor(ctx, trainerID, domain.PlanDraft); err != nil {
		return nil, err
	}
	if stats.AwaitingApproval, err = s.versionRepo.CountByAuthor(ctx, trainerID, domain.PlanSubmitted); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *dashboardService) UserStats(ctx context.Context, userID primitive.ObjectID) (*UserStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	now := timeNow()
	stats := &UserStats{
		Membership:         user.Membership,
		MembershipActive:   user.Membership.ActiveAt(now),
		OnboardingComplete: user.OnboardingCompleted,
	}

	if stats.WorkoutPlan, err = s.activePlan(ctx, userID, domain.PlanWorkout); err != nil {
		return nil, err
	}
	if stats.MealPlan, err = s.activePlan(ctx, userID, domain.PlanMeal); err != nil {
		return nil, err
	}

	if user.TrainerID != nil {
		trainer, err := s.userRepo.GetByID(ctx, *user.TrainerID)
		switch {
		case err == nil:
			stats.Trainer = &TrainerSummary{ID: trainer.ID, Name: trainer.Name, Specialty: trainer.Specialty}
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	pending, err := s.requestRepo.GetPendingByUser(ctx, userID)
	switch {
	case err == nil:
		stats.PendingRequest = pending
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	local := now.In(s.loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
	visits, err := s.attendanceRepo.ListByUser(ctx, userID, monthStart.Format(dayLayout), local.Format(dayLayout))
	if err != nil {
		return nil, err
	}
	stats.CheckInsThisMonth = len(visits)
	return stats, nil
}

func (s *dashboardService) activePlan(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error) {
	v, err := s.versionRepo.GetActive(ctx, userID, kind)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// === User management ===

func (s *dashboardService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, invalid("unknown role")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	filter.Query = strings.TrimSpace(filter.Query)
	return s.userRepo.List(ctx, filter)
}

// CreateTrainer adds a trainer account. Admin-created accounts skip email verification.
func (s *dashboardService) CreateTrainer(ctx context.Context, in NewTrainer) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		return nil, invalid("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email address is invalid")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	trainer := &domain.User{
		Name:                name,
		Email:               email,
		PasswordHash:        hashed,
		Role:                domain.RoleTrainer,
		EmailVerified:       true,
		OnboardingCompleted: true,
		Specialty:           strings.TrimSpace(in.Specialty),
		Bio:                 strings.TrimSpace(in.Bio),
	}
	if _, err := s.userRepo.Create(ctx, trainer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	trainer.PasswordHash = ""
	return trainer, nil
}

// ChangeRole switches a user's role. Trainer links that no longer make sense
// for the new role are ended.
func (s *dashboardService) ChangeRole(ctx context.Context, adminID, userID primitive.ObjectID, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, invalid("unknown role")
	}
	if adminID == userID {
		return nil, ErrCannotChangeSelf
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Role == role {
		user.PasswordHash = ""
		return user, nil
	}

	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	now := timeNow()
	if user.IsTrainer() {
		s.releaseTrainees(ctx, userID, now)
	}
	if user.IsMember() {
		if a, err := s.assignmentRepo.GetActiveByUser(ctx, userID); err == nil {
			s.endAssignment(ctx, a.ID, now)
			if err := s.userRepo.SetTrainer(ctx, userID, nil); err != nil {
				log.Error().Err(err).Str("user_id", userID.Hex()).Msg("clearing trainer failed")
			}
		}
	}

	user.Role = role
	user.TrainerID = nil
	user.PasswordHash = ""
	return user, nil
}

// releaseTrainees ends a former trainer's assignments and cancels the plan
// requests still waiting on them.
func (s *dashboardService) releaseTrainees(ctx context.Context, trainerID primitive.ObjectID, now time.Time) {
	assignments, err := s.assignmentRepo.ListActiveByTrainer(ctx, trainerID)
	if err != nil {
		log.Error().Err(err).Str("trainer_id", trainerID.Hex()).Msg("listing trainees failed")
	}
	for _, a := range assignments {
		s.endAssignment(ctx, a.ID, now)
		if err := s.userRepo.SetTrainer(ctx, a.UserID, nil); err != nil {
			log.Error().Err(err).Str("user_id", a.UserID.Hex()).Msg("clearing trainer failed")
		}
	}

	pending, err := s.requestRepo.ListByTrainer(ctx, trainerID, domain.RequestPending)
	if err != nil {
		log.Error().Err(err).Str("trainer_id", trainerID.Hex()).Msg("listing pending plan requests failed")
		return
	}
	for _, req := range pending {
		err := s.requestRepo.UpdateStatus(ctx, req.ID, domain.RequestPending, domain.RequestCancelled, "trainer is no longer available")
		if err != nil && !errors.Is(err, repository.ErrStateConflict) {
			log.Error().Err(err).Str("request_id", req.ID.Hex()).Msg("cancelling plan request failed")
		}
	}
}

func (s *dashboardService) endAssignment(ctx context.Context, id primitive.ObjectID, now time.Time) {
	if err := s.assignmentRepo.End(ctx, id, now); err != nil && !errors.Is(err, repository.ErrStateConflict) {
		log.Error().Err(err).Str("assignment_id", id.Hex()).Msg("ending assignment failed")
	}
}

func (s *dashboardService) SetDisabled(ctx context.Context, adminID, userID primitive.ObjectID, disabled bool) error {
	if adminID == userID {
		return ErrCannotChangeSelf
	}
	err := s.userRepo.SetDisabled(ctx, userID, disabled)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
