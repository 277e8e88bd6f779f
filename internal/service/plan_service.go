package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/observability"
	"alcyxob/gym-app/internal/plangen"
	"alcyxob/gym-app/internal/repository"
)

var (
	ErrPlanNotFound     = errors.New("plan version not found")
	ErrNoActivePlan     = errors.New("no active plan")
	ErrPlanAccessDenied = errors.New("access denied to this plan")
	ErrInvalidPlanState = errors.New("plan version is not in a state that allows this action")
	ErrInvalidPlanKind  = errors.New("plan kind must be workout or meal")
)

// PlanService manages versioned workout and meal plans.
type PlanService interface {
	CreateDraft(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind, content domain.PlanContent) (*domain.PlanVersion, error)
	UpdateDraft(ctx context.Context, actor Actor, versionID primitive.ObjectID, content domain.PlanContent) (*domain.PlanVersion, error)
	SubmitVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error)
	// RetractVersion takes a submitted version back to draft for more edits.
	RetractVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error)
	ActivateVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error)
	GenerateAIDraft(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error)

	GetActivePlan(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error)
	ListVersions(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) ([]domain.PlanVersion, error)
	GetVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error)

	// AssignGeneric gives the user an active generic plan of every kind they
	// have no active plan for.
	AssignGeneric(ctx context.Context, userID primitive.ObjectID, profile domain.Profile) error
}

type planService struct {
	userRepo       repository.UserRepository
	versionRepo    repository.PlanVersionRepository
	assignmentRepo repository.AssignmentRepository
	generator      plangen.Generator
}

func NewPlanService(
	userRepo repository.UserRepository,
	versionRepo repository.PlanVersionRepository,
	assignmentRepo repository.AssignmentRepository,
	generator plangen.Generator,
) PlanService {
	return &planService{
		userRepo:       userRepo,
		versionRepo:    versionRepo,
		assignmentRepo: assignmentRepo,
		generator:      generator,
	}
}

// mayAuthor checks that actor can write plans of kind for userID.
func (s *planService) mayAuthor(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) error {
	ok, err := canCoach(ctx, s.assignmentRepo, actor, userID, kind)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlanAccessDenied
	}
	return nil
}

// mayRead allows the owner, admins and the user's current trainer.
func (s *planService) mayRead(ctx context.Context, actor Actor, userID primitive.ObjectID) error {
	if actor.ID == userID {
		return nil
	}
	ok, err := canCoach(ctx, s.assignmentRepo, actor, userID, "")
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlanAccessDenied
	}
	return nil
}

func (s *planService) getVersion(ctx context.Context, id primitive.ObjectID) (*domain.PlanVersion, error) {
	v, err := s.versionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return v, nil
}

func isAuthor(v *domain.PlanVersion, actor Actor) bool {
	return v.AuthorID != nil && *v.AuthorID == actor.ID
}

// editable loads a version the actor may change: its author while they still
// coach the user, or an admin.
func (s *planService) editable(ctx context.Context, actor Actor, id primitive.ObjectID) (*domain.PlanVersion, error) {
	v, err := s.getVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return v, nil
	}
	if !isAuthor(v, actor) {
		return nil, ErrPlanAccessDenied
	}
	if actor.ID != v.UserID {
		if err := s.mayAuthor(ctx, actor, v.UserID, v.Kind); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *planService) requireMember(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.IsMember() {
		return nil, invalid("plans can only be written for members")
	}
	return u, nil
}

// CreateDraft stores content as the next draft version of the user's plan.
func (s *planService) CreateDraft(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind, content domain.PlanContent) (*domain.PlanVersion, error) {
	if !kind.Valid() {
		return nil, ErrInvalidPlanKind
	}
	if err := plangen.Validate(content); err != nil {
		return nil, invalid(err.Error())
	}
	if err := s.mayAuthor(ctx, actor, userID, kind); err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, userID); err != nil {
		return nil, err
	}
	return s.insert(ctx, userID, kind, domain.PlanDraft, domain.SourceTrainer, &actor.ID, content)
}

func (s *planService) insert(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind, status domain.PlanStatus, source domain.PlanSource, author *primitive.ObjectID, content domain.PlanContent) (*domain.PlanVersion, error) {
	v := &domain.PlanVersion{
		UserID:   userID,
		Kind:     kind,
		Status:   status,
		Source:   source,
		AuthorID: author,
		Content:  content,
	}
	if status == domain.PlanActive {
		now := timeNow()
		v.ActivatedAt = &now
	}
	if _, err := s.versionRepo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *planService) UpdateDraft(ctx context.Context, actor Actor, versionID primitive.ObjectID, content domain.PlanContent) (*domain.PlanVersion, error) {
	if err := plangen.Validate(content); err != nil {
		return nil, invalid(err.Error())
	}
	v, err := s.editable(ctx, actor, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status != domain.PlanDraft {
		return nil, ErrInvalidPlanState
	}
	if err := s.versionRepo.UpdateContent(ctx, v.ID, content); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrInvalidPlanState
		}
		return nil, err
	}
	v.Content = content
	v.UpdatedAt = timeNow()
	return v, nil
}

func (s *planService) move(ctx context.Context, actor Actor, versionID primitive.ObjectID, to domain.PlanStatus) (*domain.PlanVersion, error) {
	v, err := s.editable(ctx, actor, versionID)
	if err != nil {
		return nil, err
	}
	if !v.Status.CanTransition(to) {
		return nil, ErrInvalidPlanState
	}
	if err := s.versionRepo.UpdateStatus(ctx, v.ID, v.Status, to); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrInvalidPlanState
		}
		return nil, err
	}
	v.Status = to
	v.UpdatedAt = timeNow()
	return v, nil
}

func (s *planService) SubmitVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error) {
	return s.move(ctx, actor, versionID, domain.PlanSubmitted)
}

func (s *planService) RetractVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status != domain.PlanSubmitted {
		return nil, ErrInvalidPlanState
	}
	return s.move(ctx, actor, versionID, domain.PlanDraft)
}

// ActivateVersion makes a draft or submitted version the user's active plan.
// The member may accept a submitted version, or activate a draft they
// generated themselves.
func (s *planService) ActivateVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !v.Status.CanTransition(domain.PlanActive) {
		return nil, ErrInvalidPlanState
	}

	switch {
	case actor.IsAdmin():
	case actor.ID == v.UserID:
		if v.Status != domain.PlanSubmitted && !isAuthor(v, actor) {
			return nil, ErrPlanAccessDenied
		}
	default:
		if _, err := s.editable(ctx, actor, versionID); err != nil {
			return nil, err
		}
	}

	activated, err := s.versionRepo.Activate(ctx, v.ID, timeNow())
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrInvalidPlanState
		}
		return nil, err
	}
	observability.RecordPlanActivation(string(activated.Kind), string(activated.Source))
	log.Info().
		Str("user_id", activated.UserID.Hex()).
		Str("kind", string(activated.Kind)).
		Int("version", activated.Version).
		Msg("plan version activated")
	return activated, nil
}

// GenerateAIDraft creates a draft from the user's profile. Members may
// generate drafts for themselves.
func (s *planService) GenerateAIDraft(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error) {
	if !kind.Valid() {
		return nil, ErrInvalidPlanKind
	}
	if actor.ID != userID {
		if err := s.mayAuthor(ctx, actor, userID, kind); err != nil {
			return nil, err
		}
	}
	user, err := s.requireMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	content, source := s.generator.Generate(ctx, kind, user.Profile)
	return s.insert(ctx, userID, kind, domain.PlanDraft, source, &actor.ID, content)
}

func (s *planService) GetActivePlan(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error) {
	if !kind.Valid() {
		return nil, ErrInvalidPlanKind
	}
	if err := s.mayRead(ctx, actor, userID); err != nil {
		return nil, err
	}
	v, err := s.versionRepo.GetActive(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActivePlan
		}
		return nil, err
	}
	return v, nil
}

// ListVersions returns the version history. Members do not see drafts
// written for them by a trainer until they are submitted.
func (s *planService) ListVersions(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) ([]domain.PlanVersion, error) {
	if kind != "" && !kind.Valid() {
		return nil, ErrInvalidPlanKind
	}
	if err := s.mayRead(ctx, actor, userID); err != nil {
		return nil, err
	}
	versions, err := s.versionRepo.List(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if actor.ID != userID {
		return versions, nil
	}
	visible := versions[:0]
	for _, v := range versions {
		if v.Status == domain.PlanDraft && !isAuthor(&v, actor) {
			continue
		}
		visible = append(visible, v)
	}
	return visible, nil
}

func (s *planService) GetVersion(ctx context.Context, actor Actor, versionID primitive.ObjectID) (*domain.PlanVersion, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if err := s.mayRead(ctx, actor, v.UserID); err != nil {
		return nil, err
	}
	if actor.ID == v.UserID && v.Status == domain.PlanDraft && !isAuthor(v, actor) {
		return nil, ErrPlanNotFound
	}
	return v, nil
}

func (s *planService) AssignGeneric(ctx context.Context, userID primitive.ObjectID, profile domain.Profile) error {
	for _, kind := range []domain.PlanKind{domain.PlanWorkout, domain.PlanMeal} {
		_, err := s.versionRepo.GetActive(ctx, userID, kind)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		v, err := s.insert(ctx, userID, kind, domain.PlanActive, domain.SourceGeneric, nil, plangen.Generic(kind, profile))
		if errors.Is(err, repository.ErrDuplicate) {
			continue // an active plan appeared concurrently
		}
		if err != nil {
			return err
		}
		observability.RecordPlanActivation(string(kind), string(v.Source))
	}
	return nil
}
