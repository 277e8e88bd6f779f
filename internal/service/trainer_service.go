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

// --- Error Definitions ---
var (
	ErrTrainerNotFound        = errors.New("trainer not found")
	ErrPlanRequestNotFound    = errors.New("plan request not found")
	ErrPendingRequestExists   = errors.New("you already have a pending plan request")
	ErrInvalidRequestState    = errors.New("plan request is no longer pending")
	ErrAssignmentNotFound     = errors.New("assignment not found")
	ErrAssignmentAccessDenied = errors.New("access denied to this assignment")
	ErrNotYourTrainee         = errors.New("user is not one of your trainees")
)

// Trainee is a member together with the assignment that links them to a trainer.
type Trainee struct {
	User       domain.User              `json:"user"`
	Assignment domain.TraineeAssignment `json:"assignment"`
}

type TrainerService interface {
	ListTrainers(ctx context.Context) ([]domain.User, error)

	// Plan requests
	CreatePlanRequest(ctx context.Context, userID, trainerID primitive.ObjectID, kind domain.PlanRequestKind, goal, message string) (*domain.PlanRequest, error)
	ListPlanRequests(ctx context.Context, trainerID primitive.ObjectID, status domain.PlanRequestStatus) ([]domain.PlanRequest, error)
	ListMyPlanRequests(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRequest, error)
	AcceptPlanRequest(ctx context.Context, trainerID, requestID primitive.ObjectID) (*domain.TraineeAssignment, error)
	RejectPlanRequest(ctx context.Context, trainerID, requestID primitive.ObjectID, reason string) (*domain.PlanRequest, error)
	CancelPlanRequest(ctx context.Context, userID, requestID primitive.ObjectID) (*domain.PlanRequest, error)

	// Assignments
	ListTrainees(ctx context.Context, trainerID primitive.ObjectID) ([]Trainee, error)
	EndAssignment(ctx context.Context, actor Actor, assignmentID primitive.ObjectID) error
	// CanCoach reports whether actor may author plans, read logs and see
	// photos of userID for the given plan kind ("" for any kind).
	CanCoach(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (bool, error)
}

// trainerService implements the TrainerService interface.
type trainerService struct {
	userRepo       repository.UserRepository
	requestRepo    repository.PlanRequestRepository
	assignmentRepo repository.AssignmentRepository
}

// NewTrainerService creates a new instance of trainerService.
func NewTrainerService(
	userRepo repository.UserRepository,
	requestRepo repository.PlanRequestRepository,
	assignmentRepo repository.AssignmentRepository,
) TrainerService {
	return &trainerService{
		userRepo:       userRepo,
		requestRepo:    requestRepo,
		assignmentRepo: assignmentRepo,
	}
}

// ListTrainers returns enabled trainers for members choosing a coach.
func (s *trainerService) ListTrainers(ctx context.Context) ([]domain.User, error) {
	all, err := s.userRepo.List(ctx, repository.UserFilter{Role: domain.RoleTrainer})
	if err != nil {
		return nil, err
	}
	trainers := make([]domain.User, 0, len(all))
	for _, t := range all {
		if t.Disabled {
			continue
		}
		t.PasswordHash = ""
		trainers = append(trainers, t)
	}
	return trainers, nil
}

func (s *trainerService) getTrainer(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	trainer, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	if !trainer.IsTrainer() || trainer.Disabled {
		return nil, ErrTrainerNotFound
	}
	return trainer, nil
}

// === Plan Requests ===

func (s *trainerService) CreatePlanRequest(ctx context.Context, userID, trainerID primitive.ObjectID, kind domain.PlanRequestKind, goal, message string) (*domain.PlanRequest, error) {
	if !kind.Valid() {
		return nil, invalid("kind must be workout, meal or both")
	}
	if _, err := s.getTrainer(ctx, trainerID); err != nil {
		return nil, err
	}

	_, err := s.requestRepo.GetPendingByUser(ctx, userID)
	if err == nil {
		return nil, ErrPendingRequestExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	req := &domain.PlanRequest{
		UserID:    userID,
		TrainerID: trainerID,
		Kind:      kind,
		Goal:      strings.TrimSpace(goal),
		Message:   strings.TrimSpace(message),
		Status:    domain.RequestPending,
	}
	if _, err := s.requestRepo.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrPendingRequestExists
		}
		return nil, err
	}
	return req, nil
}

func (s *trainerService) ListPlanRequests(ctx context.Context, trainerID primitive.ObjectID, status domain.PlanRequestStatus) ([]domain.PlanRequest, error) {
	return s.requestRepo.ListByTrainer(ctx, trainerID, status)
}

func (s *trainerService) ListMyPlanRequests(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRequest, error) {
	return s.requestRepo.ListByUser(ctx, userID)
}

func (s *trainerService) getRequest(ctx context.Context, id primitive.ObjectID) (*domain.PlanRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *trainerService) transition(ctx context.Context, req *domain.PlanRequest, to domain.PlanRequestStatus, reason string) error {
	err := s.requestRepo.UpdateStatus(ctx, req.ID, domain.RequestPending, to, reason)
	if errors.Is(err, repository.ErrStateConflict) {
		return ErrInvalidRequestState
	}
	if err != nil {
		return err
	}
	req.Status = to
	if reason != "" {
		req.RejectReason = reason
	}
	req.UpdatedAt = timeNow()
	return nil
}

// AcceptPlanRequest makes the requesting member a trainee of trainerID,
// ending any assignment the member had with another trainer.
func (s *trainerService) AcceptPlanRequest(ctx context.Context, trainerID, requestID primitive.ObjectID) (*domain.TraineeAssignment, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TrainerID != trainerID {
		return nil, ErrPlanRequestNotFound
	}
	if req.Status != domain.RequestPending {
		return nil, ErrInvalidRequestState
	}
	if err := s.transition(ctx, req, domain.RequestAccepted, ""); err != nil {
		return nil, err
	}

	now := timeNow()
	var previous *domain.TraineeAssignment
	current, err := s.assignmentRepo.GetActiveByUser(ctx, req.UserID)
	switch {
	case err == nil:
		err = s.assignmentRepo.End(ctx, current.ID, now)
		if err == nil {
			previous = current
		} else if !errors.Is(err, repository.ErrStateConflict) {
			s.undoAccept(ctx, req, nil, nil)
			return nil, err
		}
	case !errors.Is(err, repository.ErrNotFound):
		s.undoAccept(ctx, req, nil, nil)
		return nil, err
	}

	reqID := req.ID
	assignment := &domain.TraineeAssignment{
		TrainerID: trainerID,
		UserID:    req.UserID,
		RequestID: &reqID,
		Kind:      req.Kind,
		Status:    domain.AssignmentActive,
	}
	if _, err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		s.undoAccept(ctx, req, nil, previous)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvalidRequestState
		}
		return nil, err
	}

	if err := s.userRepo.SetTrainer(ctx, req.UserID, &trainerID); err != nil {
		s.undoAccept(ctx, req, assignment, previous)
		return nil, err
	}
	return assignment, nil
}

// undoAccept rolls back a partly applied accept: it ends the assignment it
// created, reopens the one it ended and puts the request back to pending.
func (s *trainerService) undoAccept(ctx context.Context, req *domain.PlanRequest, created, previous *domain.TraineeAssignment) {
	if created != nil {
		if err := s.assignmentRepo.End(ctx, created.ID, timeNow()); err != nil {
			log.Error().Err(err).Str("assignment_id", created.ID.Hex()).Msg("failed to end assignment of reverted accept")
		}
	}
	if previous != nil {
		if err := s.assignmentRepo.Reopen(ctx, previous.ID); err != nil {
			log.Error().Err(err).Str("assignment_id", previous.ID.Hex()).Msg("failed to reopen previous assignment")
		}
	}
	if err := s.requestRepo.UpdateStatus(ctx, req.ID, domain.RequestAccepted, domain.RequestPending, ""); err != nil {
		log.Error().Err(err).Str("request_id", req.ID.Hex()).Msg("failed to revert accepted plan request")
	}
	req.Status = domain.RequestPending
}

func (s *trainerService) RejectPlanRequest(ctx context.Context, trainerID, requestID primitive.ObjectID, reason string) (*domain.PlanRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TrainerID != trainerID {
		return nil, ErrPlanRequestNotFound
	}
	if err := s.transition(ctx, req, domain.RequestRejected, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *trainerService) CancelPlanRequest(ctx context.Context, userID, requestID primitive.ObjectID) (*domain.PlanRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrPlanRequestNotFound
	}
	if err := s.transition(ctx, req, domain.RequestCancelled, ""); err != nil {
		return nil, err
	}
	return req, nil
}

// === Assignments ===

func (s *trainerService) ListTrainees(ctx context.Context, trainerID primitive.ObjectID) ([]Trainee, error) {
	assignments, err := s.assignmentRepo.ListActiveByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []Trainee{}, nil
	}

	ids := make([]primitive.ObjectID, len(assignments))
	for i, a := range assignments {
		ids[i] = a.UserID
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]domain.User, len(users))
	for _, u := range users {
		u.PasswordHash = ""
		byID[u.ID] = u
	}

	trainees := make([]Trainee, 0, len(assignments))
	for _, a := range assignments {
		u, ok := byID[a.UserID]
		if !ok {
			continue
		}
		trainees = append(trainees, Trainee{User: u, Assignment: a})
	}
	return trainees, nil
}

func (s *trainerService) EndAssignment(ctx context.Context, actor Actor, assignmentID primitive.ObjectID) error {
	a, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}
	if !actor.IsAdmin() && a.TrainerID != actor.ID {
		return ErrAssignmentAccessDenied
	}

	if err := s.assignmentRepo.End(ctx, a.ID, timeNow()); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil // already ended
		}
		return err
	}

	user, err := s.userRepo.GetByID(ctx, a.UserID)
	if err != nil {
		return err
	}
	if user.TrainerID != nil && *user.TrainerID == a.TrainerID {
		return s.userRepo.SetTrainer(ctx, a.UserID, nil)
	}
	return nil
}

func (s *trainerService) CanCoach(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (bool, error) {
	return canCoach(ctx, s.assignmentRepo, actor, userID, kind)
}

func canCoach(ctx context.Context, assignments repository.AssignmentRepository, actor Actor, userID primitive.ObjectID, kind domain.PlanKind) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if !actor.IsTrainer() {
		return false, nil
	}
	a, err := assignments.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if a.TrainerID != actor.ID {
		return false, nil
	}
	return kind == "" || a.Kind.Covers(kind), nil
}
