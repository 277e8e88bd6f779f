package memory

import (
	"context"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type planRequestRepo struct{ s *Store }

func (r *planRequestRepo) Create(_ context.Context, req *domain.PlanRequest) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if req.Status == "" {
		req.Status = domain.RequestPending
	}
	if req.Status == domain.RequestPending {
		for _, existing := range r.s.requests {
			if existing.UserID == req.UserID && existing.Status == domain.RequestPending {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	req.ID = primitive.NewObjectID()
	req.CreatedAt = now()
	req.UpdatedAt = req.CreatedAt
	r.s.requests[req.ID] = *req
	return req.ID, nil
}

func (r *planRequestRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PlanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.requests, id)
}

func (r *planRequestRepo) GetPendingByUser(_ context.Context, userID primitive.ObjectID) (*domain.PlanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, req := range r.s.requests {
		if req.UserID == userID && req.Status == domain.RequestPending {
			return &req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *planRequestRepo) ListByTrainer(_ context.Context, trainerID primitive.ObjectID, status domain.PlanRequestStatus) ([]domain.PlanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.requests, func(req domain.PlanRequest) bool {
		return req.TrainerID == trainerID && (status == "" || req.Status == status)
	})
	sortBy(out, func(a, b domain.PlanRequest) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return out, nil
}

func (r *planRequestRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.PlanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.requests, func(req domain.PlanRequest) bool { return req.UserID == userID })
	sortBy(out, func(a, b domain.PlanRequest) bool { return a.CreatedAt.After(b.CreatedAt) })
	return out, nil
}

func (r *planRequestRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.PlanRequestStatus, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != from {
		return repository.ErrStateConflict
	}
	req.Status = to
	if reason != "" {
		req.RejectReason = reason
	}
	req.UpdatedAt = now()
	r.s.requests[id] = req
	return nil
}

func (r *planRequestRepo) CountByStatus(_ context.Context, trainerID *primitive.ObjectID, status domain.PlanRequestStatus) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.requests, func(req domain.PlanRequest) bool {
		return req.Status == status && (trainerID == nil || req.TrainerID == *trainerID)
	})
	return int64(len(out)), nil
}

type assignmentRepo struct{ s *Store }

func (r *assignmentRepo) Create(_ context.Context, a *domain.TraineeAssignment) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.Status == "" {
		a.Status = domain.AssignmentActive
	}
	for _, existing := range r.s.assignments {
		if a.Status == domain.AssignmentActive && existing.UserID == a.UserID && existing.Status == domain.AssignmentActive {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	a.ID = primitive.NewObjectID()
	a.StartedAt = now()
	a.UpdatedAt = a.StartedAt
	r.s.assignments[a.ID] = *a
	return a.ID, nil
}

func (r *assignmentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TraineeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.assignments, id)
}

func (r *assignmentRepo) GetActiveByUser(_ context.Context, userID primitive.ObjectID) (*domain.TraineeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.assignments {
		if a.UserID == userID && a.Status == domain.AssignmentActive {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *assignmentRepo) ListActiveByTrainer(_ context.Context, trainerID primitive.ObjectID) ([]domain.TraineeAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.assignments, func(a domain.TraineeAssignment) bool {
		return a.TrainerID == trainerID && a.Status == domain.AssignmentActive
	})
	sortBy(out, func(a, b domain.TraineeAssignment) bool { return a.StartedAt.After(b.StartedAt) })
	return out, nil
}

func (r *assignmentRepo) End(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != domain.AssignmentActive {
		return repository.ErrStateConflict
	}
	a.Status = domain.AssignmentEnded
	a.EndedAt = &at
	a.UpdatedAt = now()
	r.s.assignments[id] = a
	return nil
}

func (r *assignmentRepo) Reopen(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != domain.AssignmentEnded {
		return repository.ErrStateConflict
	}
	for _, other := range r.s.assignments {
		if other.UserID == a.UserID && other.Status == domain.AssignmentActive {
			return repository.ErrDuplicate
		}
	}
	a.Status = domain.AssignmentActive
	a.EndedAt = nil
	a.UpdatedAt = now()
	r.s.assignments[id] = a
	return nil
}

func (r *assignmentRepo) CountActiveByTrainer(_ context.Context, trainerID primitive.ObjectID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.assignments, func(a domain.TraineeAssignment) bool {
		return a.TrainerID == trainerID && a.Status == domain.AssignmentActive
	})
	return int64(len(out)), nil
}
