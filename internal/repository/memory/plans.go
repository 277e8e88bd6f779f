package memory

import (
	"context"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type planVersionRepo struct{ s *Store }

func (r *planVersionRepo) Create(_ context.Context, v *domain.PlanVersion) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	latest := 0
	for _, existing := range r.s.versions {
		if existing.UserID == v.UserID && existing.Kind == v.Kind && existing.Version > latest {
			latest = existing.Version
		}
		if v.Status == domain.PlanActive && existing.UserID == v.UserID && existing.Kind == v.Kind && existing.Status == domain.PlanActive {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	v.ID = primitive.NewObjectID()
	v.Version = latest + 1
	v.CreatedAt = now()
	v.UpdatedAt = v.CreatedAt
	r.s.versions[v.ID] = *v
	return v.ID, nil
}

func (r *planVersionRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PlanVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.versions, id)
}

func (r *planVersionRepo) GetActive(_ context.Context, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.activeLocked(userID, kind)
}

func (r *planVersionRepo) activeLocked(userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error) {
	for _, v := range r.s.versions {
		if v.UserID == userID && v.Kind == kind && v.Status == domain.PlanActive {
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *planVersionRepo) List(_ context.Context, userID primitive.ObjectID, kind domain.PlanKind) ([]domain.PlanVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.versions, func(v domain.PlanVersion) bool {
		return v.UserID == userID && (kind == "" || v.Kind == kind)
	})
	sortBy(out, func(a, b domain.PlanVersion) bool {
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Version > b.Version
	})
	return out, nil
}

func (r *planVersionRepo) mutate(id primitive.ObjectID, fn func(*domain.PlanVersion) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.versions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&v); err != nil {
		return err
	}
	v.UpdatedAt = now()
	r.s.versions[id] = v
	return nil
}

func (r *planVersionRepo) UpdateContent(_ context.Context, id primitive.ObjectID, content domain.PlanContent) error {
	return r.mutate(id, func(v *domain.PlanVersion) error {
		if v.Status != domain.PlanDraft {
			return repository.ErrStateConflict
		}
		v.Content = content
		return nil
	})
}

func (r *planVersionRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to domain.PlanStatus) error {
	return r.mutate(id, func(v *domain.PlanVersion) error {
		if v.Status != from {
			return repository.ErrStateConflict
		}
		v.Status = to
		return nil
	})
}

// Activate holds the store lock for both writes, which is the in-memory
// equivalent of the Mongo transaction.
func (r *planVersionRepo) Activate(_ context.Context, id primitive.ObjectID, at time.Time) (*domain.PlanVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	target, ok := r.s.versions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if target.Status != domain.PlanDraft && target.Status != domain.PlanSubmitted {
		return nil, repository.ErrStateConflict
	}
	if current, err := r.activeLocked(target.UserID, target.Kind); err == nil {
		current.Status = domain.PlanInactive
		current.UpdatedAt = at
		r.s.versions[current.ID] = *current
	}
	target.Status = domain.PlanActive
	target.ActivatedAt = &at
	target.UpdatedAt = at
	r.s.versions[id] = target
	return &target, nil
}

func (r *planVersionRepo) CountByAuthor(_ context.Context, authorID primitive.ObjectID, status domain.PlanStatus) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.versions, func(v domain.PlanVersion) bool {
		return v.AuthorID != nil && *v.AuthorID == authorID && (status == "" || v.Status == status)
	})
	return int64(len(out)), nil
}

type logRepo struct{ s *Store }

func (r *logRepo) Create(_ context.Context, l *domain.ActivityLog) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = primitive.NewObjectID()
	l.CreatedAt = now()
	r.s.logs[l.ID] = *l
	return l.ID, nil
}

func (r *logRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ActivityLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.logs, id)
}

func (r *logRepo) List(_ context.Context, filter repository.LogFilter) ([]domain.ActivityLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.logs, func(l domain.ActivityLog) bool {
		switch {
		case l.UserID != filter.UserID:
			return false
		case filter.Kind != "" && l.Kind != filter.Kind:
			return false
		case !filter.From.IsZero() && l.Date.Before(filter.From):
			return false
		case !filter.To.IsZero() && l.Date.After(filter.To):
			return false
		}
		return true
	})
	sortBy(out, func(a, b domain.ActivityLog) bool {
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (r *logRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.logs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.logs, id)
	return nil
}
