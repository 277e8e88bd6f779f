package memory

import (
	"context"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type noticeRepo struct{ s *Store }

func (r *noticeRepo) Create(_ context.Context, n *domain.Notice) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = now()
	n.UpdatedAt = n.CreatedAt
	r.s.notices[n.ID] = *n
	return n.ID, nil
}

func (r *noticeRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Notice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.notices, id)
}

func (r *noticeRepo) Update(_ context.Context, n *domain.Notice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.notices[n.ID]
	if !ok {
		return repository.ErrNotFound
	}
	n.CreatedAt = existing.CreatedAt
	n.CreatedBy = existing.CreatedBy
	n.UpdatedAt = now()
	r.s.notices[n.ID] = *n
	return nil
}

func (r *noticeRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notices[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.notices, id)
	return nil
}

func (r *noticeRepo) List(_ context.Context) ([]domain.Notice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.notices, nil)
	sortBy(out, func(a, b domain.Notice) bool {
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

type attendanceRepo struct{ s *Store }

func (r *attendanceRepo) Create(_ context.Context, a *domain.Attendance) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.attendance {
		if existing.UserID == a.UserID && existing.Day == a.Day {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	a.ID = primitive.NewObjectID()
	r.s.attendance[a.ID] = *a
	return a.ID, nil
}

func (r *attendanceRepo) GetByUserAndDay(_ context.Context, userID primitive.ObjectID, day string) (*domain.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.attendance {
		if a.UserID == userID && a.Day == day {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *attendanceRepo) CheckOut(_ context.Context, id primitive.ObjectID, at time.Time, tokenID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attendance[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.CheckOutAt != nil {
		return repository.ErrStateConflict
	}
	a.CheckOutAt = &at
	a.CheckOutTkID = tokenID
	r.s.attendance[id] = a
	return nil
}

func (r *attendanceRepo) ListByUser(_ context.Context, userID primitive.ObjectID, fromDay, toDay string) ([]domain.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.attendance, func(a domain.Attendance) bool {
		return a.UserID == userID && (fromDay == "" || a.Day >= fromDay) && (toDay == "" || a.Day <= toDay)
	})
	sortBy(out, func(a, b domain.Attendance) bool { return a.Day > b.Day })
	return out, nil
}

func (r *attendanceRepo) ListByDay(_ context.Context, day string) ([]domain.Attendance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.attendance, func(a domain.Attendance) bool { return a.Day == day })
	sortBy(out, func(a, b domain.Attendance) bool { return a.CheckInAt.Before(b.CheckInAt) })
	return out, nil
}

func (r *attendanceRepo) CountByDay(_ context.Context, day string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(values(r.s.attendance, func(a domain.Attendance) bool { return a.Day == day }))), nil
}

type uploadRepo struct{ s *Store }

func (r *uploadRepo) Create(_ context.Context, u *domain.Upload) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.uploads {
		if existing.S3ObjectKey == u.S3ObjectKey {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	u.UploadedAt = now()
	r.s.uploads[u.ID] = *u
	return u.ID, nil
}

func (r *uploadRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Upload, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.uploads, id)
}

func (r *uploadRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Upload, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.uploads, func(u domain.Upload) bool { return u.UserID == userID })
	sortBy(out, func(a, b domain.Upload) bool { return a.UploadedAt.After(b.UploadedAt) })
	return out, nil
}

func (r *uploadRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.uploads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.uploads, id)
	return nil
}
