package memory

import (
	"context"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.users, id)
}

func (r *userRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	sortBy(out, func(a, b domain.User) bool { return a.Name < b.Name })
	return out, nil
}

func (r *userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.users, func(u domain.User) bool {
		if filter.Role != "" && u.Role != filter.Role {
			return false
		}
		if filter.Query != "" && !containsFold(u.Name, filter.Query) && !containsFold(u.Email, filter.Query) {
			return false
		}
		return true
	})
	sortBy(out, func(a, b domain.User) bool { return a.CreatedAt.After(b.CreatedAt) })
	if filter.Skip > 0 {
		if filter.Skip >= int64(len(out)) {
			return []domain.User{}, nil
		}
		out = out[filter.Skip:]
	}
	if filter.Limit > 0 && filter.Limit < int64(len(out)) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *userRepo) Count(_ context.Context, role domain.Role) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(values(r.s.users, func(u domain.User) bool { return role == "" || u.Role == role }))), nil
}

func (r *userRepo) CountActiveMembers(_ context.Context, at time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := values(r.s.users, func(u domain.User) bool { return u.IsMember() && u.Membership.ActiveAt(at) })
	return int64(len(n)), nil
}

func (r *userRepo) mutate(id primitive.ObjectID, fn func(*domain.User) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = now()
	r.s.users[id] = u
	return nil
}

func (r *userRepo) SetOTP(_ context.Context, id primitive.ObjectID, otp *domain.OTP) error {
	return r.mutate(id, func(u *domain.User) error {
		if otp == nil {
			u.OTP = nil
			return nil
		}
		cp := *otp
		u.OTP = &cp
		return nil
	})
}

func (r *userRepo) ClaimOTPAttempt(_ context.Context, id primitive.ObjectID, max int) (int, error) {
	var attempts int
	err := r.mutate(id, func(u *domain.User) error {
		if u.OTP == nil || u.OTP.Attempts >= max {
			return repository.ErrStateConflict
		}
		cp := *u.OTP
		cp.Attempts++
		u.OTP = &cp
		attempts = cp.Attempts
		return nil
	})
	return attempts, err
}

func (r *userRepo) MarkEmailVerified(_ context.Context, id primitive.ObjectID) error {
	return r.mutate(id, func(u *domain.User) error {
		u.EmailVerified = true
		u.OTP = nil
		return nil
	})
}

func (r *userRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.mutate(id, func(u *domain.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (r *userRepo) UpdateLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	return r.mutate(id, func(u *domain.User) error {
		u.LastLogin = &at
		return nil
	})
}

func (r *userRepo) CompleteOnboarding(_ context.Context, id primitive.ObjectID, profile domain.Profile) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Profile = profile
		u.OnboardingCompleted = true
		return nil
	})
}

func (r *userRepo) SetTrainer(_ context.Context, userID primitive.ObjectID, trainerID *primitive.ObjectID) error {
	return r.mutate(userID, func(u *domain.User) error {
		if trainerID == nil {
			u.TrainerID = nil
			return nil
		}
		id := *trainerID
		u.TrainerID = &id
		return nil
	})
}

func (r *userRepo) ExtendMembership(_ context.Context, id primitive.ObjectID, ext repository.MembershipExtension) (*domain.User, error) {
	var out domain.User
	err := r.mutate(id, func(u *domain.User) error {
		for _, applied := range u.Membership.PaymentIDs {
			if applied == ext.PaymentID {
				return repository.ErrStateConflict
			}
		}
		start := ext.At
		if u.Membership.ActiveAt(start) {
			start = *u.Membership.ExpiresAt
		}
		until := start.Add(time.Duration(ext.Days) * 24 * time.Hour)
		planID := ext.PlanID
		u.Membership = domain.Membership{
			PlanID:     &planID,
			PlanName:   ext.PlanName,
			ExpiresAt:  &until,
			PaymentIDs: append(append([]primitive.ObjectID{}, u.Membership.PaymentIDs...), ext.PaymentID),
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) SetRole(_ context.Context, id primitive.ObjectID, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Role = role
		return nil
	})
}

func (r *userRepo) SetDisabled(_ context.Context, id primitive.ObjectID, disabled bool) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Disabled = disabled
		return nil
	})
}
