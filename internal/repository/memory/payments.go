package memory

import (
	"context"
	"strings"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type membershipPlanRepo struct{ s *Store }

func (r *membershipPlanRepo) Create(_ context.Context, p *domain.MembershipPlan) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.plans {
		if strings.EqualFold(existing.Name, p.Name) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	r.s.plans[p.ID] = *p
	return p.ID, nil
}

func (r *membershipPlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.MembershipPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.plans, id)
}

func (r *membershipPlanRepo) List(_ context.Context, activeOnly bool) ([]domain.MembershipPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.plans, func(p domain.MembershipPlan) bool { return !activeOnly || p.Active })
	sortBy(out, func(a, b domain.MembershipPlan) bool { return a.Price < b.Price })
	return out, nil
}

func (r *membershipPlanRepo) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Active = active
	p.UpdatedAt = now()
	r.s.plans[id] = p
	return nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(_ context.Context, p *domain.Payment) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	r.s.payments[p.ID] = *p
	return p.ID, nil
}

func (r *paymentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return get(r.s.payments, id)
}

func (r *paymentRepo) GetByExternalRef(_ context.Context, provider domain.PaymentProvider, ref string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.payments {
		if p.Provider == provider && p.ExternalRef == ref {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *paymentRepo) SetGatewayRef(_ context.Context, id primitive.ObjectID, ref, redirectURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ExternalRef = ref
	p.RedirectURL = redirectURL
	p.UpdatedAt = now()
	r.s.payments[id] = p
	return nil
}

func (r *paymentRepo) Finish(_ context.Context, id primitive.ObjectID, status domain.PaymentStatus, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != domain.PaymentPending {
		return repository.ErrStateConflict
	}
	p.Status = status
	p.FailReason = reason
	if status == domain.PaymentCompleted {
		p.CompletedAt = &at
	}
	p.UpdatedAt = at
	r.s.payments[id] = p
	return nil
}

func (r *paymentRepo) MarkMembershipApplied(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != domain.PaymentCompleted || p.MembershipAppliedAt != nil {
		return repository.ErrStateConflict
	}
	p.MembershipAppliedAt = &at
	p.UpdatedAt = at
	r.s.payments[id] = p
	return nil
}

func (r *paymentRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.payments, func(p domain.Payment) bool { return p.UserID == userID })
	sortBy(out, func(a, b domain.Payment) bool { return a.CreatedAt.After(b.CreatedAt) })
	return out, nil
}

func (r *paymentRepo) List(_ context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := values(r.s.payments, func(p domain.Payment) bool { return status == "" || p.Status == status })
	sortBy(out, func(a, b domain.Payment) bool { return a.CreatedAt.After(b.CreatedAt) })
	return out, nil
}

func (r *paymentRepo) RevenueByCurrency(_ context.Context) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[string]int64{}
	for _, p := range r.s.payments {
		if p.Status == domain.PaymentCompleted {
			out[p.Currency] += p.Amount
		}
	}
	return out, nil
}
