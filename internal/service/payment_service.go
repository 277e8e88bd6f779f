package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	gymmail "alcyxob/gym-app/internal/mail"
	"alcyxob/gym-app/internal/observability"
	"alcyxob/gym-app/internal/payment"
	"alcyxob/gym-app/internal/repository"
)

// --- Error Definitions ---
var (
	ErrMembershipPlanNotFound = errors.New("membership plan not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrProviderUnavailable    = errors.New("payment provider is not available")
	ErrPaymentGateway         = errors.New("payment gateway error")
	ErrPaymentNotInitiated    = errors.New("payment was never sent to the gateway")
)

// WebhookParser verifies and decodes Stripe webhook deliveries.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

// Checkout is a pending payment and where to send the member to pay it.
type Checkout struct {
	Payment     *domain.Payment `json:"payment"`
	RedirectURL string          `json:"redirectUrl"`
}

type PaymentService interface {
	ListMembershipPlans(ctx context.Context, activeOnly bool) ([]domain.MembershipPlan, error)
	CreateMembershipPlan(ctx context.Context, plan domain.MembershipPlan) (*domain.MembershipPlan, error)
	SetMembershipPlanActive(ctx context.Context, planID primitive.ObjectID, active bool) error

	InitiatePayment(ctx context.Context, userID, planID primitive.ObjectID, provider domain.PaymentProvider) (*Checkout, error)
	VerifyPayment(ctx context.Context, userID, paymentID primitive.ObjectID) (*domain.Payment, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error

	ListMyPayments(ctx context.Context, userID primitive.ObjectID) ([]domain.Payment, error)
	ListPayments(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error)
}

type paymentService struct {
	userRepo    repository.UserRepository
	planRepo    repository.MembershipPlanRepository
	paymentRepo repository.PaymentRepository
	gateways    map[domain.PaymentProvider]payment.Gateway
	webhooks    WebhookParser
	mailer      gymmail.Sender
	frontendURL string
}

// NewPaymentService wires the configured gateways. webhooks may be nil when
// Stripe webhooks are not set up.
func NewPaymentService(
	userRepo repository.UserRepository,
	planRepo repository.MembershipPlanRepository,
	paymentRepo repository.PaymentRepository,
	gateways []payment.Gateway,
	webhooks WebhookParser,
	mailer gymmail.Sender,
	frontendURL string,
) PaymentService {
	byProvider := make(map[domain.PaymentProvider]payment.Gateway, len(gateways))
	for _, g := range gateways {
		byProvider[g.Provider()] = g
	}
	return &paymentService{
		userRepo:    userRepo,
		planRepo:    planRepo,
		paymentRepo: paymentRepo,
		gateways:    byProvider,
		webhooks:    webhooks,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// === Membership plans ===

func (s *paymentService) ListMembershipPlans(ctx context.Context, activeOnly bool) ([]domain.MembershipPlan, error) {
	return s.planRepo.List(ctx, activeOnly)
}

func (s *paymentService) CreateMembershipPlan(ctx context.Context, plan domain.MembershipPlan) (*domain.MembershipPlan, error) {
	plan.Name = strings.TrimSpace(plan.Name)
	plan.Currency = strings.ToLower(strings.TrimSpace(plan.Currency))
	switch {
	case plan.Name == "":
		return nil, invalid("plan name is required")
	case plan.Price <= 0:
		return nil, invalid("price must be positive")
	case len(plan.Currency) != 3:
		return nil, invalid("currency must be a three letter ISO code")
	case plan.DurationDays <= 0 || plan.DurationDays > 3660:
		return nil, invalid("duration must be between 1 and 3660 days")
	}
	plan.ID = primitive.NilObjectID
	plan.Active = true
	if _, err := s.planRepo.Create(ctx, &plan); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalid("a plan with this name already exists")
		}
		return nil, err
	}
	return &plan, nil
}

func (s *paymentService) SetMembershipPlanActive(ctx context.Context, planID primitive.ObjectID, active bool) error {
	err := s.planRepo.SetActive(ctx, planID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMembershipPlanNotFound
	}
	return err
}

// === Payments ===

// InitiatePayment records a pending payment and creates it at the gateway.
func (s *paymentService) InitiatePayment(ctx context.Context, userID, planID primitive.ObjectID, provider domain.PaymentProvider) (*Checkout, error) {
	if !provider.Valid() {
		return nil, invalid("provider must be stripe or khalti")
	}
	gateway, ok := s.gateways[provider]
	if !ok {
		return nil, ErrProviderUnavailable
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipPlanNotFound
		}
		return nil, err
	}
	if !plan.Active {
		return nil, ErrMembershipPlanNotFound
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	p := &domain.Payment{
		UserID:   userID,
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Provider: provider,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Status:   domain.PaymentPending,
	}
	if _, err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	checkout, err := gateway.Initiate(ctx, payment.CheckoutRequest{
		PaymentID:     p.ID.Hex(),
		Description:   plan.Name + " membership",
		Amount:        plan.Price,
		Currency:      plan.Currency,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		SuccessURL:    s.returnURL(p, "success"),
		CancelURL:     s.returnURL(p, "cancel"),
	})
	if err != nil {
		reason := err.Error()
		if finishErr := s.paymentRepo.Finish(ctx, p.ID, domain.PaymentFailed, reason, timeNow()); finishErr != nil {
			log.Error().Err(finishErr).Str("payment_id", p.ID.Hex()).Msg("marking payment failed")
		}
		observability.RecordPayment(string(provider), string(domain.PaymentFailed))
		if errors.Is(err, payment.ErrUnsupportedCurrency) {
			return nil, invalid(fmt.Sprintf("%s does not accept %s", provider, strings.ToUpper(plan.Currency)))
		}
		log.Error().Err(err).Str("payment_id", p.ID.Hex()).Str("provider", string(provider)).Msg("gateway initiate failed")
		return nil, ErrPaymentGateway
	}

	if err := s.paymentRepo.SetGatewayRef(ctx, p.ID, checkout.Ref, checkout.RedirectURL); err != nil {
		return nil, err
	}
	p.ExternalRef = checkout.Ref
	p.RedirectURL = checkout.RedirectURL
	observability.RecordPayment(string(provider), string(domain.PaymentPending))

	return &Checkout{Payment: p, RedirectURL: checkout.RedirectURL}, nil
}

// returnURL is where the gateway sends the member back to. The frontend
// then calls the verify endpoint with the payment id.
func (s *paymentService) returnURL(p *domain.Payment, outcome string) string {
	q := url.Values{}
	q.Set("paymentId", p.ID.Hex())
	q.Set("provider", string(p.Provider))
	q.Set("outcome", outcome)
	return s.frontendURL + "/payments/return?" + q.Encode()
}

// VerifyPayment asks the gateway for the current state of the member's
// payment. A payment that already reached a final status is returned without
// asking the gateway again, after granting its membership if that is still
// outstanding.
func (s *paymentService) VerifyPayment(ctx context.Context, userID, paymentID primitive.ObjectID) (*domain.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	if p.Status.Final() {
		return s.grantMembership(ctx, p)
	}
	if p.ExternalRef == "" {
		return nil, ErrPaymentNotInitiated
	}
	gateway, ok := s.gateways[p.Provider]
	if !ok {
		return nil, ErrProviderUnavailable
	}

	v, err := gateway.Verify(ctx, p.ExternalRef)
	if err != nil {
		log.Error().Err(err).Str("payment_id", p.ID.Hex()).Msg("gateway verify failed")
		return nil, ErrPaymentGateway
	}
	return s.settle(ctx, p, v)
}

// settle applies a gateway verification to a pending payment. Finish is a
// compare-and-set on the pending status, so only one caller records the
// outcome when the webhook and the member's verify call race.
func (s *paymentService) settle(ctx context.Context, p *domain.Payment, v *payment.Verification) (*domain.Payment, error) {
	if v.Status == domain.PaymentPending {
		return p, nil
	}
	status, reason := v.Status, v.Reason
	if status == domain.PaymentCompleted && v.Amount != p.Amount {
		status = domain.PaymentFailed
		reason = fmt.Sprintf("amount mismatch: expected %d, gateway reported %d", p.Amount, v.Amount)
		log.Warn().Str("payment_id", p.ID.Hex()).Msg(reason)
	}

	now := timeNow()
	if err := s.paymentRepo.Finish(ctx, p.ID, status, reason, now); err != nil {
		if !errors.Is(err, repository.ErrStateConflict) {
			return nil, err
		}
		current, err := s.paymentRepo.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return s.grantMembership(ctx, current)
	}
	p.Status = status
	p.FailReason = reason
	p.UpdatedAt = now
	observability.RecordPayment(string(p.Provider), string(status))

	if status == domain.PaymentCompleted {
		p.CompletedAt = &now
	}
	return s.grantMembership(ctx, p)
}

// grantMembership extends the membership of a completed payment that has
// not been applied yet. A failed attempt leaves MembershipAppliedAt unset so
// the next verify or webhook delivery retries it.
func (s *paymentService) grantMembership(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	if !p.AwaitsMembership() {
		return p, nil
	}
	if err := s.extendMembership(ctx, p); err != nil {
		log.Error().Err(err).
			Str("payment_id", p.ID.Hex()).
			Str("user_id", p.UserID.Hex()).
			Msg("payment completed but membership was not extended")
		return nil, err
	}
	return p, nil
}

func (s *paymentService) extendMembership(ctx context.Context, p *domain.Payment) error {
	plan, err := s.planRepo.GetByID(ctx, p.PlanID)
	if err != nil {
		return fmt.Errorf("loading membership plan: %w", err)
	}

	now := timeNow()
	user, err := s.userRepo.ExtendMembership(ctx, p.UserID, repository.MembershipExtension{
		PaymentID: p.ID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Days:      plan.DurationDays,
		At:        now,
	})
	extended := err == nil
	if err != nil && !errors.Is(err, repository.ErrStateConflict) {
		return fmt.Errorf("updating membership: %w", err)
	}
	if err := s.paymentRepo.MarkMembershipApplied(ctx, p.ID, now); err != nil && !errors.Is(err, repository.ErrStateConflict) {
		return fmt.Errorf("marking membership applied: %w", err)
	}
	p.MembershipAppliedAt = &now

	if extended {
		s.sendReceipt(ctx, p, user)
	}
	return nil
}

func (s *paymentService) sendReceipt(ctx context.Context, p *domain.Payment, user *domain.User) {
	if user.Membership.ExpiresAt == nil {
		return
	}
	msg, err := gymmail.ReceiptMessage(mail.Address{Name: user.Name, Address: user.Email}, p.PlanName, p.Amount, p.Currency, *user.Membership.ExpiresAt)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
		observability.RecordEmail(msg.Template, err == nil)
	}
	if err != nil {
		log.Warn().Err(err).Str("payment_id", p.ID.Hex()).Msg("receipt email not sent")
	}
}

// HandleStripeWebhook settles the payment referenced by a verified checkout
// session event. Events for unknown payments are ignored so Stripe stops
// retrying them.
func (s *paymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhooks == nil {
		return ErrProviderUnavailable
	}
	event, err := s.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	p, err := s.paymentRepo.GetByExternalRef(ctx, domain.ProviderStripe, event.SessionID)
	if errors.Is(err, repository.ErrNotFound) && event.PaymentID != "" {
		if id, idErr := primitive.ObjectIDFromHex(event.PaymentID); idErr == nil {
			p, err = s.paymentRepo.GetByID(ctx, id)
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("session_id", event.SessionID).Str("event", event.Type).Msg("webhook for unknown payment")
		return nil
	}
	if err != nil {
		return err
	}
	if p.Provider != domain.ProviderStripe {
		return nil
	}
	if p.Status.Final() {
		_, err = s.grantMembership(ctx, p)
		return err
	}
	_, err = s.settle(ctx, p, event.Verification)
	return err
}

func (s *paymentService) ListMyPayments(ctx context.Context, userID primitive.ObjectID) ([]domain.Payment, error) {
	return s.paymentRepo.ListByUser(ctx, userID)
}

func (s *paymentService) ListPayments(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	if status != "" && status != domain.PaymentPending && !status.Final() {
		return nil, invalid("unknown payment status")
	}
	return s.paymentRepo.List(ctx, status)
}
