package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	gymmail "alcyxob/gym-app/internal/mail"
	"alcyxob/gym-app/internal/payment"
	"alcyxob/gym-app/internal/repository"
)

type fakeGateway struct {
	provider    domain.PaymentProvider
	initiated   []payment.CheckoutRequest
	initiateErr error
	verify      payment.Verification
	verifyCalls int
}

func (g *fakeGateway) Provider() domain.PaymentProvider { return g.provider }

func (g *fakeGateway) Initiate(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	g.initiated = append(g.initiated, req)
	return &payment.Checkout{Ref: "ref-" + req.PaymentID, RedirectURL: "https://pay.test/" + req.PaymentID}, nil
}

func (g *fakeGateway) Verify(_ context.Context, _ string) (*payment.Verification, error) {
	g.verifyCalls++
	v := g.verify
	return &v, nil
}

type fakeWebhooks struct {
	event *payment.WebhookEvent
	err   error
}

func (w fakeWebhooks) ParseWebhook([]byte, string) (*payment.WebhookEvent, error) {
	return w.event, w.err
}

func (f *fixture) paymentService(webhooks WebhookParser, gateways ...payment.Gateway) PaymentService {
	return NewPaymentService(f.repos.Users, f.repos.MembershipPlans, f.repos.Payments, gateways, webhooks, f.mailer, "http://app.test/")
}

func (f *fixture) addMembershipPlan(t *testing.T, price int64, currency string, days int) *domain.MembershipPlan {
	t.Helper()
	svc := f.paymentService(nil)
	plan, err := svc.CreateMembershipPlan(context.Background(), domain.MembershipPlan{
		Name: "Monthly " + currency, Price: price, Currency: currency, DurationDays: days,
	})
	require.NoError(t, err)
	return plan
}

func TestInitiateAndVerifyPaymentExtendsMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	current := now.AddDate(0, 0, 5)
	member := f.addUser(t, "maya", domain.RoleUser, withMembershipUntil(current))
	plan := f.addMembershipPlan(t, 2500, "USD", 30)
	assert.Equal(t, "usd", plan.Currency)

	gw := &fakeGateway{provider: domain.ProviderStripe}
	svc := f.paymentService(nil, gw)

	checkout, err := svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, checkout.Payment.Status)
	assert.Equal(t, int64(2500), checkout.Payment.Amount)
	require.Len(t, gw.initiated, 1)
	assert.Equal(t, checkout.Payment.ID.Hex(), gw.initiated[0].PaymentID)
	assert.True(t, strings.HasPrefix(gw.initiated[0].SuccessURL, "http://app.test/payments/return?"))
	assert.Equal(t, "maya@example.com", gw.initiated[0].CustomerEmail)

	gw.verify = payment.Verification{Status: domain.PaymentPending}
	p, err := svc.VerifyPayment(ctx, member.ID, checkout.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)

	gw.verify = payment.Verification{Status: domain.PaymentCompleted, Amount: 2500}
	p, err = svc.VerifyPayment(ctx, member.ID, checkout.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)

	stored, err := f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Membership.ExpiresAt)
	assert.Equal(t, current.AddDate(0, 0, 30), stored.Membership.ExpiresAt.UTC())
	assert.Equal(t, plan.Name, stored.Membership.PlanName)

	msg, ok := f.mailer.Last("maya@example.com")
	require.True(t, ok)
	assert.Equal(t, gymmail.TemplateReceipt, msg.Template)

	// Verifying again neither calls the gateway nor extends the membership twice.
	calls := gw.verifyCalls
	p, err = svc.VerifyPayment(ctx, member.ID, checkout.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	assert.Equal(t, calls, gw.verifyCalls)
	stored, err = f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, current.AddDate(0, 0, 30), stored.Membership.ExpiresAt.UTC())
}

func TestVerifyPaymentRejectsAmountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.addUser(t, "maya", domain.RoleUser)
	plan := f.addMembershipPlan(t, 100000, "npr", 30)
	gw := &fakeGateway{provider: domain.ProviderKhalti}
	svc := f.paymentService(nil, gw)

	checkout, err := svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderKhalti)
	require.NoError(t, err)

	gw.verify = payment.Verification{Status: domain.PaymentCompleted, Amount: 100}
	p, err := svc.VerifyPayment(ctx, member.ID, checkout.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)
	assert.Contains(t, p.FailReason, "amount mismatch")

	stored, err := f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Membership.ExpiresAt)
}

func TestInitiatePaymentFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.addUser(t, "maya", domain.RoleUser)
	other := f.addUser(t, "omar", domain.RoleUser)
	plan := f.addMembershipPlan(t, 2500, "usd", 30)

	khalti := &fakeGateway{provider: domain.ProviderKhalti, initiateErr: payment.ErrUnsupportedCurrency}
	stripe := &fakeGateway{provider: domain.ProviderStripe, initiateErr: errors.New("boom")}
	svc := f.paymentService(nil, khalti, stripe)

	_, err := svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderKhalti)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	assert.ErrorIs(t, err, ErrPaymentGateway)
	_, err = svc.InitiatePayment(ctx, member.ID, plan.ID, "paypal")
	assert.ErrorIs(t, err, ErrInvalidInput)

	failed, err := svc.ListPayments(ctx, domain.PaymentFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	require.NoError(t, svc.SetMembershipPlanActive(ctx, plan.ID, false))
	_, err = svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	assert.ErrorIs(t, err, ErrMembershipPlanNotFound)

	mine, err := svc.ListMyPayments(ctx, member.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	_, err = svc.VerifyPayment(ctx, other.ID, mine[0].ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	onlyStripe := f.paymentService(nil, &fakeGateway{provider: domain.ProviderStripe})
	_, err = onlyStripe.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderKhalti)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestStripeWebhookCompletesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.addUser(t, "maya", domain.RoleUser)
	plan := f.addMembershipPlan(t, 2500, "usd", 30)
	gw := &fakeGateway{provider: domain.ProviderStripe}

	checkout, err := f.paymentService(nil, gw).InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	require.NoError(t, err)

	hooks := fakeWebhooks{event: &payment.WebhookEvent{
		Type:         "checkout.session.completed",
		SessionID:    checkout.Payment.ExternalRef,
		PaymentID:    checkout.Payment.ID.Hex(),
		Verification: &payment.Verification{Status: domain.PaymentCompleted, Amount: 2500},
	}}
	svc := f.paymentService(hooks, gw)
	require.NoError(t, svc.HandleStripeWebhook(ctx, []byte(`{}`), "sig"))
	// Stripe retries deliveries; a second one is a no-op.
	require.NoError(t, svc.HandleStripeWebhook(ctx, []byte(`{}`), "sig"))

	p, err := f.repos.Payments.GetByID(ctx, checkout.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)

	stored, err := f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, stored.Membership.ActiveAt(time.Now()))

	ignored := f.paymentService(fakeWebhooks{}, gw)
	assert.NoError(t, ignored.HandleStripeWebhook(ctx, nil, ""))

	bad := f.paymentService(fakeWebhooks{err: payment.ErrInvalidSignature}, gw)
	assert.ErrorIs(t, bad.HandleStripeWebhook(ctx, nil, ""), payment.ErrInvalidSignature)

	revenue, err := f.repos.Payments.RevenueByCurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), revenue["usd"])
}

// flakyMemberships fails the next failures membership extensions.
type flakyMemberships struct {
	repository.UserRepository
	failures int
}

func (r *flakyMemberships) ExtendMembership(ctx context.Context, id primitive.ObjectID, ext repository.MembershipExtension) (*domain.User, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("transient write error")
	}
	return r.UserRepository.ExtendMembership(ctx, id, ext)
}

func TestMembershipGrantedAfterFailedExtension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)
	member := f.addUser(t, "maya", domain.RoleUser)
	plan := f.addMembershipPlan(t, 2500, "usd", 30)

	users := &flakyMemberships{UserRepository: f.repos.Users, failures: 1}
	gw := &fakeGateway{provider: domain.ProviderStripe}
	svc := NewPaymentService(users, f.repos.MembershipPlans, f.repos.Payments, []payment.Gateway{gw}, nil, f.mailer, "http://app.test")

	checkout, err := svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	require.NoError(t, err)
	gw.verify = payment.Verification{Status: domain.PaymentCompleted, Amount: 2500}

	_, err = svc.VerifyPayment(ctx, member.ID, checkout.Payment.ID)
	require.Error(t, err)

	stored, err := f.repos.Payments.GetByID(ctx, checkout.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.Status)
	assert.Nil(t, stored.MembershipAppliedAt)
	_, sent := f.mailer.Last("maya@example.com")
	assert.False(t, sent)

	// A late webhook delivery for the already completed payment finishes the job.
	hooks := fakeWebhooks{event: &payment.WebhookEvent{
		Type:         "checkout.session.completed",
		SessionID:    checkout.Payment.ExternalRef,
		PaymentID:    checkout.Payment.ID.Hex(),
		Verification: &payment.Verification{Status: domain.PaymentCompleted, Amount: 2500},
	}}
	withHooks := NewPaymentService(users, f.repos.MembershipPlans, f.repos.Payments, []payment.Gateway{gw}, hooks, f.mailer, "http://app.test")
	require.NoError(t, withHooks.HandleStripeWebhook(ctx, []byte(`{}`), "sig"))

	user, err := f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, user.Membership.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 30), user.Membership.ExpiresAt.UTC())
	msg, sent := f.mailer.Last("maya@example.com")
	require.True(t, sent)
	assert.Equal(t, gymmail.TemplateReceipt, msg.Template)

	p, err := svc.VerifyPayment(ctx, member.ID, checkout.Payment.ID)
	require.NoError(t, err)
	assert.NotNil(t, p.MembershipAppliedAt)
	user, err = f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), user.Membership.ExpiresAt.UTC(), "applied once")
}

func TestTwoPaymentsStackMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)
	member := f.addUser(t, "maya", domain.RoleUser)
	plan := f.addMembershipPlan(t, 2500, "usd", 30)
	gw := &fakeGateway{provider: domain.ProviderStripe, verify: payment.Verification{Status: domain.PaymentCompleted, Amount: 2500}}
	svc := f.paymentService(nil, gw)

	first, err := svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	require.NoError(t, err)
	second, err := svc.InitiatePayment(ctx, member.ID, plan.ID, domain.ProviderStripe)
	require.NoError(t, err)

	_, err = svc.VerifyPayment(ctx, member.ID, first.Payment.ID)
	require.NoError(t, err)
	_, err = svc.VerifyPayment(ctx, member.ID, second.Payment.ID)
	require.NoError(t, err)

	user, err := f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 60), user.Membership.ExpiresAt.UTC())
}

func TestCreateMembershipPlanRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil)
	ctx := context.Background()

	_, err := svc.CreateMembershipPlan(ctx, domain.MembershipPlan{Name: "Monthly", Price: 2500, Currency: "usd", DurationDays: 30})
	require.NoError(t, err)
	_, err = svc.CreateMembershipPlan(ctx, domain.MembershipPlan{Name: " monthly ", Price: 900, Currency: "npr", DurationDays: 30})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateMembershipPlanValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil)
	ctx := context.Background()

	_, err := svc.CreateMembershipPlan(ctx, domain.MembershipPlan{Name: "x", Price: 0, Currency: "usd", DurationDays: 30})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateMembershipPlan(ctx, domain.MembershipPlan{Name: "x", Price: 10, Currency: "dollars", DurationDays: 30})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateMembershipPlan(ctx, domain.MembershipPlan{Name: "x", Price: 10, Currency: "usd"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	plans, err := svc.ListMembershipPlans(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, plans)
}
