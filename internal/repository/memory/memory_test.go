package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
)

func TestPlanVersionNumbering(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()

	create := func(user primitive.ObjectID, kind domain.PlanKind) *domain.PlanVersion {
		v := &domain.PlanVersion{UserID: user, Kind: kind, Status: domain.PlanDraft, Source: domain.SourceTrainer}
		_, err := repos.PlanVersions.Create(ctx, v)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, 1, create(alice, domain.PlanWorkout).Version)
	assert.Equal(t, 2, create(alice, domain.PlanWorkout).Version)
	assert.Equal(t, 1, create(alice, domain.PlanMeal).Version)
	assert.Equal(t, 1, create(bob, domain.PlanWorkout).Version)

	versions, err := repos.PlanVersions.List(ctx, alice, domain.PlanWorkout)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version, "newest first")
}

func TestActivateKeepsOneActiveVersion(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	user := primitive.NewObjectID()

	first := &domain.PlanVersion{UserID: user, Kind: domain.PlanWorkout, Status: domain.PlanDraft}
	second := &domain.PlanVersion{UserID: user, Kind: domain.PlanWorkout, Status: domain.PlanSubmitted}
	meal := &domain.PlanVersion{UserID: user, Kind: domain.PlanMeal, Status: domain.PlanDraft}
	for _, v := range []*domain.PlanVersion{first, second, meal} {
		_, err := repos.PlanVersions.Create(ctx, v)
		require.NoError(t, err)
	}

	at := time.Now().UTC()
	_, err := repos.PlanVersions.Activate(ctx, first.ID, at)
	require.NoError(t, err)
	_, err = repos.PlanVersions.Activate(ctx, meal.ID, at)
	require.NoError(t, err)

	activated, err := repos.PlanVersions.Activate(ctx, second.ID, at)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, activated.Status)
	require.NotNil(t, activated.ActivatedAt)

	old, err := repos.PlanVersions.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanInactive, old.Status)

	active, err := repos.PlanVersions.GetActive(ctx, user, domain.PlanWorkout)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	mealActive, err := repos.PlanVersions.GetActive(ctx, user, domain.PlanMeal)
	require.NoError(t, err)
	assert.Equal(t, meal.ID, mealActive.ID, "other kinds are untouched")

	_, err = repos.PlanVersions.Activate(ctx, first.ID, at)
	assert.ErrorIs(t, err, repository.ErrStateConflict, "inactive versions cannot come back")

	_, err = repos.PlanVersions.Create(ctx, &domain.PlanVersion{UserID: user, Kind: domain.PlanWorkout, Status: domain.PlanActive})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUpdateContentOnlyForDrafts(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	v := &domain.PlanVersion{UserID: primitive.NewObjectID(), Kind: domain.PlanMeal, Status: domain.PlanDraft}
	_, err := repos.PlanVersions.Create(ctx, v)
	require.NoError(t, err)

	require.NoError(t, repos.PlanVersions.UpdateContent(ctx, v.ID, domain.PlanContent{Title: "Cut"}))
	require.NoError(t, repos.PlanVersions.UpdateStatus(ctx, v.ID, domain.PlanDraft, domain.PlanSubmitted))
	assert.ErrorIs(t, repos.PlanVersions.UpdateStatus(ctx, v.ID, domain.PlanDraft, domain.PlanSubmitted), repository.ErrStateConflict)
	assert.ErrorIs(t, repos.PlanVersions.UpdateContent(ctx, v.ID, domain.PlanContent{Title: "Bulk"}), repository.ErrStateConflict)

	got, err := repos.PlanVersions.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cut", got.Content.Title)
}

func TestOnePendingPlanRequestPerUser(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	user, trainer := primitive.NewObjectID(), primitive.NewObjectID()

	req := &domain.PlanRequest{UserID: user, TrainerID: trainer, Kind: domain.RequestBoth}
	_, err := repos.PlanRequests.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, req.Status)

	_, err = repos.PlanRequests.Create(ctx, &domain.PlanRequest{UserID: user, TrainerID: trainer, Kind: domain.RequestMeal})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	pending, err := repos.PlanRequests.GetPendingByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, req.ID, pending.ID)

	require.NoError(t, repos.PlanRequests.UpdateStatus(ctx, req.ID, domain.RequestPending, domain.RequestRejected, "full"))
	_, err = repos.PlanRequests.GetPendingByUser(ctx, user)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.PlanRequests.Create(ctx, &domain.PlanRequest{UserID: user, TrainerID: trainer, Kind: domain.RequestMeal})
	assert.NoError(t, err, "a new request is allowed once the old one is settled")
}

func TestAssignmentEndsOnce(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	user := primitive.NewObjectID()

	a := &domain.TraineeAssignment{UserID: user, TrainerID: primitive.NewObjectID()}
	_, err := repos.Assignments.Create(ctx, a)
	require.NoError(t, err)

	_, err = repos.Assignments.Create(ctx, &domain.TraineeAssignment{UserID: user, TrainerID: primitive.NewObjectID()})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, repos.Assignments.End(ctx, a.ID, time.Now()))
	assert.ErrorIs(t, repos.Assignments.End(ctx, a.ID, time.Now()), repository.ErrStateConflict)

	_, err = repos.Assignments.GetActiveByUser(ctx, user)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAttendanceOneRecordPerDay(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	user := primitive.NewObjectID()
	in := time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)

	visit := &domain.Attendance{UserID: user, Day: "2026-03-14", CheckInAt: in, TokenID: "a"}
	_, err := repos.Attendance.Create(ctx, visit)
	require.NoError(t, err)

	_, err = repos.Attendance.Create(ctx, &domain.Attendance{UserID: user, Day: "2026-03-14", CheckInAt: in, TokenID: "b"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = repos.Attendance.Create(ctx, &domain.Attendance{UserID: user, Day: "2026-03-15", CheckInAt: in.Add(24 * time.Hour)})
	require.NoError(t, err)

	require.NoError(t, repos.Attendance.CheckOut(ctx, visit.ID, in.Add(time.Hour), "c"))
	assert.ErrorIs(t, repos.Attendance.CheckOut(ctx, visit.ID, in.Add(2*time.Hour), "d"), repository.ErrStateConflict)

	got, err := repos.Attendance.GetByUserAndDay(ctx, user, "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, got.Duration())

	visits, err := repos.Attendance.ListByUser(ctx, user, "2026-03-15", "")
	require.NoError(t, err)
	assert.Len(t, visits, 1)

	count, err := repos.Attendance.CountByDay(ctx, "2026-03-14")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPaymentFinishIsCompareAndSwap(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	user := primitive.NewObjectID()

	p := &domain.Payment{UserID: user, Provider: domain.ProviderStripe, Amount: 2500, Currency: "usd"}
	_, err := repos.Payments.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)

	require.NoError(t, repos.Payments.SetGatewayRef(ctx, p.ID, "cs_test_1", "https://checkout.example/1"))
	byRef, err := repos.Payments.GetByExternalRef(ctx, domain.ProviderStripe, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byRef.ID)

	at := time.Now().UTC()
	require.NoError(t, repos.Payments.Finish(ctx, p.ID, domain.PaymentCompleted, "", at))
	assert.ErrorIs(t, repos.Payments.Finish(ctx, p.ID, domain.PaymentFailed, "late", at), repository.ErrStateConflict)

	failed := &domain.Payment{UserID: user, Provider: domain.ProviderStripe, Amount: 900, Currency: "usd"}
	_, err = repos.Payments.Create(ctx, failed)
	require.NoError(t, err)
	require.NoError(t, repos.Payments.Finish(ctx, failed.ID, domain.PaymentFailed, "declined", at))

	revenue, err := repos.Payments.RevenueByCurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"usd": 2500}, revenue)
}

func TestUserListFilters(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	for _, u := range []domain.User{
		{Name: "Ana Admin", Email: "ana@gym.test", Role: domain.RoleAdmin},
		{Name: "Tom Trainer", Email: "tom@gym.test", Role: domain.RoleTrainer},
		{Name: "Mia Member", Email: "mia@gym.test", Role: domain.RoleUser},
	} {
		u := u
		_, err := repos.Users.Create(ctx, &u)
		require.NoError(t, err)
	}

	_, err := repos.Users.Create(ctx, &domain.User{Name: "Dup", Email: "mia@gym.test", Role: domain.RoleUser})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	trainers, err := repos.Users.List(ctx, repository.UserFilter{Role: domain.RoleTrainer})
	require.NoError(t, err)
	require.Len(t, trainers, 1)
	assert.Equal(t, "tom@gym.test", trainers[0].Email)

	found, err := repos.Users.List(ctx, repository.UserFilter{Query: "MIA"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	page, err := repos.Users.List(ctx, repository.UserFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	empty, err := repos.Users.List(ctx, repository.UserFilter{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClaimOTPAttemptStopsAtMax(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	u := &domain.User{Name: "Omi", Email: "omi@gym.test", Role: domain.RoleUser}
	_, err := repos.Users.Create(ctx, u)
	require.NoError(t, err)

	_, err = repos.Users.ClaimOTPAttempt(ctx, u.ID, 2)
	assert.ErrorIs(t, err, repository.ErrStateConflict, "no code pending")

	require.NoError(t, repos.Users.SetOTP(ctx, u.ID, &domain.OTP{CodeHash: "h", ExpiresAt: time.Now().Add(time.Hour)}))
	n, err := repos.Users.ClaimOTPAttempt(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repos.Users.ClaimOTPAttempt(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = repos.Users.ClaimOTPAttempt(ctx, u.ID, 2)
	assert.ErrorIs(t, err, repository.ErrStateConflict)

	_, err = repos.Users.ClaimOTPAttempt(ctx, primitive.NewObjectID(), 2)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestExtendMembershipOncePerPayment(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)
	current := now.AddDate(0, 0, 3)
	u := &domain.User{Name: "Ravi", Email: "ravi@gym.test", Role: domain.RoleUser, Membership: domain.Membership{ExpiresAt: &current}}
	_, err := repos.Users.Create(ctx, u)
	require.NoError(t, err)

	first := repository.MembershipExtension{PaymentID: primitive.NewObjectID(), PlanID: primitive.NewObjectID(), PlanName: "Monthly", Days: 30, At: now}
	got, err := repos.Users.ExtendMembership(ctx, u.ID, first)
	require.NoError(t, err)
	assert.Equal(t, current.AddDate(0, 0, 30), got.Membership.ExpiresAt.UTC(), "added to the later of now and the current expiry")
	assert.Equal(t, "Monthly", got.Membership.PlanName)

	_, err = repos.Users.ExtendMembership(ctx, u.ID, first)
	assert.ErrorIs(t, err, repository.ErrStateConflict)

	second := first
	second.PaymentID = primitive.NewObjectID()
	got, err = repos.Users.ExtendMembership(ctx, u.ID, second)
	require.NoError(t, err)
	assert.Equal(t, current.AddDate(0, 0, 60), got.Membership.ExpiresAt.UTC())

	lapsed := &domain.User{Name: "Sita", Email: "sita@gym.test", Role: domain.RoleUser}
	_, err = repos.Users.Create(ctx, lapsed)
	require.NoError(t, err)
	got, err = repos.Users.ExtendMembership(ctx, lapsed.ID, second)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), got.Membership.ExpiresAt.UTC())
}

func TestMembershipPlanNamesAreUnique(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()

	_, err := repos.MembershipPlans.Create(ctx, &domain.MembershipPlan{Name: "Annual", Price: 20000, Currency: "usd", DurationDays: 365})
	require.NoError(t, err)
	_, err = repos.MembershipPlans.Create(ctx, &domain.MembershipPlan{Name: "ANNUAL", Price: 19000, Currency: "usd", DurationDays: 365})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestReopenAssignment(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	user := primitive.NewObjectID()

	a := &domain.TraineeAssignment{UserID: user, TrainerID: primitive.NewObjectID()}
	_, err := repos.Assignments.Create(ctx, a)
	require.NoError(t, err)
	assert.ErrorIs(t, repos.Assignments.Reopen(ctx, a.ID), repository.ErrStateConflict, "still active")

	require.NoError(t, repos.Assignments.End(ctx, a.ID, time.Now()))
	require.NoError(t, repos.Assignments.Reopen(ctx, a.ID))
	active, err := repos.Assignments.GetActiveByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, a.ID, active.ID)
	assert.Nil(t, active.EndedAt)

	require.NoError(t, repos.Assignments.End(ctx, a.ID, time.Now()))
	_, err = repos.Assignments.Create(ctx, &domain.TraineeAssignment{UserID: user, TrainerID: primitive.NewObjectID()})
	require.NoError(t, err)
	assert.ErrorIs(t, repos.Assignments.Reopen(ctx, a.ID), repository.ErrDuplicate)
}
