package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
)

func (f *fixture) dashboardService() DashboardService {
	return NewDashboardService(Repositories{
		Users:       f.repos.Users,
		Requests:    f.repos.PlanRequests,
		Assignments: f.repos.Assignments,
		Versions:    f.repos.PlanVersions,
		Payments:    f.repos.Payments,
		Attendance:  f.repos.Attendance,
	}, time.UTC)
}

func TestDashboards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.dashboardService()
	plans := f.planService()

	f.addUser(t, "root", domain.RoleAdmin)
	trainer := f.addUser(t, "tara", domain.RoleTrainer, func(u *domain.User) { u.Specialty = "strength" })
	member := f.addUser(t, "maya", domain.RoleUser, withMembershipUntil(time.Now().AddDate(0, 1, 0)))
	waiting := f.addUser(t, "wes", domain.RoleUser)
	f.assign(t, trainer, member, domain.RequestBoth)
	_, err := f.trainerService().CreatePlanRequest(ctx, waiting.ID, trainer.ID, domain.RequestWorkout, "", "")
	require.NoError(t, err)

	require.NoError(t, plans.AssignGeneric(ctx, member.ID, domain.Profile{}))
	_, err = plans.CreateDraft(ctx, actorOf(trainer), member.ID, domain.PlanWorkout, sampleContent("Next block"))
	require.NoError(t, err)

	_, err = f.repos.Attendance.Create(ctx, &domain.Attendance{UserID: member.ID, Day: time.Now().UTC().Format(dayLayout), CheckInAt: time.Now()})
	require.NoError(t, err)

	admin, err := svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), admin.Members)
	assert.Equal(t, int64(1), admin.Trainers)
	assert.Equal(t, int64(1), admin.ActiveMemberships)
	assert.Equal(t, int64(1), admin.PendingRequests)
	assert.Equal(t, int64(1), admin.CheckInsToday)
	assert.Empty(t, admin.Revenue)

	ts, err := svc.TrainerStats(ctx, trainer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ts.Trainees)
	assert.Equal(t, int64(1), ts.PendingRequests)
	assert.Equal(t, int64(1), ts.Drafts)

	us, err := svc.UserStats(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, us.WorkoutPlan)
	require.NotNil(t, us.MealPlan)
	assert.True(t, us.MembershipActive)
	require.NotNil(t, us.Trainer)
	assert.Equal(t, "strength", us.Trainer.Specialty)
	assert.Equal(t, 1, us.CheckInsThisMonth)

	ws, err := svc.UserStats(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Nil(t, ws.WorkoutPlan)
	assert.NotNil(t, ws.PendingRequest)
	assert.False(t, ws.MembershipActive)
}

func TestUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.dashboardService()
	admin := f.addUser(t, "root", domain.RoleAdmin)
	member := f.addUser(t, "maya", domain.RoleUser)

	trainer, err := svc.CreateTrainer(ctx, NewTrainer{Name: "Tara", Email: "TARA@example.com", Password: testPassword, Specialty: "yoga"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTrainer, trainer.Role)
	assert.True(t, trainer.EmailVerified)
	assert.Empty(t, trainer.PasswordHash)

	_, err = svc.CreateTrainer(ctx, NewTrainer{Name: "Dup", Email: "tara@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	trainers, err := svc.ListUsers(ctx, repository.UserFilter{Role: domain.RoleTrainer})
	require.NoError(t, err)
	assert.Len(t, trainers, 1)
	found, err := svc.ListUsers(ctx, repository.UserFilter{Query: "MAYA"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	f.assign(t, trainer, member, domain.RequestBoth)
	demoted, err := svc.ChangeRole(ctx, admin.ID, trainer.ID, domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, demoted.Role)

	stored, err := f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.TrainerID, "trainees are released when their trainer is demoted")
	_, err = f.repos.Assignments.GetActiveByUser(ctx, member.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.ChangeRole(ctx, admin.ID, admin.ID, domain.RoleUser)
	assert.ErrorIs(t, err, ErrCannotChangeSelf)
	_, err = svc.ChangeRole(ctx, admin.ID, member.ID, "owner")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.SetDisabled(ctx, admin.ID, member.ID, true))
	stored, err = f.repos.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, stored.Disabled)
	assert.ErrorIs(t, svc.SetDisabled(ctx, admin.ID, admin.ID, true), ErrCannotChangeSelf)
}

func TestCompleteOnboardingAssignsGenericPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plans := f.planService()
	svc := NewUserService(f.repos.Users, plans)
	member := f.addUser(t, "maya", domain.RoleUser)
	trainer := f.addUser(t, "tara", domain.RoleTrainer)

	_, err := svc.CompleteOnboarding(ctx, member.ID, domain.Profile{Age: 7, HeightCm: 170, WeightKg: 70})
	assert.ErrorIs(t, err, ErrInvalidInput)

	user, err := svc.CompleteOnboarding(ctx, member.ID, domain.Profile{
		Age: 28, HeightCm: 165, WeightKg: 62, Goal: "Build_Muscle", DietPreference: "vegetarian",
	})
	require.NoError(t, err)
	assert.True(t, user.OnboardingCompleted)
	assert.Equal(t, "build_muscle", user.Profile.Goal)
	assert.Equal(t, "beginner", user.Profile.ExperienceLevel)

	for _, kind := range []domain.PlanKind{domain.PlanWorkout, domain.PlanMeal} {
		v, err := plans.GetActivePlan(ctx, actorOf(member), member.ID, kind)
		require.NoError(t, err)
		assert.Equal(t, domain.SourceGeneric, v.Source)
	}

	_, err = svc.CompleteOnboarding(ctx, trainer.ID, domain.Profile{Age: 30, HeightCm: 180, WeightKg: 80})
	assert.ErrorIs(t, err, ErrOnboardingNotAllowed)
}

func TestDemotingTrainerCancelsPendingRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.dashboardService()
	admin := f.addUser(t, "root", domain.RoleAdmin)
	trainer := f.addUser(t, "tara", domain.RoleTrainer)
	other := f.addUser(t, "tom", domain.RoleTrainer)
	waiting := f.addUser(t, "maya", domain.RoleUser)
	elsewhere := f.addUser(t, "omar", domain.RoleUser)

	trainers := f.trainerService()
	req, err := trainers.CreatePlanRequest(ctx, waiting.ID, trainer.ID, domain.RequestWorkout, "", "")
	require.NoError(t, err)
	unrelated, err := trainers.CreatePlanRequest(ctx, elsewhere.ID, other.ID, domain.RequestMeal, "", "")
	require.NoError(t, err)

	_, err = svc.ChangeRole(ctx, admin.ID, trainer.ID, domain.RoleUser)
	require.NoError(t, err)

	stored, err := f.repos.PlanRequests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, stored.Status)
	_, err = trainers.AcceptPlanRequest(ctx, trainer.ID, req.ID)
	assert.ErrorIs(t, err, ErrInvalidRequestState)

	untouched, err := f.repos.PlanRequests.GetByID(ctx, unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, untouched.Status)

	// The member is free to ask someone else.
	_, err = trainers.CreatePlanRequest(ctx, waiting.ID, other.ID, domain.RequestWorkout, "", "")
	assert.NoError(t, err)
}
