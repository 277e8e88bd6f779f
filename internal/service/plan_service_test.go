package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/gym-app/internal/domain"
)

func TestTrainerDraftSubmitActivate(t *testing.T) {
	f := newFixture(t)
	svc := f.planService()
	ctx := context.Background()
	trainer := f.addUser(t, "tara", domain.RoleTrainer)
	member := f.addUser(t, "maya", domain.RoleUser)

	_, err := svc.CreateDraft(ctx, actorOf(trainer), member.ID, domain.PlanWorkout, sampleContent("Strength"))
	assert.ErrorIs(t, err, ErrPlanAccessDenied)

	f.assign(t, trainer, member, domain.RequestWorkout)

	_, err = svc.CreateDraft(ctx, actorOf(trainer), member.ID, domain.PlanMeal, sampleContent("Meals"))
	assert.ErrorIs(t, err, ErrPlanAccessDenied, "workout-only assignment")

	draft, err := svc.CreateDraft(ctx, actorOf(trainer), member.ID, domain.PlanWorkout, sampleContent("Strength"))
	require.NoError(t, err)
	assert.Equal(t, 1, draft.Version)
	assert.Equal(t, domain.PlanDraft, draft.Status)
	assert.Equal(t, domain.SourceTrainer, draft.Source)

	// Members only see drafts once they are submitted.
	_, err = svc.GetVersion(ctx, actorOf(member), draft.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = svc.ActivateVersion(ctx, actorOf(member), draft.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)

	updated, err := svc.UpdateDraft(ctx, actorOf(trainer), draft.ID, sampleContent("Strength v2"))
	require.NoError(t, err)
	assert.Equal(t, "Strength v2", updated.Content.Title)

	submitted, err := svc.SubmitVersion(ctx, actorOf(trainer), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanSubmitted, submitted.Status)

	_, err = svc.UpdateDraft(ctx, actorOf(trainer), draft.ID, sampleContent("too late"))
	assert.ErrorIs(t, err, ErrInvalidPlanState)

	active, err := svc.ActivateVersion(ctx, actorOf(member), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, active.Status)
	assert.NotNil(t, active.ActivatedAt)

	got, err := svc.GetActivePlan(ctx, actorOf(member), member.ID, domain.PlanWorkout)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)

	_, err = svc.ActivateVersion(ctx, actorOf(trainer), draft.ID)
	assert.ErrorIs(t, err, ErrInvalidPlanState)
}

func TestActivationKeepsSingleActiveVersion(t *testing.T) {
	f := newFixture(t)
	svc := f.planService()
	ctx := context.Background()
	admin := f.addUser(t, "root", domain.RoleAdmin)
	member := f.addUser(t, "maya", domain.RoleUser)

	require.NoError(t, svc.AssignGeneric(ctx, member.ID, domain.Profile{ExperienceLevel: "beginner"}))
	generic, err := svc.GetActivePlan(ctx, actorOf(member), member.ID, domain.PlanWorkout)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGeneric, generic.Source)
	assert.Equal(t, 1, generic.Version)

	v2, err := svc.CreateDraft(ctx, actorOf(admin), member.ID, domain.PlanWorkout, sampleContent("Admin plan"))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	_, err = svc.ActivateVersion(ctx, actorOf(admin), v2.ID)
	require.NoError(t, err)

	versions, err := svc.ListVersions(ctx, actorOf(admin), member.ID, domain.PlanWorkout)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	active := 0
	for _, v := range versions {
		if v.Status == domain.PlanActive {
			active++
			assert.Equal(t, v2.ID, v.ID)
		}
	}
	assert.Equal(t, 1, active)

	old, err := svc.GetVersion(ctx, actorOf(admin), generic.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanInactive, old.Status)

	// The meal plan is versioned independently.
	meal, err := svc.GetActivePlan(ctx, actorOf(member), member.ID, domain.PlanMeal)
	require.NoError(t, err)
	assert.Equal(t, 1, meal.Version)
}

func TestAssignGenericSkipsKindsWithActivePlan(t *testing.T) {
	f := newFixture(t)
	svc := f.planService()
	ctx := context.Background()
	member := f.addUser(t, "maya", domain.RoleUser)

	require.NoError(t, svc.AssignGeneric(ctx, member.ID, domain.Profile{}))
	require.NoError(t, svc.AssignGeneric(ctx, member.ID, domain.Profile{}))

	versions, err := svc.ListVersions(ctx, actorOf(member), member.ID, "")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestMemberGeneratesAndActivatesAIDraft(t *testing.T) {
	f := newFixture(t)
	svc := f.planService()
	ctx := context.Background()
	member := f.addUser(t, "maya", domain.RoleUser)
	other := f.addUser(t, "omar", domain.RoleUser)

	draft, err := svc.GenerateAIDraft(ctx, actorOf(member), member.ID, domain.PlanMeal)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAI, draft.Source)
	assert.Equal(t, domain.PlanDraft, draft.Status)

	_, err = svc.GenerateAIDraft(ctx, actorOf(other), member.ID, domain.PlanMeal)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	_, err = svc.ActivateVersion(ctx, actorOf(other), draft.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)

	active, err := svc.ActivateVersion(ctx, actorOf(member), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, active.Status)
}

func TestRetractVersionAndTrainerLosesAccess(t *testing.T) {
	f := newFixture(t)
	svc := f.planService()
	trainers := f.trainerService()
	ctx := context.Background()
	trainer := f.addUser(t, "tara", domain.RoleTrainer)
	member := f.addUser(t, "maya", domain.RoleUser)
	a := f.assign(t, trainer, member, domain.RequestBoth)

	draft, err := svc.CreateDraft(ctx, actorOf(trainer), member.ID, domain.PlanMeal, sampleContent("Meals"))
	require.NoError(t, err)
	_, err = svc.RetractVersion(ctx, actorOf(trainer), draft.ID)
	assert.ErrorIs(t, err, ErrInvalidPlanState)

	_, err = svc.SubmitVersion(ctx, actorOf(trainer), draft.ID)
	require.NoError(t, err)
	back, err := svc.RetractVersion(ctx, actorOf(trainer), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanDraft, back.Status)

	require.NoError(t, trainers.EndAssignment(ctx, actorOf(trainer), a.ID))

	_, err = svc.SubmitVersion(ctx, actorOf(trainer), draft.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	_, err = svc.ListVersions(ctx, actorOf(trainer), member.ID, "")
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
}

func TestCreateDraftValidatesContent(t *testing.T) {
	f := newFixture(t)
	svc := f.planService()
	ctx := context.Background()
	admin := f.addUser(t, "root", domain.RoleAdmin)
	member := f.addUser(t, "maya", domain.RoleUser)
	trainer := f.addUser(t, "tara", domain.RoleTrainer)

	_, err := svc.CreateDraft(ctx, actorOf(admin), member.ID, domain.PlanWorkout, domain.PlanContent{Title: "empty"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateDraft(ctx, actorOf(admin), member.ID, "cardio", sampleContent("x"))
	assert.ErrorIs(t, err, ErrInvalidPlanKind)
	_, err = svc.CreateDraft(ctx, actorOf(admin), trainer.ID, domain.PlanWorkout, sampleContent("x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.GetActivePlan(ctx, actorOf(member), member.ID, domain.PlanWorkout)
	assert.ErrorIs(t, err, ErrNoActivePlan)
}
