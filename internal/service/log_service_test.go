package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/gym-app/internal/domain"
)

func intp(v int) *int { return &v }

func TestActivityLogs(t *testing.T) {
	f := newFixture(t)
	svc := NewLogService(f.repos.Logs, f.repos.Assignments)
	ctx := context.Background()
	freezeTime(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC))
	member := f.addUser(t, "maya", domain.RoleUser)
	trainer := f.addUser(t, "tara", domain.RoleTrainer)

	weight := 60.0
	workout, err := svc.CreateLog(ctx, member.ID, domain.PlanWorkout, time.Time{}, []domain.LogEntry{
		{Name: "Squat", Sets: intp(3), Reps: intp(5), WeightKg: &weight},
	}, "felt strong")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), workout.Date)

	meal, err := svc.CreateLog(ctx, member.ID, domain.PlanMeal, time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC), []domain.LogEntry{
		{Name: "Dal bhat", Quantity: "1 plate", Calories: intp(650)},
		{Name: "Apple", Calories: intp(95)},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 745, meal.TotalCalories())

	_, err = svc.CreateLog(ctx, member.ID, domain.PlanMeal, time.Time{}, []domain.LogEntry{{Name: "Rice", Sets: intp(1)}}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateLog(ctx, member.ID, domain.PlanWorkout, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), []domain.LogEntry{{Name: "Run"}}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateLog(ctx, member.ID, domain.PlanWorkout, time.Time{}, nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	all, err := svc.ListMyLogs(ctx, member.ID, "", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, workout.ID, all[0].ID, "newest day first")

	meals, err := svc.ListMyLogs(ctx, member.ID, domain.PlanMeal, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, meals, 1)

	_, err = svc.ListTraineeLogs(ctx, actorOf(trainer), member.ID, "", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrNotYourTrainee)
	f.assign(t, trainer, member, domain.RequestMeal)
	seen, err := svc.ListTraineeLogs(ctx, actorOf(trainer), member.ID, "", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, seen, 2)

	assert.ErrorIs(t, svc.DeleteLog(ctx, trainer.ID, meal.ID), ErrLogNotFound)
	require.NoError(t, svc.DeleteLog(ctx, member.ID, meal.ID))
	assert.ErrorIs(t, svc.DeleteLog(ctx, member.ID, meal.ID), ErrLogNotFound)
}
