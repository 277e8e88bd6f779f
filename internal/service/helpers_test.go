package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"alcyxob/gym-app/internal/domain"
	gymmail "alcyxob/gym-app/internal/mail"
	"alcyxob/gym-app/internal/plangen"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/repository/memory"
)

const testPassword = "correct-horse"

type fixture struct {
	repos  repository.Set
	mailer *gymmail.ConsoleSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		repos:  memory.NewStore().Repositories(),
		mailer: gymmail.NewConsoleSender(zerolog.Nop()),
	}
}

// freezeTime pins timeNow for the duration of the test.
func freezeTime(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	current := at
	orig := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = orig })
	return &current
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role, opts ...func(*domain.User)) *domain.User {
	t.Helper()
	hashed, err := hashPassword(testPassword)
	require.NoError(t, err)
	u := &domain.User{
		Name:          name,
		Email:         name + "@example.com",
		PasswordHash:  hashed,
		Role:          role,
		EmailVerified: true,
	}
	for _, opt := range opts {
		opt(u)
	}
	_, err = f.repos.Users.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func withMembershipUntil(until time.Time) func(*domain.User) {
	return func(u *domain.User) { u.Membership.ExpiresAt = &until }
}

func actorOf(u *domain.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func (f *fixture) trainerService() TrainerService {
	return NewTrainerService(f.repos.Users, f.repos.PlanRequests, f.repos.Assignments)
}

func (f *fixture) planService() PlanService {
	return NewPlanService(f.repos.Users, f.repos.PlanVersions, f.repos.Assignments, stubGenerator{})
}

// assign makes trainer coach member for kind.
func (f *fixture) assign(t *testing.T, trainer, member *domain.User, kind domain.PlanRequestKind) *domain.TraineeAssignment {
	t.Helper()
	ctx := context.Background()
	svc := f.trainerService()
	req, err := svc.CreatePlanRequest(ctx, member.ID, trainer.ID, kind, "", "")
	require.NoError(t, err)
	a, err := svc.AcceptPlanRequest(ctx, trainer.ID, req.ID)
	require.NoError(t, err)
	return a
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode pulls the verification code out of the latest email to addr.
func (f *fixture) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msg, ok := f.mailer.Last(addr)
	require.True(t, ok, "no email sent to %s", addr)
	code := codePattern.FindString(msg.Text)
	require.NotEmpty(t, code)
	return code
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, kind domain.PlanKind, profile domain.Profile) (domain.PlanContent, domain.PlanSource) {
	c := plangen.Generic(kind, profile)
	c.Title = "AI " + c.Title
	return c, domain.SourceAI
}

func sampleContent(title string) domain.PlanContent {
	sets := 3
	return domain.PlanContent{
		Title: title,
		Days: []domain.PlanDay{
			{Day: "Monday", Items: []domain.PlanItem{{Name: "Squat", Sets: &sets, Reps: "5"}}},
		},
	}
}
