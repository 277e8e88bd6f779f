package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"alcyxob/gym-app/internal/config"
	"alcyxob/gym-app/internal/domain"
	gymmail "alcyxob/gym-app/internal/mail"
	"alcyxob/gym-app/internal/plangen"
	"alcyxob/gym-app/internal/qr"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/repository/memory"
	"alcyxob/gym-app/internal/service"
)

const testPassword = "correct-horse"

var (
	testJWT = config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "gym-test"}
	otpCode = regexp.MustCompile(`\b\d{6}\b`)
)

type testServer struct {
	router *gin.Engine
	repos  repository.Set
	mailer *gymmail.ConsoleSender
}

type staticGenerator struct{}

func (staticGenerator) Generate(_ context.Context, kind domain.PlanKind, p domain.Profile) (domain.PlanContent, domain.PlanSource) {
	return plangen.Generic(kind, p), domain.SourceGeneric
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := memory.NewStore().Repositories()
	mailer := gymmail.NewConsoleSender(zerolog.Nop())
	otp := config.OTPConfig{Length: 6, TTL: 10 * time.Minute, MaxAttempts: 3, ResendCooldown: time.Minute, ResetTimeout: time.Hour}
	issuer := qr.NewIssuer(testJWT.Secret, testJWT.Issuer, 5*time.Minute, 128)

	plans := service.NewPlanService(repos.Users, repos.PlanVersions, repos.Assignments, staticGenerator{})
	svc := Services{
		Auth:       service.NewAuthService(repos.Users, mailer, testJWT, otp, "http://app.test"),
		Users:      service.NewUserService(repos.Users, plans),
		Trainers:   service.NewTrainerService(repos.Users, repos.PlanRequests, repos.Assignments),
		Plans:      plans,
		Logs:       service.NewLogService(repos.Logs, repos.Assignments),
		Uploads:    service.NewUploadService(repos.Uploads, repos.Assignments, nil),
		Payments:   service.NewPaymentService(repos.Users, repos.MembershipPlans, repos.Payments, nil, nil, mailer, "http://app.test"),
		Attendance: service.NewAttendanceService(repos.Attendance, repos.Users, issuer, time.UTC, true),
		Notices:    service.NewNoticeService(repos.Notices),
		Dashboards: service.NewDashboardService(service.Repositories{
			Users:       repos.Users,
			Requests:    repos.PlanRequests,
			Assignments: repos.Assignments,
			Versions:    repos.PlanVersions,
			Payments:    repos.Payments,
			Attendance:  repos.Attendance,
		}, time.UTC),
	}

	router := gin.New()
	SetupRoutes(router, testJWT.Secret, svc)
	return &testServer{router: router, repos: repos, mailer: mailer}
}

func (s *testServer) addUser(t *testing.T, name string, role domain.Role, opts ...func(*domain.User)) *domain.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		Name:          name,
		Email:         name + "@example.com",
		PasswordHash:  string(hashed),
		Role:          role,
		EmailVerified: true,
	}
	for _, opt := range opts {
		opt(u)
	}
	_, err = s.repos.Users.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func withMembership(u *domain.User) {
	until := time.Now().Add(30 * 24 * time.Hour)
	u.Membership.ExpiresAt = &until
}

func tokenFor(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := service.GenerateJWT(testJWT, u)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func sampleContent() domain.PlanContent {
	sets := 3
	return domain.PlanContent{
		Title: "Strength block",
		Days: []domain.PlanDay{
			{Day: "Monday", Items: []domain.PlanItem{{Name: "Squat", Sets: &sets, Reps: "5"}}},
		},
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	s := newTestServer(t)
	member := s.addUser(t, "mia", domain.RoleUser)

	w := s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := testJWT
	other.Secret = "someone-else"
	forged, err := service.GenerateJWT(other, member)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, "/api/v1/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/me", tokenFor(t, member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, member.Email, decode[UserResponse](t, w).Email)
}

func TestRoleMiddlewareKeepsMembersOutOfAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	member := s.addUser(t, "mia", domain.RoleUser)
	admin := s.addUser(t, "ada", domain.RoleAdmin)

	w := s.do(t, http.MethodGet, "/api/v1/admin/dashboard", tokenFor(t, member), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/dashboard", tokenFor(t, admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterVerifyAndLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Name: "Nina", Email: "nina@example.com", Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, domain.RoleUser, decode[UserResponse](t, w).Role)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Name: "Nina", Email: "nina@example.com", Password: testPassword,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "nina@example.com", Password: testPassword})
	assert.Equal(t, http.StatusForbidden, w.Code)

	msg, ok := s.mailer.Last("nina@example.com")
	require.True(t, ok)
	code := otpCode.FindString(msg.Text)
	require.NotEmpty(t, code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/verify-otp", "", VerifyOTPRequest{Email: "nina@example.com", Code: code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decode[LoginResponse](t, w)
	assert.NotEmpty(t, verified.Token)
	assert.True(t, verified.User.EmailVerified)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "nina@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "nina@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/me", decode[LoginResponse](t, w).Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Nina", decode[UserResponse](t, w).Name)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Name: "x", Email: "not-an-email", Password: testPassword})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Validation error")

	w = s.do(t, http.MethodPost, "/api/v1/auth/verify-otp", "", VerifyOTPRequest{Email: "a@example.com", Code: "abcdef"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	member := s.addUser(t, "mia", domain.RoleUser)
	w = s.do(t, http.MethodPost, "/api/v1/plan-requests", tokenFor(t, member), gin.H{"trainerId": "nope", "kind": "workout"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/plans/zzz", tokenFor(t, member), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlanRequestToActivePlan(t *testing.T) {
	s := newTestServer(t)
	member := s.addUser(t, "mia", domain.RoleUser)
	trainer := s.addUser(t, "tom", domain.RoleTrainer)
	memberToken, trainerToken := tokenFor(t, member), tokenFor(t, trainer)

	body := CreatePlanRequestRequest{TrainerID: trainer.ID.Hex(), Kind: domain.RequestWorkout, Goal: "get stronger"}
	w := s.do(t, http.MethodPost, "/api/v1/plan-requests", memberToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	request := decode[domain.PlanRequest](t, w)

	w = s.do(t, http.MethodPost, "/api/v1/plan-requests", memberToken, body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/trainer/requests?status=pending", trainerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.PlanRequest](t, w), 1)

	w = s.do(t, http.MethodPost, "/api/v1/trainer/requests/"+request.ID.Hex()+"/accept", trainerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/trainer/requests/"+request.ID.Hex()+"/accept", trainerToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%s/plans", member.ID.Hex()), trainerToken,
		CreatePlanDraftRequest{Kind: domain.PlanWorkout, Content: sampleContent()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[domain.PlanVersion](t, w)
	assert.Equal(t, domain.PlanDraft, draft.Status)

	w = s.do(t, http.MethodGet, "/api/v1/plans/"+draft.ID.Hex(), memberToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "members do not see trainer drafts")

	w = s.do(t, http.MethodPost, "/api/v1/plans/"+draft.ID.Hex()+"/submit", trainerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/plans/"+draft.ID.Hex()+"/activate", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.PlanActive, decode[domain.PlanVersion](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/v1/me/plans/active?kind=workout", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, draft.ID, decode[domain.PlanVersion](t, w).ID)

	w = s.do(t, http.MethodGet, "/api/v1/me/plans/active?kind=meal", memberToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/trainer/trainees", trainerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	trainees := decode[[]TraineeResponse](t, w)
	require.Len(t, trainees, 1)
	assert.Equal(t, member.ID.Hex(), trainees[0].User.ID)
}

func TestTrainerCannotReadStrangersData(t *testing.T) {
	s := newTestServer(t)
	member := s.addUser(t, "mia", domain.RoleUser)
	trainer := s.addUser(t, "tom", domain.RoleTrainer)
	token := tokenFor(t, trainer)

	w := s.do(t, http.MethodGet, "/api/v1/users/"+member.ID.Hex()+"/logs", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/users/"+member.ID.Hex()+"/plans", token,
		CreatePlanDraftRequest{Kind: domain.PlanWorkout, Content: sampleContent()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/"+member.ID.Hex()+"/logs", tokenFor(t, member), nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "members cannot use staff routes")
}

func TestActivityLogs(t *testing.T) {
	s := newTestServer(t)
	member := s.addUser(t, "mia", domain.RoleUser)
	token := tokenFor(t, member)
	reps := 10

	w := s.do(t, http.MethodPost, "/api/v1/me/logs", token, CreateLogRequest{
		Kind:    domain.PlanWorkout,
		Entries: []domain.LogEntry{{Name: "Push-up", Reps: &reps}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.ActivityLog](t, w)

	tomorrow := time.Now().UTC().Add(48 * time.Hour).Format(dateLayout)
	w = s.do(t, http.MethodPost, "/api/v1/me/logs", token, CreateLogRequest{
		Kind:    domain.PlanWorkout,
		Date:    tomorrow,
		Entries: []domain.LogEntry{{Name: "Push-up", Reps: &reps}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/me/logs?kind=workout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ActivityLog](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/v1/me/logs?from=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/me/logs/"+created.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/me/logs/"+created.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnconfiguredProvidersReturnServiceUnavailable(t *testing.T) {
	s := newTestServer(t)
	member := s.addUser(t, "mia", domain.RoleUser)

	w := s.do(t, http.MethodPost, "/api/v1/me/uploads/url", tokenFor(t, member), RequestUploadURLRequest{ContentType: "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/payments/stripe/webhook", "", gin.H{"type": "checkout.session.completed"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAttendanceCheckInAndOut(t *testing.T) {
	s := newTestServer(t)
	admin := s.addUser(t, "ada", domain.RoleAdmin)
	member := s.addUser(t, "mia", domain.RoleUser, withMembership)
	lapsed := s.addUser(t, "leo", domain.RoleUser)
	adminToken := tokenFor(t, admin)

	w := s.do(t, http.MethodGet, "/api/v1/admin/attendance/qr", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Checkin-Expires-At"))

	w = s.do(t, http.MethodGet, "/api/v1/admin/attendance/qr?format=json", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	code := decode[service.CheckInCode](t, w)
	require.NotEmpty(t, code.Token)
	assert.NotEmpty(t, code.PNG)

	w = s.do(t, http.MethodPost, "/api/v1/me/attendance/scan", tokenFor(t, member), ScanRequest{Token: code.Token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, service.ActionCheckIn, decode[service.ScanResult](t, w).Action)

	w = s.do(t, http.MethodPost, "/api/v1/me/attendance/scan", tokenFor(t, lapsed), ScanRequest{Token: code.Token})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/me/attendance/scan", tokenFor(t, member), ScanRequest{Token: "garbage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/attendance", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]service.AttendanceRecord](t, w)
	require.Len(t, records, 1)
	assert.Equal(t, member.Email, records[0].UserEmail)

	w = s.do(t, http.MethodGet, "/api/v1/admin/attendance?date=01-02-2024", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminManagesTrainersAndNotices(t *testing.T) {
	s := newTestServer(t)
	admin := s.addUser(t, "ada", domain.RoleAdmin)
	member := s.addUser(t, "mia", domain.RoleUser)
	adminToken, memberToken := tokenFor(t, admin), tokenFor(t, member)

	w := s.do(t, http.MethodPost, "/api/v1/admin/trainers", adminToken, CreateTrainerRequest{
		Name: "Tina", Email: "tina@example.com", Password: testPassword, Specialty: "Powerlifting",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, domain.RoleTrainer, decode[UserResponse](t, w).Role)

	w = s.do(t, http.MethodGet, "/api/v1/trainers", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	trainers := decode[[]TrainerResponse](t, w)
	require.Len(t, trainers, 1)
	assert.Equal(t, "Powerlifting", trainers[0].Specialty)

	w = s.do(t, http.MethodPut, "/api/v1/admin/users/"+admin.ID.Hex()+"/status", adminToken, gin.H{"disabled": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/notices", adminToken, NoticeRequest{
		Title: "Holiday hours", Body: "Closed on **Monday**.<script>alert(1)</script>", Audience: domain.AudienceUsers,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/notices", memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notices := decode[[]service.NoticeView](t, w)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].HTML, "<strong>Monday</strong>")
	assert.NotContains(t, notices[0].HTML, "<script>")

	w = s.do(t, http.MethodGet, "/api/v1/admin/users?role=trainer", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]UserResponse](t, w), 1)

	w = s.do(t, http.MethodGet, "/api/v1/admin/users?role=wizard", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembershipPlansArePublic(t *testing.T) {
	s := newTestServer(t)
	admin := s.addUser(t, "ada", domain.RoleAdmin)

	w := s.do(t, http.MethodPost, "/api/v1/admin/membership-plans", tokenFor(t, admin), CreateMembershipPlanRequest{
		Name: "Monthly", Price: 2500, Currency: "USD", DurationDays: 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plan := decode[domain.MembershipPlan](t, w)
	assert.Equal(t, "usd", plan.Currency)

	w = s.do(t, http.MethodGet, "/api/v1/membership-plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.MembershipPlan](t, w), 1)

	w = s.do(t, http.MethodPut, "/api/v1/admin/membership-plans/"+plan.ID.Hex()+"/status", tokenFor(t, admin), gin.H{"active": false})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/membership-plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.MembershipPlan](t, w))
}

func TestStatusForError(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", service.ErrPlanNotFound)
	assert.Equal(t, http.StatusNotFound, statusForError(wrapped))
	assert.Equal(t, http.StatusConflict, statusForError(service.ErrPendingRequestExists))
	assert.Equal(t, http.StatusTooManyRequests, statusForError(service.ErrOTPCooldown))
	assert.Equal(t, http.StatusInternalServerError, statusForError(assert.AnError))
}
