package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/observability"
	"alcyxob/gym-app/internal/qr"
	"alcyxob/gym-app/internal/repository"
)

var (
	ErrCheckInTokenInvalid = errors.New("check-in code is invalid")
	ErrCheckInTokenExpired = errors.New("check-in code has expired, scan the current one")
	ErrMembershipInactive  = errors.New("an active membership is required to check in")
	ErrAlreadyCheckedOut   = errors.New("already checked out today")
)

const dayLayout = "2006-01-02"

// minVisit is the shortest time between check-in and check-out. A repeated
// scan inside this window returns the check-in again.
const minVisit = time.Minute

type ScanAction string

const (
	ActionCheckIn  ScanAction = "check_in"
	ActionCheckOut ScanAction = "check_out"
)

type ScanResult struct {
	Action     ScanAction         `json:"action"`
	Attendance *domain.Attendance `json:"attendance"`
}

// CheckInCode is a freshly issued token with its QR rendering.
type CheckInCode struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	PNG       []byte    `json:"png"`
}

// AttendanceRecord is an attendance row with the member it belongs to.
type AttendanceRecord struct {
	domain.Attendance
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

type AttendanceService interface {
	IssueCheckInCode(ctx context.Context, adminID primitive.ObjectID) (*CheckInCode, error)
	Scan(ctx context.Context, userID primitive.ObjectID, token string) (*ScanResult, error)
	ListMyAttendance(ctx context.Context, userID primitive.ObjectID, fromDay, toDay string) ([]domain.Attendance, error)
	ListAttendanceByDate(ctx context.Context, day string) ([]AttendanceRecord, error)
	// Today returns the current attendance day.
	Today() string
}

type attendanceService struct {
	attendanceRepo    repository.AttendanceRepository
	userRepo          repository.UserRepository
	issuer            *qr.Issuer
	loc               *time.Location
	requireMembership bool
}

func NewAttendanceService(
	attendanceRepo repository.AttendanceRepository,
	userRepo repository.UserRepository,
	issuer *qr.Issuer,
	loc *time.Location,
	requireMembership bool,
) AttendanceService {
	if loc == nil {
		loc = time.UTC
	}
	return &attendanceService{
		attendanceRepo:    attendanceRepo,
		userRepo:          userRepo,
		issuer:            issuer,
		loc:               loc,
		requireMembership: requireMembership,
	}
}

func (s *attendanceService) Today() string {
	return timeNow().In(s.loc).Format(dayLayout)
}

func (s *attendanceService) IssueCheckInCode(_ context.Context, adminID primitive.ObjectID) (*CheckInCode, error) {
	tok, err := s.issuer.Issue(adminID.Hex())
	if err != nil {
		return nil, err
	}
	png, err := s.issuer.PNG(tok.Value)
	if err != nil {
		return nil, err
	}
	return &CheckInCode{Token: tok.Value, ExpiresAt: tok.ExpiresAt, PNG: png}, nil
}

// Scan records a check-in on the first scan of the day and a check-out on
// the second.
func (s *attendanceService) Scan(ctx context.Context, userID primitive.ObjectID, token string) (*ScanResult, error) {
	tok, err := s.issuer.Verify(token)
	if err != nil {
		observability.RecordScan("rejected")
		if errors.Is(err, qr.ErrTokenExpired) {
			return nil, ErrCheckInTokenExpired
		}
		return nil, ErrCheckInTokenInvalid
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	now := timeNow()
	if s.requireMembership && user.IsMember() && !user.Membership.ActiveAt(now) {
		observability.RecordScan("no_membership")
		return nil, ErrMembershipInactive
	}

	day := now.In(s.loc).Format(dayLayout)
	existing, err := s.attendanceRepo.GetByUserAndDay(ctx, userID, day)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.checkIn(ctx, userID, day, tok.ID, now)
	case err != nil:
		return nil, err
	}
	return s.checkOut(ctx, existing, tok.ID, now)
}

func (s *attendanceService) checkIn(ctx context.Context, userID primitive.ObjectID, day, tokenID string, now time.Time) (*ScanResult, error) {
	a := &domain.Attendance{
		UserID:    userID,
		Day:       day,
		CheckInAt: now,
		TokenID:   tokenID,
	}
	if _, err := s.attendanceRepo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent scan won the insert.
			existing, getErr := s.attendanceRepo.GetByUserAndDay(ctx, userID, day)
			if getErr != nil {
				return nil, getErr
			}
			return &ScanResult{Action: ActionCheckIn, Attendance: existing}, nil
		}
		return nil, err
	}
	observability.RecordScan(string(ActionCheckIn))
	log.Info().Str("user_id", userID.Hex()).Str("day", day).Msg("checked in")
	return &ScanResult{Action: ActionCheckIn, Attendance: a}, nil
}

func (s *attendanceService) checkOut(ctx context.Context, a *domain.Attendance, tokenID string, now time.Time) (*ScanResult, error) {
	if a.CheckOutAt != nil {
		observability.RecordScan("duplicate")
		return nil, ErrAlreadyCheckedOut
	}
	if now.Sub(a.CheckInAt) < minVisit {
		return &ScanResult{Action: ActionCheckIn, Attendance: a}, nil
	}
	if err := s.attendanceRepo.CheckOut(ctx, a.ID, now, tokenID); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrAlreadyCheckedOut
		}
		return nil, err
	}
	a.CheckOutAt = &now
	a.CheckOutTkID = tokenID
	observability.RecordScan(string(ActionCheckOut))
	return &ScanResult{Action: ActionCheckOut, Attendance: a}, nil
}

func parseDay(day string) error {
	if _, err := time.Parse(dayLayout, day); err != nil {
		return invalid("dates must use the YYYY-MM-DD format")
	}
	return nil
}

// ListMyAttendance lists visits between fromDay and toDay inclusive. Empty
// bounds default to the last 30 days.
func (s *attendanceService) ListMyAttendance(ctx context.Context, userID primitive.ObjectID, fromDay, toDay string) ([]domain.Attendance, error) {
	if toDay == "" {
		toDay = s.Today()
	}
	if fromDay == "" {
		to, err := time.Parse(dayLayout, toDay)
		if err != nil {
			return nil, invalid("dates must use the YYYY-MM-DD format")
		}
		fromDay = to.AddDate(0, 0, -30).Format(dayLayout)
	}
	if err := parseDay(fromDay); err != nil {
		return nil, err
	}
	if err := parseDay(toDay); err != nil {
		return nil, err
	}
	if toDay < fromDay {
		return nil, invalid("'to' must not be before 'from'")
	}
	return s.attendanceRepo.ListByUser(ctx, userID, fromDay, toDay)
}

func (s *attendanceService) ListAttendanceByDate(ctx context.Context, day string) ([]AttendanceRecord, error) {
	if day == "" {
		day = s.Today()
	}
	if err := parseDay(day); err != nil {
		return nil, err
	}
	rows, err := s.attendanceRepo.ListByDay(ctx, day)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	records := make([]AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		u := byID[r.UserID]
		records = append(records, AttendanceRecord{Attendance: r, UserName: u.Name, UserEmail: u.Email})
	}
	return records, nil
}
