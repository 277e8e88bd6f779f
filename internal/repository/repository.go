package repository

import (
	"context"
	"time"

	"alcyxob/gym-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
	// ErrStateConflict is returned by conditional updates when the stored
	// document is no longer in the expected state.
	ErrStateConflict = RepositoryError("state conflict")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Set bundles one implementation of every repository.
type Set struct {
	Users           UserRepository
	PlanRequests    PlanRequestRepository
	Assignments     AssignmentRepository
	PlanVersions    PlanVersionRepository
	Logs            ActivityLogRepository
	Notices         NoticeRepository
	MembershipPlans MembershipPlanRepository
	Payments        PaymentRepository
	Attendance      AttendanceRepository
	Uploads         UploadRepository
}

// UserFilter narrows ListUsers. Zero values mean "any".
type UserFilter struct {
	Role  domain.Role
	Query string // case-insensitive match on name or email
	Limit int64
	Skip  int64
}

// MembershipExtension is the membership granted by one completed payment.
type MembershipExtension struct {
	PaymentID primitive.ObjectID
	PlanID    primitive.ObjectID
	PlanName  string
	Days      int
	At        time.Time
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Count(ctx context.Context, role domain.Role) (int64, error)
	CountActiveMembers(ctx context.Context, at time.Time) (int64, error)

	// SetOTP replaces the pending verification code. A nil otp clears it.
	SetOTP(ctx context.Context, id primitive.ObjectID, otp *domain.OTP) error
	// ClaimOTPAttempt counts one verification attempt against the pending
	// code and returns the new count. ErrStateConflict means max attempts
	// were already used or no code is pending.
	ClaimOTPAttempt(ctx context.Context, id primitive.ObjectID, max int) (int, error)
	MarkEmailVerified(ctx context.Context, id primitive.ObjectID) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	CompleteOnboarding(ctx context.Context, id primitive.ObjectID, profile domain.Profile) error
	SetTrainer(ctx context.Context, userID primitive.ObjectID, trainerID *primitive.ObjectID) error
	// ExtendMembership adds ext.Days to the later of ext.At and the current
	// expiry in one write and returns the updated user. It fails with
	// ErrStateConflict if ext.PaymentID was already applied.
	ExtendMembership(ctx context.Context, id primitive.ObjectID, ext MembershipExtension) (*domain.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role domain.Role) error
	SetDisabled(ctx context.Context, id primitive.ObjectID, disabled bool) error
}

// PlanRequestRepository stores member requests for a trainer.
type PlanRequestRepository interface {
	Create(ctx context.Context, req *domain.PlanRequest) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanRequest, error)
	GetPendingByUser(ctx context.Context, userID primitive.ObjectID) (*domain.PlanRequest, error)
	ListByTrainer(ctx context.Context, trainerID primitive.ObjectID, status domain.PlanRequestStatus) ([]domain.PlanRequest, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanRequest, error)
	// UpdateStatus moves a request from one status to another and fails with
	// ErrStateConflict when the request is not in status from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.PlanRequestStatus, reason string) error
	CountByStatus(ctx context.Context, trainerID *primitive.ObjectID, status domain.PlanRequestStatus) (int64, error)
}

// AssignmentRepository defines the interface for trainer-trainee links.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.TraineeAssignment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TraineeAssignment, error)
	GetActiveByUser(ctx context.Context, userID primitive.ObjectID) (*domain.TraineeAssignment, error)
	ListActiveByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.TraineeAssignment, error)
	End(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// Reopen makes an ended assignment active again. ErrStateConflict means
	// it is still active; ErrDuplicate means the user has another active one.
	Reopen(ctx context.Context, id primitive.ObjectID) error
	CountActiveByTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error)
}

// PlanVersionRepository stores workout and meal plan versions.
type PlanVersionRepository interface {
	// Create assigns the next version number for (UserID, Kind) and inserts v.
	Create(ctx context.Context, v *domain.PlanVersion) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanVersion, error)
	GetActive(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind) (*domain.PlanVersion, error)
	List(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind) ([]domain.PlanVersion, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content domain.PlanContent) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.PlanStatus) error
	// Activate makes the version active and the previously active version
	// of the same user and kind inactive, as a single unit.
	Activate(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.PlanVersion, error)
	CountByAuthor(ctx context.Context, authorID primitive.ObjectID, status domain.PlanStatus) (int64, error)
}

// LogFilter narrows activity log listings. Zero times are open bounds.
type LogFilter struct {
	UserID primitive.ObjectID
	Kind   domain.PlanKind
	From   time.Time
	To     time.Time
}

type ActivityLogRepository interface {
	Create(ctx context.Context, l *domain.ActivityLog) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ActivityLog, error)
	List(ctx context.Context, filter LogFilter) ([]domain.ActivityLog, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type NoticeRepository interface {
	Create(ctx context.Context, n *domain.Notice) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Notice, error)
	Update(ctx context.Context, n *domain.Notice) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// List returns all notices, pinned first, newest first.
	List(ctx context.Context) ([]domain.Notice, error)
}

type MembershipPlanRepository interface {
	Create(ctx context.Context, p *domain.MembershipPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MembershipPlan, error)
	List(ctx context.Context, activeOnly bool) ([]domain.MembershipPlan, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Payment, error)
	GetByExternalRef(ctx context.Context, provider domain.PaymentProvider, ref string) (*domain.Payment, error)
	SetGatewayRef(ctx context.Context, id primitive.ObjectID, ref, redirectURL string) error
	// Finish moves a pending payment to a final status. ErrStateConflict
	// means another request already finished it.
	Finish(ctx context.Context, id primitive.ObjectID, status domain.PaymentStatus, reason string, at time.Time) error
	// MarkMembershipApplied records that a completed payment's membership was
	// granted. ErrStateConflict if it was already recorded.
	MarkMembershipApplied(ctx context.Context, id primitive.ObjectID, at time.Time) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Payment, error)
	List(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error)
	// RevenueByCurrency sums completed payment amounts grouped by currency.
	RevenueByCurrency(ctx context.Context) (map[string]int64, error)
}

type AttendanceRepository interface {
	// Create fails with ErrDuplicate if the user already has a record for the day.
	Create(ctx context.Context, a *domain.Attendance) (primitive.ObjectID, error)
	GetByUserAndDay(ctx context.Context, userID primitive.ObjectID, day string) (*domain.Attendance, error)
	// CheckOut sets the check-out time once. ErrStateConflict if already set.
	CheckOut(ctx context.Context, id primitive.ObjectID, at time.Time, tokenID string) error
	ListByUser(ctx context.Context, userID primitive.ObjectID, fromDay, toDay string) ([]domain.Attendance, error)
	ListByDay(ctx context.Context, day string) ([]domain.Attendance, error)
	CountByDay(ctx context.Context, day string) (int64, error)
}

// UploadRepository defines the interface for interacting with upload metadata.
type UploadRepository interface {
	Create(ctx context.Context, upload *domain.Upload) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Upload, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Upload, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
