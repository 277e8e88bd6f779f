package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
)

var ErrLogNotFound = errors.New("log not found")

// maxLogEntries bounds a single day's log.
const maxLogEntries = 100

type LogService interface {
	CreateLog(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind, date time.Time, entries []domain.LogEntry, notes string) (*domain.ActivityLog, error)
	ListMyLogs(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind, from, to time.Time) ([]domain.ActivityLog, error)
	ListTraineeLogs(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind, from, to time.Time) ([]domain.ActivityLog, error)
	DeleteLog(ctx context.Context, userID, logID primitive.ObjectID) error
}

type logService struct {
	logRepo        repository.ActivityLogRepository
	assignmentRepo repository.AssignmentRepository
}

func NewLogService(logRepo repository.ActivityLogRepository, assignmentRepo repository.AssignmentRepository) LogService {
	return &logService{logRepo: logRepo, assignmentRepo: assignmentRepo}
}

func validateEntries(kind domain.PlanKind, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return invalid("a log needs at least one entry")
	}
	if len(entries) > maxLogEntries {
		return invalid("too many entries in one log")
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return invalid("every entry needs a name")
		}
		if (e.Sets != nil && *e.Sets < 0) || (e.Reps != nil && *e.Reps < 0) ||
			(e.WeightKg != nil && *e.WeightKg < 0) || (e.Calories != nil && *e.Calories < 0) {
			return invalid("entry values cannot be negative")
		}
		if kind == domain.PlanMeal && (e.Sets != nil || e.Reps != nil || e.WeightKg != nil) {
			return invalid("meal entries take quantity and calories only")
		}
	}
	return nil
}

func (s *logService) CreateLog(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind, date time.Time, entries []domain.LogEntry, notes string) (*domain.ActivityLog, error) {
	if !kind.Valid() {
		return nil, ErrInvalidPlanKind
	}
	if err := validateEntries(kind, entries); err != nil {
		return nil, err
	}
	now := timeNow()
	if date.IsZero() {
		date = now
	}
	day := startOfDay(date)
	if day.After(startOfDay(now)) {
		return nil, invalid("cannot log a future date")
	}

	l := &domain.ActivityLog{
		UserID:  userID,
		Kind:    kind,
		Date:    day,
		Entries: entries,
		Notes:   strings.TrimSpace(notes),
	}
	if _, err := s.logRepo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func logFilter(userID primitive.ObjectID, kind domain.PlanKind, from, to time.Time) (repository.LogFilter, error) {
	if kind != "" && !kind.Valid() {
		return repository.LogFilter{}, ErrInvalidPlanKind
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return repository.LogFilter{}, invalid("'to' must not be before 'from'")
	}
	f := repository.LogFilter{UserID: userID, Kind: kind}
	if !from.IsZero() {
		f.From = startOfDay(from)
	}
	if !to.IsZero() {
		f.To = startOfDay(to)
	}
	return f, nil
}

func (s *logService) ListMyLogs(ctx context.Context, userID primitive.ObjectID, kind domain.PlanKind, from, to time.Time) ([]domain.ActivityLog, error) {
	f, err := logFilter(userID, kind, from, to)
	if err != nil {
		return nil, err
	}
	return s.logRepo.List(ctx, f)
}

func (s *logService) ListTraineeLogs(ctx context.Context, actor Actor, userID primitive.ObjectID, kind domain.PlanKind, from, to time.Time) ([]domain.ActivityLog, error) {
	ok, err := canCoach(ctx, s.assignmentRepo, actor, userID, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotYourTrainee
	}
	f, err := logFilter(userID, kind, from, to)
	if err != nil {
		return nil, err
	}
	return s.logRepo.List(ctx, f)
}

func (s *logService) DeleteLog(ctx context.Context, userID, logID primitive.ObjectID) error {
	l, err := s.logRepo.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLogNotFound
		}
		return err
	}
	if l.UserID != userID {
		return ErrLogNotFound
	}
	return s.logRepo.Delete(ctx, l.ID)
}
