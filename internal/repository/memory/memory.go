// Package memory provides in-process implementations of the repository
// interfaces. They back the "memory" database driver used for local demos
// and the service and handler tests.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind a single lock so multi-collection
// operations stay consistent.
type Store struct {
	mu sync.RWMutex

	users       map[primitive.ObjectID]domain.User
	requests    map[primitive.ObjectID]domain.PlanRequest
	assignments map[primitive.ObjectID]domain.TraineeAssignment
	versions    map[primitive.ObjectID]domain.PlanVersion
	logs        map[primitive.ObjectID]domain.ActivityLog
	notices     map[primitive.ObjectID]domain.Notice
	plans       map[primitive.ObjectID]domain.MembershipPlan
	payments    map[primitive.ObjectID]domain.Payment
	attendance  map[primitive.ObjectID]domain.Attendance
	uploads     map[primitive.ObjectID]domain.Upload
}

func NewStore() *Store {
	return &Store{
		users:       map[primitive.ObjectID]domain.User{},
		requests:    map[primitive.ObjectID]domain.PlanRequest{},
		assignments: map[primitive.ObjectID]domain.TraineeAssignment{},
		versions:    map[primitive.ObjectID]domain.PlanVersion{},
		logs:        map[primitive.ObjectID]domain.ActivityLog{},
		notices:     map[primitive.ObjectID]domain.Notice{},
		plans:       map[primitive.ObjectID]domain.MembershipPlan{},
		payments:    map[primitive.ObjectID]domain.Payment{},
		attendance:  map[primitive.ObjectID]domain.Attendance{},
		uploads:     map[primitive.ObjectID]domain.Upload{},
	}
}

// Repositories returns the repository set backed by s.
func (s *Store) Repositories() repository.Set {
	return repository.Set{
		Users:           &userRepo{s},
		PlanRequests:    &planRequestRepo{s},
		Assignments:     &assignmentRepo{s},
		PlanVersions:    &planVersionRepo{s},
		Logs:            &logRepo{s},
		Notices:         &noticeRepo{s},
		MembershipPlans: &membershipPlanRepo{s},
		Payments:        &paymentRepo{s},
		Attendance:      &attendanceRepo{s},
		Uploads:         &uploadRepo{s},
	}
}

func now() time.Time { return time.Now().UTC() }

func values[T any](m map[primitive.ObjectID]T, keep func(T) bool) []T {
	out := []T{}
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// get returns a copy of m[id] or repository.ErrNotFound.
func get[T any](m map[primitive.ObjectID]T, id primitive.ObjectID) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}
