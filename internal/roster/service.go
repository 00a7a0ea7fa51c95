package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/bcrypt"
)

// ErrValidation wraps input problems callers should surface as bad requests.
var ErrValidation = errors.New("validation")

// ErrBadCredentials is returned on login with an unknown roll or wrong password.
var ErrBadCredentials = errors.New("invalid credentials")

// StudentStore is the storage surface the service needs.
type StudentStore interface {
	Insert(ctx context.Context, s Student, passwordHash string) (Student, error)
	Get(ctx context.Context, id string) (Student, error)
	GetByRoll(ctx context.Context, roll string) (Student, string, error)
	ListStudents(ctx context.Context) ([]Student, error)
	SetApproved(ctx context.Context, id string, approved bool) error
	BindDevice(ctx context.Context, id, deviceID string) error
	ResetDevice(ctx context.Context, id string) error
}

// Service owns roster rules: registration, approval, class membership.
type Service struct {
	store StudentStore
}

// NewService creates a service backed by a student store.
func NewService(store StudentStore) *Service {
	return &Service{store: store}
}

// Register creates an account. Staff are approved immediately; students
// wait for staff approval before they count in any attendance operation.
func (s *Service) Register(ctx context.Context, st Student, password string) (Student, error) {
	if st.Name == "" || st.RollNumber == "" {
		return Student{}, fmt.Errorf("%w: name and roll number required", ErrValidation)
	}
	if len(password) < 6 {
		return Student{}, fmt.Errorf("%w: password too short", ErrValidation)
	}
	if st.Role != RoleValueStudent && st.Role != RoleValueStaff {
		return Student{}, fmt.Errorf("%w: role must be student or staff", ErrValidation)
	}
	st.Classes = NormalizeClasses(st.Classes)
	st.Approved = st.Role == RoleValueStaff

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Student{}, err
	}
	return s.store.Insert(ctx, st, string(hash))
}

// Role values stored on account rows.
const (
	RoleValueStudent = "student"
	RoleValueStaff   = "staff"
)

// Authenticate checks roll number and password, binding the device on a
// student's first login when a device id is supplied.
func (s *Service) Authenticate(ctx context.Context, roll, password, deviceID string) (Student, error) {
	st, hash, err := s.store.GetByRoll(ctx, roll)
	if errors.Is(err, ErrNotFound) {
		return Student{}, ErrBadCredentials
	}
	if err != nil {
		return Student{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Student{}, ErrBadCredentials
	}
	if deviceID != "" && st.Role == RoleValueStudent && st.DeviceID == nil {
		if err := s.store.BindDevice(ctx, st.ID, deviceID); err == nil {
			st.DeviceID = &deviceID
		}
	}
	return st, nil
}

// Get returns a single student.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	return s.store.Get(ctx, id)
}

// Approve marks a pending student as approved.
func (s *Service) Approve(ctx context.Context, id string) error {
	return s.store.SetApproved(ctx, id, true)
}

// ResetDevice clears a student's device binding.
func (s *Service) ResetDevice(ctx context.Context, id string) error {
	return s.store.ResetDevice(ctx, id)
}

// ListStudents returns students, optionally restricted to a class
// section. Membership is tested in memory against the normalized set.
func (s *Service) ListStudents(ctx context.Context, classFilter string) ([]Student, error) {
	all, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	if classFilter == "" {
		return all, nil
	}
	out := make([]Student, 0, len(all))
	for _, st := range all {
		if st.HasClass(classFilter) {
			out = append(out, st)
		}
	}
	return out, nil
}

// ListApprovedStudents returns approved students in the given section,
// or all approved students when the filter is empty. This is the roster
// view the attendance core diffs against.
func (s *Service) ListApprovedStudents(ctx context.Context, classFilter string) ([]Student, error) {
	all, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Student, 0, len(all))
	for _, st := range all {
		if !st.Approved {
			continue
		}
		if classFilter != "" && !st.HasClass(classFilter) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// ListClasses returns the distinct section names across the roster, sorted.
func (s *Service) ListClasses(ctx context.Context) ([]string, error) {
	all, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, st := range all {
		for _, c := range st.Classes {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
