package roster

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStudentStore struct {
	students map[string]Student
	hashes   map[string]string
}

func newFakeStudentStore() *fakeStudentStore {
	return &fakeStudentStore{students: map[string]Student{}, hashes: map[string]string{}}
}

func (f *fakeStudentStore) Insert(_ context.Context, s Student, hash string) (Student, error) {
	for _, existing := range f.students {
		if existing.RollNumber == s.RollNumber {
			return Student{}, ErrRollTaken
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	f.students[s.ID] = s
	f.hashes[s.ID] = hash
	return s, nil
}

func (f *fakeStudentStore) Get(_ context.Context, id string) (Student, error) {
	s, ok := f.students[id]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeStudentStore) GetByRoll(_ context.Context, roll string) (Student, string, error) {
	for id, s := range f.students {
		if s.RollNumber == roll {
			return s, f.hashes[id], nil
		}
	}
	return Student{}, "", ErrNotFound
}

func (f *fakeStudentStore) ListStudents(_ context.Context) ([]Student, error) {
	var out []Student
	for _, s := range f.students {
		if s.Role == RoleValueStudent {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStudentStore) SetApproved(_ context.Context, id string, approved bool) error {
	s, ok := f.students[id]
	if !ok {
		return ErrNotFound
	}
	s.Approved = approved
	f.students[id] = s
	return nil
}

func (f *fakeStudentStore) BindDevice(_ context.Context, id, deviceID string) error {
	s, ok := f.students[id]
	if !ok || s.DeviceID != nil {
		return ErrDeviceBound
	}
	s.DeviceID = &deviceID
	f.students[id] = s
	return nil
}

func (f *fakeStudentStore) ResetDevice(_ context.Context, id string) error {
	s, ok := f.students[id]
	if !ok {
		return ErrNotFound
	}
	s.DeviceID = nil
	f.students[id] = s
	return nil
}

func TestRegisterApprovalRules(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStudentStore())

	st, err := svc.Register(ctx, Student{Name: "alice", RollNumber: "r1", Role: RoleValueStudent, Classes: []string{" CSE-A "}}, "secret1")
	require.NoError(t, err)
	assert.False(t, st.Approved, "students start unapproved")
	assert.Equal(t, []string{"cse-a"}, st.Classes)

	staff, err := svc.Register(ctx, Student{Name: "bob", RollNumber: "t1", Role: RoleValueStaff}, "secret1")
	require.NoError(t, err)
	assert.True(t, staff.Approved, "staff are approved immediately")
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStudentStore())

	tests := []struct {
		name     string
		st       Student
		password string
	}{
		{"missing name", Student{RollNumber: "r1", Role: RoleValueStudent}, "secret1"},
		{"missing roll", Student{Name: "a", Role: RoleValueStudent}, "secret1"},
		{"short password", Student{Name: "a", RollNumber: "r1", Role: RoleValueStudent}, "abc"},
		{"bad role", Student{Name: "a", RollNumber: "r1", Role: "admin"}, "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.st, tt.password)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStudentStore()
	svc := NewService(store)

	st, err := svc.Register(ctx, Student{Name: "alice", RollNumber: "r1", Role: RoleValueStudent}, "secret1")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "r1", "secret1", "device-1")
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	require.NotNil(t, got.DeviceID)
	assert.Equal(t, "device-1", *got.DeviceID, "first login binds the device")

	// a different device does not silently rebind
	again, err := svc.Authenticate(ctx, "r1", "secret1", "device-2")
	require.NoError(t, err)
	require.NotNil(t, again.DeviceID)
	assert.Equal(t, "device-1", *again.DeviceID)

	_, err = svc.Authenticate(ctx, "r1", "wrong", "")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Authenticate(ctx, "nope", "secret1", "")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestListApprovedStudents(t *testing.T) {
	ctx := context.Background()
	store := newFakeStudentStore()
	svc := NewService(store)

	mk := func(name, class string, approved bool) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
		_, err := store.Insert(ctx, Student{
			Name: name, RollNumber: name, Role: RoleValueStudent,
			Classes: NormalizeClasses([]string{class}), Approved: approved,
		}, string(hash))
		require.NoError(t, err)
	}
	mk("a", "cse-a", true)
	mk("b", "cse-a", false)
	mk("c", "cse-b", true)

	all, err := svc.ListApprovedStudents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.ListApprovedStudents(ctx, " CSE-A ")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].Name)
}

func TestListClasses(t *testing.T) {
	ctx := context.Background()
	store := newFakeStudentStore()
	svc := NewService(store)

	for _, st := range []Student{
		{Name: "a", RollNumber: "a", Role: RoleValueStudent, Classes: []string{"cse-b", "cse-a"}},
		{Name: "b", RollNumber: "b", Role: RoleValueStudent, Classes: []string{"cse-a"}},
	} {
		_, err := store.Insert(ctx, st, "x")
		require.NoError(t, err)
	}

	classes, err := svc.ListClasses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cse-a", "cse-b"}, classes)
}
