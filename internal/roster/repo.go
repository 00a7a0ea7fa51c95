package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a student lookup matches no row.
var ErrNotFound = errors.New("student not found")

// ErrRollTaken is returned when a roll number is already registered.
var ErrRollTaken = errors.New("roll number already registered")

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentCols = `id, name, roll_number, system_number, classes, role, approved, device_id, created_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	var classes string
	if err := row.Scan(&s.ID, &s.Name, &s.RollNumber, &s.SystemNumber, &classes, &s.Role, &s.Approved, &s.DeviceID, &s.CreatedAt); err != nil {
		return Student{}, err
	}
	s.Classes = ParseClasses(classes)
	return s, nil
}

// Insert writes a new account row. The classes set is stored comma-joined.
func (r *Repository) Insert(ctx context.Context, s Student, passwordHash string) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, name, roll_number, system_number, classes, role, approved, device_id, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, s.ID, s.Name, s.RollNumber, s.SystemNumber, JoinClasses(s.Classes), s.Role, s.Approved, s.DeviceID, passwordHash, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Student{}, ErrRollTaken
		}
		return Student{}, err
	}
	s.Classes = NormalizeClasses(s.Classes)
	return s, nil
}

// Get returns a student by id.
func (r *Repository) Get(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentCols+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	return s, err
}

// GetByRoll returns a student by roll number, with the stored password hash.
func (r *Repository) GetByRoll(ctx context.Context, roll string) (Student, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentCols+`, password_hash FROM students WHERE roll_number = $1
	`, roll)
	var s Student
	var classes, hash string
	err := row.Scan(&s.ID, &s.Name, &s.RollNumber, &s.SystemNumber, &classes, &s.Role, &s.Approved, &s.DeviceID, &s.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, "", ErrNotFound
	}
	if err != nil {
		return Student{}, "", err
	}
	s.Classes = ParseClasses(classes)
	return s, hash, nil
}

// ListStudents returns all rows with role student. Class-membership
// filtering happens in the service because the comma-joined set is not
// a storage-level equality.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentCols+` FROM students WHERE role = 'student' ORDER BY roll_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetApproved flips the approval flag.
func (r *Repository) SetApproved(ctx context.Context, id string, approved bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BindDevice records the device a student first signed in from. A bound
// device is only replaced after a staff reset.
func (r *Repository) BindDevice(ctx context.Context, id, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET device_id = $2 WHERE id = $1 AND device_id IS NULL
	`, id, deviceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDeviceBound
	}
	return nil
}

// ErrDeviceBound is returned when a student already has a bound device.
var ErrDeviceBound = errors.New("device already bound")

// ResetDevice clears the device binding so the next login can rebind.
func (r *Repository) ResetDevice(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET device_id = NULL WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation matches Postgres unique_violation (23505) without
// depending on driver error types.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}
