package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionRepository persists sessions in Postgres.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a repo.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionCols = `id, name, created_on, created_at, qr_token, created_by, active, class_filter`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var filter sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &s.CreatedOn, &s.CreatedAt, &s.QRToken, &s.CreatedBy, &s.Active, &filter); err != nil {
		return Session{}, err
	}
	s.ClassFilter = filter.String
	s.CreatedOn = dateOf(s.CreatedOn)
	return s, nil
}

// Insert writes a new session row.
func (r *SessionRepository) Insert(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	var filter any
	if s.ClassFilter != "" {
		filter = s.ClassFilter
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, name, created_on, created_at, qr_token, created_by, active, class_filter)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, s.ID, s.Name, s.CreatedOn, s.CreatedAt, s.QRToken, s.CreatedBy, s.Active, filter)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Get returns a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// GetByToken returns the session carrying the given join token.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE qr_token = $1`, token)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// Deactivate flips active to false. Returns true only for the call that
// actually performed the transition, so deactivation stays idempotent.
func (r *SessionRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns sessions, optionally bounded by created_on (inclusive).
func (r *SessionRepository) List(ctx context.Context, from, to *time.Time) ([]Session, error) {
	query := `SELECT ` + sessionCols + ` FROM sessions`
	args := []any{}
	switch {
	case from != nil && to != nil:
		query += ` WHERE created_on BETWEEN $1 AND $2`
		args = append(args, dateOf(*from), dateOf(*to))
	case from != nil:
		query += ` WHERE created_on >= $1`
		args = append(args, dateOf(*from))
	case to != nil:
		query += ` WHERE created_on <= $1`
		args = append(args, dateOf(*to))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordRepository persists attendance records in Postgres.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a repo.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordCols = `id, session_id, session_name, student_id, student_name, roll_number, system_number, class, status, marked_by, marked_at, marked_on`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.SessionName, &rec.StudentID, &rec.StudentName, &rec.RollNumber, &rec.SystemNumber, &rec.Class, &rec.Status, &rec.MarkedBy, &rec.MarkedAt, &rec.MarkedOn); err != nil {
		return Record{}, err
	}
	rec.MarkedOn = dateOf(rec.MarkedOn)
	return rec, nil
}

// InsertIfAbsent writes a record in a single conditional statement: the
// session row must still be active and the (session_id, student_id)
// unique index rejects a second mark. When no row comes back the session
// state is re-read only to pick the right error.
func (r *RecordRepository) InsertIfAbsent(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, session_name, student_id, student_name, roll_number, system_number, class, status, marked_by, marked_at, marked_on)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $2 AND active)
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING id
	`, rec.ID, rec.SessionID, rec.SessionName, rec.StudentID, rec.StudentName, rec.RollNumber, rec.SystemNumber, rec.Class, rec.Status, rec.MarkedBy, rec.MarkedAt, rec.MarkedOn)

	var id string
	err := row.Scan(&id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}

	// The insert was suppressed: either the session is gone/closed or
	// the unique index fired.
	var active bool
	serr := r.db.QueryRowContext(ctx, `SELECT active FROM sessions WHERE id = $1`, rec.SessionID).Scan(&active)
	if errors.Is(serr, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if serr != nil {
		return Record{}, serr
	}
	if !active {
		return Record{}, ErrSessionClosed
	}
	return Record{}, ErrAlreadyMarked
}

// Exists reports whether a record already exists for the pair. Used as a
// friendly fast path; the insert constraint is the real guarantee.
func (r *RecordRepository) Exists(ctx context.Context, sessionID, studentID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ListBySession returns every record for a session.
func (r *RecordRepository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records WHERE session_id = $1 ORDER BY marked_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListRange returns records whose marked_on falls inside the inclusive
// date range; either bound may be nil.
func (r *RecordRepository) ListRange(ctx context.Context, from, to *time.Time) ([]Record, error) {
	query := `SELECT ` + recordCols + ` FROM attendance_records`
	args := []any{}
	switch {
	case from != nil && to != nil:
		query += ` WHERE marked_on BETWEEN $1 AND $2`
		args = append(args, dateOf(*from), dateOf(*to))
	case from != nil:
		query += ` WHERE marked_on >= $1`
		args = append(args, dateOf(*from))
	case to != nil:
		query += ` WHERE marked_on <= $1`
		args = append(args, dateOf(*to))
	}
	query += ` ORDER BY marked_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
