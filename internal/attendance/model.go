package attendance

import (
	"errors"
	"time"

	"classtrack/internal/roster"
)

// Session is a time-bounded attendance-taking event. The QR token is an
// opaque string that clients render as a scannable code; check-in
// compares scanned payloads against it by exact equality.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedOn   time.Time `json:"created_on"`
	CreatedAt   time.Time `json:"created_at"`
	QRToken     string    `json:"qr_token"`
	CreatedBy   string    `json:"created_by"`
	Active      bool      `json:"active"`
	ClassFilter string    `json:"class_filter,omitempty"`
}

// Status discriminates how presence was established.
type Status string

const (
	// StatusPresent is an ordinary scan-based presence.
	StatusPresent Status = "present"
	// StatusOnDuty is an excused presence applied through the manual
	// override; it counts as attended everywhere but keeps its label.
	StatusOnDuty Status = "on_duty"
)

// Record is proof that a student attended a session. Student identity
// fields are denormalized at mark time and never re-fetched.
type Record struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	SessionName  string    `json:"session_name"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	RollNumber   string    `json:"roll_number"`
	SystemNumber *string   `json:"system_number,omitempty"`
	Class        string    `json:"class,omitempty"`
	Status       Status    `json:"status"`
	MarkedBy     *string   `json:"marked_by,omitempty"`
	MarkedAt     time.Time `json:"marked_at"`
	MarkedOn     time.Time `json:"marked_on"`
}

// Absentee is a roster member with no record for a session. Always
// derived at query time, never stored.
type Absentee struct {
	StudentID    string  `json:"student_id"`
	Name         string  `json:"name"`
	RollNumber   string  `json:"roll_number"`
	SystemNumber *string `json:"system_number,omitempty"`
	Class        string  `json:"class,omitempty"`
}

// CheckIn carries the student identity fields captured at mark time.
type CheckIn struct {
	SessionID    string
	SessionName  string
	StudentID    string
	StudentName  string
	RollNumber   string
	Class        string
	SystemNumber *string
}

// Stats is a pure reduction over the sessions and records in scope.
type Stats struct {
	Sessions       int `json:"sessions"`
	Present        int `json:"present"`
	Absent         int `json:"absent"`
	UniqueStudents int `json:"unique_students"`
}

// Report bundles everything the per-session report surfaces need.
type Report struct {
	Session   Session    `json:"session"`
	Records   []Record   `json:"records"`
	Absentees []Absentee `json:"absentees"`
	Present   int        `json:"present"`
	Absent    int        `json:"absent"`
}

// Sentinel errors of the core. Handlers map these to HTTP statuses.
var (
	ErrValidation    = errors.New("validation")
	ErrAlreadyMarked = errors.New("already marked")
	ErrSessionClosed = errors.New("session closed")
	ErrNotFound      = errors.New("not found")
	ErrNotCreator    = errors.New("only the creator may deactivate")
)

func absenteeFromStudent(s roster.Student) Absentee {
	return Absentee{
		StudentID:    s.ID,
		Name:         s.Name,
		RollNumber:   s.RollNumber,
		SystemNumber: s.SystemNumber,
		Class:        roster.JoinClasses(s.Classes),
	}
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
