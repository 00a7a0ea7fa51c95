package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classtrack/internal/notify"
	"classtrack/internal/roster"
)

// SessionStore is the session storage surface the service needs.
type SessionStore interface {
	Insert(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	GetByToken(ctx context.Context, token string) (Session, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, from, to *time.Time) ([]Session, error)
}

// RecordStore is the record storage surface. InsertIfAbsent must enforce
// the (session, student) uniqueness and the session-active predicate
// atomically; the service treats Exists only as a fast pre-check.
type RecordStore interface {
	InsertIfAbsent(ctx context.Context, rec Record) (Record, error)
	Exists(ctx context.Context, sessionID, studentID string) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
	ListRange(ctx context.Context, from, to *time.Time) ([]Record, error)
}

// StudentSource is the roster view the core diffs against.
type StudentSource interface {
	ListApprovedStudents(ctx context.Context, classFilter string) ([]roster.Student, error)
}

// EventPublisher hands post-commit events to the notification outbox.
type EventPublisher interface {
	Publish(ctx context.Context, evt notify.Event) error
}

// Service orchestrates the session lifecycle, check-in recording and
// the derived absentee and statistics views.
type Service struct {
	sessions SessionStore
	records  RecordStore
	roster   StudentSource
	events   EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates the attendance core.
func NewService(sessions SessionStore, records RecordStore, students StudentSource, events EventPublisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		records:  records,
		roster:   students,
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession opens a new session in the active state with a fresh
// join token and announces it to the targeted roster.
func (s *Service) CreateSession(ctx context.Context, name, creatorID, classFilter string) (Session, error) {
	if name == "" {
		return Session{}, fmt.Errorf("%w: session name required", ErrValidation)
	}
	if creatorID == "" {
		return Session{}, fmt.Errorf("%w: creator required", ErrValidation)
	}
	now := s.now()
	sess := Session{
		ID:          uuid.NewString(),
		Name:        name,
		CreatedOn:   dateOf(now),
		CreatedAt:   now,
		QRToken:     uuid.NewString(),
		CreatedBy:   creatorID,
		Active:      true,
		ClassFilter: roster.NormalizeClass(classFilter),
	}
	sess, err := s.sessions.Insert(ctx, sess)
	if err != nil {
		return Session{}, err
	}
	sessionsCreated.Inc()

	s.publish(ctx, notify.Event{
		Kind:        notify.KindSessionCreated,
		SessionID:   sess.ID,
		SessionName: sess.Name,
		ClassFilter: sess.ClassFilter,
	})
	return sess, nil
}

// DeactivateSession closes a session. Only the creator may close it, the
// transition is terminal, and repeating the call is a no-op that sends
// no second round of notifications. The absentee set is computed after
// the flag flip so a check-in that won the race is not reported absent.
func (s *Service) DeactivateSession(ctx context.Context, sessionID, requesterID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CreatedBy != requesterID {
		return ErrNotCreator
	}
	if !sess.Active {
		return nil
	}
	flipped, err := s.sessions.Deactivate(ctx, sessionID)
	if err != nil {
		return err
	}
	if !flipped {
		// Lost a race with another deactivation call; that call owns
		// the notification fan-out.
		return nil
	}

	absentees, err := s.Absentees(ctx, sessionID)
	if err != nil {
		s.log.Warn("absentee computation after deactivation failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	if len(absentees) == 0 {
		// Everyone attended; there is nobody to notify.
		return nil
	}
	ids := make([]string, len(absentees))
	for i, a := range absentees {
		ids[i] = a.StudentID
	}
	s.publish(ctx, notify.Event{
		Kind:        notify.KindSessionDeactivated,
		SessionID:   sess.ID,
		SessionName: sess.Name,
		ClassFilter: sess.ClassFilter,
		TargetIDs:   ids,
	})
	return nil
}

// SessionByToken resolves a scanned payload to its session. The caller
// still goes through MarkAttendance, which re-validates active state.
func (s *Service) SessionByToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, fmt.Errorf("%w: token required", ErrValidation)
	}
	return s.sessions.GetByToken(ctx, token)
}

// Session returns one session by id.
func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	return s.sessions.Get(ctx, id)
}

// Sessions lists sessions, optionally bounded by creation date.
func (s *Service) Sessions(ctx context.Context, from, to *time.Time) ([]Session, error) {
	return s.sessions.List(ctx, from, to)
}

// MarkAttendance records a scan-based presence exactly once per
// (session, student). The duplicate pre-check only produces a friendly
// error early; the conditional insert is what actually guarantees both
// uniqueness and that the session is still accepting check-ins.
func (s *Service) MarkAttendance(ctx context.Context, ci CheckIn) (Record, error) {
	return s.mark(ctx, ci, StatusPresent, nil)
}

// MarkManualAttendance is the staff escape hatch for device or scan
// failures. It bypasses the join token but not the uniqueness or
// session-active constraints.
func (s *Service) MarkManualAttendance(ctx context.Context, ci CheckIn, markedBy string, status Status) (Record, error) {
	if markedBy == "" {
		return Record{}, fmt.Errorf("%w: marking staff required", ErrValidation)
	}
	if status != StatusPresent && status != StatusOnDuty {
		return Record{}, fmt.Errorf("%w: status must be present or on_duty", ErrValidation)
	}
	return s.mark(ctx, ci, status, &markedBy)
}

func (s *Service) mark(ctx context.Context, ci CheckIn, status Status, markedBy *string) (Record, error) {
	if ci.SessionID == "" || ci.StudentID == "" {
		return Record{}, fmt.Errorf("%w: session and student required", ErrValidation)
	}
	if exists, err := s.records.Exists(ctx, ci.SessionID, ci.StudentID); err != nil {
		return Record{}, err
	} else if exists {
		checkinConflicts.Inc()
		return Record{}, ErrAlreadyMarked
	}

	now := s.now()
	rec := Record{
		ID:           uuid.NewString(),
		SessionID:    ci.SessionID,
		SessionName:  ci.SessionName,
		StudentID:    ci.StudentID,
		StudentName:  ci.StudentName,
		RollNumber:   ci.RollNumber,
		SystemNumber: ci.SystemNumber,
		Class:        roster.NormalizeClass(ci.Class),
		Status:       status,
		MarkedBy:     markedBy,
		MarkedAt:     now,
		MarkedOn:     dateOf(now),
	}
	rec, err := s.records.InsertIfAbsent(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			checkinConflicts.Inc()
		}
		return Record{}, err
	}
	checkinsTotal.Inc()
	return rec, nil
}

// Absentees diffs the session's roster against its record set. Pure and
// re-runnable: both present and on_duty records count as attended, and
// the result always reflects current roster membership.
func (s *Service) Absentees(ctx context.Context, sessionID string) ([]Absentee, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	students, err := s.roster.ListApprovedStudents(ctx, sess.ClassFilter)
	if err != nil {
		return nil, err
	}
	return diffAbsentees(students, recs), nil
}

// ManualCandidates is the pool offered to staff on the manual-mark path:
// exactly the current absentee set.
func (s *Service) ManualCandidates(ctx context.Context, sessionID string) ([]Absentee, error) {
	return s.Absentees(ctx, sessionID)
}

func diffAbsentees(students []roster.Student, recs []Record) []Absentee {
	attended := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		attended[r.StudentID] = struct{}{}
	}
	out := []Absentee{}
	for _, st := range students {
		if _, ok := attended[st.ID]; ok {
			continue
		}
		out = append(out, absenteeFromStudent(st))
	}
	return out
}

// Stats reduces the sessions and records in scope to aggregate counts.
// Absenteeism is derived per session via the roster diff on every call,
// never cached, so totals follow current roster state even for
// historical sessions. Bounds are inclusive calendar dates; nil bounds
// mean global scope.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (Stats, error) {
	sessions, err := s.sessions.List(ctx, from, to)
	if err != nil {
		return Stats{}, err
	}
	scoped, err := s.records.ListRange(ctx, from, to)
	if err != nil {
		return Stats{}, err
	}

	// One roster fetch; per-session class filtering happens in memory.
	students, err := s.roster.ListApprovedStudents(ctx, "")
	if err != nil {
		return Stats{}, err
	}

	unique := make(map[string]struct{})
	for _, r := range scoped {
		unique[r.StudentID] = struct{}{}
	}

	absent := 0
	for _, sess := range sessions {
		recs, err := s.records.ListBySession(ctx, sess.ID)
		if err != nil {
			return Stats{}, err
		}
		pool := students
		if sess.ClassFilter != "" {
			pool = filterByClass(students, sess.ClassFilter)
		}
		for _, a := range diffAbsentees(pool, recs) {
			absent++
			unique[a.StudentID] = struct{}{}
		}
	}

	return Stats{
		Sessions:       len(sessions),
		Present:        len(scoped),
		Absent:         absent,
		UniqueStudents: len(unique),
	}, nil
}

func filterByClass(students []roster.Student, class string) []roster.Student {
	out := make([]roster.Student, 0, len(students))
	for _, st := range students {
		if st.HasClass(class) {
			out = append(out, st)
		}
	}
	return out
}

// DateRangeRecords returns records marked inside the inclusive range.
func (s *Service) DateRangeRecords(ctx context.Context, from, to time.Time) ([]Record, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrValidation)
	}
	return s.records.ListRange(ctx, &from, &to)
}

// SessionReport bundles the records, absentees and counts for one
// session, backing the report preview and export surfaces.
func (s *Service) SessionReport(ctx context.Context, sessionID string) (Report, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	recs, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	absentees, err := s.Absentees(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Session:   sess,
		Records:   recs,
		Absentees: absentees,
		Present:   len(recs),
		Absent:    len(absentees),
	}, nil
}

// publish hands an event to the outbox. Failures are logged and
// swallowed: notification delivery never affects the primary path.
func (s *Service) publish(ctx context.Context, evt notify.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("notification publish failed",
			zap.String("kind", evt.Kind), zap.String("session_id", evt.SessionID), zap.Error(err))
	}
}
