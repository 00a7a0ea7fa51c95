package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"classtrack/internal/roster"
)

// RosterSource resolves class-filter targeting to concrete student ids.
type RosterSource interface {
	ListApprovedStudents(ctx context.Context, classFilter string) ([]roster.Student, error)
}

// FeedStore writes in-app feed entries.
type FeedStore interface {
	Insert(ctx context.Context, n Notification) error
}

// Pusher delivers push messages.
type Pusher interface {
	Send(ctx context.Context, userIDs []string, title, body, kind string, data map[string]string) error
}

// Dispatcher consumes outbox events and performs best-effort delivery:
// an in-app feed row per recipient plus one push fan-out. Any failure is
// logged and skipped; there is nothing to roll back.
type Dispatcher struct {
	feed   FeedStore
	push   Pusher
	roster RosterSource
	log    *zap.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(feed FeedStore, push Pusher, students RosterSource, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{feed: feed, push: push, roster: students, log: log}
}

// Handle processes one event.
func (d *Dispatcher) Handle(ctx context.Context, evt Event) error {
	title, body := evt.Title, evt.Body
	switch evt.Kind {
	case KindSessionCreated:
		title = "New attendance session"
		body = fmt.Sprintf("Session %q is open for check-in.", evt.SessionName)
	case KindSessionDeactivated:
		title = "Marked absent"
		body = fmt.Sprintf("You were marked absent for session %q.", evt.SessionName)
	case KindDocumentSent:
		if title == "" {
			title = "New document"
		}
	default:
		return fmt.Errorf("unknown event kind %q", evt.Kind)
	}

	targets := evt.TargetIDs
	// Absent notifications carry their recipients explicitly: an empty
	// set means everyone attended, never "the whole class".
	if len(targets) == 0 && evt.Kind != KindSessionDeactivated {
		students, err := d.roster.ListApprovedStudents(ctx, evt.ClassFilter)
		if err != nil {
			return fmt.Errorf("resolve targets: %w", err)
		}
		targets = make([]string, len(students))
		for i, st := range students {
			targets[i] = st.ID
		}
	}
	if len(targets) == 0 {
		return nil
	}

	var sessionID *string
	if evt.SessionID != "" {
		sessionID = &evt.SessionID
	}
	for _, userID := range targets {
		n := Notification{
			UserID:    userID,
			Title:     title,
			Body:      body,
			Kind:      evt.Kind,
			SessionID: sessionID,
		}
		if err := d.feed.Insert(ctx, n); err != nil {
			d.log.Warn("feed insert failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	data := map[string]string{}
	if evt.SessionID != "" {
		data["session_id"] = evt.SessionID
	}
	if err := d.push.Send(ctx, targets, title, body, evt.Kind, data); err != nil {
		d.log.Warn("push send failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
	notificationsSent.Add(float64(len(targets)))
	return nil
}
