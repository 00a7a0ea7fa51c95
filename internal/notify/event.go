package notify

// Event kinds emitted by the primary paths after their own state commits.
const (
	KindSessionCreated     = "session_created"
	KindSessionDeactivated = "session_deactivated"
	KindDocumentSent       = "document_sent"
)

// Event is the outbox payload carried over the queue to the dispatcher.
// Delivery is best-effort; producing an event must never fail the
// operation that emitted it.
type Event struct {
	Kind        string   `json:"kind"`
	SessionID   string   `json:"session_id,omitempty"`
	SessionName string   `json:"session_name,omitempty"`
	ClassFilter string   `json:"class_filter,omitempty"`
	Title       string   `json:"title,omitempty"`
	Body        string   `json:"body,omitempty"`
	// TargetIDs are explicit recipients (absentees on deactivation,
	// a document's addressee). Empty means "resolve from the roster
	// using ClassFilter".
	TargetIDs []string `json:"target_ids,omitempty"`
}
