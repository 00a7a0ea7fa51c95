package notify

import (
	"context"
	"encoding/json"

	"classtrack/internal/queue"
)

// QueuePublisher writes events onto the queue for the worker to consume.
type QueuePublisher struct {
	q queue.Queue
}

// NewQueuePublisher creates a publisher over any queue backend.
func NewQueuePublisher(q queue.Queue) *QueuePublisher {
	return &QueuePublisher{q: q}
}

// Publish serializes the event and enqueues it.
func (p *QueuePublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, queue.Message{Type: "notify", Body: body})
}

// DecodeEvent parses a queue message body back into an event.
func DecodeEvent(body []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(body, &evt)
	return evt, err
}
