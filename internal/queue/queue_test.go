package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	want := Message{Type: "notify", Body: []byte(`{"kind":"session_created"}`)}
	require.NoError(t, q.Publish(ctx, want))

	select {
	case got := <-msgs:
		assert.Equal(t, want, got)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestInMemoryPublishRespectsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, Message{Type: "notify"}))
	cancel()
	// queue is full and the context is done
	err := q.Publish(ctx, Message{Type: "notify"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"plain", Message{Type: "notify", Body: []byte("hello")}},
		{"json body", Message{Type: "notify", Body: []byte(`{"kind":"session_created","target_ids":["a","b"]}`)}},
		{"empty body", Message{Type: "notify", Body: []byte("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			framed, err := serialize(tt.msg)
			require.NoError(t, err)
			got, err := deserialize(framed)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Type, got.Type)
			assert.Equal(t, string(tt.msg.Body), string(got.Body))
		})
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := deserialize("not json")
	assert.Error(t, err)
}
