package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/roster"
)

type fakeFeed struct {
	rows []Notification
	fail bool
}

func (f *fakeFeed) Insert(_ context.Context, n Notification) error {
	if f.fail {
		return errors.New("feed down")
	}
	f.rows = append(f.rows, n)
	return nil
}

type fakePush struct {
	sent [][]string
	fail bool
}

func (f *fakePush) Send(_ context.Context, userIDs []string, _, _, _ string, _ map[string]string) error {
	if f.fail {
		return errors.New("gateway down")
	}
	f.sent = append(f.sent, userIDs)
	return nil
}

type fakeRoster struct {
	students []roster.Student
}

func (f *fakeRoster) ListApprovedStudents(_ context.Context, classFilter string) ([]roster.Student, error) {
	var out []roster.Student
	for _, st := range f.students {
		if classFilter == "" || st.HasClass(classFilter) {
			out = append(out, st)
		}
	}
	return out, nil
}

func TestDispatchSessionCreatedResolvesRoster(t *testing.T) {
	feed := &fakeFeed{}
	push := &fakePush{}
	students := &fakeRoster{students: []roster.Student{
		{ID: "s1", Classes: []string{"cse-a"}},
		{ID: "s2", Classes: []string{"cse-a"}},
		{ID: "s3", Classes: []string{"cse-b"}},
	}}
	d := NewDispatcher(feed, push, students, nil)

	err := d.Handle(context.Background(), Event{
		Kind:        KindSessionCreated,
		SessionID:   "sess-1",
		SessionName: "lecture",
		ClassFilter: "cse-a",
	})
	require.NoError(t, err)

	require.Len(t, feed.rows, 2)
	for _, n := range feed.rows {
		assert.Equal(t, KindSessionCreated, n.Kind)
		require.NotNil(t, n.SessionID)
		assert.Equal(t, "sess-1", *n.SessionID)
	}
	require.Len(t, push.sent, 1)
	assert.ElementsMatch(t, []string{"s1", "s2"}, push.sent[0])
}

func TestDispatchDeactivatedUsesExplicitTargets(t *testing.T) {
	feed := &fakeFeed{}
	push := &fakePush{}
	d := NewDispatcher(feed, push, &fakeRoster{}, nil)

	err := d.Handle(context.Background(), Event{
		Kind:        KindSessionDeactivated,
		SessionID:   "sess-1",
		SessionName: "lecture",
		TargetIDs:   []string{"s9"},
	})
	require.NoError(t, err)
	require.Len(t, feed.rows, 1)
	assert.Equal(t, "s9", feed.rows[0].UserID)
}

func TestDispatchDeactivatedNeverResolvesRoster(t *testing.T) {
	feed := &fakeFeed{}
	push := &fakePush{}
	students := &fakeRoster{students: []roster.Student{
		{ID: "s1", Classes: []string{"cse-a"}},
		{ID: "s2", Classes: []string{"cse-a"}},
	}}
	d := NewDispatcher(feed, push, students, nil)

	// No explicit targets: everyone attended. The class filter must not
	// be used to address the attendees.
	err := d.Handle(context.Background(), Event{
		Kind:        KindSessionDeactivated,
		SessionID:   "sess-1",
		SessionName: "lecture",
		ClassFilter: "cse-a",
	})
	require.NoError(t, err)
	assert.Empty(t, feed.rows)
	assert.Empty(t, push.sent)
}

func TestDispatchSurvivesDeliveryFailures(t *testing.T) {
	feed := &fakeFeed{fail: true}
	push := &fakePush{fail: true}
	d := NewDispatcher(feed, push, &fakeRoster{}, nil)

	err := d.Handle(context.Background(), Event{
		Kind:      KindSessionDeactivated,
		TargetIDs: []string{"s1"},
	})
	assert.NoError(t, err, "delivery failures are logged, not propagated")
}

func TestDispatchUnknownKind(t *testing.T) {
	d := NewDispatcher(&fakeFeed{}, &fakePush{}, &fakeRoster{}, nil)
	err := d.Handle(context.Background(), Event{Kind: "bogus"})
	assert.Error(t, err)
}

func TestDispatchNoTargetsIsNoop(t *testing.T) {
	feed := &fakeFeed{}
	push := &fakePush{}
	d := NewDispatcher(feed, push, &fakeRoster{}, nil)

	err := d.Handle(context.Background(), Event{Kind: KindSessionCreated, SessionName: "empty"})
	require.NoError(t, err)
	assert.Empty(t, feed.rows)
	assert.Empty(t, push.sent)
}

func TestEventRoundTrip(t *testing.T) {
	evt := Event{
		Kind:        KindSessionDeactivated,
		SessionID:   "sess-1",
		SessionName: "lecture",
		TargetIDs:   []string{"a", "b"},
	}
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	got, err := DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, evt, got)
}
