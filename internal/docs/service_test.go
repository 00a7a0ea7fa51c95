package docs

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/roster"
)

type fakeDocStore struct {
	docs []Document
}

func (f *fakeDocStore) Insert(_ context.Context, d Document) (Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	f.docs = append(f.docs, d)
	return d, nil
}

func (f *fakeDocStore) Get(_ context.Context, id string) (Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

func (f *fakeDocStore) ListAll(_ context.Context) ([]Document, error) {
	return f.docs, nil
}

func (f *fakeDocStore) Delete(_ context.Context, id, senderID string) error {
	for i, d := range f.docs {
		if d.ID == id && d.SenderID == senderID {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func strptr(s string) *string { return &s }

func TestInboxVisibility(t *testing.T) {
	store := &fakeDocStore{docs: []Document{
		{ID: "d1", Title: "direct", SenderID: "staff-1", RecipientID: strptr("stud-1")},
		{ID: "d2", Title: "class", SenderID: "staff-1", ClassFilter: strptr("cse-a")},
		{ID: "d3", Title: "other class", SenderID: "staff-1", ClassFilter: strptr("cse-b")},
		{ID: "d4", Title: "mine", SenderID: "stud-1", RecipientID: strptr("staff-1")},
		{ID: "d5", Title: "someone else", SenderID: "staff-1", RecipientID: strptr("stud-2")},
	}}
	svc := NewService(store, nil, nil, nil)

	user := roster.Student{ID: "stud-1", Classes: []string{"cse-a"}}
	inbox, err := svc.Inbox(context.Background(), user)
	require.NoError(t, err)

	var ids []string
	for _, d := range inbox {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"d1", "d2", "d4"}, ids)
}

func TestSendValidation(t *testing.T) {
	svc := NewService(&fakeDocStore{}, nil, nil, nil)
	ctx := context.Background()
	body := strings.NewReader("data")

	_, err := svc.Send(ctx, SendInput{FileName: "a.pdf", RecipientID: "x"}, body)
	assert.ErrorIs(t, err, ErrValidation, "missing title")

	_, err = svc.Send(ctx, SendInput{Title: "t", FileName: "a.pdf"}, body)
	assert.ErrorIs(t, err, ErrValidation, "no recipient or class")

	_, err = svc.Send(ctx, SendInput{Title: "t", FileName: "a.pdf", RecipientID: "x"}, body)
	assert.ErrorIs(t, err, ErrStorageUnavailable, "no media host configured")
}

func TestDeleteOnlySender(t *testing.T) {
	store := &fakeDocStore{docs: []Document{{ID: "d1", SenderID: "staff-1"}}}
	svc := NewService(store, nil, nil, nil)

	err := svc.Delete(context.Background(), "d1", "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(context.Background(), "d1", "staff-1")
	assert.NoError(t, err)
	assert.Empty(t, store.docs)
}
