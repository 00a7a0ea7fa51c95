package docs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"classtrack/internal/cloudinary"
	"classtrack/internal/notify"
	"classtrack/internal/roster"
)

// ErrValidation wraps input problems callers should surface as bad requests.
var ErrValidation = errors.New("validation")

// ErrStorageUnavailable is returned when no media host is configured.
var ErrStorageUnavailable = errors.New("file storage not configured")

// DocumentStore is the storage surface the service needs.
type DocumentStore interface {
	Insert(ctx context.Context, d Document) (Document, error)
	Get(ctx context.Context, id string) (Document, error)
	ListAll(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, id, senderID string) error
}

// EventPublisher hands post-commit events to the notification outbox.
type EventPublisher interface {
	Publish(ctx context.Context, evt notify.Event) error
}

// Service handles document exchange between students and staff: upload
// to the media host, metadata bookkeeping, inbox resolution.
type Service struct {
	store  DocumentStore
	cdn    *cloudinary.Client // nil when the media host is not configured
	events EventPublisher
	log    *zap.Logger
}

// NewService creates a service.
func NewService(store DocumentStore, cdn *cloudinary.Client, events EventPublisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cdn: cdn, events: events, log: log}
}

// SendInput describes an upload request.
type SendInput struct {
	Title       string
	FileName    string
	ContentType string
	SizeBytes   int64
	SenderID    string
	SenderName  string
	RecipientID string // one of RecipientID / ClassFilter
	ClassFilter string
}

// Send uploads the file and records the document, then announces it to
// the recipient(s) best-effort.
func (s *Service) Send(ctx context.Context, in SendInput, file io.Reader) (Document, error) {
	if in.Title == "" || in.FileName == "" {
		return Document{}, fmt.Errorf("%w: title and file required", ErrValidation)
	}
	if in.RecipientID == "" && in.ClassFilter == "" {
		return Document{}, fmt.Errorf("%w: recipient or class required", ErrValidation)
	}
	if s.cdn == nil {
		return Document{}, ErrStorageUnavailable
	}

	res, err := s.cdn.Upload(file, in.FileName)
	if err != nil {
		return Document{}, err
	}

	d := Document{
		Title:       in.Title,
		FileURL:     res.SecureURL,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		SizeBytes:   in.SizeBytes,
		SenderID:    in.SenderID,
		SenderName:  in.SenderName,
	}
	if in.RecipientID != "" {
		d.RecipientID = &in.RecipientID
	}
	if in.ClassFilter != "" {
		cf := roster.NormalizeClass(in.ClassFilter)
		d.ClassFilter = &cf
	}
	d, err = s.store.Insert(ctx, d)
	if err != nil {
		return Document{}, err
	}

	if s.events != nil {
		evt := notify.Event{
			Kind:  notify.KindDocumentSent,
			Title: "New document",
			Body:  fmt.Sprintf("%s sent you %q.", d.SenderName, d.Title),
		}
		if d.RecipientID != nil {
			evt.TargetIDs = []string{*d.RecipientID}
		} else {
			evt.ClassFilter = *d.ClassFilter
		}
		if err := s.events.Publish(ctx, evt); err != nil {
			s.log.Warn("document notification publish failed", zap.String("document_id", d.ID), zap.Error(err))
		}
	}
	return d, nil
}

// Inbox returns the documents visible to a user: addressed to them,
// sent to one of their class sections, or sent by them.
func (s *Service) Inbox(ctx context.Context, user roster.Student) ([]Document, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []Document{}
	for _, d := range all {
		switch {
		case d.SenderID == user.ID:
		case d.RecipientID != nil && *d.RecipientID == user.ID:
		case d.ClassFilter != nil && user.HasClass(*d.ClassFilter):
		default:
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	return s.store.Get(ctx, id)
}

// Delete removes a document's metadata. Only the sender may delete.
func (s *Service) Delete(ctx context.Context, id, senderID string) error {
	return s.store.Delete(ctx, id, senderID)
}
