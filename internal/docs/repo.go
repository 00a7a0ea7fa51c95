package docs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a document lookup matches no row.
var ErrNotFound = errors.New("document not found")

// Document is file-exchange metadata. The bytes live at the media host;
// only the URL is kept here. A document targets either one recipient or
// a whole class section.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	FileURL     string    `json:"file_url"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID *string   `json:"recipient_id,omitempty"`
	ClassFilter *string   `json:"class_filter,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// Repository persists document metadata in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const docCols = `id, title, file_url, file_name, content_type, size_bytes, sender_id, sender_name, recipient_id, class_filter, sent_at`

// Insert writes a new document row.
func (r *Repository) Insert(ctx context.Context, d Document) (Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.SentAt.IsZero() {
		d.SentAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (`+docCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, d.ID, d.Title, d.FileURL, d.FileName, d.ContentType, d.SizeBytes, d.SenderID, d.SenderName, d.RecipientID, d.ClassFilter, d.SentAt)
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

// Get returns one document.
func (r *Repository) Get(ctx context.Context, id string) (Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+docCols+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListAll returns every document, newest first. Visibility filtering
// happens in the service where class membership is known.
func (r *Repository) ListAll(ctx context.Context) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+docCols+` FROM documents ORDER BY sent_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes the metadata row only; the stored file stays at the
// media host.
func (r *Repository) Delete(ctx context.Context, id, senderID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND sender_id = $2`, id, senderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	if err := row.Scan(&d.ID, &d.Title, &d.FileURL, &d.FileName, &d.ContentType, &d.SizeBytes, &d.SenderID, &d.SenderName, &d.RecipientID, &d.ClassFilter, &d.SentAt); err != nil {
		return Document{}, err
	}
	return d, nil
}
