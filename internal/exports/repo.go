// Package exports keeps the history of asynchronous PDF exports and runs them.
package exports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolhub/internal/report"
)

// Status of an export job.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned when no export has the requested id.
var ErrNotFound = errors.New("export not found")

// Export is one requested document.
type Export struct {
	ID          string          `json:"id"`
	Kind        report.Kind     `json:"kind"`
	Language    report.Language `json:"language"`
	Filters     json.RawMessage `json:"filters"`
	Filename    string          `json:"filename,omitempty"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	SizeBytes   int64           `json:"size_bytes"`
	Content     []byte          `json:"-"`
	ArchiveURL  string          `json:"archive_url,omitempty"`
	RequestedBy string          `json:"requested_by"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS exports (
	id           UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	language     TEXT NOT NULL DEFAULT 'en',
	filters      JSONB NOT NULL DEFAULT '{}'::jsonb,
	filename     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	error        TEXT NOT NULL DEFAULT '',
	size_bytes   BIGINT NOT NULL DEFAULT 0,
	content      BYTEA,
	archive_url  TEXT NOT NULL DEFAULT '',
	requested_by TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_exports_requested_by ON exports(requested_by, created_at DESC);
`

const columns = `id, kind, language, filters, filename, status, error, size_bytes, archive_url, requested_by, created_at, completed_at`

// Repository persists exports in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the exports table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Insert writes a new pending export.
func (r *Repository) Insert(ctx context.Context, e Export) (Export, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	if len(e.Filters) == 0 {
		e.Filters = json.RawMessage(`{}`)
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO exports (id, kind, language, filters, status, requested_by)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, e.ID, string(e.Kind), string(e.Language), []byte(e.Filters), string(e.Status), e.RequestedBy)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Export{}, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExport(s scanner) (Export, error) {
	var (
		e         Export
		kind      string
		lang      string
		status    string
		filters   []byte
		completed sql.NullTime
	)
	if err := s.Scan(&e.ID, &kind, &lang, &filters, &e.Filename, &status, &e.Error, &e.SizeBytes, &e.ArchiveURL, &e.RequestedBy, &e.CreatedAt, &completed); err != nil {
		return Export{}, err
	}
	e.Kind = report.Kind(kind)
	e.Language = report.Language(lang)
	e.Status = Status(status)
	e.Filters = json.RawMessage(filters)
	if completed.Valid {
		t := completed.Time
		e.CompletedAt = &t
	}
	return e, nil
}

// Get returns an export without its content.
func (r *Repository) Get(ctx context.Context, id string) (Export, error) {
	e, err := scanExport(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM exports WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Export{}, ErrNotFound
	}
	return e, err
}

// Content returns the rendered PDF of a finished export.
func (r *Repository) Content(ctx context.Context, id string) (filename string, content []byte, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT filename, content FROM exports
		WHERE id = $1 AND status = 'done'
	`, id)
	if err := row.Scan(&filename, &content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrNotFound
		}
		return "", nil, err
	}
	return filename, content, nil
}

// ListFilter narrows the export history.
type ListFilter struct {
	RequestedBy string
	Status      Status
	Limit       int
	Offset      int
}

// List returns the newest exports first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Export, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + columns + ` FROM exports`
	args := []any{}
	clauses := []string{}
	if f.RequestedBy != "" {
		clauses = append(clauses, "requested_by = $"+strconv.Itoa(len(args)+1))
		args = append(args, f.RequestedBy)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)+1))
		args = append(args, string(f.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Export{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// MarkDone stores the rendered document. Only pending exports transition.
func (r *Repository) MarkDone(ctx context.Context, id string, out report.Output, archiveURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE exports
		SET status = 'done', filename = $2, content = $3, size_bytes = $4, archive_url = $5, completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, out.Filename, out.Bytes, int64(len(out.Bytes)), archiveURL)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// MarkFailed records why an export could not be produced.
func (r *Repository) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE exports
		SET status = 'failed', error = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, reason)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
