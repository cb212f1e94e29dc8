package exports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub/internal/archive"
	"schoolhub/internal/backend"
	"schoolhub/internal/queue"
	"schoolhub/internal/report"
)

var exportCols = []string{"id", "kind", "language", "filters", "filename", "status", "error", "size_bytes", "archive_url", "requested_by", "created_at", "completed_at"}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewRepository(db), mock
}

func pendingRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows(exportCols).AddRow(id, "attendance-report", "ar", []byte(`{"branch_id":"1"}`), "", "pending", "", int64(0), "", "admin", time.Now(), nil)
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exports").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestInsertDefaults(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO exports").
		WithArgs(sqlmock.AnyArg(), "attendance-records", "en", []byte(`{}`), "pending", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	e, err := repo.Insert(context.Background(), Export{Kind: report.KindAttendanceRecords, Language: report.English, RequestedBy: "admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, created, e.CreatedAt)
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM exports WHERE id").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBuildsFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	done := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE requested_by = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("admin", "done", 50, 0).
		WillReturnRows(sqlmock.NewRows(exportCols).
			AddRow("e-1", "attendance-report", "en", []byte(`{}`), "attendance-report-2024-05-01.pdf", "done", "", int64(2048), "", "admin", time.Now(), done))

	list, err := repo.List(context.Background(), ListFilter{RequestedBy: "admin", Status: StatusDone, Offset: -3})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2048), list[0].SizeBytes)
	require.NotNil(t, list[0].CompletedAt)
	assert.Equal(t, done, *list[0].CompletedAt)
}

func TestContentOnlyForFinished(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT filename, content FROM exports").WithArgs("e-2").WillReturnError(sql.ErrNoRows)

	_, _, err := repo.Content(context.Background(), "e-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestPublishesJobWithSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO exports").
		WithArgs(sqlmock.AnyArg(), "attendance-report", "ar", []byte(`{"grade":"PRIMARY"}`), "pending", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	q := queue.NewInMemory(1)
	svc := NewService(repo, q, nil)
	ctx := backend.WithSession(context.Background(), backend.Session{ID: "sid", CSRFToken: "csrf"})

	e, err := svc.Request(ctx, Request{Kind: report.KindAttendanceReport, Language: "ar-SA", Filters: json.RawMessage(`{"grade":"PRIMARY"}`)}, "admin")
	require.NoError(t, err)

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, queue.TypeReportExport, msg.Type)
	var job Job
	require.NoError(t, msg.Decode(&job))
	assert.Equal(t, e.ID, job.ExportID)
	assert.Equal(t, "sid", job.Session.ID)
}

func TestRequestValidates(t *testing.T) {
	repo, _ := newMockRepo(t)
	svc := NewService(repo, queue.NewInMemory(1), nil)

	_, err := svc.Request(context.Background(), Request{Kind: "payroll"}, "admin")
	assert.Error(t, err)

	_, err = svc.Request(context.Background(), Request{Kind: report.KindAttendanceReport}, "admin")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
}

type fakeDocs struct {
	err     error
	session backend.Session
	filters string
}

func (f *fakeDocs) Document(ctx context.Context, kind report.Kind, lang report.Language, filters json.RawMessage) (report.Document, error) {
	f.session, _ = backend.SessionFrom(ctx)
	f.filters = string(filters)
	if f.err != nil {
		return nil, f.err
	}
	return report.AttendanceReport{Language: lang}, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(doc report.Document) (report.Output, error) {
	return report.Output{Filename: "attendance-report-2024-05-01.pdf", Bytes: []byte("%PDF-1.3")}, nil
}

type fakeArchive struct{ err error }

func (f fakeArchive) Upload(ctx context.Context, data []byte, filename, publicID string) (*archive.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &archive.UploadResult{SecureURL: "https://res.example/" + publicID}, nil
}

func TestProcessRendersAndArchives(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM exports WHERE id").WithArgs("e-1").WillReturnRows(pendingRow("e-1"))
	mock.ExpectExec("SET status = 'done'").
		WithArgs("e-1", "attendance-report-2024-05-01.pdf", []byte("%PDF-1.3"), int64(8), "https://res.example/e-1.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	docs := &fakeDocs{}
	p := NewProcessor(repo, docs, fakeRenderer{}, fakeArchive{}, nil)
	msg, err := queue.NewMessage(queue.TypeReportExport, Job{ExportID: "e-1", Session: backend.Session{ID: "sid"}})
	require.NoError(t, err)

	require.NoError(t, p.Handle(context.Background(), msg))
	assert.Equal(t, "sid", docs.session.ID, "document fetched on the requester's session")
	assert.JSONEq(t, `{"branch_id":"1"}`, docs.filters)
}

func TestProcessArchiveFailureStillCompletes(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM exports WHERE id").WithArgs("e-1").WillReturnRows(pendingRow("e-1"))
	mock.ExpectExec("SET status = 'done'").
		WithArgs("e-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := NewProcessor(repo, &fakeDocs{}, fakeRenderer{}, fakeArchive{err: errors.New("down")}, nil)
	require.NoError(t, p.Process(context.Background(), Job{ExportID: "e-1"}))
}

func TestProcessMarksFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM exports WHERE id").WithArgs("e-1").WillReturnRows(pendingRow("e-1"))
	mock.ExpectExec("SET status = 'failed'").
		WithArgs("e-1", "PDF generation failed: Branch not found.").
		WillReturnResult(sqlmock.NewResult(0, 1))

	docs := &fakeDocs{err: &backend.APIError{Status: 404, Detail: "Branch not found."}}
	p := NewProcessor(repo, docs, fakeRenderer{}, nil, nil)
	require.NoError(t, p.Process(context.Background(), Job{ExportID: "e-1"}))
}

func TestProcessSkipsFinished(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM exports WHERE id").WithArgs("e-1").
		WillReturnRows(sqlmock.NewRows(exportCols).AddRow("e-1", "attendance-report", "en", []byte(`{}`), "x.pdf", "done", "", int64(3), "", "admin", time.Now(), time.Now()))

	p := NewProcessor(repo, &fakeDocs{err: errors.New("must not be called")}, fakeRenderer{}, nil, nil)
	require.NoError(t, p.Process(context.Background(), Job{ExportID: "e-1"}))
}

func TestHandleIgnoresUnknownType(t *testing.T) {
	repo, _ := newMockRepo(t)
	p := NewProcessor(repo, &fakeDocs{}, fakeRenderer{}, nil, nil)
	assert.NoError(t, p.Handle(context.Background(), queue.Message{Type: "other"}))
}
