package exports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"schoolhub/internal/archive"
	"schoolhub/internal/backend"
	"schoolhub/internal/metrics"
	"schoolhub/internal/queue"
	"schoolhub/internal/report"
)

// Job is the queue payload for one export. The backend session travels with
// the job and is never written to the database.
type Job struct {
	ExportID string          `json:"export_id"`
	Session  backend.Session `json:"session"`
}

// Request is what a user asks to export.
type Request struct {
	Kind     report.Kind     `json:"kind" binding:"required"`
	Language report.Language `json:"language"`
	Filters  json.RawMessage `json:"filters"`
}

// Service accepts export requests and hands them to the worker.
type Service struct {
	repo  *Repository
	queue queue.Queue
	log   *zap.Logger
}

// NewService wires the service.
func NewService(repo *Repository, q queue.Queue, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, queue: q, log: log}
}

// Request records a pending export and publishes it for the worker.
func (s *Service) Request(ctx context.Context, req Request, requestedBy string) (Export, error) {
	kind, err := report.ParseKind(string(req.Kind))
	if err != nil {
		return Export{}, err
	}
	sess, ok := backend.SessionFrom(ctx)
	if !ok {
		return Export{}, backend.ErrUnauthorized
	}
	e, err := s.repo.Insert(ctx, Export{
		Kind:        kind,
		Language:    report.ParseLanguage(string(req.Language)),
		Filters:     req.Filters,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return Export{}, fmt.Errorf("insert export: %w", err)
	}

	msg, err := queue.NewMessage(queue.TypeReportExport, Job{ExportID: e.ID, Session: sess})
	if err == nil {
		err = s.queue.Publish(ctx, msg)
	}
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, e.ID, "could not queue export"); markErr != nil {
			s.log.Error("mark unqueued export failed", zap.String("export_id", e.ID), zap.Error(markErr))
		}
		return Export{}, fmt.Errorf("publish export: %w", err)
	}
	s.log.Info("export queued", zap.String("export_id", e.ID), zap.String("kind", string(kind)), zap.String("requested_by", requestedBy))
	return e, nil
}

// Get returns the export.
func (s *Service) Get(ctx context.Context, id string) (Export, error) {
	return s.repo.Get(ctx, id)
}

// List returns the export history.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Export, error) {
	return s.repo.List(ctx, f)
}

// Download returns the rendered PDF of a finished export.
func (s *Service) Download(ctx context.Context, id string) (report.Output, error) {
	name, content, err := s.repo.Content(ctx, id)
	if err != nil {
		return report.Output{}, err
	}
	return report.Output{Filename: name, Bytes: content}, nil
}

// Documents builds a report document from stored filters.
type Documents interface {
	Document(ctx context.Context, kind report.Kind, lang report.Language, filters json.RawMessage) (report.Document, error)
}

// Renderer turns a document into a PDF.
type Renderer interface {
	Render(doc report.Document) (report.Output, error)
}

// Archiver copies a finished PDF off-site.
type Archiver interface {
	Upload(ctx context.Context, data []byte, filename, publicID string) (*archive.UploadResult, error)
}

// Processor executes export jobs for the worker.
type Processor struct {
	repo     *Repository
	docs     Documents
	renderer Renderer
	archive  Archiver
	log      *zap.Logger
}

// NewProcessor wires a processor. archiver may be nil.
func NewProcessor(repo *Repository, docs Documents, renderer Renderer, archiver Archiver, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{repo: repo, docs: docs, renderer: renderer, archive: archiver, log: log}
}

// Handle decodes a queue message and processes it. Unknown types are ignored.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeReportExport {
		p.log.Warn("unknown message type", zap.String("type", msg.Type))
		return nil
	}
	var job Job
	if err := msg.Decode(&job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	return p.Process(ctx, job)
}

// Process renders one export and records the outcome. A job whose export is
// no longer pending is skipped.
func (p *Processor) Process(ctx context.Context, job Job) error {
	log := p.log.With(zap.String("export_id", job.ExportID))
	e, err := p.repo.Get(ctx, job.ExportID)
	if err != nil {
		return fmt.Errorf("load export: %w", err)
	}
	if e.Status != StatusPending {
		log.Info("export already processed", zap.String("status", string(e.Status)))
		metrics.ExportJobs.WithLabelValues("skipped").Inc()
		return nil
	}

	ctx = backend.WithSession(ctx, job.Session)
	out, err := p.render(ctx, e)
	if err != nil {
		reason := "PDF generation failed: " + backend.Message(err, err.Error())
		if errors.Is(err, backend.ErrUnauthorized) {
			reason = "session expired before the export ran"
		}
		log.Warn("export failed", zap.Error(err))
		metrics.ExportJobs.WithLabelValues("failed").Inc()
		return p.repo.MarkFailed(ctx, e.ID, reason)
	}

	var url string
	if p.archive != nil {
		res, err := p.archive.Upload(ctx, out.Bytes, out.Filename, e.ID+".pdf")
		if err != nil {
			log.Warn("archive upload failed", zap.Error(err))
		} else {
			url = res.SecureURL
		}
	}
	if err := p.repo.MarkDone(ctx, e.ID, out, url); err != nil {
		return fmt.Errorf("store export: %w", err)
	}
	log.Info("export done", zap.String("filename", out.Filename), zap.Int("bytes", len(out.Bytes)))
	metrics.ExportJobs.WithLabelValues("done").Inc()
	return nil
}

func (p *Processor) render(ctx context.Context, e Export) (report.Output, error) {
	doc, err := p.docs.Document(ctx, e.Kind, e.Language, e.Filters)
	if err != nil {
		return report.Output{}, err
	}
	return p.renderer.Render(doc)
}
