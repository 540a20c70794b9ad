package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/fieldops/field-reports/internal/application/port"
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/event"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/infrastructure/storage"
	"github.com/fieldops/field-reports/internal/review"
)

// ReviewController loads and submits drafts
type ReviewController interface {
	Load(ctx context.Context, s *schema.Schema, id string) (review.View, *entity.Draft, error)
	Submit(ctx context.Context, s *schema.Schema, d *entity.Draft) (*review.Result, error)
}

// WorkbookExporter writes a review view as a spreadsheet
type WorkbookExporter interface {
	Write(w io.Writer, v review.View) error
}

// ReviewService serves the review page, submission and exports
type ReviewService interface {
	// View returns the review of a draft; a missing draft yields a view
	// with Found false and no error.
	View(ctx context.Context, reportType, id string) (review.View, error)
	Submit(ctx context.Context, reportType, id string, ifMatch int) (*review.Result, error)
	Export(ctx context.Context, reportType, id string, w io.Writer) error
	// Archive stores the exported workbook and returns its full path.
	Archive(ctx context.Context, reportType, id string) (string, error)
}

type reviewServiceImpl struct {
	registry   SchemaRegistry
	controller ReviewController
	exporter   WorkbookExporter
	files      port.FileStorage
	locks      *KeyLocks
	logger     Logger
	now        func() time.Time
	options
}

// NewReviewService creates a new ReviewService. locks should be shared with
// the DraftService so that a submit never interleaves with an edit.
func NewReviewService(
	registry SchemaRegistry,
	controller ReviewController,
	exporter WorkbookExporter,
	files port.FileStorage,
	locks *KeyLocks,
	logger Logger,
	opts ...Option,
) ReviewService {
	if locks == nil {
		locks = NewKeyLocks()
	}
	return &reviewServiceImpl{
		registry:   registry,
		controller: controller,
		exporter:   exporter,
		files:      files,
		locks:      locks,
		logger:     logger,
		now:        time.Now,
		options:    buildOptions(opts),
	}
}

func (s *reviewServiceImpl) View(ctx context.Context, reportType, id string) (review.View, error) {
	sch, err := resolveSchema(s.registry, reportType)
	if err != nil {
		return review.View{}, err
	}
	view, _, err := s.controller.Load(ctx, sch, id)
	if err != nil {
		s.logger.Error("Failed to load draft for review", "error", err, "report_type", reportType, "draft_id", id)
		return review.View{}, err
	}
	return view, nil
}

// Submit sends a stored draft to the reports API
func (s *reviewServiceImpl) Submit(ctx context.Context, reportType, id string, ifMatch int) (*review.Result, error) {
	sch, err := resolveSchema(s.registry, reportType)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entity.Key(reportType, id))
	defer unlock()

	_, d, err := s.controller.Load(ctx, sch, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &entity.NotFoundError{ReportType: reportType, ID: id}
	}
	if ifMatch > 0 && d.Version != ifMatch {
		return nil, &entity.ConflictError{Key: entity.Key(reportType, id), Expected: ifMatch, Actual: d.Version}
	}

	result, err := s.controller.Submit(ctx, sch, form.Normalize(sch, d))
	if err != nil {
		s.logger.Error("Failed to submit report", "error", err, "report_type", reportType, "draft_id", id)
		return nil, err
	}

	s.logger.Info("Report submitted", "report_type", reportType, "draft_id", id, "report_id", result.ServerID)
	s.publish(ctx, event.New(event.TypeReportSubmitted, reportType, id).
		WithVersion(d.Version).
		WithServerID(result.ServerID).
		WithPayload("photos", result.Photos).
		WithPayload("created", result.Created))
	return result, nil
}

// Export writes the draft as an xlsx workbook
func (s *reviewServiceImpl) Export(ctx context.Context, reportType, id string, w io.Writer) error {
	view, err := s.View(ctx, reportType, id)
	if err != nil {
		return err
	}
	if !view.Found {
		return &entity.NotFoundError{ReportType: reportType, ID: id}
	}
	if err := s.exporter.Write(w, view); err != nil {
		s.logger.Error("Failed to export draft", "error", err, "report_type", reportType, "draft_id", id)
		return err
	}
	return nil
}

func (s *reviewServiceImpl) Archive(ctx context.Context, reportType, id string) (string, error) {
	var buf bytes.Buffer
	if err := s.Export(ctx, reportType, id, &buf); err != nil {
		return "", err
	}

	path := storage.ExportPath(reportType, id, s.now())
	if err := s.files.Save(ctx, path, buf.Bytes()); err != nil {
		s.logger.Error("Failed to archive export", "error", err, "path", path)
		return "", err
	}

	full := s.files.GetFullPath(path)
	s.logger.Info("Draft exported", "report_type", reportType, "draft_id", id, "path", full)
	s.publish(ctx, event.New(event.TypeReportArchived, reportType, id).
		WithPayload("path", full).
		WithPayload("bytes", buf.Len()))
	return full, nil
}
