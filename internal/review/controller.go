package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/infrastructure/external/submission"
	"github.com/fieldops/field-reports/internal/metrics"
	"go.uber.org/zap"
)

// DraftStore is the persistence the controller reads and cleans up.
type DraftStore interface {
	Get(ctx context.Context, reportType, id string) (*entity.Draft, error)
	Put(ctx context.Context, reportType, id string, draft *entity.Draft) error
	Remove(ctx context.Context, reportType, id string) error
}

// ReportClient is the remote reports API.
type ReportClient interface {
	CreateReport(ctx context.Context, payload submission.Payload) (string, error)
	UpdateReport(ctx context.Context, id string, payload submission.Payload) error
	UploadPhoto(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error
}

// Notifier is told about successful submissions.
type Notifier interface {
	ReportSubmitted(ctx context.Context, s *schema.Schema, d *entity.Draft, serverID string) error
}

// Result describes a completed submission.
type Result struct {
	ServerID    string `json:"serverId"`
	Created     bool   `json:"created"`
	Photos      int    `json:"photos"`
	Skipped     int    `json:"skipped,omitempty"`
	RedirectURL string `json:"redirectUrl"`
}

// Controller loads drafts for review and submits them.
type Controller struct {
	store    DraftStore
	client   ReportClient
	notifier Notifier
	logger   *zap.Logger
}

// NewController creates a review controller; notifier may be nil.
func NewController(store DraftStore, client ReportClient, notifier Notifier, logger *zap.Logger) *Controller {
	return &Controller{
		store:    store,
		client:   client,
		notifier: notifier,
		logger:   logger,
	}
}

// Load resolves id and renders it. A missing draft yields the NotFound view,
// not an error.
func (c *Controller) Load(ctx context.Context, s *schema.Schema, id string) (View, *entity.Draft, error) {
	if id == "" {
		return NotFound(s, id), nil, nil
	}
	d, err := c.store.Get(ctx, s.ReportType, id)
	if err != nil {
		return View{}, nil, err
	}
	if d == nil {
		return NotFound(s, id), nil, nil
	}
	return Render(s, d), d, nil
}

// Submit validates d, sends it with its photos and, on success, removes the
// local draft. On any failure the local draft is left in place.
func (c *Controller) Submit(ctx context.Context, s *schema.Schema, d *entity.Draft) (*Result, error) {
	start := time.Now()
	result, err := c.submit(ctx, s, d)
	metrics.SubmissionDuration.WithLabelValues(s.ReportType).Observe(time.Since(start).Seconds())
	metrics.Submissions.WithLabelValues(s.ReportType, metrics.Result(err)).Inc()
	return result, err
}

func (c *Controller) submit(ctx context.Context, s *schema.Schema, d *entity.Draft) (*Result, error) {
	if err := form.Validate(s, d); err != nil {
		return nil, err
	}

	payload := submission.BuildPayload(s, d)
	result := &Result{ServerID: d.ServerID, RedirectURL: s.DraftsURL()}
	progress := d.Clone()

	if d.ServerID != "" {
		if err := c.client.UpdateReport(ctx, d.ServerID, payload); err != nil {
			c.logSubmitFailure(s, d, "update", err)
			return nil, asNetworkError("update", err)
		}
	} else {
		serverID, err := c.client.CreateReport(ctx, payload)
		if err != nil {
			c.logSubmitFailure(s, d, "create", err)
			return nil, asNetworkError("create", err)
		}
		result.ServerID = serverID
		result.Created = true
		progress.ServerID = serverID
		c.saveProgress(ctx, s, progress)
	}

	for i, p := range d.Photos {
		// delivered by an earlier attempt that failed further on
		if p.UploadedTo == result.ServerID {
			result.Skipped++
			continue
		}
		contentType, data, err := p.Bytes()
		if err != nil {
			return nil, &entity.NetworkError{Op: "upload", Err: fmt.Errorf("photo %d: %w", i, err)}
		}
		meta := submission.PhotoMetadata{
			Name:        p.Name,
			ContentType: contentType,
			CapturedAt:  p.CapturedAt,
			Index:       i,
		}
		if err := c.client.UploadPhoto(ctx, result.ServerID, data, meta); err != nil {
			c.logSubmitFailure(s, d, "upload", err)
			if result.Photos > 0 {
				c.saveProgress(ctx, s, progress)
			}
			return nil, asNetworkError("upload", err)
		}
		progress.Photos[i].UploadedTo = result.ServerID
		result.Photos++
	}

	if d.ID != "" {
		if err := c.store.Remove(ctx, s.ReportType, d.ID); err != nil {
			// the report is on the server; a stale local copy is recoverable
			c.logger.Warn("Failed to remove submitted draft",
				zap.String("report_type", s.ReportType),
				zap.String("draft_id", d.ID),
				zap.Error(err))
		}
	}

	if c.notifier != nil {
		if err := c.notifier.ReportSubmitted(ctx, s, d, result.ServerID); err != nil {
			c.logger.Warn("Failed to send submission notification",
				zap.String("report_type", s.ReportType),
				zap.String("report_id", result.ServerID),
				zap.Error(err))
		}
	}

	c.logger.Info("Report submitted",
		zap.String("report_type", s.ReportType),
		zap.String("draft_id", d.ID),
		zap.String("report_id", result.ServerID),
		zap.Int("photos", result.Photos),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// saveProgress records the server id and delivered photos on the local
// draft, so a retry updates instead of creating again and skips photos the
// server already has.
func (c *Controller) saveProgress(ctx context.Context, s *schema.Schema, progress *entity.Draft) {
	if progress.ID == "" {
		return
	}
	if err := c.store.Put(ctx, s.ReportType, progress.ID, progress); err != nil {
		c.logger.Warn("Failed to record submission progress on draft",
			zap.String("report_type", s.ReportType),
			zap.String("draft_id", progress.ID),
			zap.String("report_id", progress.ServerID),
			zap.Error(err))
	}
}

func (c *Controller) logSubmitFailure(s *schema.Schema, d *entity.Draft, step string, err error) {
	fields := []zap.Field{
		zap.String("report_type", s.ReportType),
		zap.String("draft_id", d.ID),
		zap.String("step", step),
		zap.Error(err),
	}
	var nerr *entity.NetworkError
	if errors.As(err, &nerr) && nerr.StatusCode != 0 {
		fields = append(fields, zap.Int("status", nerr.StatusCode))
	}
	c.logger.Error("Report submission failed", fields...)
}

func asNetworkError(op string, err error) error {
	var nerr *entity.NetworkError
	if errors.As(err, &nerr) {
		return err
	}
	return &entity.NetworkError{Op: op, Err: err}
}
