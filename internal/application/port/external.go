package port

import (
	"context"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/infrastructure/external/submission"
)

// ReportClient is the remote reports API
type ReportClient interface {
	CreateReport(ctx context.Context, payload submission.Payload) (string, error)
	UpdateReport(ctx context.Context, id string, payload submission.Payload) error
	DeleteReport(ctx context.Context, id string) error
	UploadPhoto(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error
}

// SubmissionNotifier announces submitted reports
type SubmissionNotifier interface {
	ReportSubmitted(ctx context.Context, s *schema.Schema, d *entity.Draft, serverID string) error
}
