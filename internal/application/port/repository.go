package port

import (
	"context"

	"github.com/fieldops/field-reports/internal/domain/entity"
)

// DraftRepository persists drafts per report type
type DraftRepository interface {
	Put(ctx context.Context, reportType, id string, draft *entity.Draft) error
	Get(ctx context.Context, reportType, id string) (*entity.Draft, error)
	Remove(ctx context.Context, reportType, id string) error
	ListAll(ctx context.Context, reportType string) ([]entity.DraftEntry, error)
}
