package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/field-reports/internal/domain/event"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/review"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func TestDraftService_Events(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pub := &recordingPublisher{}
	drafts := NewDraftService(f.registry, f.store, engineFactory(f.store), f.locks, f.logger, WithEvents(pub))

	d, err := drafts.Create(ctx, schema.TypeDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.TypeDraftCreated}, pub.types())
	assert.Equal(t, d.ID, pub.last().DraftID)

	edit := []FieldEdit{{Scope: "header", Field: "project", Value: "Bridge 9"}}
	d, err = drafts.ApplyEdits(ctx, schema.TypeDaily, d.ID, edit, 0)
	require.NoError(t, err)
	assert.Equal(t, event.TypeDraftSaved, pub.last().Type)
	assert.Equal(t, d.Version, pub.last().Version)

	t.Run("failed edit publishes nothing", func(t *testing.T) {
		before := len(pub.types())
		_, err := drafts.ApplyEdits(ctx, schema.TypeDaily, d.ID, []FieldEdit{{Scope: "bogus", Value: "x"}}, 0)
		require.Error(t, err)
		assert.Len(t, pub.types(), before)
	})

	require.NoError(t, drafts.Delete(ctx, schema.TypeDaily, d.ID))
	assert.Equal(t, event.TypeDraftDeleted, pub.last().Type)
	assert.Equal(t, schema.TypeDaily, pub.last().ReportType)
}

func TestReviewService_Events(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pub := &recordingPublisher{}
	controller := review.NewController(f.store, &mockReportClient{}, nil, zap.NewNop())
	svc := NewReviewService(f.registry, controller, &mockExporter{}, &mockFileStorage{}, f.locks, f.logger, WithEvents(pub))

	d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
	require.NoError(t, err)

	_, err = svc.Archive(ctx, schema.TypeDaily, d.ID)
	require.NoError(t, err)
	archived := pub.last()
	assert.Equal(t, event.TypeReportArchived, archived.Type)
	assert.Contains(t, archived.PayloadString("path"), "/exports/")
	assert.Positive(t, archived.PayloadInt("bytes"))

	d = fillRequired(t, f, d.ID)
	_, err = svc.Submit(ctx, schema.TypeDaily, d.ID, 0)
	require.NoError(t, err)
	submitted := pub.last()
	assert.Equal(t, event.TypeReportSubmitted, submitted.Type)
	assert.Equal(t, "srv-1", submitted.ServerID)
	assert.Equal(t, d.Version, submitted.Version)

	t.Run("failed submit publishes nothing", func(t *testing.T) {
		before := len(pub.types())
		_, err := svc.Submit(ctx, schema.TypeDaily, "ghost", 0)
		require.Error(t, err)
		assert.Len(t, pub.types(), before)
	})
}
