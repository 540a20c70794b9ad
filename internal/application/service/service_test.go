package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/infrastructure/persistence/draftstore"
	"go.uber.org/zap"
)

// mockLogger records log calls
type mockLogger struct {
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
}

// mockRepository is a func-field DraftRepository
type mockRepository struct {
	PutFunc     func(ctx context.Context, reportType, id string, draft *entity.Draft) error
	GetFunc     func(ctx context.Context, reportType, id string) (*entity.Draft, error)
	RemoveFunc  func(ctx context.Context, reportType, id string) error
	ListAllFunc func(ctx context.Context, reportType string) ([]entity.DraftEntry, error)
}

func (m *mockRepository) Put(ctx context.Context, reportType, id string, draft *entity.Draft) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, reportType, id, draft)
	}
	return nil
}

func (m *mockRepository) Get(ctx context.Context, reportType, id string) (*entity.Draft, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, reportType, id)
	}
	return nil, nil
}

func (m *mockRepository) Remove(ctx context.Context, reportType, id string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, reportType, id)
	}
	return nil
}

func (m *mockRepository) ListAll(ctx context.Context, reportType string) ([]entity.DraftEntry, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx, reportType)
	}
	return nil, nil
}

type serviceFixture struct {
	store    *draftstore.Store
	registry *schema.Registry
	locks    *KeyLocks
	logger   *mockLogger
	drafts   DraftService
}

func engineFactory(repo form.DraftStore) EngineFactory {
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	n := 0
	return func(s *schema.Schema) *form.Engine {
		return form.NewEngine(s, repo, zap.NewNop(),
			form.WithClock(func() time.Time {
				clock = clock.Add(time.Second)
				return clock
			}),
			form.WithIDGenerator(func() (string, error) {
				n++
				return fmt.Sprintf("id-%d", n), nil
			}),
		)
	}
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := draftstore.New(draftstore.NewMemoryBackend(), zap.NewNop())
	f := &serviceFixture{
		store:    store,
		registry: schema.NewDefaultRegistry(),
		locks:    NewKeyLocks(),
		logger:   &mockLogger{},
	}
	f.drafts = NewDraftService(f.registry, store, engineFactory(store), f.locks, f.logger)
	return f
}

// fillRequired sets every required daily field on a stored draft
func fillRequired(t *testing.T, f *serviceFixture, id string) *entity.Draft {
	t.Helper()
	d, err := f.drafts.ApplyEdits(context.Background(), schema.TypeDaily, id, []FieldEdit{
		{Scope: "header", Field: "project", Value: "Bridge 9"},
		{Scope: "header", Field: "inspector", Value: "J. Doe"},
		{Scope: "header", Field: "date", Value: "2026-03-01"},
		{Scope: "summary", Field: "workPerformed", Value: "Poured deck"},
		{Scope: "preparedBy", Value: "J. Doe"},
		{Scope: "sigDate", Value: "2026-03-01"},
	}, 0)
	if err != nil {
		t.Fatalf("fill required: %v", err)
	}
	d, err = f.drafts.SetSignature(context.Background(), schema.TypeDaily, id, pixelPNG, "", 0)
	if err != nil {
		t.Fatalf("set signature: %v", err)
	}
	return d
}

const pixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func photoInput() form.PhotoInput {
	return form.PhotoInput{Name: "pixel.png", DataURI: pixelPNG}
}
