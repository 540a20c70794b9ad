package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/infrastructure/external/submission"
	"github.com/fieldops/field-reports/internal/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockReportClient is a func-field review.ReportClient
type mockReportClient struct {
	CreateReportFunc func(ctx context.Context, payload submission.Payload) (string, error)
	UpdateReportFunc func(ctx context.Context, id string, payload submission.Payload) error
	UploadPhotoFunc  func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error
}

func (m *mockReportClient) CreateReport(ctx context.Context, payload submission.Payload) (string, error) {
	if m.CreateReportFunc != nil {
		return m.CreateReportFunc(ctx, payload)
	}
	return "srv-1", nil
}

func (m *mockReportClient) UpdateReport(ctx context.Context, id string, payload submission.Payload) error {
	if m.UpdateReportFunc != nil {
		return m.UpdateReportFunc(ctx, id, payload)
	}
	return nil
}

func (m *mockReportClient) UploadPhoto(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
	if m.UploadPhotoFunc != nil {
		return m.UploadPhotoFunc(ctx, reportID, blob, meta)
	}
	return nil
}

// mockFileStorage keeps saved files in memory
type mockFileStorage struct {
	files   map[string][]byte
	SaveErr error
}

func (m *mockFileStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[path] = content
	return nil
}

func (m *mockFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *mockFileStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *mockFileStorage) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *mockFileStorage) GetFullPath(relativePath string) string {
	return "/exports/" + relativePath
}

// mockExporter writes the view title
type mockExporter struct {
	WriteFunc func(w io.Writer, v review.View) error
}

func (m *mockExporter) Write(w io.Writer, v review.View) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(w, v)
	}
	_, err := io.WriteString(w, v.Title)
	return err
}

func newReviewService(f *serviceFixture, client *mockReportClient, files *mockFileStorage) ReviewService {
	controller := review.NewController(f.store, client, nil, zap.NewNop())
	svc := NewReviewService(f.registry, controller, &mockExporter{}, files, f.locks, f.logger)
	svc.(*reviewServiceImpl).now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestReviewService_View(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newReviewService(f, &mockReportClient{}, &mockFileStorage{})

	d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
	require.NoError(t, err)

	view, err := svc.View(ctx, schema.TypeDaily, d.ID)
	require.NoError(t, err)
	assert.True(t, view.Found)
	assert.Equal(t, d.ID, view.DraftID)

	t.Run("missing draft renders not found", func(t *testing.T) {
		view, err := svc.View(ctx, schema.TypeDaily, "ghost")
		require.NoError(t, err)
		assert.False(t, view.Found)
		assert.Nil(t, view.Actions.Submit)
	})

	t.Run("unknown report type", func(t *testing.T) {
		_, err := svc.View(ctx, "nope", d.ID)
		assert.ErrorIs(t, err, entity.ErrUnknownReportType)
	})
}

func TestReviewService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("submits and removes the draft", func(t *testing.T) {
		f := newFixture(t)
		var created submission.Payload
		client := &mockReportClient{
			CreateReportFunc: func(ctx context.Context, payload submission.Payload) (string, error) {
				created = payload
				return "srv-9", nil
			},
		}
		svc := newReviewService(f, client, &mockFileStorage{})

		d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
		require.NoError(t, err)
		d = fillRequired(t, f, d.ID)

		result, err := svc.Submit(ctx, schema.TypeDaily, d.ID, d.Version)
		require.NoError(t, err)
		assert.Equal(t, "srv-9", result.ServerID)
		assert.True(t, result.Created)
		assert.Equal(t, "/daily-report/drafts", result.RedirectURL)
		assert.Equal(t, schema.TypeDaily, created.ReportType)

		stored, err := f.store.Get(ctx, schema.TypeDaily, d.ID)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("incomplete draft is rejected and kept", func(t *testing.T) {
		f := newFixture(t)
		called := false
		client := &mockReportClient{
			CreateReportFunc: func(ctx context.Context, payload submission.Payload) (string, error) {
				called = true
				return "srv-1", nil
			},
		}
		svc := newReviewService(f, client, &mockFileStorage{})

		d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
		require.NoError(t, err)

		_, err = svc.Submit(ctx, schema.TypeDaily, d.ID, 0)
		var verr *entity.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.False(t, called)

		stored, err := f.store.Get(ctx, schema.TypeDaily, d.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored)
		assert.Contains(t, f.logger.errors, "Failed to submit report")
	})

	t.Run("stale version", func(t *testing.T) {
		f := newFixture(t)
		svc := newReviewService(f, &mockReportClient{}, &mockFileStorage{})
		d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
		require.NoError(t, err)

		_, err = svc.Submit(ctx, schema.TypeDaily, d.ID, d.Version+1)
		var conflict *entity.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("missing draft", func(t *testing.T) {
		f := newFixture(t)
		svc := newReviewService(f, &mockReportClient{}, &mockFileStorage{})
		_, err := svc.Submit(ctx, schema.TypeDaily, "ghost", 0)
		var nf *entity.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("upload failure keeps draft with server id", func(t *testing.T) {
		f := newFixture(t)
		client := &mockReportClient{
			UploadPhotoFunc: func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
				return &entity.NetworkError{Op: "upload", StatusCode: 503, Err: errors.New("unavailable")}
			},
		}
		svc := newReviewService(f, client, &mockFileStorage{})

		d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
		require.NoError(t, err)
		fillRequired(t, f, d.ID)
		_, _, err = f.drafts.AddPhoto(ctx, schema.TypeDaily, d.ID, photoInput(), 0)
		require.NoError(t, err)

		_, err = svc.Submit(ctx, schema.TypeDaily, d.ID, 0)
		var nerr *entity.NetworkError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, 503, nerr.StatusCode)

		stored, err := f.store.Get(ctx, schema.TypeDaily, d.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "srv-1", stored.ServerID)
	})
}

func TestReviewService_Export(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	files := &mockFileStorage{}
	svc := newReviewService(f, &mockReportClient{}, files)

	d, err := f.drafts.Create(ctx, schema.TypeDaily, nil)
	require.NoError(t, err)

	t.Run("writes workbook", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, svc.Export(ctx, schema.TypeDaily, d.ID, &buf))
		assert.Equal(t, "Daily Inspection Report", buf.String())
	})

	t.Run("missing draft", func(t *testing.T) {
		var buf bytes.Buffer
		err := svc.Export(ctx, schema.TypeDaily, "ghost", &buf)
		var nf *entity.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("archive", func(t *testing.T) {
		path, err := svc.Archive(ctx, schema.TypeDaily, d.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(path, "/exports/daily/"+d.ID+"-2026-03-01T100000Z"))
		assert.Len(t, files.files, 1)
	})

	t.Run("archive save failure", func(t *testing.T) {
		files.SaveErr = errors.New("read-only")
		defer func() { files.SaveErr = nil }()
		_, err := svc.Archive(ctx, schema.TypeDaily, d.ID)
		assert.Error(t, err)
		assert.Contains(t, f.logger.errors, "Failed to archive export")
	})
}
