package review

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/infrastructure/external/submission"
	"github.com/fieldops/field-reports/internal/infrastructure/persistence/draftstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 1x1 transparent PNG
const pixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func filledDraft() *entity.Draft {
	d := form.Blank(schema.Daily())
	d.ID = "d1"
	d.SavedAt = "2026-03-01T10:00:00.000Z"
	d.Header["project"] = entity.Scalar("Bridge <9>")
	d.Header["inspector"] = entity.Scalar("J. Doe")
	d.Header["date"] = entity.Scalar("2026-03-01")
	d.Header["weatherCondition"] = entity.Scalar("Rain")
	d.Header["crewOnSite"] = entity.Array(entity.Row{"name": "Ana", "trade": "Welder", "hours": "8"})
	d.Sections[0].Rows = []entity.Row{
		{"Crew": "East", "Foreman": "Lee", "Summary": "Trenching"},
		{"Crew": "West", "Foreman": "Kim", "Summary": "Backfill"},
	}
	d.Summaries["workPerformed"] = entity.Scalar("Installed 200ft of pipe")
	d.PreparedBy = "J. Doe"
	d.Signature = pixelPNG
	d.SigDate = "2026-03-01"
	d.Photos = []entity.Photo{{Name: "trench.png", ContentType: "image/png", DataURI: pixelPNG}}
	return d
}

func TestRender(t *testing.T) {
	s := schema.Daily()
	d := filledDraft()
	before := d.Clone()

	v := Render(s, d)
	assert.Equal(t, before, d, "render must not mutate the draft")

	assert.True(t, v.Found)
	assert.Equal(t, "Daily Inspection Report", v.Title)
	require.Len(t, v.Groups, 2)
	assert.Equal(t, schema.GroupProjectInfo, v.Groups[0].Title)
	assert.Equal(t, schema.GroupWeather, v.Groups[1].Title)
	assert.Equal(t, Item{Name: "project", Label: "Project", Value: "Bridge <9>"}, v.Groups[0].Items[0])

	require.Len(t, v.Groups[0].Tables, 1)
	crew := v.Groups[0].Tables[0]
	assert.Equal(t, "crewOnSite", crew.Name)
	assert.Equal(t, [][]string{{"Ana", "Welder", "8"}}, crew.Rows)

	require.Len(t, v.Sections, 2)
	assert.Equal(t, "Crew Daily Summaries", v.Sections[0].Name)
	assert.Equal(t, []string{"West", "Kim", "Backfill"}, v.Sections[0].Rows[1])
	assert.Len(t, v.Sections[1].Rows, 1)

	assert.Equal(t, "Installed 200ft of pipe", v.Summaries[0].Value)
	require.Len(t, v.Photos, 1)
	assert.Equal(t, "trench.png", v.Photos[0].Name)

	require.NotNil(t, v.Actions.Edit)
	assert.Equal(t, "/daily-report?draft=d1", v.Actions.Edit.URL)
	assert.Equal(t, "/daily-report/drafts", v.Actions.Exit.URL)
	require.NotNil(t, v.Actions.Submit)
	assert.Equal(t, "/daily-report/review/d1", v.Actions.Submit.URL)
	assert.Equal(t, "POST", v.Actions.Submit.Method)
}

func TestRender_LeavesDraftUntouched(t *testing.T) {
	sparse := func() *entity.Draft {
		d := filledDraft()
		delete(d.Header, "inspector")
		d.Header["crewOnSite"] = entity.Array(entity.Row{"name": "Ana"}, entity.Row{})
		d.Sections = d.Sections[:1]
		delete(d.Summaries, "workPerformed")
		d.Photos = append(d.Photos, entity.Photo{DataURI: pixelPNG})
		return d
	}

	tests := []struct {
		name  string
		draft func() *entity.Draft
	}{
		{"filled", filledDraft},
		{"sparse", sparse},
		{"blank", func() *entity.Draft { return form.Blank(schema.Daily()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft()
			before := d.Clone()

			v := Render(schema.Daily(), d)
			assert.Equal(t, before, d)

			// the view owns its rows and cells
			for gi := range v.Groups {
				for ti := range v.Groups[gi].Tables {
					for ri := range v.Groups[gi].Tables[ti].Rows {
						v.Groups[gi].Tables[ti].Rows[ri][0] = "edited"
					}
				}
			}
			for si := range v.Sections {
				for ri := range v.Sections[si].Rows {
					v.Sections[si].Rows[ri][0] = "edited"
				}
			}
			for pi := range v.Photos {
				v.Photos[pi].DataURI = "edited"
			}
			assert.Equal(t, before, d)

			var buf bytes.Buffer
			require.NoError(t, NewExcelExporter(zap.NewNop()).Write(&buf, Render(schema.Daily(), d)))
			assert.Equal(t, before, d)
		})
	}

	t.Run("sparse values render empty", func(t *testing.T) {
		v := Render(schema.Daily(), sparse())
		crew := v.Groups[0].Tables[0]
		assert.Equal(t, [][]string{{"Ana", "", ""}, {"", "", ""}}, crew.Rows)
		require.Len(t, v.Sections, 2)
		assert.Empty(t, v.Sections[1].Rows)
		assert.Equal(t, "Photo 2", v.Photos[1].Name)
	})
}

func TestNotFound(t *testing.T) {
	v := NotFound(schema.Coating(), "gone")
	assert.False(t, v.Found)
	assert.Contains(t, v.Message, `"gone"`)
	assert.Nil(t, v.Actions.Edit)
	assert.Nil(t, v.Actions.Submit)
	assert.Equal(t, "/coating-report/drafts", v.Actions.Exit.URL)
}

func TestHTMLRenderer(t *testing.T) {
	r, err := NewHTMLRenderer()
	require.NoError(t, err)

	t.Run("review page", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Render(&buf, Render(schema.Daily(), filledDraft())))
		html := buf.String()

		assert.Contains(t, html, "<h1>Daily Inspection Report</h1>")
		assert.Contains(t, html, "Bridge &lt;9&gt;")
		assert.Contains(t, html, `src="data:image/png;base64,`)
		assert.Contains(t, html, `action="/daily-report/review/d1"`)
		assert.Contains(t, html, "<td>Backfill</td>")
		assert.NotContains(t, html, "ZgotmplZ")
	})

	t.Run("unsafe photo urls are dropped", func(t *testing.T) {
		d := filledDraft()
		d.Photos[0].DataURI = "javascript:alert(1)"
		var buf bytes.Buffer
		require.NoError(t, r.Render(&buf, Render(schema.Daily(), d)))
		assert.NotContains(t, buf.String(), "javascript:")
	})

	t.Run("not found page", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.Render(&buf, NotFound(schema.Daily(), "x")))
		html := buf.String()
		assert.Contains(t, html, "No Daily Inspection Report draft was found")
		assert.Contains(t, html, `href="/daily-report/drafts"`)
		assert.NotContains(t, html, "<form")
	})
}

func TestExcelExporter(t *testing.T) {
	exporter := NewExcelExporter(zap.NewNop())

	t.Run("writes workbook", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daily.xlsx")
		require.NoError(t, exporter.SaveAs(path, Render(schema.Daily(), filledDraft())))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{reportSheet, photoSheet}, f.GetSheetList())

		title, err := f.GetCellValue(reportSheet, "A1")
		require.NoError(t, err)
		assert.Equal(t, "Daily Inspection Report", title)

		rows, err := f.GetRows(reportSheet)
		require.NoError(t, err)
		var flat []string
		for _, row := range rows {
			flat = append(flat, strings.Join(row, "|"))
		}
		assert.Contains(t, flat, "Project|Bridge <9>")
		assert.Contains(t, flat, "East|Lee|Trenching")
		assert.Contains(t, flat, "Signed|Yes")

		pics, err := f.GetPictures(photoSheet, "A2")
		require.NoError(t, err)
		assert.Len(t, pics, 1)
	})

	t.Run("refuses not found view", func(t *testing.T) {
		var buf bytes.Buffer
		err := exporter.Write(&buf, NotFound(schema.Daily(), "x"))
		var nf *entity.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

type mockClient struct {
	CreateReportFunc func(ctx context.Context, payload submission.Payload) (string, error)
	UpdateReportFunc func(ctx context.Context, id string, payload submission.Payload) error
	UploadPhotoFunc  func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error
}

func (m *mockClient) CreateReport(ctx context.Context, payload submission.Payload) (string, error) {
	if m.CreateReportFunc != nil {
		return m.CreateReportFunc(ctx, payload)
	}
	return "R-1", nil
}

func (m *mockClient) UpdateReport(ctx context.Context, id string, payload submission.Payload) error {
	if m.UpdateReportFunc != nil {
		return m.UpdateReportFunc(ctx, id, payload)
	}
	return nil
}

func (m *mockClient) UploadPhoto(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
	if m.UploadPhotoFunc != nil {
		return m.UploadPhotoFunc(ctx, reportID, blob, meta)
	}
	return nil
}

type mockNotifier struct {
	calls []string
	err   error
}

func (m *mockNotifier) ReportSubmitted(ctx context.Context, s *schema.Schema, d *entity.Draft, serverID string) error {
	m.calls = append(m.calls, serverID)
	return m.err
}

func newStore(t *testing.T, drafts ...*entity.Draft) *draftstore.Store {
	t.Helper()
	store := draftstore.New(draftstore.NewMemoryBackend(), zap.NewNop())
	for _, d := range drafts {
		require.NoError(t, store.Put(context.Background(), d.ReportType, d.ID, d))
	}
	return store
}

func TestController_Load(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, filledDraft())
	c := NewController(store, &mockClient{}, nil, zap.NewNop())

	v, d, err := c.Load(ctx, schema.Daily(), "d1")
	require.NoError(t, err)
	assert.True(t, v.Found)
	assert.Equal(t, "d1", d.ID)

	v, d, err = c.Load(ctx, schema.Daily(), "missing")
	require.NoError(t, err)
	assert.False(t, v.Found)
	assert.Nil(t, d)
}

func TestController_Submit(t *testing.T) {
	ctx := context.Background()
	s := schema.Daily()

	t.Run("creates, uploads, removes draft and notifies", func(t *testing.T) {
		store := newStore(t, filledDraft())
		notifier := &mockNotifier{}
		var uploaded []submission.PhotoMetadata
		client := &mockClient{
			UploadPhotoFunc: func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
				assert.Equal(t, "R-1", reportID)
				assert.NotEmpty(t, blob)
				uploaded = append(uploaded, meta)
				return nil
			},
		}
		c := NewController(store, client, notifier, zap.NewNop())

		result, err := c.Submit(ctx, s, filledDraft())
		require.NoError(t, err)
		assert.Equal(t, &Result{ServerID: "R-1", Created: true, Photos: 1, RedirectURL: "/daily-report/drafts"}, result)
		require.Len(t, uploaded, 1)
		assert.Equal(t, "image/png", uploaded[0].ContentType)

		got, err := store.Get(ctx, "daily", "d1")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, []string{"R-1"}, notifier.calls)
	})

	t.Run("updates when the report already exists", func(t *testing.T) {
		d := filledDraft()
		d.ServerID = "R-9"
		store := newStore(t, d)
		var updated string
		client := &mockClient{
			CreateReportFunc: func(ctx context.Context, payload submission.Payload) (string, error) {
				t.Fatal("create must not be called")
				return "", nil
			},
			UpdateReportFunc: func(ctx context.Context, id string, payload submission.Payload) error {
				updated = id
				return nil
			},
		}
		result, err := NewController(store, client, nil, zap.NewNop()).Submit(ctx, s, d)
		require.NoError(t, err)
		assert.Equal(t, "R-9", updated)
		assert.False(t, result.Created)
	})

	t.Run("validation failure keeps draft", func(t *testing.T) {
		d := filledDraft()
		d.Signature = ""
		store := newStore(t, d)

		_, err := NewController(store, &mockClient{}, nil, zap.NewNop()).Submit(ctx, s, d)
		var verr *entity.ValidationError
		require.ErrorAs(t, err, &verr)

		got, err := store.Get(ctx, "daily", "d1")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("network failure keeps draft and records server id", func(t *testing.T) {
		store := newStore(t, filledDraft())
		notifier := &mockNotifier{}
		client := &mockClient{
			UploadPhotoFunc: func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
				return errors.New("connection reset")
			},
		}

		_, err := NewController(store, client, notifier, zap.NewNop()).Submit(ctx, s, filledDraft())
		var nerr *entity.NetworkError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, "upload", nerr.Op)

		got, err := store.Get(ctx, "daily", "d1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "R-1", got.ServerID)
		assert.Empty(t, notifier.calls)
	})

	t.Run("retry skips photos already delivered", func(t *testing.T) {
		d := filledDraft()
		d.Photos = []entity.Photo{
			{Name: "a.png", DataURI: pixelPNG},
			{Name: "b.png", DataURI: pixelPNG},
			{Name: "c.png", DataURI: pixelPNG},
		}
		store := newStore(t, d)

		var uploads []string
		failOn := "b.png"
		client := &mockClient{
			UploadPhotoFunc: func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
				if meta.Name == failOn {
					return errors.New("connection reset")
				}
				uploads = append(uploads, reportID+"/"+meta.Name)
				return nil
			},
		}
		c := NewController(store, client, nil, zap.NewNop())

		_, err := c.Submit(ctx, s, d)
		require.Error(t, err)

		stored, err := store.Get(ctx, "daily", "d1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "R-1", stored.ServerID)
		assert.Equal(t, "R-1", stored.Photos[0].UploadedTo)
		assert.Empty(t, stored.Photos[1].UploadedTo)
		assert.Empty(t, stored.Photos[2].UploadedTo)

		failOn = ""
		result, err := c.Submit(ctx, s, stored)
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, 2, result.Photos)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, []string{"R-1/a.png", "R-1/b.png", "R-1/c.png"}, uploads)
	})

	t.Run("markers for another report are ignored", func(t *testing.T) {
		d := filledDraft()
		d.ServerID = "R-9"
		d.Photos[0].UploadedTo = "R-3"
		store := newStore(t, d)

		uploaded := 0
		client := &mockClient{
			UploadPhotoFunc: func(ctx context.Context, reportID string, blob []byte, meta submission.PhotoMetadata) error {
				uploaded++
				return nil
			},
		}
		result, err := NewController(store, client, nil, zap.NewNop()).Submit(ctx, s, d)
		require.NoError(t, err)
		assert.Equal(t, 1, uploaded)
		assert.Zero(t, result.Skipped)
	})

	t.Run("notification failure does not fail submission", func(t *testing.T) {
		store := newStore(t, filledDraft())
		notifier := &mockNotifier{err: errors.New("lark down")}
		_, err := NewController(store, &mockClient{}, notifier, zap.NewNop()).Submit(ctx, s, filledDraft())
		assert.NoError(t, err)
	})
}
