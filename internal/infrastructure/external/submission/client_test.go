package submission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/"}, StaticToken("secret"), zap.NewNop())
}

func TestClient_CreateReport(t *testing.T) {
	t.Run("returns server id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/reports", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var p Payload
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&p)) {
				return
			}
			assert.Equal(t, "daily", p.ReportType)
			assert.Equal(t, "Bridge 9", p.Header["project"].Text)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 42}`))
		})

		draft := &entity.Draft{ID: "d1", Header: map[string]entity.Value{"project": entity.Scalar("Bridge 9")}}
		id, err := client.CreateReport(context.Background(), BuildPayload(schema.Daily(), draft))
		require.NoError(t, err)
		assert.Equal(t, "42", id)
	})

	t.Run("accepts enveloped id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": true, "data": {"id": "r-7"}}`))
		})
		id, err := client.CreateReport(context.Background(), Payload{ReportType: "daily"})
		require.NoError(t, err)
		assert.Equal(t, "r-7", id)
	})

	t.Run("missing id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		_, err := client.CreateReport(context.Background(), Payload{})
		var nerr *entity.NetworkError
		require.ErrorAs(t, err, &nerr)
		assert.ErrorIs(t, err, ErrMissingReportID)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		})
		_, err := client.CreateReport(context.Background(), Payload{})
		var nerr *entity.NetworkError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, "create", nerr.Op)
		assert.Equal(t, http.StatusServiceUnavailable, nerr.StatusCode)
		assert.Contains(t, nerr.Error(), "database unavailable")
	})
}

func TestClient_UpdateAndDelete(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, client.UpdateReport(ctx, "r 1", Payload{}))
	require.NoError(t, client.DeleteReport(ctx, "r 1"))
	assert.Equal(t, []string{"PUT /reports/r 1", "DELETE /reports/r 1"}, calls)
}

func TestClient_UploadPhoto(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports/r1/photos", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "trench.jpg", r.FormValue("name"))
		assert.Equal(t, "2", r.FormValue("index"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "trench.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

		w.WriteHeader(http.StatusCreated)
	})

	err := client.UploadPhoto(context.Background(), "r1", []byte{0xff, 0xd8, 0xff}, PhotoMetadata{
		Name:        "trench.jpg",
		ContentType: "image/jpeg",
		Index:       2,
	})
	assert.NoError(t, err)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil, zap.NewNop())
	err := client.DeleteReport(context.Background(), "r1")

	var nerr *entity.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Zero(t, nerr.StatusCode)
}

func TestBuildPayload(t *testing.T) {
	s := schema.Daily()
	draft := &entity.Draft{
		ID:     "d1",
		Header: map[string]entity.Value{"project": entity.Scalar("P"), "stray": entity.Scalar("x")},
		Sections: []entity.SectionRows{
			{Name: "Equipment", Rows: []entity.Row{{"Equipment": "Loader"}}},
		},
		Photos: []entity.Photo{{DataURI: "data:image/png;base64,AA=="}},
	}

	p := BuildPayload(s, draft)
	assert.Equal(t, "d1", p.DraftID)
	assert.Equal(t, 1, p.PhotoCount)
	assert.NotContains(t, p.Header, "stray")
	assert.True(t, p.Header["crewOnSite"].IsArray())
	require.Len(t, p.Sections, 2)
	assert.Empty(t, p.Sections[0].Rows)
	assert.Equal(t, "Loader", p.Sections[1].Rows[0]["Equipment"])
	assert.Contains(t, p.Summaries, "workPerformed")

	p.Sections[1].Rows[0]["Equipment"] = "changed"
	assert.Equal(t, "Loader", draft.Sections[0].Rows[0]["Equipment"])
}
