package draftstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/pkg/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleDraft(project, savedAt string) *entity.Draft {
	return &entity.Draft{
		Header: map[string]entity.Value{
			"project":    entity.Scalar(project),
			"crewOnSite": entity.Array(entity.Row{"name": "Ana", "role": "Foreman"}),
		},
		Sections: []entity.SectionRows{
			{Name: "Equipment", Rows: []entity.Row{{"Item": "Excavator", "Hours": "6"}}},
		},
		Summaries: map[string]entity.Value{"notes": entity.Scalar("clear day")},
		Photos:    []entity.Photo{},
		SavedAt:   savedAt,
	}
}

// backendFactories yields every Backend implementation for contract tests.
func backendFactories(t *testing.T) map[string]func(t *testing.T) Backend {
	t.Helper()
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend {
			return NewMemoryBackend()
		},
		"sqlite": func(t *testing.T) Backend {
			db, err := database.New(database.Config{
				Path:         filepath.Join(t.TempDir(), "drafts.db"),
				MaxOpenConns: 1,
			}, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations(context.Background(), ""))
			return NewSQLiteBackend(db.DB, zap.NewNop())
		},
		"redis": func(t *testing.T) Backend {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisBackendWithClient(client, "test:", zap.NewNop())
		},
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, factory := range backendFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("put then get round-trips", func(t *testing.T) {
				store := New(factory(t), zap.NewNop())
				original := sampleDraft("Bridge 9", "2026-03-01T10:00:00.000Z")

				require.NoError(t, store.Put(ctx, "daily", "abc", original))

				got, err := store.Get(ctx, "daily", "abc")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, "abc", got.ID)
				assert.Equal(t, "daily", got.ReportType)
				assert.Equal(t, original.Header, got.Header)
				assert.Equal(t, original.Sections, got.Sections)
				assert.Equal(t, original.Summaries, got.Summaries)
				assert.Equal(t, original.SavedAt, got.SavedAt)

				// the caller's draft is not mutated
				assert.Empty(t, original.ID)
			})

			t.Run("get of absent key returns nil", func(t *testing.T) {
				store := New(factory(t), zap.NewNop())
				got, err := store.Get(ctx, "daily", "missing")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("put overwrites", func(t *testing.T) {
				store := New(factory(t), zap.NewNop())
				require.NoError(t, store.Put(ctx, "daily", "abc", sampleDraft("first", "")))
				require.NoError(t, store.Put(ctx, "daily", "abc", sampleDraft("second", "")))

				got, err := store.Get(ctx, "daily", "abc")
				require.NoError(t, err)
				assert.Equal(t, "second", got.Header["project"].Text)
			})

			t.Run("remove of absent key is a no-op", func(t *testing.T) {
				store := New(factory(t), zap.NewNop())
				assert.NoError(t, store.Remove(ctx, "daily", "nothing"))

				require.NoError(t, store.Put(ctx, "daily", "abc", sampleDraft("p", "")))
				require.NoError(t, store.Remove(ctx, "daily", "abc"))
				got, err := store.Get(ctx, "daily", "abc")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("list is scoped to one report type and ordered newest first", func(t *testing.T) {
				store := New(factory(t), zap.NewNop())
				require.NoError(t, store.Put(ctx, "daily", "A", sampleDraft("a", "2026-03-01T08:00:00.000Z")))
				require.NoError(t, store.Put(ctx, "daily", "B", sampleDraft("b", "2026-03-01T09:00:00.000Z")))
				require.NoError(t, store.Put(ctx, "daily", "C", sampleDraft("c", "")))
				require.NoError(t, store.Put(ctx, "coating", "X", sampleDraft("x", "2026-03-02T09:00:00.000Z")))
				// a type whose name extends another must not leak in
				require.NoError(t, store.Put(ctx, "daily2", "Y", sampleDraft("y", "2026-03-02T09:00:00.000Z")))

				entries, err := store.ListAll(ctx, "daily")
				require.NoError(t, err)
				ids := make([]string, 0, len(entries))
				for _, e := range entries {
					ids = append(ids, e.ID)
					assert.Equal(t, e.ID, e.Draft.ID)
				}
				assert.Equal(t, []string{"B", "A", "C"}, ids)

				entries, err = store.ListAll(ctx, "welding")
				require.NoError(t, err)
				assert.Empty(t, entries)
			})

			t.Run("list skips undecodable entries", func(t *testing.T) {
				backend := factory(t)
				store := New(backend, zap.NewNop())
				require.NoError(t, store.Put(ctx, "daily", "good", sampleDraft("ok", "")))
				require.NoError(t, backend.Set(ctx, entity.Key("daily", "bad"), []byte("{not json")))

				entries, err := store.ListAll(ctx, "daily")
				require.NoError(t, err)
				require.Len(t, entries, 1)
				assert.Equal(t, "good", entries[0].ID)

				_, err = store.Get(ctx, "daily", "bad")
				var perr *entity.PersistenceError
				assert.ErrorAs(t, err, &perr)
			})
		})
	}
}

func TestStore_PutWithoutID(t *testing.T) {
	store := New(NewMemoryBackend(), zap.NewNop())
	err := store.Put(context.Background(), "daily", "", sampleDraft("p", ""))

	var perr *entity.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, entity.ErrNoDraftID)
}

func TestStore_BackendFailure(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(NewSQLiteBackend(db, zap.NewNop()), zap.NewNop())
	diskFull := errors.New("disk I/O error")

	t.Run("put", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO kv_entries").WillReturnError(diskFull)

		err := store.Put(ctx, "daily", "abc", sampleDraft("p", ""))
		var perr *entity.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "put", perr.Op)
		assert.Equal(t, "daily_draft_abc", perr.Key)
		assert.ErrorIs(t, err, diskFull)
	})

	t.Run("get", func(t *testing.T) {
		mock.ExpectQuery("SELECT value FROM kv_entries").WillReturnError(diskFull)

		_, err := store.Get(ctx, "daily", "abc")
		var perr *entity.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "get", perr.Op)
	})

	t.Run("list", func(t *testing.T) {
		mock.ExpectQuery("SELECT key, value FROM kv_entries").WillReturnError(diskFull)

		_, err := store.ListAll(ctx, "daily")
		var perr *entity.PersistenceError
		require.ErrorAs(t, err, &perr)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisBackend_Namespace(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	backend := NewRedisBackendWithClient(client, "fr:", zap.NewNop())
	require.NoError(t, backend.Ping(ctx))
	require.NoError(t, backend.Set(ctx, "daily_draft_1", []byte("{}")))

	assert.True(t, mr.Exists("fr:daily_draft_1"))

	kvs, err := backend.Scan(ctx, "daily_draft_")
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, "daily_draft_1", kvs[0].Key)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
	assert.Equal(t, []string{"a", "b", "c"}, dedupSorted([]string{"a", "a", "b", "c", "c"}))
}
