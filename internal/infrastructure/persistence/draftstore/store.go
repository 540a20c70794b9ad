package draftstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/metrics"
	"go.uber.org/zap"
)

// Entry is a listed draft annotated with the id derived from its key.
type Entry = entity.DraftEntry

// Store is the draft store: one namespace per report type over a Backend.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// New creates a Store over backend.
func New(backend Backend, logger *zap.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
	}
}

// Backend returns the underlying medium.
func (s *Store) Backend() Backend {
	return s.backend
}

// Put serializes draft and stores it under (reportType, id), overwriting any
// previous value. The stored record carries reportType and id.
func (s *Store) Put(ctx context.Context, reportType, id string, draft *entity.Draft) error {
	key := entity.Key(reportType, id)
	if id == "" {
		return &entity.PersistenceError{Op: "put", Key: key, Err: entity.ErrNoDraftID}
	}

	record := draft.Clone()
	record.ID = id
	record.ReportType = reportType

	data, err := json.Marshal(record)
	if err != nil {
		return &entity.PersistenceError{Op: "put", Key: key, Err: fmt.Errorf("failed to encode draft: %w", err)}
	}

	err = s.observe("put", func() error {
		return s.backend.Set(ctx, key, data)
	})
	if err != nil {
		s.logger.Error("Failed to store draft",
			zap.String("key", key),
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return &entity.PersistenceError{Op: "put", Key: key, Err: err}
	}

	s.logger.Debug("Draft stored",
		zap.String("key", key),
		zap.Int("size", len(data)))
	return nil
}

// Get returns the draft stored under (reportType, id), or nil when there is
// none. A missing key is never an error.
func (s *Store) Get(ctx context.Context, reportType, id string) (*entity.Draft, error) {
	key := entity.Key(reportType, id)

	var (
		data []byte
		ok   bool
	)
	err := s.observe("get", func() error {
		var err error
		data, ok, err = s.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to read draft",
			zap.String("key", key),
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return nil, &entity.PersistenceError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, nil
	}

	draft, err := decode(reportType, id, data)
	if err != nil {
		return nil, &entity.PersistenceError{Op: "get", Key: key, Err: err}
	}
	return draft, nil
}

// Remove deletes the draft under (reportType, id); absent keys are a no-op.
func (s *Store) Remove(ctx context.Context, reportType, id string) error {
	key := entity.Key(reportType, id)
	err := s.observe("remove", func() error {
		return s.backend.Delete(ctx, key)
	})
	if err != nil {
		s.logger.Error("Failed to remove draft",
			zap.String("key", key),
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return &entity.PersistenceError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// ListAll returns every draft of reportType, newest savedAt first. Drafts
// without savedAt come last; ties are ordered by id. Entries that cannot be
// decoded are skipped.
func (s *Store) ListAll(ctx context.Context, reportType string) ([]Entry, error) {
	prefix := entity.KeyPrefix(reportType)

	var kvs []KV
	err := s.observe("list", func() error {
		var err error
		kvs, err = s.backend.Scan(ctx, prefix)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to list drafts",
			zap.String("prefix", prefix),
			zap.String("backend", s.backend.Name()),
			zap.Error(err))
		return nil, &entity.PersistenceError{Op: "list", Key: prefix, Err: err}
	}

	entries := make([]Entry, 0, len(kvs))
	for _, kv := range kvs {
		id, ok := entity.IDFromKey(reportType, kv.Key)
		if !ok {
			continue
		}
		draft, err := decode(reportType, id, kv.Value)
		if err != nil {
			s.logger.Warn("Skipping unreadable draft",
				zap.String("key", kv.Key),
				zap.Error(err))
			continue
		}
		entries = append(entries, Entry{ID: id, Draft: draft})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Draft.SavedTime(), entries[j].Draft.SavedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *Store) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.DraftStoreDuration.WithLabelValues(s.backend.Name(), op).Observe(time.Since(start).Seconds())
	metrics.DraftStoreOps.WithLabelValues(s.backend.Name(), op, metrics.Result(err)).Inc()
	return err
}

func decode(reportType, id string, data []byte) (*entity.Draft, error) {
	var draft entity.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	if draft.ID == "" {
		draft.ID = id
	}
	if draft.ReportType == "" {
		draft.ReportType = reportType
	}
	return &draft, nil
}
