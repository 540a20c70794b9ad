// Package form holds the form engine: the in-memory edit state of one draft,
// driven entirely by its report schema.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DraftStore is the persistence the engine saves through.
type DraftStore interface {
	Put(ctx context.Context, reportType, id string, draft *entity.Draft) error
	Remove(ctx context.Context, reportType, id string) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for savedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides draft id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithPhotoIngester replaces the default photo ingester.
func WithPhotoIngester(p *PhotoIngester) Option {
	return func(e *Engine) { e.photos = p }
}

// Engine maintains the edit state of one draft. Operations are serialized,
// so a save never observes a half-applied edit.
type Engine struct {
	mu     sync.Mutex
	schema *schema.Schema
	store  DraftStore
	logger *zap.Logger
	photos *PhotoIngester
	now    func() time.Time
	newID  func() (string, error)

	draft *entity.Draft
	dirty bool
}

// NewEngine creates an engine seeded with a blank draft.
func NewEngine(s *schema.Schema, store DraftStore, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		schema: s,
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  newDraftID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.photos == nil {
		e.photos = NewPhotoIngester(0, logger)
	}
	e.draft = Blank(s)
	return e
}

// newDraftID returns a time-ordered UUID so ids sort by creation.
func newDraftID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate draft id: %w", err)
	}
	return id.String(), nil
}

// Initialize seeds the state from existing, or from a blank draft when
// existing is nil. The engine keeps its own copy.
func (e *Engine) Initialize(existing *entity.Draft) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing == nil {
		e.draft = Blank(e.schema)
	} else {
		e.draft = Normalize(e.schema, existing)
		e.draft.ReportType = e.schema.ReportType
	}
	e.dirty = false
}

// Replace swaps in d as edited content while keeping the current id,
// version and server id. Photos and the signature must be data URIs; a
// rejected value leaves the state untouched. Upload markers are kept only
// for photos already on the draft.
func (e *Engine) Replace(d *entity.Draft) error {
	next := Normalize(e.schema, d)
	if err := checkSignature(next.Signature); err != nil {
		return err
	}
	now := e.now()
	for i, photo := range next.Photos {
		accepted, err := e.photos.Accept(photo, now)
		if err != nil {
			return fmt.Errorf("photos[%d]: %w", i, err)
		}
		next.Photos[i] = accepted
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next.ReportType = e.schema.ReportType
	next.ID = e.draft.ID
	next.Version = e.draft.Version
	next.SavedAt = e.draft.SavedAt
	next.ServerID = e.draft.ServerID
	delivered := make(map[string]string, len(e.draft.Photos))
	for _, p := range e.draft.Photos {
		if p.UploadedTo != "" {
			delivered[p.DataURI] = p.UploadedTo
		}
	}
	for i := range next.Photos {
		next.Photos[i].UploadedTo = delivered[next.Photos[i].DataURI]
	}
	e.draft = next
	e.dirty = true
	return nil
}

// Schema returns the schema driving the engine.
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Draft returns a snapshot of the current state.
func (e *Engine) Draft() *entity.Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

// ID returns the draft id, empty until the first save.
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.ID
}

// Dirty reports whether there are edits not yet saved.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// SetFieldValue updates exactly one value.
func (e *Engine) SetFieldValue(scope Scope, path Path, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch scope {
	case ScopeHeader:
		if err := e.setHeader(path, value); err != nil {
			return err
		}
	case ScopeSectionRow:
		if err := e.setCell(path, value); err != nil {
			return err
		}
	case ScopeSummary:
		if _, ok := e.schema.SummaryField(path.Field); !ok {
			return fmt.Errorf("%w: summary %q", entity.ErrUnknownField, path.Field)
		}
		e.draft.Summaries[path.Field] = entity.Scalar(value)
	case ScopePreparedBy:
		e.draft.PreparedBy = value
	case ScopeSignature:
		e.draft.Signature = value
	case ScopeSigDate:
		e.draft.SigDate = value
	default:
		return fmt.Errorf("%w: %q", entity.ErrUnknownScope, scope)
	}

	e.dirty = true
	return nil
}

func (e *Engine) setHeader(path Path, value string) error {
	f, ok := e.schema.HeaderField(path.Field)
	if !ok {
		return fmt.Errorf("%w: header %q", entity.ErrUnknownField, path.Field)
	}

	if f.Type != schema.FieldDynamicArray {
		if path.SubField != "" {
			return fmt.Errorf("%w: %q", entity.ErrNotArrayField, path.Field)
		}
		e.draft.Header[f.Name] = entity.Scalar(value)
		return nil
	}

	if path.SubField == "" {
		return fmt.Errorf("%w: %q", ErrSubFieldPath, path.Field)
	}
	if _, ok := f.SubField(path.SubField); !ok {
		return fmt.Errorf("%w: %s.%s", entity.ErrUnknownField, path.Field, path.SubField)
	}
	items := e.draft.Header[f.Name].Items
	if path.Row < 0 || path.Row >= len(items) {
		return fmt.Errorf("%w: %s[%d]", entity.ErrIndexOutOfRange, path.Field, path.Row)
	}

	// replace the row so earlier snapshots keep their copy
	row := items[path.Row].Clone()
	row[path.SubField] = value
	items[path.Row] = row
	return nil
}

func (e *Engine) setCell(path Path, value string) error {
	sec, ok := e.schema.Section(path.Section)
	if !ok {
		return fmt.Errorf("%w: %q", entity.ErrUnknownSection, path.Section)
	}
	rows, ok := e.draft.Section(path.Section)
	if !ok {
		return fmt.Errorf("%w: %q", entity.ErrUnknownSection, path.Section)
	}
	if path.Row < 0 || path.Row >= len(rows.Rows) {
		return fmt.Errorf("%w: %s[%d]", entity.ErrIndexOutOfRange, path.Section, path.Row)
	}
	if _, declared := sec.Field(path.Field); !declared {
		if _, present := rows.Rows[path.Row][path.Field]; !present {
			return fmt.Errorf("%w: %s.%s", entity.ErrUnknownField, path.Section, path.Field)
		}
	}

	row := rows.Rows[path.Row].Clone()
	row[path.Field] = value
	rows.Rows[path.Row] = row
	return nil
}

// AddSectionRow appends a default row and returns its index.
func (e *Engine) AddSectionRow(section string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sec, ok := e.schema.Section(section)
	if !ok {
		return 0, fmt.Errorf("%w: %q", entity.ErrUnknownSection, section)
	}
	rows, ok := e.draft.Section(section)
	if !ok {
		return 0, fmt.Errorf("%w: %q", entity.ErrUnknownSection, section)
	}

	rows.Rows = append(rows.Rows, sec.NewRow())
	e.dirty = true
	return len(rows.Rows) - 1, nil
}

// RemoveSectionRow removes the row at index unless it is the last one left.
// It reports whether a row was removed.
func (e *Engine) RemoveSectionRow(section string, index int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.schema.Section(section); !ok {
		return false, fmt.Errorf("%w: %q", entity.ErrUnknownSection, section)
	}
	rows, ok := e.draft.Section(section)
	if !ok {
		return false, fmt.Errorf("%w: %q", entity.ErrUnknownSection, section)
	}
	if index < 0 || index >= len(rows.Rows) {
		return false, fmt.Errorf("%w: %s[%d]", entity.ErrIndexOutOfRange, section, index)
	}
	if len(rows.Rows) <= 1 {
		return false, nil
	}

	kept := make([]entity.Row, 0, len(rows.Rows)-1)
	kept = append(kept, rows.Rows[:index]...)
	kept = append(kept, rows.Rows[index+1:]...)
	rows.Rows = kept
	e.dirty = true
	return true, nil
}

// AddArrayItem appends a blank item to a dynamicArray header field.
func (e *Engine) AddArrayItem(field string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.arrayField(field)
	if err != nil {
		return 0, err
	}
	v := e.draft.Header[f.Name]
	items := append(append([]entity.Row{}, v.Items...), f.BlankItem())
	e.draft.Header[f.Name] = entity.Array(items...)
	e.dirty = true
	return len(items) - 1, nil
}

// RemoveArrayItem removes one item of a dynamicArray header field. Arrays
// may become empty.
func (e *Engine) RemoveArrayItem(field string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.arrayField(field)
	if err != nil {
		return err
	}
	items := e.draft.Header[f.Name].Items
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %s[%d]", entity.ErrIndexOutOfRange, field, index)
	}

	kept := make([]entity.Row, 0, len(items)-1)
	kept = append(kept, items[:index]...)
	kept = append(kept, items[index+1:]...)
	e.draft.Header[f.Name] = entity.Array(kept...)
	e.dirty = true
	return nil
}

func (e *Engine) arrayField(name string) (schema.FieldSpec, error) {
	f, ok := e.schema.HeaderField(name)
	if !ok {
		return schema.FieldSpec{}, fmt.Errorf("%w: header %q", entity.ErrUnknownField, name)
	}
	if f.Type != schema.FieldDynamicArray {
		return schema.FieldSpec{}, fmt.Errorf("%w: %q", entity.ErrNotArrayField, name)
	}
	return f, nil
}

// AddPhoto ingests a captured file and appends it; it returns the new index.
func (e *Engine) AddPhoto(in PhotoInput) (int, error) {
	// decoding and rendering happen outside the lock
	photo, err := e.photos.Ingest(in, e.now())
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft.Photos = append(e.draft.Photos, photo)
	e.dirty = true
	return len(e.draft.Photos) - 1, nil
}

// RemovePhoto removes the photo at index.
func (e *Engine) RemovePhoto(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.draft.Photos) {
		return fmt.Errorf("%w: photos[%d]", entity.ErrIndexOutOfRange, index)
	}
	kept := make([]entity.Photo, 0, len(e.draft.Photos)-1)
	kept = append(kept, e.draft.Photos[:index]...)
	kept = append(kept, e.draft.Photos[index+1:]...)
	e.draft.Photos = kept
	e.dirty = true
	return nil
}

// SetSignature stores a captured signature. An empty value clears it.
func (e *Engine) SetSignature(dataURI string) error {
	if err := checkSignature(dataURI); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft.Signature = dataURI
	e.dirty = true
	return nil
}

func checkSignature(dataURI string) error {
	if dataURI == "" {
		return nil
	}
	if _, _, err := entity.DecodeDataURI(dataURI); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	return nil
}

// ClearSignature removes the signature.
func (e *Engine) ClearSignature() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft.Signature = ""
	e.dirty = true
}

// Validate checks the current state against the schema's required flags.
func (e *Engine) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Validate(e.schema, e.draft)
}

// SaveDraft persists the current state and returns the draft id, assigning
// one on first save. The version advances only when there were edits, so
// repeated saves differ only in savedAt.
func (e *Engine) SaveDraft(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.draft.ID == "" {
		id, err := e.newID()
		if err != nil {
			return "", err
		}
		e.draft.ID = id
	}

	record := e.draft.Clone()
	record.SavedAt = e.now().UTC().Format(entity.SavedAtLayout)
	if e.dirty || record.Version == 0 {
		record.Version++
	}

	if err := e.store.Put(ctx, e.schema.ReportType, record.ID, record); err != nil {
		e.logger.Error("Failed to save draft",
			zap.String("report_type", e.schema.ReportType),
			zap.String("draft_id", record.ID),
			zap.Error(err))
		var perr *entity.PersistenceError
		if !errors.As(err, &perr) {
			err = &entity.PersistenceError{Op: "put", Key: entity.Key(e.schema.ReportType, record.ID), Err: err}
		}
		return "", err
	}

	e.draft = record
	e.dirty = false
	metrics.DraftsSaved.WithLabelValues(e.schema.ReportType).Inc()

	e.logger.Info("Draft saved",
		zap.String("report_type", e.schema.ReportType),
		zap.String("draft_id", record.ID),
		zap.Int("version", record.Version))
	return record.ID, nil
}

// DeleteDraft removes the persisted copy. The in-memory content stays and
// becomes an unsaved new draft.
func (e *Engine) DeleteDraft(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.draft.ID
	if id == "" {
		return entity.ErrNoDraftID
	}

	if err := e.store.Remove(ctx, e.schema.ReportType, id); err != nil {
		e.logger.Error("Failed to delete draft",
			zap.String("report_type", e.schema.ReportType),
			zap.String("draft_id", id),
			zap.Error(err))
		var perr *entity.PersistenceError
		if !errors.As(err, &perr) {
			err = &entity.PersistenceError{Op: "remove", Key: entity.Key(e.schema.ReportType, id), Err: err}
		}
		return err
	}

	e.draft.ID = ""
	e.draft.SavedAt = ""
	e.draft.Version = 0
	e.dirty = true
	metrics.DraftsDeleted.WithLabelValues(e.schema.ReportType).Inc()

	e.logger.Info("Draft deleted",
		zap.String("report_type", e.schema.ReportType),
		zap.String("draft_id", id))
	return nil
}
