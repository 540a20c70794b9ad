package service

import (
	"context"
	"fmt"

	"github.com/fieldops/field-reports/internal/application/port"
	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/event"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
)

// SchemaRegistry resolves report types
type SchemaRegistry interface {
	Get(reportType string) (*schema.Schema, error)
	List() []*schema.Schema
}

// EngineFactory builds a form engine bound to the draft repository
type EngineFactory func(s *schema.Schema) *form.Engine

// FieldEdit is one SetFieldValue call in wire form
type FieldEdit struct {
	Scope    string `json:"scope" binding:"required"`
	Section  string `json:"section,omitempty"`
	Row      int    `json:"row,omitempty"`
	Field    string `json:"field,omitempty"`
	SubField string `json:"subField,omitempty"`
	Value    string `json:"value"`
}

// DraftSummary is one line of a drafts list
type DraftSummary struct {
	ID         string `json:"id"`
	ReportType string `json:"reportType"`
	Project    string `json:"project"`
	Date       string `json:"date"`
	Inspector  string `json:"inspector"`
	SavedAt    string `json:"savedAt"`
	Version    int    `json:"version"`
	ServerID   string `json:"serverId,omitempty"`
	Photos     int    `json:"photos"`
}

// DraftService manages persisted drafts through the form engine. Mutating
// calls take ifMatch: when positive, the stored version must equal it.
type DraftService interface {
	Schemas() []*schema.Schema
	Schema(reportType string) (*schema.Schema, error)
	Blank(reportType string) (*entity.Draft, error)
	Create(ctx context.Context, reportType string, initial *entity.Draft) (*entity.Draft, error)
	Get(ctx context.Context, reportType, id string) (*entity.Draft, error)
	List(ctx context.Context, reportType string) ([]DraftSummary, error)
	Replace(ctx context.Context, reportType, id string, draft *entity.Draft, ifMatch int) (*entity.Draft, error)
	ApplyEdits(ctx context.Context, reportType, id string, edits []FieldEdit, ifMatch int) (*entity.Draft, error)
	AddSectionRow(ctx context.Context, reportType, id, section string, ifMatch int) (*entity.Draft, int, error)
	RemoveSectionRow(ctx context.Context, reportType, id, section string, index, ifMatch int) (*entity.Draft, bool, error)
	AddArrayItem(ctx context.Context, reportType, id, field string, ifMatch int) (*entity.Draft, int, error)
	RemoveArrayItem(ctx context.Context, reportType, id, field string, index, ifMatch int) (*entity.Draft, error)
	AddPhoto(ctx context.Context, reportType, id string, in form.PhotoInput, ifMatch int) (*entity.Draft, int, error)
	RemovePhoto(ctx context.Context, reportType, id string, index, ifMatch int) (*entity.Draft, error)
	SetSignature(ctx context.Context, reportType, id, dataURI, sigDate string, ifMatch int) (*entity.Draft, error)
	ClearSignature(ctx context.Context, reportType, id string, ifMatch int) (*entity.Draft, error)
	Validate(ctx context.Context, reportType, id string) error
	Delete(ctx context.Context, reportType, id string) error
}

type draftServiceImpl struct {
	registry  SchemaRegistry
	repo      port.DraftRepository
	newEngine EngineFactory
	locks     *KeyLocks
	logger    Logger
	options
}

// NewDraftService creates a new DraftService
func NewDraftService(
	registry SchemaRegistry,
	repo port.DraftRepository,
	newEngine EngineFactory,
	locks *KeyLocks,
	logger Logger,
	opts ...Option,
) DraftService {
	if locks == nil {
		locks = NewKeyLocks()
	}
	return &draftServiceImpl{
		registry:  registry,
		repo:      repo,
		newEngine: newEngine,
		locks:     locks,
		logger:    logger,
		options:   buildOptions(opts),
	}
}

func (s *draftServiceImpl) Schemas() []*schema.Schema {
	return s.registry.List()
}

func (s *draftServiceImpl) Schema(reportType string) (*schema.Schema, error) {
	return resolveSchema(s.registry, reportType)
}

func resolveSchema(registry SchemaRegistry, reportType string) (*schema.Schema, error) {
	sch, err := registry.Get(reportType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownReportType, reportType)
	}
	return sch, nil
}

// Blank returns an unsaved draft seeded from the schema
func (s *draftServiceImpl) Blank(reportType string) (*entity.Draft, error) {
	sch, err := s.Schema(reportType)
	if err != nil {
		return nil, err
	}
	return form.Blank(sch), nil
}

// Create saves a new draft, blank or seeded from initial, under a fresh id
func (s *draftServiceImpl) Create(ctx context.Context, reportType string, initial *entity.Draft) (*entity.Draft, error) {
	sch, err := s.Schema(reportType)
	if err != nil {
		return nil, err
	}

	engine := s.newEngine(sch)
	if initial != nil {
		seed := initial.Clone()
		seed.ID = ""
		seed.Version = 0
		seed.ServerID = ""
		if err := engine.Replace(seed); err != nil {
			return nil, err
		}
	}

	id, err := engine.SaveDraft(ctx)
	if err != nil {
		s.logger.Error("Failed to create draft", "error", err, "report_type", reportType)
		return nil, err
	}

	s.logger.Info("Draft created", "report_type", reportType, "draft_id", id)
	d := engine.Draft()
	s.publish(ctx, event.New(event.TypeDraftCreated, reportType, id).WithVersion(d.Version))
	return d, nil
}

// Get loads a draft or returns *entity.NotFoundError
func (s *draftServiceImpl) Get(ctx context.Context, reportType, id string) (*entity.Draft, error) {
	sch, err := s.Schema(reportType)
	if err != nil {
		return nil, err
	}
	d, err := s.load(ctx, reportType, id)
	if err != nil {
		return nil, err
	}
	return form.Normalize(sch, d), nil
}

func (s *draftServiceImpl) load(ctx context.Context, reportType, id string) (*entity.Draft, error) {
	d, err := s.repo.Get(ctx, reportType, id)
	if err != nil {
		s.logger.Error("Failed to load draft", "error", err, "report_type", reportType, "draft_id", id)
		return nil, err
	}
	if d == nil {
		return nil, &entity.NotFoundError{ReportType: reportType, ID: id}
	}
	return d, nil
}

// List returns the drafts of a report type, newest first
func (s *draftServiceImpl) List(ctx context.Context, reportType string) ([]DraftSummary, error) {
	if _, err := s.Schema(reportType); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListAll(ctx, reportType)
	if err != nil {
		s.logger.Error("Failed to list drafts", "error", err, "report_type", reportType)
		return nil, err
	}

	out := make([]DraftSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, DraftSummary{
			ID:         e.ID,
			ReportType: reportType,
			Project:    e.Draft.Header["project"].Text,
			Date:       e.Draft.Header["date"].Text,
			Inspector:  e.Draft.Header["inspector"].Text,
			SavedAt:    e.Draft.SavedAt,
			Version:    e.Draft.Version,
			ServerID:   e.Draft.ServerID,
			Photos:     len(e.Draft.Photos),
		})
	}
	return out, nil
}

// Replace overwrites the content of an existing draft
func (s *draftServiceImpl) Replace(ctx context.Context, reportType, id string, draft *entity.Draft, ifMatch int) (*entity.Draft, error) {
	return s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		return e.Replace(draft)
	})
}

// ApplyEdits applies field edits in order; the draft is saved only if all succeed
func (s *draftServiceImpl) ApplyEdits(ctx context.Context, reportType, id string, edits []FieldEdit, ifMatch int) (*entity.Draft, error) {
	return s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		for i, edit := range edits {
			scope, err := form.ParseScope(edit.Scope)
			if err != nil {
				return fmt.Errorf("edit %d: %w", i, err)
			}
			path := form.Path{Section: edit.Section, Row: edit.Row, Field: edit.Field, SubField: edit.SubField}
			if err := e.SetFieldValue(scope, path, edit.Value); err != nil {
				return fmt.Errorf("edit %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *draftServiceImpl) AddSectionRow(ctx context.Context, reportType, id, section string, ifMatch int) (*entity.Draft, int, error) {
	var index int
	d, err := s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		var err error
		index, err = e.AddSectionRow(section)
		return err
	})
	return d, index, err
}

func (s *draftServiceImpl) RemoveSectionRow(ctx context.Context, reportType, id, section string, index, ifMatch int) (*entity.Draft, bool, error) {
	var removed bool
	d, err := s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		var err error
		removed, err = e.RemoveSectionRow(section, index)
		return err
	})
	return d, removed, err
}

func (s *draftServiceImpl) AddArrayItem(ctx context.Context, reportType, id, field string, ifMatch int) (*entity.Draft, int, error) {
	var index int
	d, err := s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		var err error
		index, err = e.AddArrayItem(field)
		return err
	})
	return d, index, err
}

func (s *draftServiceImpl) RemoveArrayItem(ctx context.Context, reportType, id, field string, index, ifMatch int) (*entity.Draft, error) {
	return s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		return e.RemoveArrayItem(field, index)
	})
}

func (s *draftServiceImpl) AddPhoto(ctx context.Context, reportType, id string, in form.PhotoInput, ifMatch int) (*entity.Draft, int, error) {
	var index int
	d, err := s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		var err error
		index, err = e.AddPhoto(in)
		return err
	})
	return d, index, err
}

func (s *draftServiceImpl) RemovePhoto(ctx context.Context, reportType, id string, index, ifMatch int) (*entity.Draft, error) {
	return s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		return e.RemovePhoto(index)
	})
}

// SetSignature stores the signature and, when given, its date
func (s *draftServiceImpl) SetSignature(ctx context.Context, reportType, id, dataURI, sigDate string, ifMatch int) (*entity.Draft, error) {
	return s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		if err := e.SetSignature(dataURI); err != nil {
			return err
		}
		if sigDate != "" {
			return e.SetFieldValue(form.ScopeSigDate, form.Path{}, sigDate)
		}
		return nil
	})
}

func (s *draftServiceImpl) ClearSignature(ctx context.Context, reportType, id string, ifMatch int) (*entity.Draft, error) {
	return s.mutate(ctx, reportType, id, ifMatch, func(e *form.Engine) error {
		e.ClearSignature()
		return nil
	})
}

// Validate reports the required fields a stored draft is missing
func (s *draftServiceImpl) Validate(ctx context.Context, reportType, id string) error {
	sch, err := s.Schema(reportType)
	if err != nil {
		return err
	}
	d, err := s.load(ctx, reportType, id)
	if err != nil {
		return err
	}
	return form.Validate(sch, form.Normalize(sch, d))
}

// Delete removes a draft; deleting an absent draft is not an error
func (s *draftServiceImpl) Delete(ctx context.Context, reportType, id string) error {
	sch, err := s.Schema(reportType)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(entity.Key(reportType, id))
	defer unlock()

	engine := s.newEngine(sch)
	engine.Initialize(&entity.Draft{ID: id})
	if err := engine.DeleteDraft(ctx); err != nil {
		return err
	}

	s.logger.Info("Draft deleted", "report_type", reportType, "draft_id", id)
	s.publish(ctx, event.New(event.TypeDraftDeleted, reportType, id))
	return nil
}

// mutate loads a draft under its key lock, applies fn through a form
// engine and saves when fn changed anything.
func (s *draftServiceImpl) mutate(ctx context.Context, reportType, id string, ifMatch int, fn func(e *form.Engine) error) (*entity.Draft, error) {
	sch, err := s.Schema(reportType)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entity.Key(reportType, id))
	defer unlock()

	current, err := s.load(ctx, reportType, id)
	if err != nil {
		return nil, err
	}
	if ifMatch > 0 && current.Version != ifMatch {
		return nil, &entity.ConflictError{Key: entity.Key(reportType, id), Expected: ifMatch, Actual: current.Version}
	}

	engine := s.newEngine(sch)
	engine.Initialize(current)
	if err := fn(engine); err != nil {
		return nil, err
	}

	if !engine.Dirty() {
		return engine.Draft(), nil
	}
	if _, err := engine.SaveDraft(ctx); err != nil {
		return nil, err
	}
	d := engine.Draft()
	s.publish(ctx, event.New(event.TypeDraftSaved, reportType, id).WithVersion(d.Version))
	return d, nil
}
