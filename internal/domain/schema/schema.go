// Package schema declares report types: their header fields, repeating
// sections, summaries and capability flags. A Schema carries everything the
// form engine and the review renderer need, so neither has report-specific
// code paths.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldops/field-reports/internal/domain/entity"
)

// FieldType discriminates how a field is edited and rendered.
type FieldType string

const (
	FieldText         FieldType = "text"
	FieldDate         FieldType = "date"
	FieldNumber       FieldType = "number"
	FieldDropdown     FieldType = "dropdown"
	FieldMultiline    FieldType = "multiline"
	FieldDynamicArray FieldType = "dynamicArray"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldDate, FieldNumber, FieldDropdown, FieldMultiline, FieldDynamicArray:
		return true
	}
	return false
}

// Default header group names used by the review renderer.
const (
	GroupProjectInfo = "Project Info"
	GroupWeather     = "Weather"
)

// FieldSpec describes one input.
type FieldSpec struct {
	Name      string      `json:"name"`
	Label     string      `json:"label"`
	Type      FieldType   `json:"type"`
	Required  bool        `json:"required,omitempty"`
	Options   []string    `json:"options,omitempty"`
	SubFields []FieldSpec `json:"subFields,omitempty"`

	// Group places a header field in a review block; empty means Project Info.
	Group string `json:"group,omitempty"`
}

// DisplayLabel falls back to the field name when no label is set.
func (f FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// HeaderGroup returns the review block of a header field.
func (f FieldSpec) HeaderGroup() string {
	if f.Group == "" {
		return GroupProjectInfo
	}
	return f.Group
}

// BlankValue is the initial value of a field in a fresh draft.
func (f FieldSpec) BlankValue() entity.Value {
	if f.Type == FieldDynamicArray {
		return entity.Array()
	}
	return entity.Scalar("")
}

// BlankItem returns an empty row shaped by the sub-fields of a dynamicArray.
func (f FieldSpec) BlankItem() entity.Row {
	row := make(entity.Row, len(f.SubFields))
	for _, sub := range f.SubFields {
		row[sub.Name] = ""
	}
	return row
}

// SubField looks up a dynamicArray sub-field by name.
func (f FieldSpec) SubField(name string) (FieldSpec, bool) {
	for _, sub := range f.SubFields {
		if sub.Name == name {
			return sub, true
		}
	}
	return FieldSpec{}, false
}

// SectionSpec describes a repeating group of rows.
type SectionSpec struct {
	Name            string      `json:"name"`
	Label           string      `json:"label,omitempty"`
	Fields          []FieldSpec `json:"fields"`
	DropdownOptions []string    `json:"dropdownOptions,omitempty"`

	// DefaultRow must return a fresh row on every call.
	DefaultRow func() entity.Row `json:"-"`
}

// DisplayLabel falls back to the section name when no label is set.
func (s SectionSpec) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// NewRow returns DefaultRow() completed with any section field it omits.
func (s SectionSpec) NewRow() entity.Row {
	var row entity.Row
	if s.DefaultRow != nil {
		row = s.DefaultRow().Clone()
	}
	if row == nil {
		row = make(entity.Row, len(s.Fields))
	}
	for _, f := range s.Fields {
		if _, ok := row[f.Name]; !ok {
			row[f.Name] = ""
		}
	}
	return row
}

// Field looks up a section field by name.
func (s SectionSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// BlankRowFunc builds a DefaultRow that yields every field as "".
func BlankRowFunc(fields ...string) func() entity.Row {
	return func() entity.Row {
		row := make(entity.Row, len(fields))
		for _, f := range fields {
			row[f] = ""
		}
		return row
	}
}

// Schema is the immutable declaration of one report type.
type Schema struct {
	Title             string        `json:"title"`
	ReportType        string        `json:"reportType"`
	HeaderFields      []FieldSpec   `json:"headerFields"`
	DynamicSections   []SectionSpec `json:"dynamicSections"`
	SummaryFields     []FieldSpec   `json:"summaryFields"`
	RequiresSignature bool          `json:"requiresSignature"`
	RequiresPhotos    bool          `json:"requiresPhotos"`
	ReviewPath        string        `json:"reviewPath"`
	EditPath          string        `json:"editPath"`
	DraftsPath        string        `json:"draftsPath"`
}

// HeaderField looks up a header field by name.
func (s *Schema) HeaderField(name string) (FieldSpec, bool) {
	return findField(s.HeaderFields, name)
}

// SummaryField looks up a summary field by name.
func (s *Schema) SummaryField(name string) (FieldSpec, bool) {
	return findField(s.SummaryFields, name)
}

// Section looks up a dynamic section by name.
func (s *Schema) Section(name string) (SectionSpec, bool) {
	for _, sec := range s.DynamicSections {
		if sec.Name == name {
			return sec, true
		}
	}
	return SectionSpec{}, false
}

// HeaderGroups returns header group names in first-appearance order.
func (s *Schema) HeaderGroups() []string {
	var groups []string
	seen := make(map[string]bool)
	for _, f := range s.HeaderFields {
		g := f.HeaderGroup()
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return groups
}

// ReviewURL resolves ReviewPath for a draft id.
func (s *Schema) ReviewURL(id string) string {
	return withID(s.ReviewPath, id)
}

// EditURL resolves EditPath for a draft id; an empty id yields the new-report path.
func (s *Schema) EditURL(id string) string {
	if id == "" {
		return strings.TrimSuffix(strings.TrimSuffix(s.EditPath, ":id"), "/")
	}
	if !strings.Contains(s.EditPath, ":id") {
		return s.EditPath + "?draft=" + id
	}
	return withID(s.EditPath, id)
}

// DraftsURL is the drafts list route of the report type.
func (s *Schema) DraftsURL() string {
	return s.DraftsPath
}

func withID(path, id string) string {
	if strings.Contains(path, ":id") {
		return strings.ReplaceAll(path, ":id", id)
	}
	return strings.TrimSuffix(path, "/") + "/" + id
}

func findField(fields []FieldSpec, name string) (FieldSpec, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// reportTypePattern matches the definition file's reportType pattern.
var reportTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Validate asserts the schema is well formed. It runs once when a schema is
// registered; failures are programming or configuration errors.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.ReportType) == "" {
		return fmt.Errorf("%w: report type is empty", ErrInvalidSchema)
	}
	// underscores are excluded so one type's key prefix never overlaps another's
	if !reportTypePattern.MatchString(s.ReportType) {
		return fmt.Errorf("%w: report type %q must match %s", ErrInvalidSchema, s.ReportType, reportTypePattern)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: %s: title is empty", ErrInvalidSchema, s.ReportType)
	}

	// header and summary share the draft's flat namespace for error reporting
	names := make(map[string]string)
	for _, f := range s.HeaderFields {
		if err := validateField(s.ReportType, "header", f, true); err != nil {
			return err
		}
		if prev, dup := names[f.Name]; dup {
			return fmt.Errorf("%w: %s: field %q declared in %s and header", ErrDuplicateName, s.ReportType, f.Name, prev)
		}
		names[f.Name] = "header"
	}
	for _, f := range s.SummaryFields {
		if err := validateField(s.ReportType, "summary", f, false); err != nil {
			return err
		}
		if prev, dup := names[f.Name]; dup {
			return fmt.Errorf("%w: %s: field %q declared in %s and summary", ErrDuplicateName, s.ReportType, f.Name, prev)
		}
		names[f.Name] = "summary"
	}

	sections := make(map[string]bool)
	for _, sec := range s.DynamicSections {
		if strings.TrimSpace(sec.Name) == "" {
			return fmt.Errorf("%w: %s: section name is empty", ErrInvalidSchema, s.ReportType)
		}
		if sections[sec.Name] {
			return fmt.Errorf("%w: %s: section %q", ErrDuplicateName, s.ReportType, sec.Name)
		}
		sections[sec.Name] = true

		if len(sec.Fields) == 0 {
			return fmt.Errorf("%w: %s: section %q has no fields", ErrInvalidSchema, s.ReportType, sec.Name)
		}
		if err := uniqueNames(s.ReportType, "section "+sec.Name, sec.Fields); err != nil {
			return err
		}
		for _, f := range sec.Fields {
			if err := validateField(s.ReportType, "section "+sec.Name, f, false); err != nil {
				return err
			}
		}
		if sec.DefaultRow == nil {
			return fmt.Errorf("%w: %s: section %q has no default row", ErrInvalidSchema, s.ReportType, sec.Name)
		}
		a, b := sec.DefaultRow(), sec.DefaultRow()
		if a == nil {
			return fmt.Errorf("%w: %s: section %q default row is nil", ErrInvalidSchema, s.ReportType, sec.Name)
		}
		a["\x00shared"] = "x"
		if _, shared := b["\x00shared"]; shared {
			return fmt.Errorf("%w: %s: section %q default row is shared between calls", ErrInvalidSchema, s.ReportType, sec.Name)
		}
	}
	return nil
}

func validateField(reportType, where string, f FieldSpec, allowArray bool) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: %s: %s: field name is empty", ErrInvalidSchema, reportType, where)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %s: %s: field %q has type %q", ErrInvalidSchema, reportType, where, f.Name, f.Type)
	}
	switch f.Type {
	case FieldDropdown:
		if len(f.Options) == 0 {
			return fmt.Errorf("%w: %s: %s: dropdown %q has no options", ErrInvalidSchema, reportType, where, f.Name)
		}
	case FieldDynamicArray:
		if !allowArray {
			return fmt.Errorf("%w: %s: %s: dynamicArray %q is only allowed in the header", ErrInvalidSchema, reportType, where, f.Name)
		}
		if len(f.SubFields) == 0 {
			return fmt.Errorf("%w: %s: %s: dynamicArray %q has no sub-fields", ErrInvalidSchema, reportType, where, f.Name)
		}
		if err := uniqueNames(reportType, where+" "+f.Name, f.SubFields); err != nil {
			return err
		}
		for _, sub := range f.SubFields {
			if err := validateField(reportType, where+" "+f.Name, sub, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func uniqueNames(reportType, where string, fields []FieldSpec) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s: %s: field %q", ErrDuplicateName, reportType, where, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
