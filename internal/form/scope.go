package form

import (
	"fmt"

	"github.com/fieldops/field-reports/internal/domain/entity"
)

// Scope selects which part of the draft an edit targets.
type Scope string

const (
	ScopeHeader     Scope = "header"
	ScopeSectionRow Scope = "section-row"
	ScopeSummary    Scope = "summary"
	ScopePreparedBy Scope = "preparedBy"
	ScopeSignature  Scope = "signature"
	ScopeSigDate    Scope = "sigDate"
)

// ParseScope converts a wire value into a Scope.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeHeader, ScopeSectionRow, ScopeSummary, ScopePreparedBy, ScopeSignature, ScopeSigDate:
		return sc, nil
	}
	return "", fmt.Errorf("%w: %q", entity.ErrUnknownScope, s)
}

// Path addresses a value within a scope.
//
//	header:      Field, or Field+Row+SubField for a dynamicArray cell
//	section-row: Section+Row+Field
//	summary:     Field
//
// The remaining scopes ignore Path.
type Path struct {
	Section  string `json:"section,omitempty"`
	Row      int    `json:"row,omitempty"`
	Field    string `json:"field,omitempty"`
	SubField string `json:"subField,omitempty"`
}

// FieldPath addresses a header or summary field.
func FieldPath(field string) Path {
	return Path{Field: field}
}

// CellPath addresses one cell of a section row.
func CellPath(section string, row int, field string) Path {
	return Path{Section: section, Row: row, Field: field}
}

// ItemPath addresses one sub-field of a dynamicArray item.
func ItemPath(field string, row int, subField string) Path {
	return Path{Field: field, Row: row, SubField: subField}
}
