package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Form engine errors
	ErrUnknownSection    = errors.New("unknown section")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownScope      = errors.New("unknown field scope")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrNotArrayField     = errors.New("field is not a dynamic array")
	ErrNoDraftID         = errors.New("draft has no id")
	ErrNotImage          = errors.New("file is not an image")
	ErrUnknownReportType = errors.New("unknown report type")
)

// FieldError names one invalid field.
type FieldError struct {
	Scope   string `json:"scope"`
	Field   string `json:"field"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message"`
}

// ValidationError lists required fields left empty at submit time.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// PersistenceError wraps a draft storage read or write failure.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NetworkError wraps a failed submission call.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError reports that no draft exists under (ReportType, ID).
type NotFoundError struct {
	ReportType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("draft %s not found", Key(e.ReportType, e.ID))
}

// ConflictError reports a stale version on a conditional write.
type ConflictError struct {
	Key      string
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("draft %s: version %d does not match stored version %d", e.Key, e.Expected, e.Actual)
}
