package schema

import "errors"

var (
	// Definition errors
	ErrInvalidSchema = errors.New("invalid report schema")
	ErrDuplicateName = errors.New("duplicate name in report schema")

	// Registry errors
	ErrAlreadyRegistered = errors.New("report type already registered")
	ErrNotRegistered     = errors.New("report type not registered")

	// Definition file errors
	ErrDefinitionInvalid = errors.New("schema definition does not match definition format")
)
