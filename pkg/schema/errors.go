package schema

import "errors"

var (
	// ErrUnknownField is returned when a mutation names a field the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrReadOnlyField is returned when a mutation targets a read-only field.
	ErrReadOnlyField = errors.New("field is read-only")
)
