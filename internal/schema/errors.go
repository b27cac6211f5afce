package schema

import "errors"

var (
	// ErrInvalidRange is returned when a leaf range has min > max or a non-finite bound,
	// or when a supplied value falls outside its range.
	ErrInvalidRange = errors.New("invalid parameter range")

	// ErrNestingTooDeep is returned when a group contains another group.
	ErrNestingTooDeep = errors.New("parameter schema nesting deeper than one level")

	// ErrEmptySchema is returned when a schema (or one of its groups) has no parameters.
	ErrEmptySchema = errors.New("parameter schema is empty")

	// ErrDuplicateName is returned when two entries flatten to the same composite name.
	ErrDuplicateName = errors.New("duplicate parameter name")

	// ErrMalformedSchema is returned when a schema document cannot be interpreted.
	ErrMalformedSchema = errors.New("malformed parameter schema")
)
