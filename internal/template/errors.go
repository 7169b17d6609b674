package template

import "errors"

// Domain-specific errors for template evaluation.
var (
	// ErrTemplate marks a template that could not be parsed or evaluated.
	ErrTemplate = errors.New("template: evaluation failed")

	// ErrUnknownEntity is returned when a referenced entity has no state.
	ErrUnknownEntity = errors.New("template: unknown entity")

	// ErrUnavailable is returned when a referenced entity is unavailable.
	ErrUnavailable = errors.New("template: entity unavailable")

	// ErrValidation marks a computed value rejected by a validator.
	ErrValidation = errors.New("template: validation failed")

	// ErrAttached is returned when a tracker is attached twice or changed after attaching.
	ErrAttached = errors.New("template: tracker already attached")

	// ErrInvalidAttr is returned for an attribute without name or template.
	ErrInvalidAttr = errors.New("template: invalid attribute")

	// ErrDuplicateAttr is returned when two attributes share a name.
	ErrDuplicateAttr = errors.New("template: duplicate attribute")
)
