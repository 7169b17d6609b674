package template

// Kind tags the outcome of an evaluation.
type Kind int

// Result kinds.
const (
	KindOK Kind = iota
	KindTemplateError
	KindValidationError
)

// String returns the kind name used in logs and the API.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindTemplateError:
		return "template_error"
	case KindValidationError:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of evaluating one attribute.
//
// For KindValidationError, Value holds the raw value the validator rejected.
type Result struct {
	Kind  Kind
	Value any
	Err   error
}

// OK wraps a successfully evaluated value. A nil value means "no value".
func OK(v any) Result {
	return Result{Kind: KindOK, Value: v}
}

// TemplateError wraps an evaluation failure.
func TemplateError(err error) Result {
	return Result{Kind: KindTemplateError, Err: err}
}

// ValidationError wraps a value rejected by a validator.
func ValidationError(raw any, err error) Result {
	return Result{Kind: KindValidationError, Value: raw, Err: err}
}

// IsOK reports whether the result carries a usable value (possibly nil).
func (r Result) IsOK() bool {
	return r.Kind == KindOK
}
