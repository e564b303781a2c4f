// Package conduiterr defines the error kinds that cross pipeline boundaries.
//
// Every error the runtime surfaces to a caller (CLI exit code, HTTP
// response, stderr capture) carries a Kind so drivers can branch on it
// without string matching. Errors are wrapped with fmt.Errorf("...: %w", err)
// while keeping a stable sentinel underneath via errors.As.
package conduiterr

import "fmt"

// Kind classifies an Error for exit-code and policy decisions.
type Kind string

const (
	KindParse          Kind = "ParseError"
	KindUnknownElement Kind = "UnknownElement"
	KindSchemaMismatch Kind = "SchemaMismatch"
	KindTemplate       Kind = "TemplateError"
	KindExpression     Kind = "ExpressionError"
	KindElementInit    Kind = "ElementInitError"
	KindItem           Kind = "ItemError"
	KindResource       Kind = "ResourceError"
	KindCancelled      Kind = "Cancelled"
	KindInternal       Kind = "InternalError"
)

// Recoverable reports whether a run with stop_on_error=false may skip
// past an error of this kind and keep processing later items. Parse,
// schema, and init failures always abort regardless of policy.
func (k Kind) Recoverable() bool {
	switch k {
	case KindItem, KindResource:
		return true
	default:
		return false
	}
}

// Error is the structured error shape carried across pipeline boundaries.
type Error struct {
	Kind       Kind
	Message    string
	StageIndex *int
	StageID    string
	ItemIndex  *int64
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StageID != "" {
		msg = fmt.Sprintf("%s (stage %s)", msg, e.StageID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error without losing it.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithStage annotates the error with the stage that produced it.
func (e *Error) WithStage(index int, id string) *Error {
	e.StageIndex = &index
	e.StageID = id
	return e
}

// WithItem annotates the error with the input item index that produced it.
func (e *Error) WithItem(index int64) *Error {
	e.ItemIndex = &index
	return e
}

// ExitCode maps a Kind to the CLI exit code from: 0 success, 1
// pipeline failure, 2 invalid CLI, 3 unknown element, 4 schema
// mismatch. Code 2 is reserved for cobra's own flag-parsing failures,
// raised before a *Error ever exists, so it has no case here —
// Cancelled and every other kind fall through to 1, a pipeline failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *Error
	if As(err, &ce) {
		switch ce.Kind {
		case KindUnknownElement:
			return 3
		case KindSchemaMismatch:
			return 4
		default:
			return 1
		}
	}
	return 1
}

// As is a thin wrapper over errors.As kept local so callers of this
// package never need a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
