package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced while turning a blueprint into a running
// graph wraps exactly one of these, so callers branch with errors.Is.
var (
	ErrSchema         = errors.New("schema error")
	ErrStructural     = errors.New("structural error")
	ErrConfiguration  = errors.New("configuration error")
	ErrReadiness      = errors.New("readiness error")
	ErrTopology       = errors.New("topology error")
	ErrNotImplemented = errors.New("not implemented")
	ErrRuntime        = errors.New("runtime error")
)

// Schemaf reports a payload that does not decode into a blueprint.
func Schemaf(format string, a ...any) error { return kindf(ErrSchema, format, a...) }

// Structuralf reports a violated blueprint invariant.
func Structuralf(format string, a ...any) error { return kindf(ErrStructural, format, a...) }

// Configurationf reports an unusable node configuration.
func Configurationf(format string, a ...any) error {
	return kindf(ErrConfiguration, format, a...)
}

// Topologyf reports a graph that cannot be wired.
func Topologyf(format string, a ...any) error { return kindf(ErrTopology, format, a...) }

// NotImplementedf reports a blueprint feature the compiler does not support.
func NotImplementedf(format string, a ...any) error {
	return kindf(ErrNotImplemented, format, a...)
}

// Runtimef reports a failure while the graph is executing.
func Runtimef(format string, a ...any) error { return kindf(ErrRuntime, format, a...) }

// kindf prefixes the message with the kind and keeps any %w verbs in format
// unwrappable alongside the kind.
func kindf(kind error, format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, a...)...)
}

// Kind returns a short machine-readable name for the kind err wraps, or
// "internal" when it wraps none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrStructural):
		return "structural"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrReadiness):
		return "readiness"
	case errors.Is(err, ErrTopology):
		return "topology"
	case errors.Is(err, ErrNotImplemented):
		return "not-implemented"
	case errors.Is(err, ErrRuntime):
		return "runtime"
	default:
		return "internal"
	}
}

// UserErrorf is a user-facing error.
// This helper exists mostly to avoid linters complaining about errors starting
// with a capitalized letter.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Error wraps an underlying error with a user-facing reason.
//
// Reason is meant to be short and actionable; Err may contain technical details.
// When Err is nil, Error() falls back to Reason.
type Error struct {
	Err    error
	Reason string
}

// Wrap creates an Error with the given underlying error and user-facing reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with the given underlying error and a formatted reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// Reason returns a user-facing sentence for err. Kinded errors get a sentence
// per kind; errs.Error values keep their own reason.
func Reason(err error) string {
	var uerr Error
	if errors.As(err, &uerr) && uerr.Reason != "" {
		return uerr.Reason
	}
	switch Kind(err) {
	case "schema":
		return "The blueprint payload is malformed."
	case "structural":
		return "The blueprint is not a well-formed graph."
	case "configuration":
		return "A node in the blueprint is misconfigured."
	case "readiness":
		return "Workflow build failed: some dependencies are not reachable."
	case "topology":
		return "The blueprint graph cannot be wired."
	case "not-implemented":
		return "The blueprint uses a feature that is not supported yet."
	case "runtime":
		return "The workflow failed while running."
	default:
		return "Unexpected error."
	}
}
