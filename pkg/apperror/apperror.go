// Package apperror defines the error taxonomy shared by every engine component.
//
// Each error carries a Kind. Sentinels such as ErrInvalidState match any error of
// the same kind through errors.Is, so callers can branch on the kind without
// caring about the operation or the wrapped cause.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindConfig
	KindExternalDependencyMissing
	KindProcessSpawn
	KindWindowEmbed
	KindUnsupportedPlatform
	KindInvalidState
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindExternalDependencyMissing:
		return "external dependency missing"
	case KindProcessSpawn:
		return "process spawn error"
	case KindWindowEmbed:
		return "window embed error"
	case KindUnsupportedPlatform:
		return "unsupported platform"
	case KindInvalidState:
		return "invalid state"
	case KindBusy:
		return "busy"
	default:
		return "unknown error"
	}
}

// Error is a classified engine error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches bare sentinels of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfig                    = &Error{Kind: KindConfig}
	ErrExternalDependencyMissing = &Error{Kind: KindExternalDependencyMissing}
	ErrProcessSpawn              = &Error{Kind: KindProcessSpawn}
	ErrWindowEmbed               = &Error{Kind: KindWindowEmbed}
	ErrUnsupportedPlatform       = &Error{Kind: KindUnsupportedPlatform}
	ErrInvalidState              = &Error{Kind: KindInvalidState}
	ErrBusy                      = &Error{Kind: KindBusy}
)

// New returns an error of the given kind for op with a formatted cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Config reports a malformed request.
func Config(op, format string, args ...any) *Error {
	return New(KindConfig, op, format, args...)
}

// Missing reports an absent external binary.
func Missing(op string, candidates []string) *Error {
	return New(KindExternalDependencyMissing, op, "none of %v found", candidates)
}

// InvalidState reports an illegal transition.
func InvalidState(op string, from fmt.Stringer) *Error {
	return New(KindInvalidState, op, "not allowed from %s", from)
}

// Unsupported reports an operation the current platform cannot perform.
func Unsupported(op, platform string) *Error {
	return New(KindUnsupportedPlatform, op, "not supported on %s", platform)
}
