// Package apperr defines the error taxonomy shared by every orchestration
// component (§7): InvalidArgument, Unsupported, MisuseError, ProviderError,
// and StorageError. Callers distinguish them with errors.As, never by
// matching error strings.
package apperr

import "fmt"

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindUnsupported     Kind = "unsupported"
	KindMisuse          Kind = "misuse"
	KindProvider        Kind = "provider"
	KindStorage         Kind = "storage"
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by Kind so callers can do errors.Is(err, apperr.InvalidArgument).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func InvalidArgumentf(op, format string, args ...any) error {
	return newf(KindInvalidArgument, op, format, args...)
}

func Unsupportedf(op, format string, args ...any) error {
	return newf(KindUnsupported, op, format, args...)
}

func Misusef(op, format string, args ...any) error {
	return newf(KindMisuse, op, format, args...)
}

func Provider(op string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(KindProvider, op, err)
}

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(KindStorage, op, err)
}

// sentinels for errors.Is comparisons against a bare Kind.
var (
	InvalidArgument = &Error{Kind: KindInvalidArgument}
	Unsupported     = &Error{Kind: KindUnsupported}
	Misuse          = &Error{Kind: KindMisuse}
	ProviderErr     = &Error{Kind: KindProvider}
	StorageErr      = &Error{Kind: KindStorage}
)
