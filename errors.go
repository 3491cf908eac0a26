package neoconsole

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures reported by the service.
type ErrorKind int

const (
	// KindInvalidVersion means a version pin did not reduce to a major.minor pair.
	KindInvalidVersion ErrorKind = iota + 1
	// KindQueryFailed means the engine rejected a query or the query could not be run.
	KindQueryFailed
	// KindImportFailed means interchange text could not be parsed or applied.
	KindImportFailed
	// KindServiceStopped means an operation was called after Stop.
	KindServiceStopped
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidVersion:
		return "invalid version"
	case KindQueryFailed:
		return "query failed"
	case KindImportFailed:
		return "import failed"
	case KindServiceStopped:
		return "service stopped"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Each one matches every *Error of the same kind.
var (
	ErrInvalidVersion = &Error{Kind: KindInvalidVersion}
	ErrQueryFailed    = &Error{Kind: KindQueryFailed}
	ErrImportFailed   = &Error{Kind: KindImportFailed}
	ErrServiceStopped = &Error{Kind: KindServiceStopped}
)

// ErrNotAQuery is the cause of a KindQueryFailed error for text that is interchange
// data rather than a query.
var ErrNotAQuery = errors.New("text is not a query")

// Error is the single error type returned by the service. Input holds the offending
// text (the query, the import document or the version string) so callers can show it
// next to the message.
type Error struct {
	Kind  ErrorKind
	Input string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "neoconsole: " + e.Kind.String()
	}
	return fmt.Sprintf("neoconsole: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, input string, err error) *Error {
	return &Error{Kind: kind, Input: input, Err: err}
}
