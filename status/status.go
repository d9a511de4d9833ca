// Package status defines the error surface every fallible tilestore
// operation returns: a tagged category plus a human-readable message.
package status

import "fmt"

// Category tags a Status with a coarse failure class so callers can
// dispatch on it with errors.Is instead of parsing messages.
type Category uint8

const (
	// CategoryOK is never attached to a returned error; it exists so the
	// zero value of Category is distinguishable from a real failure.
	CategoryOK Category = iota
	CategoryVFSError
	CategoryIOError
	CategoryS3Error
	CategoryHDFSError
	CategorySchemaError
	CategoryQueryError
	CategoryConfigError
	CategoryOOM
	CategoryUnsupportedScheme
	CategoryBackendDisabled
	CategoryCrossBackendMove
	CategoryParallelReadError
)

func (c Category) String() string {
	switch c {
	case CategoryOK:
		return "Ok"
	case CategoryVFSError:
		return "VFSError"
	case CategoryIOError:
		return "IOError"
	case CategoryS3Error:
		return "S3Error"
	case CategoryHDFSError:
		return "HDFSError"
	case CategorySchemaError:
		return "SchemaError"
	case CategoryQueryError:
		return "QueryError"
	case CategoryConfigError:
		return "ConfigError"
	case CategoryOOM:
		return "OOM"
	case CategoryUnsupportedScheme:
		return "UnsupportedScheme"
	case CategoryBackendDisabled:
		return "BackendDisabled"
	case CategoryCrossBackendMove:
		return "CrossBackendMove"
	case CategoryParallelReadError:
		return "ParallelReadError"
	default:
		return "Unknown"
	}
}

// Status is the concrete error type returned by every fallible operation
// in tilestore. It carries a Category for programmatic dispatch and a
// Message for humans; the original failure (if any) is reachable via
// errors.Unwrap.
type Status struct {
	Category Category
	Message  string
	cause    error
}

// Error implements the error interface.
func (s *Status) Error() string {
	if s.cause != nil {
		return fmt.Sprintf("%s: %s: %v", s.Category, s.Message, s.cause)
	}
	return fmt.Sprintf("%s: %s", s.Category, s.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (s *Status) Unwrap() error {
	return s.cause
}

// Is reports whether target is a sentinel for the same Category, or a
// *Status with the same Category. This lets callers write
// errors.Is(err, status.ErrUnsupportedScheme) regardless of how the
// Status was constructed.
func (s *Status) Is(target error) bool {
	if sentinel, ok := target.(categorySentinel); ok {
		return s.Category == sentinel.category
	}
	var other *Status
	if ok := asStatus(target, &other); ok {
		return other.Category == s.Category
	}
	return false
}

func asStatus(err error, out **Status) bool {
	s, ok := err.(*Status)
	if !ok {
		return false
	}
	*out = s
	return true
}

// New creates a Status with no wrapped cause.
func New(category Category, message string) *Status {
	return &Status{Category: category, Message: message}
}

// Wrap creates a Status that wraps an underlying error.
func Wrap(category Category, message string, cause error) *Status {
	return &Status{Category: category, Message: message, cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(category Category, cause error, format string, args ...any) *Status {
	return &Status{Category: category, Message: fmt.Sprintf(format, args...), cause: cause}
}

// categorySentinel is a lightweight error used only as an errors.Is target;
// it never surfaces as the return value of an operation.
type categorySentinel struct {
	category Category
}

func (c categorySentinel) Error() string { return c.category.String() }

// Sentinel category errors. Use with errors.Is(err, status.ErrIOError) etc.
var (
	ErrVFSError          error = categorySentinel{CategoryVFSError}
	ErrIOError           error = categorySentinel{CategoryIOError}
	ErrS3Error           error = categorySentinel{CategoryS3Error}
	ErrHDFSError         error = categorySentinel{CategoryHDFSError}
	ErrSchemaError       error = categorySentinel{CategorySchemaError}
	ErrQueryError        error = categorySentinel{CategoryQueryError}
	ErrConfigError       error = categorySentinel{CategoryConfigError}
	ErrOOM               error = categorySentinel{CategoryOOM}
	ErrUnsupportedScheme error = categorySentinel{CategoryUnsupportedScheme}
	ErrBackendDisabled   error = categorySentinel{CategoryBackendDisabled}
	ErrCrossBackendMove  error = categorySentinel{CategoryCrossBackendMove}
	ErrParallelReadError error = categorySentinel{CategoryParallelReadError}
)
