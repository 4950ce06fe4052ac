package runtime

import (
	"errors"
	"fmt"
)

// ErrHostClosed is returned when an operation is attempted on a closed
// host.
var ErrHostClosed = errors.New("lua host is closed")

// SourceError describes a failure to parse or compile a script. Line and
// Column are 1-based and zero when unknown.
type SourceError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

// Error returns a formatted error message including position information
// when available.
func (e *SourceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}
