package script

import (
	"errors"
	"fmt"
)

// ErrLabelNotFound and ErrSaveMarkNotFound are returned by the cursor seeks.
var (
	ErrLabelNotFound    = errors.New("label not found")
	ErrSaveMarkNotFound = errors.New("save mark not found")
)

// ParseError reports a malformed script file with its source position.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsParseError returns true if err wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
