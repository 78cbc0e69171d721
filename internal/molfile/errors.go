package molfile

import (
	"errors"
	"fmt"
)

// ErrFormat matches every *FormatError with errors.Is.
var ErrFormat = errors.New("invalid MDL MOL")

// FormatError reports a structural problem in connection-table text. Line is
// 1-based; 0 means the problem is not tied to a single line.
type FormatError struct {
	Line  int
	Field string
	Msg   string
}

func (e *FormatError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("%s: line %d: %s: %s", ErrFormat, e.Line, e.Field, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %s", ErrFormat, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", ErrFormat, e.Msg)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func formatErr(line int, field, format string, args ...any) *FormatError {
	return &FormatError{Line: line, Field: field, Msg: fmt.Sprintf(format, args...)}
}
