package structured

import (
	"errors"
	"fmt"
)

// Error codes for structured query failures.
const (
	// ErrCodeUnexpectedRoot: the document element is not "request".
	ErrCodeUnexpectedRoot = "UNEXPECTED_ROOT"

	// ErrCodeUnknownElement: an unrecognised tag where a collector or
	// selection was expected.
	ErrCodeUnknownElement = "UNKNOWN_ELEMENT"

	// ErrCodeTypeMismatch: a value outside a selection, a value whose type
	// differs from the selection's, or too many values or field markers.
	ErrCodeTypeMismatch = "TYPE_MISMATCH"

	// ErrCodeMalformed: the document is not well-formed XML.
	ErrCodeMalformed = "MALFORMED"
)

// ParseError is a fatal structured query error.
//
// Offset is the byte offset in the input just after the offending token.
// The builder may hold a partial query when Parse fails; callers discard it.
type ParseError struct {
	Code    string
	Element string
	Offset  int64
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("%s: <%s> at offset %d: %s", e.Code, e.Element, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Code, e.Offset, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a ParseError with the given code.
func IsParseError(err error, code string) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
