package extract

import "fmt"

// ErrorKind classifies an extraction failure.
type ErrorKind string

const (
	KindUnsupportedType ErrorKind = "unsupported_type"
	KindUnparseable     ErrorKind = "unparseable"
)

// Error is returned when a document cannot be turned into text.
type Error struct {
	Kind        ErrorKind
	ContentType string // declared Content-Type, may be empty
	Detected    string // sniffed MIME type
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract %s (declared %q, detected %q): %v", e.Kind, e.ContentType, e.Detected, e.Cause)
	}
	return fmt.Sprintf("extract %s (declared %q, detected %q)", e.Kind, e.ContentType, e.Detected)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
