package fetch

import "fmt"

// Kind classifies a fetch failure.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection_error"
	KindHTTP       Kind = "http_error"
	KindTooLarge   Kind = "too_large"
	KindInvalidURL Kind = "invalid_url"
)

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Kind       Kind
	StatusCode int // set for http_error
	Cause      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Kind == KindHTTP && e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP status %d)", e.Kind, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, msg, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether another attempt could succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection:
		return true
	case KindHTTP:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// Details renders the error for an audit row.
func (e *Error) Details() string {
	if e.Kind == KindHTTP && e.StatusCode != 0 {
		return fmt.Sprintf("url=%s kind=%s status=%d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("url=%s kind=%s", e.URL, e.Kind)
}
