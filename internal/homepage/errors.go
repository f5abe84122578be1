package homepage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a homepage resolution failure.
type ErrorKind string

const (
	// KindNoHomepage means neither the cache nor search produced a homepage.
	KindNoHomepage ErrorKind = "no_homepage_found"
	// KindStore means the homepage cache could not be read. Nothing is known
	// about whether the council has a homepage.
	KindStore ErrorKind = "homepage_store_error"
)

// ResolveError is returned when a council homepage cannot be determined.
type ResolveError struct {
	Kind    ErrorKind
	Council string
	Queries []string
	Cause   error // last search failure or the store error
}

func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s for council %q: %v", e.Kind, e.Council, e.Cause)
	}
	return fmt.Sprintf("%s for council %q", e.Kind, e.Council)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// IsNoHomepage reports whether err says the council has no discoverable
// homepage, as opposed to the lookup itself failing.
func IsNoHomepage(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Kind == KindNoHomepage
}
