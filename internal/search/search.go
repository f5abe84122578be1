// Package search wraps the web search engines used to discover council homepages
// and register pages.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultLimit is the number of results requested when a caller passes zero.
const DefaultLimit = 5

// ErrNoProvider is returned by None.
var ErrNoProvider = errors.New("no search provider configured")

// Result is one ranked search hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Provider runs a web search and returns results in rank order.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Error wraps a provider failure with the query that caused it.
type Error struct {
	Provider string
	Query    string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s search failed for %q: %v", e.Provider, e.Query, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// None is the provider used when search is not configured.
type None struct{}

func (None) Name() string { return "none" }

func (None) Search(_ context.Context, query string, _ int) ([]Result, error) {
	return nil, &Error{Provider: "none", Query: query, Cause: ErrNoProvider}
}

// dedupe drops empty and repeated URLs, keeping rank order.
func dedupe(results []Result, limit int) []Result {
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, Result{URL: u, Title: strings.TrimSpace(r.Title)})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
