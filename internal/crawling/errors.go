// Package crawling locates register-of-interest pages on council websites.
package crawling

import "fmt"

// CrawlError records a page the crawl could not use. Depth 0 is the homepage.
type CrawlError struct {
	URL   string
	Depth int
	Cause error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl %s (depth %d): %v", e.URL, e.Depth, e.Cause)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// URLError reports a page or link URL that cannot be crawled: unparseable,
// or missing a scheme or host.
type URLError struct {
	URL   string
	Cause error
}

func (e *URLError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid url %q: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("invalid url %q: scheme and host required", e.URL)
}

func (e *URLError) Unwrap() error {
	return e.Cause
}
