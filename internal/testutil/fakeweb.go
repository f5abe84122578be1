// Package testutil provides an in-process fake web and search engine for tests.
//
// Usage:
//
//	web := testutil.NewFakeWeb()
//	web.HTML("http://sampleton.gov.uk/", `<a href="/register">Register of interests</a>`)
//	web.Status("http://sampleton.gov.uk/missing", http.StatusNotFound)
//	fetcher := fetch.New(&fetch.Options{Transport: web, ...})
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jonathan/council-registers/internal/search"
)

type page struct {
	status      int
	contentType string
	body        []byte
	err         error
}

// FakeWeb is an http.RoundTripper serving canned responses keyed by URL.
// Unknown URLs return 404. It is safe for concurrent use.
type FakeWeb struct {
	mu       sync.Mutex
	pages    map[string]page
	requests map[string]int
}

// NewFakeWeb creates an empty fake web.
func NewFakeWeb() *FakeWeb {
	return &FakeWeb{pages: map[string]page{}, requests: map[string]int{}}
}

// HTML serves body as text/html at url.
func (w *FakeWeb) HTML(url, body string) {
	w.Serve(url, http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// PDF serves body as application/pdf at url.
func (w *FakeWeb) PDF(url string, body []byte) {
	w.Serve(url, http.StatusOK, "application/pdf", body)
}

// Status serves an empty response with the given status at url.
func (w *FakeWeb) Status(url string, status int) {
	w.Serve(url, status, "text/plain", nil)
}

// Fail makes requests to url fail with err at the transport level.
func (w *FakeWeb) Fail(url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[url] = page{err: err}
}

// Serve registers an arbitrary response.
func (w *FakeWeb) Serve(url string, status int, contentType string, body []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[url] = page{status: status, contentType: contentType, body: body}
}

// Requests returns how many times url was requested.
func (w *FakeWeb) Requests(url string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requests[url]
}

// TotalRequests returns the number of requests served.
func (w *FakeWeb) TotalRequests() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, n := range w.requests {
		total += n
	}
	return total
}

// RoundTrip implements http.RoundTripper.
func (w *FakeWeb) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	w.mu.Lock()
	w.requests[url]++
	var p page
	var ok bool
	// tolerate a trailing slash difference
	for _, candidate := range []string{url, strings.TrimSuffix(url, "/"), url + "/"} {
		if p, ok = w.pages[candidate]; ok {
			break
		}
	}
	w.mu.Unlock()

	if ok && p.err != nil {
		return nil, p.err
	}
	if !ok {
		p = page{status: http.StatusNotFound, contentType: "text/plain"}
	}

	header := http.Header{}
	header.Set("Content-Type", p.contentType)
	return &http.Response{
		Status:        http.StatusText(p.status),
		StatusCode:    p.status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(p.body)),
		ContentLength: int64(len(p.body)),
		Request:       req,
	}, nil
}

// FakeSearch is a search.Provider returning canned results per query.
type FakeSearch struct {
	mu      sync.Mutex
	Results map[string][]search.Result
	Err     error
	queries []string
}

// NewFakeSearch creates a provider with no results.
func NewFakeSearch() *FakeSearch {
	return &FakeSearch{Results: map[string][]search.Result{}}
}

// Add registers result URLs for query.
func (s *FakeSearch) Add(query string, urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range urls {
		s.Results[query] = append(s.Results[query], search.Result{URL: u})
	}
}

func (s *FakeSearch) Name() string { return "fake" }

// Search implements search.Provider.
func (s *FakeSearch) Search(_ context.Context, query string, limit int) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.Err != nil {
		return nil, s.Err
	}
	results := s.Results[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Queries returns every query received, in order.
func (s *FakeSearch) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
