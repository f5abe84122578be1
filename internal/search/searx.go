package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SearX queries a SearXNG instance through its JSON API.
// The instance must have the json output format enabled.
type SearX struct {
	client *resty.Client
}

type searxResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"results"`
}

// NewSearX creates a provider for the instance at baseURL.
func NewSearX(baseURL string, timeout time.Duration) *SearX {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)
	return &SearX{client: client}
}

func (s *SearX) Name() string { return "searxng" }

// Search returns up to limit results for query.
func (s *SearX) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var body searxResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"format":   "json",
			"language": "en-GB",
		}).
		SetResult(&body).
		Get("/search")
	if err != nil {
		return nil, &Error{Provider: s.Name(), Query: query, Cause: err}
	}
	if resp.IsError() {
		return nil, &Error{Provider: s.Name(), Query: query, Cause: fmt.Errorf("HTTP status %d", resp.StatusCode())}
	}

	results := make([]Result, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, Result{URL: r.URL, Title: r.Title})
	}
	return dedupe(results, limit), nil
}
