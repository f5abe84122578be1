package search

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// googleMaxNum is the largest page size the Custom Search API accepts.
const googleMaxNum = 10

// Google queries a Programmable Search Engine.
type Google struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogle creates a Google provider. Extra client options are appended after the API key.
func NewGoogle(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*Google, error) {
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx}, nil
}

func (g *Google) Name() string { return "google" }

// Search returns up to limit results for query.
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	num := min(limit, googleMaxNum)

	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return nil, &Error{Provider: g.Name(), Query: query, Cause: err}
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{URL: item.Link, Title: item.Title})
	}
	return dedupe(results, limit), nil
}
