package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/council-registers/internal/config"
	"github.com/jonathan/council-registers/internal/crawling"
	"github.com/jonathan/council-registers/internal/democracy"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/homepage"
	"github.com/jonathan/council-registers/internal/ratelimit"
	"github.com/jonathan/council-registers/internal/search"
)

// components are the discovery services shared by scrape, resolve and locate.
type components struct {
	fetcher  fetch.Getter
	provider search.Provider
	resolver *homepage.Resolver
	locator  *crawling.Locator
	finder   *democracy.Finder
	renderer *fetch.Renderer
}

func buildComponents(ctx context.Context, c *config.Config, store homepage.Store) (*components, error) {
	logger := slog.Default()
	gate := ratelimit.NewHostGate(c.RequestDelay.Std())

	fetcher := fetch.New(&fetch.Options{
		Timeout:        c.RequestTimeout.Std(),
		MaxRetries:     c.MaxRetries,
		RetryBaseDelay: c.RetryBaseDelay.Std(),
		MaxBodyBytes:   c.MaxBodyBytes,
		Gate:           gate,
		Logger:         logger,
	})
	cached, err := fetch.NewCache(fetcher, fetch.DefaultCacheSize, fetch.DefaultCacheBytes)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(ctx, c)
	if err != nil {
		return nil, err
	}

	comp := &components{
		fetcher:  cached,
		provider: provider,
		resolver: homepage.NewResolver(store, provider, &homepage.Options{Logger: logger}),
		locator: crawling.NewLocator(cached, provider, &crawling.Options{
			UseCrawl:      c.UseHomepageCrawl,
			UseSearch:     c.UseFallbackSearch,
			MaxDepth:      c.CrawlDepth,
			MaxPages:      c.CrawlPages,
			SearchResults: c.SearchResults,
			Logger:        logger,
		}),
	}
	if c.UseDemocracy {
		comp.finder = democracy.NewFinder(cached, logger)
	}
	if c.UseBrowser {
		comp.renderer = &fetch.Renderer{Gate: gate, Logger: logger}
	}
	return comp, nil
}

// buildProvider returns the configured web search provider.
func buildProvider(ctx context.Context, c *config.Config) (search.Provider, error) {
	switch c.Provider() {
	case config.ProviderGoogle:
		g, err := search.NewGoogle(ctx, c.GoogleAPIKey, c.GoogleCSEID)
		if err != nil {
			return nil, fmt.Errorf("failed to create google search provider: %w", err)
		}
		return g, nil
	case config.ProviderSearXNG:
		return search.NewSearX(c.SearXNGURL, c.RequestTimeout.Std()), nil
	default:
		slog.Warn("no search provider configured; homepages must already be cached")
		return search.None{}, nil
	}
}
