// Package homepage finds and caches each council's official website.
package homepage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/council-registers/internal/search"
	"github.com/jonathan/council-registers/internal/types"
)

// DefaultSearchLimit is the number of results inspected per query.
const DefaultSearchLimit = 10

// Store is the homepage cache.
type Store interface {
	GetCouncilHomepage(ctx context.Context, council string) (*types.CouncilHomepage, error)
	UpsertCouncilHomepage(ctx context.Context, council, homepageURL string) error
}

// Options configures a Resolver.
type Options struct {
	Selector    Selector
	SearchLimit int
	Logger      *slog.Logger
}

// Resolver returns a council's homepage from the cache or by searching.
type Resolver struct {
	store    Store
	provider search.Provider
	selector Selector
	limit    int
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil options value uses DomainSelector.
func NewResolver(store Store, provider search.Provider, opts *Options) *Resolver {
	r := &Resolver{
		store:    store,
		provider: provider,
		selector: DomainSelector{},
		limit:    DefaultSearchLimit,
		logger:   slog.Default(),
	}
	if opts != nil {
		if opts.Selector != nil {
			r.selector = opts.Selector
		}
		if opts.SearchLimit > 0 {
			r.limit = opts.SearchLimit
		}
		if opts.Logger != nil {
			r.logger = opts.Logger
		}
	}
	return r
}

// Resolve returns the homepage URL (scheme://host) for council. A cached row is
// returned without searching unless refresh is set.
func (r *Resolver) Resolve(ctx context.Context, council string, refresh bool) (string, error) {
	council = strings.TrimSpace(council)
	if council == "" {
		return "", &ResolveError{Kind: KindNoHomepage, Council: council, Cause: fmt.Errorf("empty council name")}
	}

	if !refresh {
		cached, err := r.store.GetCouncilHomepage(ctx, council)
		if err != nil {
			return "", &ResolveError{Kind: KindStore, Council: council, Cause: fmt.Errorf("failed to read cached homepage: %w", err)}
		}
		if cached != nil && cached.HomepageURL != "" {
			r.logger.Debug("homepage cache hit", "council", council, "url", cached.HomepageURL)
			return cached.HomepageURL, nil
		}
	}

	queries := Queries(council)
	var lastErr error
	for _, q := range queries {
		results, err := r.provider.Search(ctx, q, r.limit)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.logger.Warn("homepage search failed", "council", council, "query", q, "error", err)
			lastErr = err
			continue
		}

		homepageURL, ok := r.selector.Select(council, results)
		if !ok {
			continue
		}

		if err := r.store.UpsertCouncilHomepage(ctx, council, homepageURL); err != nil {
			r.logger.Warn("failed to cache homepage", "council", council, "url", homepageURL, "error", err)
		}
		r.logger.Info("resolved council homepage", "council", council, "url", homepageURL)
		return homepageURL, nil
	}

	return "", &ResolveError{Kind: KindNoHomepage, Council: council, Queries: queries, Cause: lastErr}
}

// Queries returns the search queries tried for council, in order.
func Queries(council string) []string {
	name := strings.TrimSpace(council)
	if !strings.HasSuffix(strings.ToLower(name), "council") {
		name += " council"
	}
	return []string{name + " official website", name}
}
