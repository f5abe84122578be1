package crawling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/council-registers/internal/extract"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/search"
)

// Source records which strategy produced a candidate.
type Source string

const (
	SourceDemocracy Source = "democracy"
	SourceCrawl     Source = "crawl"
	SourceSearch    Source = "search"
	SourceFollowUp  Source = "followup"
)

const (
	DefaultMaxDepth      = 2
	DefaultMaxPages      = 50
	DefaultSearchResults = 5
)

// Candidate is a URL that may hold a councillor's register.
type Candidate struct {
	URL    string
	Key    string // NormalizeURL(URL)
	Source Source
	Depth  int
}

// Options configures a Locator.
type Options struct {
	UseCrawl      bool
	UseSearch     bool
	MaxDepth      int
	MaxPages      int
	SearchResults int
	Logger        *slog.Logger
}

// DefaultOptions enables both strategies with the default bounds.
func DefaultOptions() *Options {
	return &Options{
		UseCrawl:      true,
		UseSearch:     true,
		MaxDepth:      DefaultMaxDepth,
		MaxPages:      DefaultMaxPages,
		SearchResults: DefaultSearchResults,
	}
}

// Locator finds register candidates by crawling a council homepage and, when
// that yields nothing, by searching the web.
type Locator struct {
	fetcher  fetch.Getter
	provider search.Provider
	opts     Options
	logger   *slog.Logger
}

// NewLocator creates a Locator. provider may be nil when search is disabled.
func NewLocator(fetcher fetch.Getter, provider search.Provider, opts *Options) *Locator {
	o := DefaultOptions()
	if opts != nil {
		o = opts
	}
	l := &Locator{fetcher: fetcher, provider: provider, opts: *o, logger: o.Logger}
	if l.opts.MaxDepth < 0 {
		l.opts.MaxDepth = 0
	}
	if l.opts.MaxPages <= 0 {
		l.opts.MaxPages = DefaultMaxPages
	}
	if l.opts.SearchResults <= 0 {
		l.opts.SearchResults = DefaultSearchResults
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Locate returns register candidates for a council in rank order: crawl
// candidates in discovery order, then search candidates in engine rank order.
// homepageURL may be empty, in which case only search runs. An empty result is
// a valid outcome.
func (l *Locator) Locate(ctx context.Context, homepageURL, council string) []Candidate {
	var crawled []Candidate
	if l.opts.UseCrawl && homepageURL != "" {
		var err error
		crawled, err = l.crawl(ctx, homepageURL)
		if err != nil {
			l.logger.Warn("homepage crawl failed", "council", council, "error", err)
		}
	}

	var searched []Candidate
	if len(crawled) == 0 && l.opts.UseSearch && l.provider != nil && ctx.Err() == nil {
		searched = l.search(ctx, homepageURL, council)
	}

	return Merge(crawled, searched)
}

// crawl walks the homepage's site with an explicit frontier bounded by MaxDepth
// and MaxPages fetched pages. It returns a *CrawlError when the homepage itself
// cannot be read; failures deeper in the site are only logged.
func (l *Locator) crawl(ctx context.Context, homepageURL string) ([]Candidate, error) {
	seedKey, err := NormalizeURL(homepageURL)
	if err != nil {
		return nil, &CrawlError{URL: homepageURL, Cause: err}
	}

	queue := newFrontier()
	queue.push(homepageURL, seedKey, priorityOther, 0)

	var candidates []Candidate
	var seedErr error
	found := make(map[string]bool)
	pages := 0

	for queue.len() > 0 && pages < l.opts.MaxPages {
		if ctx.Err() != nil {
			break
		}
		item := queue.pop()
		pages++

		res, err := l.fetcher.Fetch(ctx, item.url)
		if err != nil {
			crawlErr := &CrawlError{URL: item.url, Depth: item.depth, Cause: err}
			if item.depth == 0 {
				seedErr = crawlErr
			}
			l.logger.Debug("crawl fetch failed", "error", crawlErr)
			continue
		}
		if extract.Detect(res.Body, res.ContentType) != extract.DocHTML {
			continue
		}

		doc, err := extract.ParseHTML(res.Body)
		if err != nil {
			crawlErr := &CrawlError{URL: item.url, Depth: item.depth, Cause: err}
			if item.depth == 0 {
				seedErr = crawlErr
			}
			l.logger.Debug("crawl parse failed", "error", crawlErr)
			continue
		}
		pageURL := res.FinalURL
		if pageURL == "" {
			pageURL = item.url
		}
		links, err := ExtractLinks(doc, pageURL)
		if err != nil {
			continue
		}

		nextDepth := item.depth + 1
		for _, link := range links {
			key, err := NormalizeURL(link.URL)
			if err != nil {
				continue
			}
			register := IsRegisterLink(link)
			if register && !found[key] {
				found[key] = true
				candidates = append(candidates, Candidate{URL: link.URL, Key: key, Source: SourceCrawl, Depth: nextDepth})
			}

			if nextDepth > l.opts.MaxDepth || IsDocumentLink(link.URL) || !SameSite(link.URL, homepageURL) {
				continue
			}
			priority := priorityOther
			if register {
				priority = priorityRegister
			}
			queue.push(link.URL, key, priority, nextDepth)
		}
	}

	l.logger.Debug("crawl finished", "homepage", homepageURL, "pages", pages, "candidates", len(candidates))
	return candidates, seedErr
}

// search runs the fallback query, restricted to the homepage's site when known.
func (l *Locator) search(ctx context.Context, homepageURL, council string) []Candidate {
	query := SearchQuery(council)
	domain := ""
	if homepageURL != "" {
		domain = RegistrableDomain(homepageURL)
	}
	if domain != "" {
		query = fmt.Sprintf("%s site:%s", query, domain)
	}

	results, err := l.provider.Search(ctx, query, l.opts.SearchResults)
	if err != nil {
		l.logger.Warn("register search failed", "council", council, "query", query, "error", err)
		return nil
	}

	var candidates []Candidate
	for _, r := range results {
		if domain != "" && RegistrableDomain(r.URL) != domain {
			continue
		}
		key, err := NormalizeURL(r.URL)
		if err != nil {
			continue
		}
		candidates = append(candidates, Candidate{URL: r.URL, Key: key, Source: SourceSearch})
		if len(candidates) == l.opts.SearchResults {
			break
		}
	}
	return candidates
}

// SearchQuery is the fallback query for a council's register.
func SearchQuery(council string) string {
	name := strings.TrimSpace(council)
	if !strings.HasSuffix(strings.ToLower(name), "council") {
		name += " council"
	}
	return name + " register of interests"
}

// Merge concatenates candidate lists in the given rank order, dropping any
// candidate whose key was already seen.
func Merge(lists ...[]Candidate) []Candidate {
	seen := make(map[string]bool)
	out := make([]Candidate, 0)
	for _, list := range lists {
		for _, c := range list {
			if c.Key == "" {
				key, err := NormalizeURL(c.URL)
				if err != nil {
					continue
				}
				c.Key = key
			}
			if seen[c.Key] {
				continue
			}
			seen[c.Key] = true
			out = append(out, c)
		}
	}
	return out
}
