package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/council-registers/internal/crawling"
	"github.com/jonathan/council-registers/internal/extract"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/homepage"
	"github.com/jonathan/council-registers/internal/namematch"
	"github.com/jonathan/council-registers/internal/types"
)

// process works out the outcome for one councillor. It returns an error only
// when ctx is cancelled, in which case the partial outcome must be discarded.
func (r *run) process(ctx context.Context, c types.Councillor) (*types.Outcome, error) {
	outcome := &types.Outcome{RunID: r.id, Councillor: c}

	var candidates []crawling.Candidate
	if r.opts.Finder != nil {
		r.emit(StepDemocracy, c, "looking up member index")
		candidates = r.democracyCandidates(ctx, outcome)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	r.emit(StepHomepage, c, "resolving council homepage")
	homepageURL, err := r.homepages.Do(ctx, c.Council, func() (string, error) {
		return r.resolver.Resolve(ctx, c.Council, r.opts.RefreshHomepages)
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		noHomepage := homepage.IsNoHomepage(err)
		if !noHomepage {
			r.logger.Error("council homepage lookup failed", "council", c.Council, "error", err)
		}
		if len(candidates) == 0 {
			if noHomepage {
				outcome.AddAudit(types.IssueNoHomepage, fmt.Sprintf("no homepage found for council %q: %v", c.Council, err))
			} else {
				outcome.AddAudit(types.IssueFetchError, fmt.Sprintf("homepage lookup failed for council %q: %v", c.Council, err))
			}
			return outcome, nil
		}
		if noHomepage {
			r.logger.Warn("no council homepage, using member index candidates only", "council", c.Council, "error", err)
		}
	} else {
		r.emit(StepLocate, c, "locating register pages on "+homepageURL)
		located, _ := r.candidates.Do(ctx, c.Council, func() ([]crawling.Candidate, error) {
			return r.locator.Locate(ctx, homepageURL, c.Council), nil
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		candidates = crawling.Merge(candidates, located)
	}

	if len(candidates) == 0 {
		outcome.AddAudit(types.IssueNoRegisterFound, fmt.Sprintf("no register candidates for council %q", c.Council))
		return outcome, nil
	}

	if err := r.match(ctx, outcome, candidates); err != nil {
		return nil, err
	}
	return outcome, nil
}

// democracyCandidates looks the councillor up in the member index, carries a
// newly found profile URL in the outcome and returns the profile's register links.
func (r *run) democracyCandidates(ctx context.Context, outcome *types.Outcome) []crawling.Candidate {
	c := outcome.Councillor
	res, err := r.opts.Finder.Find(ctx, c)
	if err != nil {
		r.logger.Debug("member index lookup failed", "name", c.Name, "council", c.Council, "error", err)
		if res == nil {
			return nil
		}
	}

	if res.ProfileURL != "" && (c.ProfileURL == nil || *c.ProfileURL != res.ProfileURL) {
		outcome.ProfileURL = res.ProfileURL
		profile := res.ProfileURL
		outcome.Councillor.ProfileURL = &profile
	}
	return res.Candidates
}

// document is a fetched candidate turned into text.
type document struct {
	url         string
	contentType string
	body        []byte
	text        string
	html        *goquery.Document // set for HTML pages
}

// match walks candidates in order until one names the councillor. HTML pages
// that do not match are expanded once into follow-up candidates placed right
// after them.
func (r *run) match(ctx context.Context, outcome *types.Outcome, candidates []crawling.Candidate) error {
	c := outcome.Councillor
	queue := append([]crawling.Candidate(nil), candidates...)
	seen := make(map[string]bool, len(queue))
	for _, cand := range queue {
		seen[cand.Key] = true
	}

	checked := 0
	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cand := queue[i]

		exists, err := r.store.RegisterExists(ctx, c.ID, cand.URL)
		if err != nil {
			r.logger.Warn("failed to check stored register", "url", cand.URL, "error", err)
		}
		if exists {
			outcome.AlreadyStored = true
			return nil
		}

		r.emit(StepFetch, c, cand.URL)
		doc, issue, details := r.read(ctx, cand.URL)
		if err := ctx.Err(); err != nil {
			return err
		}
		if issue != "" {
			outcome.AddAudit(issue, details)
			continue
		}
		checked++

		if namematch.Matches(doc.text, c.Name) {
			register := &types.CouncillorRegister{
				CouncillorID:  c.ID,
				RegisterURL:   cand.URL,
				ContentType:   doc.contentType,
				ExtractedText: doc.text,
			}
			if doc.contentType == extract.DocPDF.MIME() {
				register.RawBytes = doc.body
			}
			outcome.Register = register
			r.logger.Info("stored register", "name", c.Name, "url", cand.URL, "source", cand.Source)
			return nil
		}

		if doc.html != nil && cand.Source != crawling.SourceFollowUp {
			var follow []crawling.Candidate
			for _, f := range crawling.FollowUpLinks(doc.html, doc.url, c.Name) {
				if !seen[f.Key] {
					seen[f.Key] = true
					follow = append(follow, f)
				}
			}
			if len(follow) > 0 {
				r.logger.Debug("following links from register page", "url", cand.URL, "links", len(follow))
				rest := append(follow, queue[i+1:]...)
				queue = append(queue[:i+1], rest...)
			}
		}
	}

	outcome.AddAudit(types.IssueNoNameMatch,
		fmt.Sprintf("%d candidate(s) tried, %d read, none named %q", len(queue), checked, c.Name))
	return nil
}

// read fetches and extracts one candidate. On failure it returns the audit
// issue and details instead of an error.
func (r *run) read(ctx context.Context, rawURL string) (*document, types.IssueType, string) {
	res, err := r.fetcher.Fetch(ctx, rawURL)
	r.opts.Metrics.ObserveFetch(err)
	if err != nil {
		var fe *fetch.Error
		if errors.As(err, &fe) {
			return nil, types.IssueFetchError, fe.Details()
		}
		return nil, types.IssueFetchError, fmt.Sprintf("url=%s error=%v", rawURL, err)
	}

	base := res.FinalURL
	if base == "" {
		base = rawURL
	}
	doc := &document{url: base, body: res.Body}

	kind := extract.Detect(res.Body, res.ContentType)
	switch kind {
	case extract.DocHTML:
		page, err := extract.ParseHTML(res.Body)
		if err != nil {
			return nil, types.IssueParseError, fmt.Sprintf("url=%s kind=%s", rawURL, extract.KindUnparseable)
		}
		doc.html = page
		doc.text = extract.DocumentText(page)
		doc.contentType = kind.MIME()
		r.render(ctx, doc)
	default:
		text, err := extract.Extract(res.Body, res.ContentType)
		if err != nil {
			var ee *extract.Error
			if errors.As(err, &ee) {
				return nil, types.IssueParseError, fmt.Sprintf("url=%s kind=%s content_type=%s", rawURL, ee.Kind, ee.ContentType)
			}
			return nil, types.IssueParseError, fmt.Sprintf("url=%s error=%v", rawURL, err)
		}
		doc.text = text
		doc.contentType = kind.MIME()
	}
	return doc, "", ""
}

// render replaces a thin static page with its browser-rendered version.
func (r *run) render(ctx context.Context, doc *document) {
	if r.opts.Renderer == nil || !fetch.ShouldRender(doc.text) {
		return
	}
	rendered, err := r.opts.Renderer.RenderHTML(ctx, doc.url)
	if err != nil {
		r.logger.Debug("headless render failed", "url", doc.url, "error", err)
		return
	}
	page, err := extract.ParseHTML([]byte(rendered))
	if err != nil {
		return
	}
	text := extract.DocumentText(page)
	if len(text) > len(doc.text) {
		doc.html = page
		doc.text = text
		doc.body = []byte(rendered)
	}
}
