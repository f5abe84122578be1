// Package democracy discovers councillor profiles and register pages through a
// council's committee-management site (ModernGov member indexes).
package democracy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/council-registers/internal/crawling"
	"github.com/jonathan/council-registers/internal/extract"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/namematch"
	"github.com/jonathan/council-registers/internal/types"
)

var (
	// ErrNoIndex means no member index could be fetched for the council.
	ErrNoIndex = errors.New("no member index found")
	// ErrMemberNotFound means the index does not list the councillor.
	ErrMemberNotFound = errors.New("councillor not listed in member index")
)

// Member is one entry of a member index.
type Member struct {
	Name       string
	Details    []string // party, ward and similar lines under the name
	ProfileURL string
}

// Result is what democracy discovery found for one councillor.
type Result struct {
	IndexURL   string
	ProfileURL string
	Candidates []crawling.Candidate
}

// Finder looks councillors up in member indexes.
type Finder struct {
	fetcher fetch.Getter
	logger  *slog.Logger
}

// NewFinder creates a Finder.
func NewFinder(fetcher fetch.Getter, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{fetcher: fetcher, logger: logger}
}

// Find returns the councillor's profile and the register candidates linked from it.
// A councillor that already has a profile URL skips the index lookup.
func (f *Finder) Find(ctx context.Context, c types.Councillor) (*Result, error) {
	result := &Result{}

	if c.ProfileURL != nil && *c.ProfileURL != "" {
		result.ProfileURL = *c.ProfileURL
	} else {
		member, indexURL, err := f.lookup(ctx, c)
		if err != nil {
			return nil, err
		}
		result.IndexURL = indexURL
		result.ProfileURL = member.ProfileURL
	}

	candidates, err := f.profileCandidates(ctx, result.ProfileURL)
	if err != nil {
		return result, err
	}
	result.Candidates = candidates
	return result, nil
}

// lookup finds the councillor in the first member index that can be fetched.
func (f *Finder) lookup(ctx context.Context, c types.Councillor) (*Member, string, error) {
	for _, indexURL := range IndexURLs(c.Council) {
		res, err := f.fetcher.Fetch(ctx, indexURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			f.logger.Debug("member index unavailable", "council", c.Council, "url", indexURL, "error", err)
			continue
		}
		doc, err := extract.ParseHTML(res.Body)
		if err != nil {
			continue
		}
		base := res.FinalURL
		if base == "" {
			base = indexURL
		}

		member := SelectMember(ParseMemberIndex(doc, base), c)
		if member == nil {
			return nil, indexURL, fmt.Errorf("%w: %s at %s", ErrMemberNotFound, c.Name, indexURL)
		}
		return member, indexURL, nil
	}
	return nil, "", fmt.Errorf("%w for council %q", ErrNoIndex, c.Council)
}

// profileCandidates fetches a profile page and returns its register links, with
// the derived ModernGov register page first.
func (f *Finder) profileCandidates(ctx context.Context, profileURL string) ([]crawling.Candidate, error) {
	var derived []crawling.Candidate
	if registerURL, ok := RegisterURLFromProfile(profileURL); ok {
		derived = append(derived, crawling.Candidate{URL: registerURL, Source: crawling.SourceDemocracy, Depth: 1})
	}

	res, err := f.fetcher.Fetch(ctx, profileURL)
	if err != nil {
		if len(derived) > 0 && ctx.Err() == nil {
			return crawling.Merge(derived), nil
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	doc, err := extract.ParseHTML(res.Body)
	if err != nil {
		return crawling.Merge(derived), nil
	}
	base := res.FinalURL
	if base == "" {
		base = profileURL
	}
	links, err := crawling.ExtractLinks(doc, base)
	if err != nil {
		return crawling.Merge(derived), nil
	}

	var linked []crawling.Candidate
	for _, l := range crawling.RegisterLinks(links) {
		linked = append(linked, crawling.Candidate{URL: l.URL, Source: crawling.SourceDemocracy, Depth: 1})
	}
	return crawling.Merge(derived, linked), nil
}

var councillorPrefix = regexp.MustCompile(`(?i)^(councillor|cllr\.?)\s+`)

// ParseMemberIndex reads the member list of a ModernGov index page: each <li>
// holds an anchor to the profile followed by detail paragraphs.
func ParseMemberIndex(doc *goquery.Document, indexURL string) []Member {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil
	}

	var members []Member
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		profile := base.ResolveReference(ref)
		if DetectPlatform(profile.String()) == PlatformModernGov &&
			!strings.EqualFold(pathBase(profile.Path), "mgUserInfo.aspx") {
			return
		}

		name := strings.Join(strings.Fields(a.Text()), " ")
		name = councillorPrefix.ReplaceAllString(name, "")
		if name == "" {
			return
		}

		var details []string
		li.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.Join(strings.Fields(p.Text()), " "); text != "" {
				details = append(details, text)
			}
		})

		members = append(members, Member{Name: name, Details: details, ProfileURL: profile.String()})
	})
	return members
}

// SelectMember returns the member matching the councillor's name, preferring one
// whose details mention the councillor's ward when several match.
func SelectMember(members []Member, c types.Councillor) *Member {
	var matches []*Member
	for i := range members {
		if namematch.Matches(members[i].Name, c.Name) {
			matches = append(matches, &members[i])
		}
	}
	if len(matches) == 0 {
		return nil
	}
	if ward := namematch.Normalize(c.Ward); ward != "" {
		for _, m := range matches {
			if strings.Contains(namematch.Normalize(strings.Join(m.Details, " ")), ward) {
				return m
			}
		}
	}
	return matches[0]
}

// IndexURLs returns the member index locations tried for a council, in order.
func IndexURLs(council string) []string {
	slug := Slug(council)
	if slug == "" {
		return nil
	}
	return []string{
		"https://democracy." + slug + ".gov.uk/mgMemberIndex.aspx?bcr=1",
		"https://" + slug + ".moderngov.co.uk/mgMemberIndex.aspx?bcr=1",
	}
}

var councilSuffixes = []string{"council", "borough", "district", "county", "city", "metropolitan"}

// Slug turns a council name into the host label used by democracy sites:
// "Sampleton District Council" becomes "sampleton".
func Slug(council string) string {
	words := strings.Fields(strings.ToLower(council))
	for len(words) > 1 && isSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	var b strings.Builder
	for _, r := range strings.Join(words, "") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSuffix(word string) bool {
	for _, s := range councilSuffixes {
		if word == s {
			return true
		}
	}
	return false
}
