package crawling

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor found on a page.
type Link struct {
	URL     string // absolute, fragment removed
	Text    string // anchor text, whitespace collapsed
	Context string // text of the anchor's parent element
}

// ExtractLinks returns the http(s) links of a parsed page in document order,
// resolved against baseURL and deduplicated by normalised URL. Anchors that
// share a URL are merged: the link keeps the first position and collects the
// text and context of every anchor pointing at it.
func ExtractLinks(doc *goquery.Document, baseURL string) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &URLError{URL: baseURL, Cause: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &URLError{URL: baseURL}
	}

	// <base href> overrides the document URL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	index := make(map[string]int)
	links := make([]Link, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		absoluteURL := base.ResolveReference(linkURL)
		if absoluteURL.Scheme != "http" && absoluteURL.Scheme != "https" {
			return
		}
		absoluteURL.Fragment = ""

		key, err := NormalizeURL(absoluteURL.String())
		if err != nil {
			return
		}
		text, around := collapse(s.Text()), parentContext(s)
		if i, ok := index[key]; ok {
			links[i].Text = joinDistinct(links[i].Text, text)
			links[i].Context = joinDistinct(links[i].Context, around)
			return
		}
		index[key] = len(links)

		links = append(links, Link{
			URL:     absoluteURL.String(),
			Text:    text,
			Context: around,
		})
	})

	return links, nil
}

// joinDistinct appends add to have unless it is empty or already present.
func joinDistinct(have, add string) string {
	switch {
	case add == "" || strings.Contains(have, add):
		return have
	case have == "":
		return add
	}
	return have + " | " + add
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// maxContextLength drops parent text from large containers, where it says
// nothing about the individual link.
const maxContextLength = 300

func parentContext(s *goquery.Selection) string {
	parent := s.Parent()
	switch goquery.NodeName(parent) {
	case "", "body", "html":
		return ""
	}
	text := collapse(parent.Text())
	if len(text) > maxContextLength {
		return ""
	}
	return text
}
