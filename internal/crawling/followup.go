package crawling

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/council-registers/internal/namematch"
)

const (
	maxNameLinks = 5
	maxPDFLinks  = 10
)

// FollowUpLinks expands a page that did not name the councillor: links whose
// anchor text names them (up to 5), then PDF links (up to 10). Register index
// pages usually list one document per member.
func FollowUpLinks(doc *goquery.Document, pageURL, name string) []Candidate {
	links, err := ExtractLinks(doc, pageURL)
	if err != nil {
		return nil
	}

	var named, pdfs []Candidate
	for _, l := range links {
		key, err := NormalizeURL(l.URL)
		if err != nil {
			continue
		}
		c := Candidate{URL: l.URL, Key: key, Source: SourceFollowUp, Depth: 1}
		switch {
		case len(named) < maxNameLinks && namematch.Matches(l.Text, name):
			named = append(named, c)
		case len(pdfs) < maxPDFLinks && IsPDFLink(l.URL):
			pdfs = append(pdfs, c)
		}
	}
	return Merge(named, pdfs)
}
