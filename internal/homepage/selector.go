package homepage

import (
	"net/url"
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/net/publicsuffix"

	"github.com/jonathan/council-registers/internal/namematch"
	"github.com/jonathan/council-registers/internal/search"
)

// Selector picks the official homepage among search results.
type Selector interface {
	Select(council string, results []search.Result) (string, bool)
}

// SimilarityThreshold is the Jaro-Winkler score at which a host label counts as
// naming the council.
const SimilarityThreshold = 0.9

// blockedDomains never host a council's own site. Subdomains are blocked too.
var blockedDomains = []string{
	"google.com", "google.co.uk", "bing.com", "duckduckgo.com", "yahoo.com", "ask.com",
	"facebook.com", "twitter.com", "x.com", "instagram.com", "linkedin.com", "youtube.com", "tiktok.com",
	"wikipedia.org", "wikimedia.org", "wikidata.org",
	"bbc.co.uk", "bbc.com", "theguardian.com", "telegraph.co.uk", "independent.co.uk", "dailymail.co.uk",
	"mirror.co.uk", "thetimes.co.uk", "reddit.com", "yell.com", "tripadvisor.co.uk", "192.com",
	"opencouncildata.co.uk", "electionmaps.uk", "whocanivotefor.co.uk", "mysociety.org", "writetothem.com",
}

// blockedHosts are blocked only as exact hosts (their subdomains are council sites).
var blockedHosts = map[string]bool{
	"gov.uk":     true,
	"www.gov.uk": true,
}

// genericCouncilWords carry no identity in a council's name.
var genericCouncilWords = map[string]bool{
	"council": true, "borough": true, "district": true, "county": true, "city": true,
	"metropolitan": true, "of": true, "and": true, "royal": true, "unitary": true,
	"authority": true, "london": true,
}

// DomainSelector accepts the first non-blocked result whose host names the council.
type DomainSelector struct{}

// Select implements Selector.
func (DomainSelector) Select(council string, results []search.Result) (string, bool) {
	tokens := councilTokens(council)
	if len(tokens) == 0 {
		return "", false
	}

	for _, r := range results {
		u, err := url.Parse(r.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if Blocked(host) {
			continue
		}
		if hostNamesCouncil(host, tokens) {
			return u.Scheme + "://" + host, true
		}
	}
	return "", false
}

// Blocked reports whether host belongs to a search engine, social network,
// encyclopedia, news site or the central government portal.
func Blocked(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if blockedHosts[host] {
		return true
	}
	for _, d := range blockedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// councilTokens are the identifying words of a council name.
func councilTokens(council string) []string {
	all := namematch.Tokens(council)
	var tokens []string
	for _, t := range all {
		if !genericCouncilWords[t] {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		// "City of London" and friends
		for _, t := range all {
			if t != "council" && t != "of" && t != "and" {
				tokens = append(tokens, t)
			}
		}
	}
	return tokens
}

// hostNamesCouncil checks the labels left of the public suffix against the council tokens.
func hostNamesCouncil(host string, tokens []string) bool {
	joined := strings.Join(tokens, "")

	for _, label := range hostLabels(host) {
		if label == joined || strings.Contains(label, joined) {
			return true
		}
		for _, t := range tokens {
			if len([]rune(t)) >= 3 && strings.Contains(label, t) {
				return true
			}
		}
		if matchr.JaroWinkler(label, joined, false) >= SimilarityThreshold {
			return true
		}
	}
	return false
}

func hostLabels(host string) []string {
	suffix, _ := publicsuffix.PublicSuffix(host)
	rest := strings.TrimSuffix(host, suffix)
	rest = strings.TrimSuffix(rest, ".")

	var labels []string
	for _, part := range strings.FieldsFunc(rest, func(r rune) bool { return r == '.' || r == '-' }) {
		if part == "www" || part == "democracy" || part == "moderngov" {
			continue
		}
		labels = append(labels, part)
	}
	return labels
}
