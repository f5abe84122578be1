package crawling

import (
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL returns the dedupe key of a URL: lower-case scheme and host, no
// fragment, no default port, no trailing slash, query parameters sorted.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &URLError{URL: raw}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}
	u.ForceQuery = false

	return u.String(), nil
}

// RegistrableDomain returns the eTLD+1 of a URL or host ("sampleton.gov.uk").
func RegistrableDomain(hostOrURL string) string {
	host := hostOrURL
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameSite reports whether two URLs share a registrable domain, so
// democracy.sampleton.gov.uk and www.sampleton.gov.uk count as one site.
func SameSite(a, b string) bool {
	da, db := RegistrableDomain(a), RegistrableDomain(b)
	return da != "" && da == db
}

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".csv": true,
	".odt": true, ".ods": true, ".rtf": true, ".zip": true, ".jpg": true, ".jpeg": true,
	".png": true, ".gif": true, ".mp3": true, ".mp4": true, ".ics": true,
}

// IsDocumentLink reports whether a URL points at a file rather than a page.
func IsDocumentLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return documentExtensions[strings.ToLower(path.Ext(u.Path))]
}

// IsPDFLink reports whether a URL looks like a PDF download.
func IsPDFLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.EqualFold(path.Ext(u.Path), ".pdf") {
		return true
	}
	// ModernGov serves documents through mgConvert2PDF.aspx and ViewSelectedDocument
	lower := strings.ToLower(u.Path)
	return strings.Contains(lower, "mgconvert2pdf") || strings.Contains(strings.ToLower(u.RawQuery), ".pdf")
}
