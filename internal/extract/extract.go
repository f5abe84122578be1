// Package extract turns fetched register documents (HTML or PDF) into plain text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Extract returns the plain text of body. Failures are *Error values.
func Extract(body []byte, contentType string) (string, error) {
	doc, detected := detect(body, contentType)
	switch doc {
	case DocHTML:
		text, err := HTMLText(body)
		if err != nil {
			return "", &Error{Kind: KindUnparseable, ContentType: contentType, Detected: detected, Cause: err}
		}
		return text, nil
	case DocPDF:
		text, err := PDFText(body)
		if err != nil {
			return "", &Error{Kind: KindUnparseable, ContentType: contentType, Detected: detected, Cause: err}
		}
		return text, nil
	default:
		return "", &Error{Kind: KindUnsupportedType, ContentType: contentType, Detected: detected}
	}
}

// HTMLText parses an HTML page and returns its visible text with whitespace collapsed.
func HTMLText(body []byte) (string, error) {
	doc, err := ParseHTML(body)
	if err != nil {
		return "", err
	}
	return DocumentText(doc), nil
}

// ParseHTML parses an HTML page into a goquery document.
func ParseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// DocumentText returns the text of a parsed page. Non-content elements are removed
// from doc, and text nodes are separated so table cells do not run together.
func DocumentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template").Remove()

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
