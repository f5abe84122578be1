package extract

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DocType is the document kind the extractor understands.
type DocType string

const (
	DocUnknown DocType = ""
	DocHTML    DocType = "html"
	DocPDF     DocType = "pdf"
)

// MIME returns the canonical media type stored alongside a register.
func (d DocType) MIME() string {
	switch d {
	case DocHTML:
		return "text/html"
	case DocPDF:
		return "application/pdf"
	default:
		return ""
	}
}

// inconclusive signatures defer to the declared header.
var inconclusive = []string{
	"text/plain",
	"application/octet-stream",
	"text/xml",
	"application/xml",
}

// Detect decides the document kind. The byte signature wins; the declared
// Content-Type is consulted only when the signature is inconclusive.
func Detect(body []byte, contentType string) DocType {
	doc, _ := detect(body, contentType)
	return doc
}

func detect(body []byte, contentType string) (DocType, string) {
	mt := mimetype.Detect(body)
	switch {
	case mt.Is("application/pdf"):
		return DocPDF, mt.String()
	case mt.Is("text/html"):
		return DocHTML, mt.String()
	}

	for _, candidate := range inconclusive {
		if mt.Is(candidate) {
			return fromHeader(contentType), mt.String()
		}
	}
	return DocUnknown, mt.String()
}

func fromHeader(contentType string) DocType {
	if contentType == "" {
		return DocUnknown
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return DocHTML
	case "application/pdf", "application/x-pdf":
		return DocPDF
	default:
		return DocUnknown
	}
}
