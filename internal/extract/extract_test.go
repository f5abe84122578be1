package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/council-registers/internal/testutil"
)

const registerPage = `<!DOCTYPE html>
<html>
<head><title>Register of interests</title><style>body { color: red; }</style></head>
<body>
	<script>var tracking = "Jane Smith";</script>
	<noscript>Enable JavaScript</noscript>
	<h1>Register of Members&#39; Interests</h1>
	<table><tr><td>Cllr</td><td>Jane</td><td>Smith</td></tr></table>
	<p>Gifts &amp; hospitality: none</p>
</body>
</html>`

func TestDetect(t *testing.T) {
	pdf := testutil.TextPDF("Register")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name        string
		body        []byte
		contentType string
		expected    DocType
	}{
		{"html signature", []byte(registerPage), "", DocHTML},
		{"pdf signature", pdf, "", DocPDF},
		{"pdf signature beats html header", pdf, "text/html; charset=utf-8", DocPDF},
		{"html signature beats pdf header", []byte(registerPage), "application/pdf", DocHTML},
		{"plain text falls back to html header", []byte("Register of interests for Jane Smith"), "text/html", DocHTML},
		{"plain text falls back to pdf header", []byte("not really a pdf"), "application/pdf", DocPDF},
		{"plain text without header", []byte("Register of interests"), "", DocUnknown},
		{"png with html header", png, "text/html", DocUnknown},
		{"header with parameters", []byte("hello"), "Text/HTML; charset=ISO-8859-1", DocHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect(tt.body, tt.contentType))
		})
	}
}

func TestDocTypeMIME(t *testing.T) {
	assert.Equal(t, "text/html", DocHTML.MIME())
	assert.Equal(t, "application/pdf", DocPDF.MIME())
	assert.Empty(t, DocUnknown.MIME())
}

func TestExtract_HTML(t *testing.T) {
	text, err := Extract([]byte(registerPage), "text/html")
	require.NoError(t, err)

	assert.Contains(t, text, "Register of Members' Interests")
	assert.Contains(t, text, "Cllr Jane Smith")
	assert.Contains(t, text, "Gifts & hospitality: none")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Enable JavaScript")
	assert.NotContains(t, text, "  ")
}

func TestExtract_HTMLKeepsNavigationText(t *testing.T) {
	page := `<html><body>
		<nav><a href="/members">Councillors and committees</a></nav>
		<template><p>Hidden row template</p></template>
		<p>Declarations</p>
	</body></html>`

	text, err := Extract([]byte(page), "text/html")
	require.NoError(t, err)

	assert.Equal(t, "Councillors and committees Declarations", text)
}

func TestExtract_Deterministic(t *testing.T) {
	first, err := Extract([]byte(registerPage), "")
	require.NoError(t, err)
	second, err := Extract([]byte(registerPage), "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_PDF(t *testing.T) {
	text, err := Extract(testutil.TextPDF("Declaration by Councillor Jane Smith"), "application/octet-stream")
	require.NoError(t, err)
	assert.Contains(t, text, "Declaration by Councillor Jane Smith")
}

func TestExtract_MalformedPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4\nthis is not a real pdf body"), "application/pdf")
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, KindUnparseable, extractErr.Kind)
}

func TestExtract_PDFWithoutText(t *testing.T) {
	_, err := Extract(testutil.PDF("q 100 0 0 100 72 692 cm Q"), "application/pdf")
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, KindUnparseable, extractErr.Kind)
}

func TestExtract_UnsupportedType(t *testing.T) {
	_, err := Extract([]byte("PK\x03\x04\x14\x00\x06\x00"), "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, KindUnsupportedType, extractErr.Kind)
	assert.True(t, strings.Contains(err.Error(), "unsupported_type"))
}

func TestShowText(t *testing.T) {
	tests := []struct {
		name     string
		stream   string
		expected string
	}{
		{
			name:     "Tj",
			stream:   "BT /F1 12 Tf 72 720 Td (Jane Smith) Tj ET",
			expected: "Jane Smith",
		},
		{
			name:     "TJ with kerning",
			stream:   "BT [(Ja) 20 (ne) -300 (Smith)] TJ ET",
			expected: "Jane Smith",
		},
		{
			name:     "hex string",
			stream:   "BT <4A616E65> Tj ET",
			expected: "Jane",
		},
		{
			name:     "escapes and nested parentheses",
			stream:   `BT (O\047Brien \(Ward\) \(a (b)\)) Tj ET`,
			expected: "O'Brien (Ward) (a (b))",
		},
		{
			name:     "quote operator starts a new line",
			stream:   "BT (Name) Tj (Jane Smith) ' ET",
			expected: "Name\nJane Smith",
		},
		{
			name:     "vertical move starts a new line",
			stream:   "BT (Council) Tj 0 -14 Td (Sampleton) Tj ET",
			expected: "Council\nSampleton",
		},
		{
			name:     "utf16 with bom",
			stream:   "BT <FEFF005A006F00EB> Tj ET",
			expected: "Zoë",
		},
		{
			name:     "winansi byte",
			stream:   `BT (L\363pez) Tj ET`,
			expected: "López",
		},
		{
			name:     "non text operators ignored",
			stream:   "q 1 0 0 1 0 0 cm /Im1 Do Q % comment (hidden)\nBT (Shown) Tj ET",
			expected: "Shown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, showText([]byte(tt.stream), nil))
		})
	}
}

func TestExtract_GlyphIDsWithoutCMapAreParseErrors(t *testing.T) {
	// two-byte glyph IDs shown through a simple font decode to control characters
	body := testutil.PDF("BT /F1 12 Tf 72 720 Td <002D0044005100480003003600500044004F004F> Tj ET")

	_, err := Extract(body, "application/pdf")
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, KindUnparseable, extractErr.Kind)
	assert.ErrorIs(t, err, ErrGarbled)
}

const identityCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Adobe-Identity-UCS def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<002D> <004A>
endbfchar
2 beginbfrange
<0044> <0048> <0061>
<0036> <0036> [<0053>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseCMap(t *testing.T) {
	dec := parseCMap([]byte(identityCMap))
	require.NotNil(t, dec)
	assert.Equal(t, 2, dec.width)
	assert.Equal(t, "J", dec.chars[0x2D])
	assert.Equal(t, " ", dec.chars[0x03])
	assert.Equal(t, "a", dec.chars[0x44])
	assert.Equal(t, "e", dec.chars[0x48])
	assert.Equal(t, "S", dec.chars[0x36])

	assert.Nil(t, parseCMap([]byte("begincmap endcmap")), "an empty map is no decoder")
}

func TestShowText_DecodesThroughFontCMap(t *testing.T) {
	fonts := map[string]*fontDecoder{"C0": parseCMap([]byte(identityCMap))}
	stream := "BT /F1 12 Tf (Name:) Tj /C0 10 Tf <002D00440003003600480048> Tj ET"

	assert.Equal(t, "Name:Ja See", showText([]byte(stream), fonts))
}

func TestFontDecoder_UnmappedCodes(t *testing.T) {
	dec := &fontDecoder{width: 2, chars: map[uint32]string{0x2D: "J"}}
	assert.Equal(t, "J\uFFFD", dec.decode([]byte{0x00, 0x2D, 0x01, 0x02, 0x03}))
}

func TestPrintableRatio(t *testing.T) {
	assert.Equal(t, 1.0, printableRatio("Jane Smith, North ward"))
	assert.Equal(t, 1.0, printableRatio(""))
	assert.Less(t, printableRatio("\x00J\x00a\x00n\x00e"), minPrintableRatio)
	assert.Less(t, printableRatio("\uFFFD\uFFFD\uFFFDab"), minPrintableRatio)
}

func TestPDFText_RecoversFromPanics(t *testing.T) {
	// must not panic on arbitrary input
	for _, body := range [][]byte{nil, []byte("%PDF-"), []byte("%PDF-1.7\n1 0 obj << /Type /Catalog")} {
		_, err := PDFText(body)
		assert.Error(t, err)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: KindUnparseable, Cause: cause}
	assert.ErrorIs(t, err, cause)
}
