package extract

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// ErrNoText is returned for PDFs that parse but carry no extractable text (scans).
var ErrNoText = errors.New("no text content found in PDF")

// ErrGarbled is returned when the decoded text is mostly unprintable, which
// happens with embedded fonts that carry no usable ToUnicode map.
var ErrGarbled = errors.New("PDF text is not readable")

// minPrintableRatio is the share of printable runes below which decoded PDF
// text is treated as garbled.
const minPrintableRatio = 0.85

var disableConfigDir sync.Once

// PDFText extracts the text shown on every page of a PDF, pages separated by a blank line.
// Malformed, encrypted or otherwise unreadable files return an error; the parser is
// guarded so a panic inside it surfaces as an error too.
func PDFText(body []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(body), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil || len(data) == 0 {
			continue
		}
		if pageText := showText(data, pageFonts(ctx, pageNr)); pageText != "" {
			pages = append(pages, pageText)
		}
	}

	if len(pages) == 0 {
		return "", ErrNoText
	}
	text = strings.Join(pages, "\n\n")
	if ratio := printableRatio(text); ratio < minPrintableRatio {
		return "", fmt.Errorf("%w: %.0f%% printable", ErrGarbled, ratio*100)
	}
	return text, nil
}

// printableRatio is the share of runes that are letters, digits, punctuation,
// symbols or spaces. Control characters and U+FFFD count against it.
func printableRatio(s string) float64 {
	total, printable := 0, 0
	for _, r := range s {
		total++
		if r != unicode.ReplacementChar && (unicode.IsPrint(r) || unicode.IsSpace(r)) {
			printable++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(printable) / float64(total)
}

// showText walks a page content stream and collects the operands of the
// text-showing operators (Tj, TJ, ' and "). fonts maps resource names to the
// decoders selected with Tf; other fonts decode as WinAnsi.
func showText(data []byte, fonts map[string]*fontDecoder) string {
	var (
		out      strings.Builder
		pending  []string
		nums     []float64
		inArray  bool
		lastName string
		font     *fontDecoder
	)

	decode := func(b []byte) string {
		if font != nil {
			return font.decode(b)
		}
		return decodeTextBytes(b)
	}

	newline := func() {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
	}
	space := func() {
		if out.Len() > 0 {
			out.WriteByte(' ')
		}
	}
	flush := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := literalString(data, i)
			pending = append(pending, decode(s))
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				i = len(data)
				break
			}
			pending = append(pending, decode(hexString(data[i+1:i+end])))
			i += end + 1
		case c == '>':
			i++
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			start := i
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			lastName = fontName(data[start:i])
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			token := string(data[start:i])

			if n, err := strconv.ParseFloat(token, 64); err == nil {
				// large negative kerning inside TJ arrays separates words
				if inArray && n <= -250 {
					pending = append(pending, " ")
				}
				nums = append(nums, n)
				continue
			}

			switch token {
			case "Tf":
				font = fonts[lastName]
			case "Tj", "TJ":
				flush()
			case "'", "\"":
				newline()
				flush()
			case "T*", "ET":
				newline()
			case "Td", "TD":
				if len(nums) >= 2 && nums[len(nums)-1] != 0 {
					newline()
				} else {
					space()
				}
			case "Tm":
				space()
			case "BI":
				if end := bytes.Index(data[i:], []byte("EI")); end >= 0 {
					i += end + 2
				} else {
					i = len(data)
				}
			}
			pending = pending[:0]
			nums = nums[:0]
		}
	}

	return tidyLines(out.String())
}

// literalString reads a (...) string starting at data[start] and returns its raw
// bytes and the index after the closing parenthesis.
func literalString(data []byte, start int) ([]byte, int) {
	var buf []byte
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '\r', '\n':
				// line continuation
				if e == '\r' && i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					buf = append(buf, byte(val))
				} else {
					buf = append(buf, e)
				}
			}
			i++
		case c == '(':
			if depth > 0 {
				buf = append(buf, c)
			}
			depth++
			i++
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return buf, i
			}
			buf = append(buf, c)
		default:
			buf = append(buf, c)
			i++
		}
	}
	return buf, i
}

func hexString(raw []byte) []byte {
	clean := make([]byte, 0, len(raw)+1)
	for _, c := range raw {
		if !isPDFSpace(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, hex.DecodedLen(len(clean)))
	n, err := hex.Decode(out, clean)
	if err != nil {
		return nil
	}
	return out[:n]
}

// decodeTextBytes decodes a string operand: UTF-16BE when it carries a BOM,
// otherwise the single-byte WinAnsi encoding used by most council PDFs.
func decodeTextBytes(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
