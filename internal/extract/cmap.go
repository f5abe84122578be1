package extract

import (
	"bytes"
	"strconv"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// fontDecoder maps the character codes of one font to Unicode. A nil
// *fontDecoder means the font uses a simple single-byte encoding.
type fontDecoder struct {
	width int // bytes per character code
	chars map[uint32]string
}

// decode converts a string operand. Codes missing from the map become U+FFFD
// so unreadable fonts show up in the printable ratio instead of as silent noise.
func (f *fontDecoder) decode(b []byte) string {
	var out []rune
	for i := 0; i+f.width <= len(b); i += f.width {
		var code uint32
		for _, c := range b[i : i+f.width] {
			code = code<<8 | uint32(c)
		}
		if s, ok := f.chars[code]; ok {
			out = append(out, []rune(s)...)
			continue
		}
		out = append(out, '\uFFFD')
	}
	return string(out)
}

// pageFonts returns a decoder for every font on the page that needs one: fonts
// carrying a ToUnicode CMap, and composite (Type0) fonts, whose two-byte glyph
// IDs cannot be read without one.
func pageFonts(ctx *model.Context, pageNr int) map[string]*fontDecoder {
	_, _, attrs, err := ctx.PageDict(pageNr, false)
	if err != nil || attrs == nil || attrs.Resources == nil {
		return nil
	}
	obj, ok := attrs.Resources.Find("Font")
	if !ok {
		return nil
	}
	fonts, err := ctx.DereferenceDict(obj)
	if err != nil || fonts == nil {
		return nil
	}

	decoders := make(map[string]*fontDecoder)
	for name, ref := range fonts {
		font, err := ctx.DereferenceDict(ref)
		if err != nil || font == nil {
			continue
		}
		composite := false
		if subtype := font.NameEntry("Subtype"); subtype != nil && *subtype == "Type0" {
			composite = true
		}

		var dec *fontDecoder
		if tu, ok := font.Find("ToUnicode"); ok {
			if sd, _, err := ctx.DereferenceStreamDict(tu); err == nil && sd != nil {
				if err := sd.Decode(); err == nil {
					dec = parseCMap(sd.Content)
				}
			}
		}
		switch {
		case dec != nil:
			if composite && dec.width == 1 {
				dec.width = 2
			}
			decoders[name] = dec
		case composite:
			decoders[name] = &fontDecoder{width: 2, chars: map[uint32]string{}}
		}
	}
	return decoders
}

// parseCMap reads the codespace, bfchar and bfrange sections of a ToUnicode
// CMap. It returns nil when the stream maps nothing.
func parseCMap(data []byte) *fontDecoder {
	dec := &fontDecoder{width: 1, chars: make(map[uint32]string)}
	toks := cmapTokens(data)

	for i := 0; i < len(toks); i++ {
		switch toks[i].word {
		case "begincodespacerange":
			if i+1 < len(toks) && toks[i+1].hex != nil && len(toks[i+1].hex) > 0 {
				dec.width = len(toks[i+1].hex)
			}
		case "beginbfchar":
			for i++; i+1 < len(toks) && toks[i].word != "endbfchar"; i += 2 {
				if toks[i].hex == nil || toks[i+1].hex == nil {
					continue
				}
				dec.chars[codeOf(toks[i].hex)] = utf16String(toks[i+1].hex)
			}
		case "beginbfrange":
			for i++; i+2 < len(toks) && toks[i].word != "endbfrange"; {
				lo, hi := toks[i].hex, toks[i+1].hex
				if lo == nil || hi == nil {
					i++
					continue
				}
				start, end := codeOf(lo), codeOf(hi)
				if end < start || end-start > 0xFFFF {
					i += 3
					continue
				}
				if toks[i+2].word == "[" {
					j := i + 3
					for code := start; j < len(toks) && toks[j].word != "]"; j, code = j+1, code+1 {
						if toks[j].hex != nil && code <= end {
							dec.chars[code] = utf16String(toks[j].hex)
						}
					}
					i = j + 1
					continue
				}
				if dst := toks[i+2].hex; dst != nil {
					units := utf16Units(dst)
					for code := start; code <= end && len(units) > 0; code++ {
						dec.chars[code] = string(utf16.Decode(units))
						units = append([]uint16(nil), units...)
						units[len(units)-1]++
					}
				}
				i += 3
			}
		}
	}

	if len(dec.chars) == 0 {
		return nil
	}
	return dec
}

type cmapToken struct {
	word string // operator, "[" or "]"; empty for hex strings
	hex  []byte // decoded <..> operand
}

func cmapTokens(data []byte) []cmapToken {
	var toks []cmapToken
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				return toks
			}
			h := hexString(data[i+1 : i+end])
			if h == nil {
				h = []byte{}
			}
			toks = append(toks, cmapToken{hex: h})
			i += end + 1
		case c == '[' || c == ']':
			toks = append(toks, cmapToken{word: string(c)})
			i++
		case c == '(':
			_, next := literalString(data, i)
			i = next
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			word := string(data[start:i])
			if _, err := strconv.Atoi(word); err == nil {
				continue
			}
			toks = append(toks, cmapToken{word: word})
		}
	}
	return toks
}

func codeOf(b []byte) uint32 {
	var code uint32
	for _, c := range b {
		code = code<<8 | uint32(c)
	}
	return code
}

func utf16Units(b []byte) []uint16 {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return units
}

func utf16String(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	return string(utf16.Decode(utf16Units(b)))
}

// fontName strips the leading slash of a resource name token.
func fontName(token []byte) string {
	return string(bytes.TrimPrefix(token, []byte("/")))
}
