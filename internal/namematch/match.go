// Package namematch decides whether a block of text refers to a councillor by name.
//
// Matching is deliberately tolerant of the layouts found in register documents:
// "Smith, Jane", "Cllr J. Smith" and names broken across PDF text runs all match
// "Jane Smith". It is a pure function of its inputs.
package namematch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// initialWindow is how many tokens either side of a surname are searched for initials.
const initialWindow = 3

// minSingleToken is the shortest single-token name accepted, and only as an exact-case word.
const minSingleToken = 4

var honorifics = map[string]bool{
	"cllr":       true,
	"cllor":      true,
	"councillor": true,
	"councilor":  true,
	"dr":         true,
	"mr":         true,
	"mrs":        true,
	"ms":         true,
	"miss":       true,
	"mx":         true,
	"prof":       true,
	"professor":  true,
	"sir":        true,
	"dame":       true,
	"lord":       true,
	"lady":       true,
	"rev":        true,
	"revd":       true,
	"hon":        true,
	"the":        true,
}

// Matches reports whether text plausibly names the person fullName.
func Matches(text, fullName string) bool {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(fullName) == "" {
		return false
	}

	nameTokens := Tokens(fullName)
	significant := significantTokens(nameTokens)
	if len(significant) < 2 {
		return singleTokenMatch(text, fullName)
	}

	textTokens := Tokens(text)
	if containsSequence(textTokens, nameTokens) {
		return true
	}

	present := make(map[string]bool, len(textTokens))
	for _, tok := range textTokens {
		present[tok] = true
	}
	all := true
	for _, tok := range significant {
		if !present[tok] {
			all = false
			break
		}
	}
	if all {
		return true
	}

	return initialsMatch(textTokens, significant)
}

// Normalize lowercases s, folds diacritics, turns punctuation into spaces,
// drops honorifics and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Tokens returns the normalised, honorific-free tokens of s.
func Tokens(s string) []string {
	folded := foldDiacritics(s)
	fields := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if honorifics[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// significantTokens keeps tokens longer than one character.
func significantTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, tok := range needle {
			if haystack[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}

// initialsMatch accepts "J. Smith" or "Smith, J" for "Jane Smith": the surname must be
// present in full and every other name token must appear, whole or as its initial,
// within initialWindow tokens of it.
func initialsMatch(textTokens, nameTokens []string) bool {
	surname := nameTokens[len(nameTokens)-1]
	given := nameTokens[:len(nameTokens)-1]

	for i, tok := range textTokens {
		if tok != surname {
			continue
		}
		lo := max(0, i-initialWindow)
		hi := min(len(textTokens), i+initialWindow+1)
		window := textTokens[lo:hi]

		ok := true
		for _, g := range given {
			if !windowHas(window, g) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func windowHas(window []string, given string) bool {
	initial := string([]rune(given)[0])
	for _, w := range window {
		if w == given || w == initial {
			return true
		}
	}
	return false
}

// singleTokenMatch handles names that reduce to one token. The token must be long
// enough and appear with exact case as a whole word in the original text.
func singleTokenMatch(text, fullName string) bool {
	var kept []string
	for _, raw := range strings.FieldsFunc(fullName, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if honorifics[strings.ToLower(raw)] || len([]rune(raw)) <= 1 {
			continue
		}
		kept = append(kept, raw)
	}
	if len(kept) != 1 || len([]rune(kept[0])) < minSingleToken {
		return false
	}
	return containsWord(text, kept[0])
}

func containsWord(text, word string) bool {
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if boundaryBefore(text, idx) && boundaryAfter(text, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
