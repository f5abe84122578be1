package namematch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		fullName string
		want     bool
	}{
		{"contiguous", "Register of interests for Jane Smith (North ward)", "Jane Smith", true},
		{"case and punctuation", "JANE-SMITH: declarations", "Jane Smith", true},
		{"honorific in name", "Declaration by Jane Smith", "Cllr Jane Smith", true},
		{"honorific in text", "Councillor Jane Smith", "Jane Smith", true},
		{"reversed order", "Smith, Jane — employment: none", "Jane Smith", true},
		{"far apart", "Jane is listed on page 1 ... many words later ... Smith appears", "Jane Smith", true},
		{"initial before surname", "Cllr J. Smith — North ward — declares shares", "Jane Smith", true},
		{"initial after surname", "SMITH J (Conservative)", "Jane Smith", true},
		{"middle name initial", "Cllr Jane R Smith", "Jane Robert Smith", true},
		{"diacritics folded", "Councillor Zoe Lopez declares", "Zoë López", true},
		{"apostrophe", "Cllr Sean O'Brien", "Sean O'Brien", true},
		{"missing surname", "Jane Jones declares", "Jane Smith", false},
		{"initial too far", "J. Brown, K. Green, L. White and M. Black, Smith", "Jane Smith", false},
		{"wrong initial", "Cllr K. Smith", "Jane Smith", false},
		{"no tokens", "Annual report of the council", "Jane Smith", false},
		{"empty text", "", "Jane Smith", false},
		{"empty name", "Jane Smith", "", false},
		{"single long token exact case", "Declaration made by Smithson on 3 May", "Smithson", true},
		{"single token wrong case", "declaration made by smithson", "Smithson", false},
		{"single token inside word", "Declaration by Smithsonian", "Smithson", false},
		{"single short token", "Declaration by Lee", "Lee", false},
		{"single token after honorific", "Declaration by Smithson", "Cllr Smithson", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.text, tt.fullName))
		})
	}
}

func TestMatches_AnyTokenOrder(t *testing.T) {
	names := []string{"Jane Smith", "Mary Ann Jones", "Oluwaseun Adebayo Okafor"}
	for _, name := range names {
		tokens := strings.Fields(name)
		// every rotation of the tokens, with filler between them
		for shift := range tokens {
			var parts []string
			for i := range tokens {
				parts = append(parts, "filler", tokens[(i+shift)%len(tokens)])
			}
			text := strings.Join(parts, " ")
			assert.True(t, Matches(text, name), "text %q name %q", text, name)
		}
	}
}

func TestMatches_NoTokensPresent(t *testing.T) {
	texts := []string{
		"Register of members' interests 2024",
		"Gifts and hospitality over £50",
		"Employment, office, trade, profession or vocation",
	}
	for _, text := range texts {
		assert.False(t, Matches(text, "Jane Smith"), text)
		assert.False(t, Matches(text, "Robert Brown"), text)
	}
}

func TestMatches_Deterministic(t *testing.T) {
	text := "Cllr J. Smith — North ward"
	first := Matches(text, "Jane Smith")
	for range 50 {
		assert.Equal(t, first, Matches(text, "Jane Smith"))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Cllr Jane SMITH", "jane smith"},
		{"  Dr.  Jane   Smith, ", "jane smith"},
		{"Zoë López", "zoe lopez"},
		{"O'Brien", "o brien"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestWordBoundaries(t *testing.T) {
	assert.True(t, boundaryBefore("Smith", 0))
	assert.True(t, boundaryBefore("—Smith", len("—")))
	assert.False(t, boundaryBefore("éSmith", len("é")))
	assert.True(t, boundaryAfter("Smith", 5))
	assert.True(t, boundaryAfter("Smith—x", 5))
	assert.False(t, boundaryAfter("Smithé", 5))
}

func TestMatches_LongTextWithManyNearMisses(t *testing.T) {
	text := strings.Repeat("Smithson Smithers ", 20000) + "Cllr Jane Smith"
	assert.True(t, Matches(text, "Jane Smith"))
}
