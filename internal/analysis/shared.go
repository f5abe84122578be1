// Package analysis finds interests declared in more than one register.
//
// Register texts are split into sentences, normalised and grouped into blocks
// by a short prefix. Sentences inside a block are clustered by edit-distance
// similarity, and clusters drawn from at least two registers are reported.
package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/jonathan/council-registers/internal/types"
)

const (
	DefaultMinLength   = 30
	DefaultMaxLength   = 300
	DefaultThreshold   = 0.88
	DefaultMaxExamples = 5
	DefaultBlockPrefix = 24
)

// Options tunes clustering.
type Options struct {
	MinLength   int     // shortest sentence kept, in characters
	MaxLength   int     // longest sentence kept, in characters
	Threshold   float64 // minimum similarity for two sentences to share a cluster
	MaxExamples int     // occurrences kept per cluster
	BlockPrefix int     // normalised prefix length used for blocking
}

// DefaultOptions returns the standard clustering settings.
func DefaultOptions() Options {
	return Options{
		MinLength:   DefaultMinLength,
		MaxLength:   DefaultMaxLength,
		Threshold:   DefaultThreshold,
		MaxExamples: DefaultMaxExamples,
		BlockPrefix: DefaultBlockPrefix,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinLength <= 0 {
		o.MinLength = d.MinLength
	}
	if o.MaxLength <= 0 {
		o.MaxLength = d.MaxLength
	}
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = d.Threshold
	}
	if o.MaxExamples <= 0 {
		o.MaxExamples = d.MaxExamples
	}
	if o.BlockPrefix <= 0 {
		o.BlockPrefix = d.BlockPrefix
	}
	return o
}

// Occurrence is one sentence found in one register.
type Occurrence struct {
	Council     string
	Councillor  string
	Ward        string
	RegisterURL string
	Sentence    string
	normalized  string
}

func (o Occurrence) register() string {
	return o.Council + "\x00" + o.Councillor + "\x00" + o.RegisterURL
}

// Cluster is a group of similar sentences drawn from several registers.
type Cluster struct {
	Example       string       // first sentence of the cluster
	RegisterCount int          // distinct registers the sentence appears in
	Examples      []Occurrence // up to MaxExamples occurrences, in input order
}

var (
	sentenceBreak = regexp.MustCompile(`[\n\r]+|[.!?]+`)
	nonWord       = regexp.MustCompile(`[^a-z0-9\s]+`)
)

// Normalize lowercases s, replaces everything but ASCII letters, digits and
// spaces with a space and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(nonWord.ReplaceAllString(strings.ToLower(s), " ")), " ")
}

// SplitSentences splits register text on line breaks and sentence punctuation,
// keeping trimmed sentences whose length is within [minLen, maxLen].
func SplitSentences(text string, minLen, maxLen int) []string {
	var out []string
	for _, part := range sentenceBreak.Split(text, -1) {
		part = strings.TrimSpace(part)
		n := utf8.RuneCountInString(part)
		if part == "" || n < minLen || n > maxLen {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Similarity is 1 minus the Levenshtein distance over the longer length; 1 for
// identical strings.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
}

// SharedInterests clusters the sentences of texts and returns the clusters that
// span at least two registers, most widely shared first.
func SharedInterests(texts []types.RegisterText, opts Options) []Cluster {
	opts = opts.withDefaults()

	blocks := make(map[string][]Occurrence)
	var order []string
	for _, t := range texts {
		if t.Council == "" || t.Councillor == "" || t.RegisterURL == "" || strings.TrimSpace(t.ExtractedText) == "" {
			continue
		}
		for _, sentence := range SplitSentences(t.ExtractedText, opts.MinLength, opts.MaxLength) {
			norm := Normalize(sentence)
			if norm == "" {
				continue
			}
			key := prefix(norm, opts.BlockPrefix)
			if _, ok := blocks[key]; !ok {
				order = append(order, key)
			}
			blocks[key] = append(blocks[key], Occurrence{
				Council:     t.Council,
				Councillor:  t.Councillor,
				Ward:        t.Ward,
				RegisterURL: t.RegisterURL,
				Sentence:    sentence,
				normalized:  norm,
			})
		}
	}

	var clusters []Cluster
	for _, key := range order {
		clusters = append(clusters, clusterBlock(blocks[key], opts)...)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].RegisterCount > clusters[j].RegisterCount
	})
	return clusters
}

// clusterBlock greedily groups each unvisited occurrence with every later
// occurrence similar to it.
func clusterBlock(items []Occurrence, opts Options) []Cluster {
	var clusters []Cluster
	visited := make([]bool, len(items))
	for i := range items {
		if visited[i] {
			continue
		}
		visited[i] = true
		group := []Occurrence{items[i]}
		for j := i + 1; j < len(items); j++ {
			if visited[j] {
				continue
			}
			if Similarity(items[i].normalized, items[j].normalized) >= opts.Threshold {
				visited[j] = true
				group = append(group, items[j])
			}
		}

		registers := make(map[string]bool)
		for _, g := range group {
			registers[g.register()] = true
		}
		if len(registers) < 2 {
			continue
		}
		if len(group) > opts.MaxExamples {
			group = group[:opts.MaxExamples]
		}
		clusters = append(clusters, Cluster{
			Example:       group[0].Sentence,
			RegisterCount: len(registers),
			Examples:      group,
		})
	}
	return clusters
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
