// Package observability provides run summaries for the CLI and Prometheus run metrics.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/council-registers/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the totals of a pipeline run.
func (p *Printer) PrintRunSummary(s *types.RunSummary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", s.Status))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", s.Duration.Round(time.Millisecond)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Councillors: %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("  skipped:   %d\n", s.Skipped))
	sb.WriteString(fmt.Sprintf("  processed: %d\n", s.Processed))
	sb.WriteString(fmt.Sprintf("  matched:   %d\n", s.Matched))
	sb.WriteString(fmt.Sprintf("  missing:   %d\n", s.Failed()))
	if s.StoreErrors > 0 {
		sb.WriteString(fmt.Sprintf("  not saved: %d\n", s.StoreErrors))
	}

	var issues []string
	for _, issue := range types.AllIssueTypes() {
		if n := s.Issues[issue]; n > 0 {
			issues = append(issues, fmt.Sprintf("  %-18s %d", issue, n))
		}
	}
	if len(issues) > 0 {
		sb.WriteString("\nAudit rows:\n")
		sb.WriteString(strings.Join(issues, "\n"))
		sb.WriteString("\n")
	}

	if len(s.Missing) > 0 {
		sb.WriteString("\nNo register:\n")
		count := min(len(s.Missing), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := s.Missing[i]
			sb.WriteString(fmt.Sprintf("  • %s (%s)\n", c.Name, c.Council))
		}
		if len(s.Missing) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(s.Missing)-maxItemsToShow))
		}
	}

	p.printBox("SCRAPE RUN SUMMARY", sb.String())
}

// PrintCandidates outputs the register candidates found for a council.
func (p *Printer) PrintCandidates(council, homepageURL string, urls []string) {
	var sb strings.Builder
	if homepageURL == "" {
		homepageURL = "(unknown)"
	}
	sb.WriteString(fmt.Sprintf("Homepage: %s\n", homepageURL))
	sb.WriteString(fmt.Sprintf("Found:    %d\n", len(urls)))
	for i, u := range urls {
		sb.WriteString(fmt.Sprintf("%2d. %s\n", i+1, u))
	}
	p.printBox("REGISTER CANDIDATES: "+council, sb.String())
}
