// Package observability provides formatted run summaries and log reports for the CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/autoapply/internal/session"
	"github.com/jonathan/autoapply/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// maxItemsToShow is the default number of log entries to display
	maxItemsToShow = 10
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

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most width runes, ending in "..." when cut.
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

// PrintRunSummary outputs the counters of a finished run.
func (p *Printer) PrintRunSummary(sum session.Summary, limit int) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:         %s\n", sum.RunID))
	sb.WriteString(fmt.Sprintf("Applied:     %d / %d\n", sum.Applied, limit))
	sb.WriteString(fmt.Sprintf("Skipped:     %d\n", sum.Skipped))
	sb.WriteString(fmt.Sprintf("Failed:      %d\n", sum.Failed))
	sb.WriteString(fmt.Sprintf("Duplicates:  %d\n", sum.Duplicates))
	if sum.Searches > 0 {
		sb.WriteString(fmt.Sprintf("Searches:    %d\n", sum.Searches))
	}
	if sum.Pages > 0 {
		sb.WriteString(fmt.Sprintf("Pages:       %d\n", sum.Pages))
	}

	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAppliedLog outputs the most recent applied records.
func (p *Printer) PrintAppliedLog(records []types.AppliedRecord) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total applied: %d\n", len(records)))

	start := max(len(records)-maxItemsToShow, 0)
	for _, rec := range records[start:] {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s  %s\n", rec.AppliedAt.Format("2006-01-02 15:04"), rec.Title))
		sb.WriteString(fmt.Sprintf("    %s", rec.Company))
		if rec.Portal != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", rec.Portal))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("    %s\n", rec.URL))
	}
	if start > 0 {
		sb.WriteString(fmt.Sprintf("\n... and %d earlier", start))
	}

	p.printBox("APPLIED", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFailedLog outputs failure counts by reason followed by the most recent failed records.
func (p *Printer) PrintFailedLog(records []types.FailedRecord) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total not applied: %d\n", len(records)))

	if tally := tallyReasons(records); len(tally) > 0 {
		sb.WriteString("\nBy reason:\n")
		for _, rc := range tally {
			sb.WriteString(fmt.Sprintf("  • %-28s %d\n", rc.reason, rc.count))
		}
	}

	start := max(len(records)-maxItemsToShow, 0)
	for _, rec := range records[start:] {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s  %s\n", rec.FailedAt.Format("2006-01-02 15:04"), rec.Reason))
		sb.WriteString(fmt.Sprintf("    %s at %s\n", rec.Title, rec.Company))
		sb.WriteString(fmt.Sprintf("    %s\n", rec.URL))
	}
	if start > 0 {
		sb.WriteString(fmt.Sprintf("\n... and %d earlier", start))
	}

	p.printBox("NOT APPLIED", strings.TrimSuffix(sb.String(), "\n"))
}

type reasonCount struct {
	reason string
	count  int
}

// tallyReasons counts records per reason, most frequent first, ties by name.
func tallyReasons(records []types.FailedRecord) []reasonCount {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Reason]++
	}

	tally := make([]reasonCount, 0, len(counts))
	for reason, n := range counts {
		tally = append(tally, reasonCount{reason: reason, count: n})
	}
	sort.Slice(tally, func(i, j int) bool {
		if tally[i].count != tally[j].count {
			return tally[i].count > tally[j].count
		}
		return tally[i].reason < tally[j].reason
	})
	return tally
}
