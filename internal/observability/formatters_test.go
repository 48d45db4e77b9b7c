package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/autoapply/internal/session"
	"github.com/jonathan/autoapply/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(session.Summary{RunID: "run-42", Applied: 3, Skipped: 2, Failed: 1, Duplicates: 4, Searches: 2}, 30)
	output := buf.String()

	assert.Contains(t, output, "RUN SUMMARY")
	assert.Contains(t, output, "run-42")
	assert.Contains(t, output, "Applied:     3 / 30")
	assert.Contains(t, output, "Duplicates:  4")
	assert.Contains(t, output, "Searches:    2")
	assert.NotContains(t, output, "Pages:")
}

func TestPrintAppliedLog(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	at := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	p.PrintAppliedLog([]types.AppliedRecord{
		{URL: "https://www.dice.com/job-detail/1", Title: "Go Engineer", Company: "Acme", Portal: types.PortalDice, AppliedAt: at},
	})
	output := buf.String()

	assert.Contains(t, output, "APPLIED")
	assert.Contains(t, output, "Total applied: 1")
	assert.Contains(t, output, "2026-03-04 09:30  Go Engineer")
	assert.Contains(t, output, "Acme (dice)")
}

func TestPrintAppliedLog_ShowsMostRecent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var records []types.AppliedRecord
	for i := 0; i < maxItemsToShow+3; i++ {
		records = append(records, types.AppliedRecord{Title: fmt.Sprintf("Job %02d", i)})
	}
	p.PrintAppliedLog(records)
	output := buf.String()

	assert.NotContains(t, output, "Job 00")
	assert.Contains(t, output, fmt.Sprintf("Job %02d", maxItemsToShow+2))
	assert.Contains(t, output, "... and 3 earlier")
}

func TestPrintFailedLog_TalliesReasons(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintFailedLog([]types.FailedRecord{
		{Reason: types.ReasonNoApplyControl},
		{Reason: types.ReasonExperience},
		{Reason: types.ReasonNoApplyControl},
	})
	output := buf.String()

	assert.Contains(t, output, "Total not applied: 3")
	noApply := strings.Index(output, "• No apply control")
	experience := strings.Index(output, "• Experience requirement")
	assert.True(t, noApply >= 0 && experience > noApply, "most frequent reason is listed first")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}
