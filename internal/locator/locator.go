// Package locator finds and activates UI controls by their visible label, first
// by exact text and then by fuzzy similarity.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/autoapply/internal/browser"
)

// Pass identifies which pass produced a match.
type Pass string

const (
	// PassExact means a control's text equalled a keyword
	PassExact Pass = "exact"
	// PassFuzzy means a control's text was similar enough to a keyword
	PassFuzzy Pass = "fuzzy"
)

// Keyword sets used by the apply flow.
var (
	ApplyKeywords = []string{
		"Easy Apply",
		"Apply on company site",
		"Apply Now",
		"Apply",
	}
	SecondaryKeywords = []string{
		"Next",
		"Continue",
		"Submit",
		"Submit application",
		"Finish",
		"Complete",
	}
)

// Match describes the control that was activated.
type Match struct {
	Pass     Pass
	Keyword  string
	Text     string
	Score    float64
	Selector browser.Selector
}

// Options configures the fuzzy pass.
type Options struct {
	Comparator Comparator
	Threshold  float64
}

// Locator activates controls by label.
type Locator struct {
	comparator Comparator
	threshold  float64
}

// New creates a Locator. Zero-valued options fall back to SequenceRatio and DefaultThreshold.
func New(opts Options) *Locator {
	l := &Locator{
		comparator: opts.Comparator,
		threshold:  opts.Threshold,
	}
	if l.comparator == nil {
		l.comparator = SequenceRatio
	}
	if l.threshold <= 0 {
		l.threshold = DefaultThreshold
	}
	return l
}

// Default returns a Locator with default options.
func Default() *Locator {
	return New(Options{})
}

// control is one visible clickable element in document order.
type control struct {
	index  int
	button bool
	text   string
}

// Activate clicks the first visible control matching one of keywords. The
// exact pass tries each keyword in order against buttons then links; the fuzzy
// pass runs only when the exact pass found nothing. found is false when neither
// pass matched, in which case nothing was clicked. No pass is retried.
func (l *Locator) Activate(ctx context.Context, page browser.Page, keywords []string) (Match, bool, error) {
	match, found, err := l.Find(ctx, page, keywords)
	if err != nil || !found {
		return Match{}, false, err
	}
	return l.click(ctx, page, match)
}

// ActivateWithin waits up to timeout for a control matching keywords to be
// shown, then clicks it. Running out of time is reported as found == false
// with a nil error.
func (l *Locator) ActivateWithin(ctx context.Context, page browser.Page, keywords []string, timeout time.Duration) (Match, bool, error) {
	var match Match
	op := "control " + strings.Join(keywords, "|")
	err := browser.Poll(ctx, op, timeout, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		m, found, err := l.Find(ctx, page, keywords)
		if err != nil || !found {
			return false, err
		}
		match = m
		return true, nil
	})
	if err != nil {
		var timeoutErr *browser.TimeoutError
		if errors.As(err, &timeoutErr) {
			return Match{}, false, nil
		}
		return Match{}, false, err
	}
	return l.click(ctx, page, match)
}

// Find runs both passes without clicking.
func (l *Locator) Find(ctx context.Context, page browser.Page, keywords []string) (Match, bool, error) {
	controls, err := readControls(ctx, page)
	if err != nil {
		return Match{}, false, err
	}
	match, ok := l.exact(controls, keywords)
	if !ok {
		match, ok = l.fuzzy(controls, keywords)
	}
	return match, ok, nil
}

func (l *Locator) click(ctx context.Context, page browser.Page, match Match) (Match, bool, error) {
	if err := page.Click(ctx, match.Selector); err != nil {
		return Match{}, false, fmt.Errorf("failed to activate %q: %w", match.Text, err)
	}
	return match, true, nil
}

func (l *Locator) exact(controls []control, keywords []string) (Match, bool) {
	for _, kw := range keywords {
		want := normalizeText(kw)
		for _, wantButton := range []bool{true, false} {
			for _, c := range controls {
				if c.button == wantButton && c.text == want {
					return Match{
						Pass:     PassExact,
						Keyword:  kw,
						Text:     c.text,
						Score:    1,
						Selector: browser.Selector{Query: browser.ControlQuery, Index: c.index},
					}, true
				}
			}
		}
	}
	return Match{}, false
}

func (l *Locator) fuzzy(controls []control, keywords []string) (Match, bool) {
	for _, c := range controls {
		text := strings.ToLower(c.text)
		for _, kw := range keywords {
			score := l.comparator.Similarity(text, strings.ToLower(kw))
			if score > l.threshold {
				return Match{
					Pass:     PassFuzzy,
					Keyword:  kw,
					Text:     c.text,
					Score:    score,
					Selector: browser.Selector{Query: browser.ControlQuery, Index: c.index},
				}, true
			}
		}
	}
	return Match{}, false
}

func readControls(ctx context.Context, page browser.Page) ([]control, error) {
	visible, err := page.Controls(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read controls: %w", err)
	}

	controls := make([]control, 0, len(visible))
	for _, c := range visible {
		controls = append(controls, control{
			index:  c.Index,
			button: !c.Link,
			text:   normalizeText(c.Text),
		})
	}
	return controls, nil
}

// normalizeText trims and collapses internal whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
