package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/autoapply/internal/browser"
	"github.com/jonathan/autoapply/internal/portal"
	"github.com/jonathan/autoapply/internal/types"
)

// resultCard is one entry on a filtered results page.
type resultCard struct {
	url   string
	label string
}

// Paginate logs in to p, opens the filtered results at startURL and processes
// each results page in turn until the next-page control is missing or
// disabled, or the budget is exhausted.
func (o *Orchestrator) Paginate(ctx context.Context, p types.Portal, startURL string) (Summary, error) {
	sum := Summary{RunID: o.runID}
	o.attempted = make(map[string]struct{})

	adapter, ok := o.adapters[p]
	if !ok {
		return sum, fmt.Errorf("no adapter for portal %q", p)
	}
	pag := adapter.Site().Pagination
	if pag == nil {
		return sum, fmt.Errorf("portal %s does not support paginated results", p)
	}
	if err := o.ensureLogin(ctx, adapter); err != nil {
		return sum, err
	}

	o.log.Info("opening filtered results", "portal", p, "url", startURL)
	if err := o.page.Navigate(ctx, startURL); err != nil {
		return sum, fmt.Errorf("open filtered results: %w", err)
	}
	if err := o.page.Settle(ctx, o.settle); err != nil {
		return sum, fmt.Errorf("open filtered results: %w", err)
	}

	for !o.budget.Exhausted() {
		sum.Pages++
		log := o.log.With("page", sum.Pages)

		html, err := o.page.HTML(ctx)
		if err != nil {
			return sum, fmt.Errorf("read results page %d: %w", sum.Pages, err)
		}
		cards, err := resultCards(html, pag, adapter.Site().BaseURL)
		if err != nil {
			return sum, fmt.Errorf("parse results page %d: %w", sum.Pages, err)
		}
		log.Info("processing results page", "cards", len(cards))

		for _, card := range cards {
			if o.budget.Exhausted() {
				break
			}
			if strings.Contains(card.label, pag.AppliedMarker) || !strings.Contains(card.label, pag.RequiredLabel) {
				log.Debug("card not eligible", "url", card.url, "label", card.label)
				continue
			}
			if err := o.processListing(ctx, types.NewJobListing(card.url, p), &sum); err != nil {
				return sum, err
			}
		}

		if o.budget.Exhausted() {
			break
		}
		more, err := o.nextPage(ctx, pag, adapter.Site().BaseURL)
		if err != nil {
			return sum, err
		}
		if !more {
			log.Info("no further results pages")
			break
		}
	}

	o.log.Info("pagination finished",
		"pages", sum.Pages, "applied", sum.Applied, "skipped", sum.Skipped,
		"failed", sum.Failed, "duplicates", sum.Duplicates)
	return sum, nil
}

// nextPage activates the next-page control and waits for the results to
// change. It reports false when the control is missing or disabled, or when
// the results stay the same.
func (o *Orchestrator) nextPage(ctx context.Context, pag *portal.Pagination, baseURL string) (bool, error) {
	if err := o.page.WaitPresent(ctx, pag.NextSelector, o.element); err != nil {
		var timeoutErr *browser.TimeoutError
		if errors.As(err, &timeoutErr) {
			return false, nil
		}
		return false, fmt.Errorf("probe next page: %w", err)
	}

	html, err := o.page.HTML(ctx)
	if err != nil {
		return false, fmt.Errorf("probe next page: %w", err)
	}
	disabled, found, err := nextDisabled(html, pag)
	if err != nil {
		return false, fmt.Errorf("probe next page: %w", err)
	}
	if !found || disabled {
		return false, nil
	}
	before, err := o.resultsMarker(ctx, pag, baseURL)
	if err != nil {
		return false, fmt.Errorf("probe next page: %w", err)
	}

	if err := o.page.Click(ctx, browser.CSS(pag.NextSelector)); err != nil {
		o.log.Warn("could not move to next page", "error", err)
		return false, nil
	}
	if err := o.page.Settle(ctx, o.settle); err != nil {
		return false, fmt.Errorf("next results page: %w", err)
	}

	err = browser.Poll(ctx, "next results page", o.settle, browser.DefaultPollInterval, func(ctx context.Context) (bool, error) {
		after, err := o.resultsMarker(ctx, pag, baseURL)
		if err != nil {
			return false, err
		}
		return after != before, nil
	})
	if err != nil {
		var timeoutErr *browser.TimeoutError
		if errors.As(err, &timeoutErr) {
			o.log.Warn("results did not change after next page", "timeout", o.settle)
			return false, nil
		}
		return false, fmt.Errorf("next results page: %w", err)
	}
	return true, nil
}

// resultsMarker identifies the results currently shown by the page location
// and the first card's url.
func (o *Orchestrator) resultsMarker(ctx context.Context, pag *portal.Pagination, baseURL string) (string, error) {
	loc, err := o.page.Location(ctx)
	if err != nil {
		return "", err
	}
	html, err := o.page.HTML(ctx)
	if err != nil {
		return "", err
	}
	cards, err := resultCards(html, pag, baseURL)
	if err != nil {
		return "", err
	}
	if len(cards) == 0 {
		return loc, nil
	}
	return loc + " " + cards[0].url, nil
}

// resultCards lists the cards on a results page in document order, with hrefs
// made absolute. Cards repeated on the page are kept once.
func resultCards(html string, pag *portal.Pagination, baseURL string) ([]resultCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var cards []resultCard
	doc.Find(pag.CardSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		url := portal.Absolute(baseURL, href)
		if seen[url] {
			return
		}
		seen[url] = true

		label := strings.Join(strings.Fields(s.Text()), " ")
		if aria, ok := s.Attr("aria-label"); ok {
			label = strings.TrimSpace(label + " " + aria)
		}
		cards = append(cards, resultCard{url: url, label: label})
	})
	return cards, nil
}

// nextDisabled inspects the first next-page control for a disabled indicator.
func nextDisabled(html string, pag *portal.Pagination) (disabled, found bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, false, err
	}
	next := doc.Find(pag.NextSelector).First()
	if next.Length() == 0 {
		return false, false, nil
	}

	if pag.DisabledClass != "" && next.HasClass(pag.DisabledClass) {
		return true, true, nil
	}
	if aria, _ := next.Attr("aria-disabled"); strings.EqualFold(aria, "true") {
		return true, true, nil
	}
	if _, ok := next.Attr("disabled"); ok {
		return true, true, nil
	}
	return false, true, nil
}
