// Package wizard steps a listing through its portal's apply flow without
// knowing the flow's length or layout in advance.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/autoapply/internal/browser"
	"github.com/jonathan/autoapply/internal/experience"
	"github.com/jonathan/autoapply/internal/locator"
	"github.com/jonathan/autoapply/internal/types"
)

// SuccessPolicy decides when a run counts as applied. The engine cannot see
// whether the portal accepted an application, so this is a local policy.
type SuccessPolicy string

const (
	// PolicyApplyControl counts a run as applied once the apply control is activated.
	PolicyApplyControl SuccessPolicy = "apply_control"
	// PolicySecondaryControl additionally requires one secondary control
	// (Next, Submit, ...) to have been activated on the listing or its popup.
	PolicySecondaryControl SuccessPolicy = "secondary_control"
)

// Options configures a Driver.
type Options struct {
	Locator       *locator.Locator
	MaxYears      int
	Policy        SuccessPolicy
	SettleTimeout time.Duration
	PopupTimeout  time.Duration
	Logger        *slog.Logger
}

// Driver runs the apply flow for one listing at a time.
type Driver struct {
	locator  *locator.Locator
	maxYears int
	policy   SuccessPolicy
	settle   time.Duration
	popup    time.Duration
	log      *slog.Logger
}

// New creates a Driver.
func New(opts Options) *Driver {
	d := &Driver{
		locator:  opts.Locator,
		maxYears: opts.MaxYears,
		policy:   opts.Policy,
		settle:   opts.SettleTimeout,
		popup:    opts.PopupTimeout,
		log:      opts.Logger,
	}
	if d.locator == nil {
		d.locator = locator.Default()
	}
	if d.policy == "" {
		d.policy = PolicyApplyControl
	}
	if d.settle <= 0 {
		d.settle = 10 * time.Second
	}
	if d.popup <= 0 {
		d.popup = 2 * time.Second
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	d.log = d.log.With("component", "wizard")
	return d
}

// Run opens listing.URL on page and pushes it through the apply flow. Every
// step runs at most once. The returned outcome is terminal for this run.
func (d *Driver) Run(ctx context.Context, page browser.Page, listing types.JobListing) types.Outcome {
	log := d.log.With("url", listing.URL)

	if err := page.Navigate(ctx, listing.URL); err != nil {
		log.Warn("navigation failed", "error", err)
		return types.Failed(listing, reasonFor(err, types.ReasonNavigationFailed))
	}
	if err := page.Settle(ctx, d.settle); err != nil {
		log.Warn("listing did not settle", "error", err)
		return types.Failed(listing, reasonFor(err, types.ReasonPageTimeout))
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return types.Failed(listing, reasonFor(err, types.ReasonNavigationFailed))
	}
	details, err := extractDetails(html)
	if err != nil {
		log.Warn("could not parse listing", "error", err)
	}
	if details.title != "" {
		listing.Title = details.title
	}
	if details.company != "" {
		listing.Company = details.company
	}
	log = log.With("title", listing.Title, "company", listing.Company)

	controls, err := page.Controls(ctx)
	if err != nil {
		return types.Failed(listing, reasonFor(err, types.ReasonNavigationFailed))
	}
	if appliedMarkerShown(controls) {
		log.Info("portal shows listing as applied")
		return types.Skipped(listing, types.ReasonAlreadyApplied)
	}

	if details.hasDescription {
		text := listing.Title + " " + details.description
		if experience.ExceedsLimit(text, d.maxYears) {
			log.Info("skipped due to experience requirement",
				"years", experience.Extract(text), "max_years", d.maxYears)
			return types.Skipped(listing, types.ReasonExperience)
		}
	}

	watch := page.WatchPopup(ctx)
	defer watch.Stop()

	match, found, err := d.locator.Activate(ctx, page, locator.ApplyKeywords)
	if err != nil {
		log.Warn("apply control could not be activated", "error", err)
		return types.Failed(listing, reasonFor(err, types.ReasonElementNotFound))
	}
	if !found {
		log.Info("no apply control")
		return types.Failed(listing, types.ReasonNoApplyControl)
	}
	log.Info("activated apply control", "text", match.Text, "pass", match.Pass)

	secondary := d.secondaryStep(ctx, page, log)

	if popup, ok := watch.Wait(ctx, d.popup); ok {
		if d.runPopup(ctx, popup, log) {
			secondary = true
		}
	}

	if d.policy == PolicySecondaryControl && !secondary {
		log.Info("no secondary control activated")
		return types.Failed(listing, types.ReasonNoSecondary)
	}
	return types.Applied(listing)
}

// secondaryStep waits up to the settle timeout for a secondary control to be
// shown and activates at most one. Forms opened in place do not reload the
// document, so the wait is on the control itself.
func (d *Driver) secondaryStep(ctx context.Context, page browser.Page, log *slog.Logger) bool {
	if err := page.Settle(ctx, d.settle); err != nil {
		log.Debug("page did not settle after activation", "error", err)
	}
	match, found, err := d.locator.ActivateWithin(ctx, page, locator.SecondaryKeywords, d.settle)
	if err != nil {
		log.Debug("secondary control could not be activated", "error", err)
		return false
	}
	if found {
		log.Info("activated secondary control", "text", match.Text, "pass", match.Pass)
	}
	return found
}

// runPopup repeats the apply and secondary steps inside popup, then closes it.
// It reports whether a secondary control was activated there.
func (d *Driver) runPopup(ctx context.Context, popup browser.Page, log *slog.Logger) bool {
	defer func() {
		if err := popup.Close(ctx); err != nil {
			log.Debug("failed to close popup", "error", err)
		}
	}()

	log.Info("switched to popup")
	if err := popup.Settle(ctx, d.settle); err != nil {
		log.Debug("popup did not settle", "error", err)
	}

	match, found, err := d.locator.Activate(ctx, popup, locator.ApplyKeywords)
	switch {
	case err != nil:
		log.Debug("popup apply control could not be activated", "error", err)
	case found:
		log.Info("activated apply control in popup", "text", match.Text, "pass", match.Pass)
	}
	return d.secondaryStep(ctx, popup, log)
}

// reasonFor maps an error to a failure reason, defaulting to fallback.
func reasonFor(err error, fallback string) string {
	var timeoutErr *browser.TimeoutError
	var notFound *browser.ElementNotFoundError
	switch {
	case errors.As(err, &timeoutErr):
		return types.ReasonPageTimeout
	case errors.As(err, &notFound):
		return types.ReasonElementNotFound
	default:
		return fallback
	}
}

// ParsePolicy validates a configured policy name.
func ParsePolicy(name string) (SuccessPolicy, error) {
	switch SuccessPolicy(name) {
	case "", PolicyApplyControl:
		return PolicyApplyControl, nil
	case PolicySecondaryControl:
		return PolicySecondaryControl, nil
	default:
		return "", fmt.Errorf("unknown success policy %q", name)
	}
}
