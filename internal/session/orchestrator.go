package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jonathan/autoapply/internal/browser"
	"github.com/jonathan/autoapply/internal/portal"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
	"github.com/jonathan/autoapply/internal/wizard"
)

// Summary counts what a run did.
type Summary struct {
	RunID      string `json:"run_id"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Duplicates int    `json:"duplicates"`
	Pages      int    `json:"pages"`
	Searches   int    `json:"searches"`
}

// Options configures an Orchestrator. Page, Adapters, Applied, Log and
// Driver are required.
type Options struct {
	Page        browser.Page
	Adapters    map[types.Portal]portal.Adapter
	Credentials map[types.Portal]types.Credentials
	Applied     *store.AppliedSet
	Log         store.OutcomeLog
	Driver      *wizard.Driver
	ApplyLimit  int

	// ListingsPerMinute paces listing navigations. Zero disables pacing.
	ListingsPerMinute float64
	SettleTimeout     time.Duration
	ElementTimeout    time.Duration

	RunID  string
	Now    func() time.Time
	Logger *slog.Logger
}

// Orchestrator owns the browser page, the budget and the applied set for one run.
type Orchestrator struct {
	page     browser.Page
	adapters map[types.Portal]portal.Adapter
	creds    map[types.Portal]types.Credentials
	applied  *store.AppliedSet
	outcomes store.OutcomeLog
	driver   *wizard.Driver
	budget   *Budget
	loggedIn map[types.Portal]bool
	pacer    *rate.Limiter
	settle   time.Duration
	element  time.Duration
	runID    string
	now      func() time.Time
	log      *slog.Logger

	// attempted holds every url opened during the current Run or Paginate
	// call. It is never persisted.
	attempted map[string]struct{}
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Page == nil:
		return nil, errors.New("session: page is required")
	case len(opts.Adapters) == 0:
		return nil, errors.New("session: at least one portal adapter is required")
	case opts.Applied == nil:
		return nil, errors.New("session: applied set is required")
	case opts.Log == nil:
		return nil, errors.New("session: outcome log is required")
	case opts.Driver == nil:
		return nil, errors.New("session: wizard driver is required")
	}

	o := &Orchestrator{
		page:     opts.Page,
		adapters: opts.Adapters,
		creds:    opts.Credentials,
		applied:  opts.Applied,
		outcomes: opts.Log,
		driver:   opts.Driver,
		budget:   NewBudget(opts.ApplyLimit),
		loggedIn: make(map[types.Portal]bool),
		pacer:    newPacer(opts.ListingsPerMinute),
		settle:   opts.SettleTimeout,
		element:  opts.ElementTimeout,
		runID:    opts.RunID,
		now:      opts.Now,
		log:      opts.Logger,
	}
	if o.creds == nil {
		o.creds = map[types.Portal]types.Credentials{}
	}
	if o.settle <= 0 {
		o.settle = 10 * time.Second
	}
	if o.element <= 0 {
		o.element = 10 * time.Second
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	o.log = o.log.With("component", "session", "run_id", o.runID)
	return o, nil
}

func newPacer(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), 1)
}

// RunID identifies the records written by this orchestrator.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Budget returns the run's apply budget.
func (o *Orchestrator) Budget() *Budget {
	return o.budget
}

// Run executes specs in order. Each distinct portal is logged in once. The
// loop stops as soon as the budget is exhausted. A failed search skips its
// spec; a failed login aborts the run with a *LoginError.
func (o *Orchestrator) Run(ctx context.Context, specs []types.SearchSpec) (Summary, error) {
	sum := Summary{RunID: o.runID}
	o.attempted = make(map[string]struct{})

	for _, spec := range specs {
		if o.budget.Exhausted() {
			o.log.Info("apply limit reached", "limit", o.budget.Limit())
			break
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		adapter, ok := o.adapters[spec.Portal]
		if !ok {
			return sum, fmt.Errorf("no adapter for portal %q", spec.Portal)
		}
		if err := o.ensureLogin(ctx, adapter); err != nil {
			return sum, err
		}

		urls, err := adapter.Search(ctx, o.page, spec.Query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			o.log.Warn("search failed, skipping", "portal", spec.Portal, "query", spec.Query, "error", err)
			continue
		}
		sum.Searches++

		for _, url := range urls {
			if o.budget.Exhausted() {
				break
			}
			if err := o.processListing(ctx, types.NewJobListing(url, spec.Portal), &sum); err != nil {
				return sum, err
			}
		}
	}

	o.log.Info("run finished",
		"applied", sum.Applied, "skipped", sum.Skipped, "failed", sum.Failed,
		"duplicates", sum.Duplicates, "searches", sum.Searches)
	return sum, nil
}

func (o *Orchestrator) ensureLogin(ctx context.Context, adapter portal.Adapter) error {
	p := adapter.Portal()
	if o.loggedIn[p] {
		return nil
	}
	if err := adapter.Login(ctx, o.page, o.creds[p]); err != nil {
		return &LoginError{Portal: p, Message: "login failed", Cause: err}
	}
	o.loggedIn[p] = true
	o.log.Info("logged in", "portal", p)
	return nil
}

// processListing takes one listing from discovery to a terminal outcome. Only
// context cancellation and storage failures are returned.
func (o *Orchestrator) processListing(ctx context.Context, listing types.JobListing, sum *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := o.log.With("url", listing.URL)

	if o.applied.Contains(listing.URL) {
		log.Debug("already applied, skipping")
		sum.Duplicates++
		return nil
	}
	if _, ok := o.attempted[listing.URL]; ok {
		log.Debug("already attempted in this run, skipping")
		sum.Duplicates++
		return nil
	}
	o.attempted[listing.URL] = struct{}{}

	if err := o.pacer.Wait(ctx); err != nil {
		return err
	}

	var outcome types.Outcome
	tab, err := o.page.NewTab(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Warn("could not open tab", "error", err)
		outcome = types.Failed(listing, types.ReasonNavigationFailed)
	} else {
		outcome = o.driver.Run(ctx, tab, listing)
		if err := tab.Close(ctx); err != nil {
			log.Debug("failed to close tab", "error", err)
		}
	}

	return o.record(ctx, outcome, sum)
}

func (o *Orchestrator) record(ctx context.Context, outcome types.Outcome, sum *Summary) error {
	listing := outcome.Listing
	now := o.now()

	switch outcome.Status {
	case types.StatusApplied:
		if err := o.applied.Add(ctx, listing.URL); err != nil {
			return fmt.Errorf("record applied listing: %w", err)
		}
		if err := o.outcomes.AppendApplied(ctx, types.NewAppliedRecord(listing, o.runID, now)); err != nil {
			return fmt.Errorf("record applied listing: %w", err)
		}
		if err := o.budget.Record(); err != nil {
			return err
		}
		sum.Applied++
		o.log.Info("applied",
			"url", listing.URL, "title", listing.Title, "company", listing.Company,
			"count", o.budget.Count(), "limit", o.budget.Limit())
	case types.StatusSkipped, types.StatusFailed:
		if err := o.outcomes.AppendFailed(ctx, types.NewFailedRecord(listing, o.runID, outcome.Reason, now)); err != nil {
			return fmt.Errorf("record failed listing: %w", err)
		}
		if outcome.Status == types.StatusSkipped {
			sum.Skipped++
		} else {
			sum.Failed++
		}
		o.log.Info("not applied", "url", listing.URL, "status", outcome.Status, "reason", outcome.Reason)
	default:
		return fmt.Errorf("unknown outcome status %q", outcome.Status)
	}
	return nil
}
