// Package portal implements login and search for each supported job board.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/autoapply/internal/browser"
	"github.com/jonathan/autoapply/internal/locator"
	"github.com/jonathan/autoapply/internal/types"
)

// ErrControlNotFound is returned when a labelled login control is missing.
var ErrControlNotFound = errors.New("control not found")

// ErrMissingCredentials is returned when Login is called without an email or password.
var ErrMissingCredentials = errors.New("missing credentials")

// Adapter is the login/search capability set of one portal.
type Adapter interface {
	Portal() types.Portal
	// Login fills the portal's login form and waits for the page to settle.
	// It does not verify that the login succeeded.
	Login(ctx context.Context, page browser.Page, creds types.Credentials) error
	// Search returns listing URLs for query, de-duplicated within the call.
	Search(ctx context.Context, page browser.Page, query string) ([]string, error)
	// Site returns the portal's endpoint and selector table.
	Site() Site
}

// Options configures adapters.
type Options struct {
	Locator        *locator.Locator
	SettleTimeout  time.Duration
	ElementTimeout time.Duration
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Locator == nil {
		o.Locator = locator.Default()
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 10 * time.Second
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type siteAdapter struct {
	site Site
	opts Options
	log  *slog.Logger
}

// New creates an adapter driven by site.
func New(site Site, opts Options) Adapter {
	opts = opts.withDefaults()
	return &siteAdapter{
		site: site,
		opts: opts,
		log:  opts.Logger.With("component", "portal", "portal", string(site.Portal)),
	}
}

// For returns the adapter for p.
func For(p types.Portal, opts Options) (Adapter, error) {
	site, ok := SiteFor(p)
	if !ok {
		return nil, fmt.Errorf("unsupported portal %q", p)
	}
	return New(site, opts), nil
}

// All returns one adapter per supported portal.
func All(opts Options) map[types.Portal]Adapter {
	adapters := make(map[types.Portal]Adapter, len(types.Portals))
	for _, p := range types.Portals {
		site, _ := SiteFor(p)
		adapters[p] = New(site, opts)
	}
	return adapters
}

func (a *siteAdapter) Portal() types.Portal {
	return a.site.Portal
}

func (a *siteAdapter) Site() Site {
	return a.site
}

func (a *siteAdapter) Login(ctx context.Context, page browser.Page, creds types.Credentials) error {
	if !creds.Complete() {
		return fmt.Errorf("%s login: %w", a.site.Portal, ErrMissingCredentials)
	}

	a.log.Info("navigating to login page", "url", a.site.LoginURL)
	if err := page.Navigate(ctx, a.site.LoginURL); err != nil {
		return fmt.Errorf("%s login: navigate: %w", a.site.Portal, err)
	}

	for i, step := range a.site.LoginSteps {
		if err := a.runStep(ctx, page, step, creds); err != nil {
			return fmt.Errorf("%s login step %d: %w", a.site.Portal, i+1, err)
		}
	}

	if err := page.Settle(ctx, a.opts.SettleTimeout); err != nil {
		return fmt.Errorf("%s login: settle: %w", a.site.Portal, err)
	}
	a.log.Info("login form submitted")
	return nil
}

func (a *siteAdapter) runStep(ctx context.Context, page browser.Page, step LoginStep, creds types.Credentials) error {
	switch step.Kind {
	case FillEmail:
		return page.Fill(ctx, step.Target, creds.Email)
	case FillPassword:
		return page.Fill(ctx, step.Target, creds.Password)
	case ClickSelector:
		if err := page.WaitPresent(ctx, step.Target, a.opts.ElementTimeout); err != nil {
			return err
		}
		return page.Click(ctx, browser.CSS(step.Target))
	case ClickLabel:
		_, found, err := a.opts.Locator.Activate(ctx, page, []string{step.Target})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrControlNotFound, step.Target)
		}
		return nil
	default:
		return fmt.Errorf("unknown login step kind %d", step.Kind)
	}
}

func (a *siteAdapter) Search(ctx context.Context, page browser.Page, query string) ([]string, error) {
	searchURL := a.site.SearchPage(query)
	a.log.Info("searching", "query", query, "url", searchURL)

	if err := page.Navigate(ctx, searchURL); err != nil {
		return nil, fmt.Errorf("%s search: navigate: %w", a.site.Portal, err)
	}
	if err := page.Settle(ctx, a.opts.SettleTimeout); err != nil {
		return nil, fmt.Errorf("%s search: settle: %w", a.site.Portal, err)
	}

	if err := page.WaitPresent(ctx, a.site.ResultSelector, a.opts.ElementTimeout); err != nil {
		var timeoutErr *browser.TimeoutError
		if errors.As(err, &timeoutErr) {
			a.log.Info("no results", "query", query)
			return nil, nil
		}
		return nil, fmt.Errorf("%s search: %w", a.site.Portal, err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s search: read results: %w", a.site.Portal, err)
	}

	links, err := ExtractLinks(html, a.site.ResultSelector, a.site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", a.site.Portal, err)
	}
	a.log.Info("found listings", "query", query, "count", len(links))
	return links, nil
}
