// Package browser - chrome.go drives a real Chrome/Chromium instance through chromedp.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// deepQueryAll collects matches of a selector in document order, descending
// into open shadow roots so web component controls are reachable.
const deepQueryAll = `const deepQueryAll = (root, q) => {
	const out = [];
	const visit = (node) => {
		for (const el of node.children) {
			if (el.matches(q)) out.push(el);
			if (el.shadowRoot) visit(el.shadowRoot);
			visit(el);
		}
	};
	visit(root);
	return out;
};
const within = (el, sel) => {
	for (let node = el; node; node = node.getRootNode().host) {
		if (node.closest(sel)) return true;
	}
	return false;
};`

// DefaultUserAgent is sent by launched browsers unless Options overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a launched browser.
type Options struct {
	Headless        bool
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	PageLoadTimeout time.Duration
	ElementTimeout  time.Duration
	Logger          *slog.Logger
}

// DefaultOptions returns sensible defaults for an interactive session.
func DefaultOptions() Options {
	return Options{
		Headless:        false,
		UserAgent:       DefaultUserAgent,
		WindowWidth:     1440,
		WindowHeight:    900,
		PageLoadTimeout: 30 * time.Second,
		ElementTimeout:  10 * time.Second,
	}
}

// Browser owns the Chrome process and its root tab.
type Browser struct {
	root        *chromePage
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
}

// Launch starts Chrome and opens the root tab. Requires Chrome/Chromium to be
// installed on the system.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = DefaultOptions().PageLoadTimeout
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = DefaultOptions().ElementTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	logger := opts.Logger.With("component", "browser")
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	// An empty Run starts the browser and attaches the first tab.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		root:        &chromePage{ctx: tabCtx, opts: opts, root: true},
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
	}, nil
}

// Page returns the root tab.
func (b *Browser) Page() Page {
	return b.root
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.tabCancel()
	b.allocCancel()
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	root   bool
}

// run executes actions against this tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Timeout: timeout, Cause: err}
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, "navigation to "+url, p.opts.PageLoadTimeout, chromedp.Navigate(url))
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, "location", p.opts.ElementTimeout, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, "document html", p.opts.ElementTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Controls(ctx context.Context) ([]Control, error) {
	query, err := json.Marshal(ControlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selector: %w", err)
	}
	nav, err := json.Marshal(NavigationQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selector: %w", err)
	}
	script := fmt.Sprintf(`(() => {
		%s
		const hidden = (el) => {
			if (within(el, '[hidden], [aria-hidden="true"]')) return true;
			const style = getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden') return true;
			return el.getClientRects().length === 0;
		};
		const out = [];
		deepQueryAll(document, %s).forEach((el, index) => {
			if (hidden(el)) return;
			out.push({
				index: index,
				text: el.innerText || el.textContent || '',
				link: el.tagName === 'A',
				navigation: within(el, %s),
			});
		});
		return out;
	})()`, deepQueryAll, query, nav)

	var controls []Control
	if err := p.run(ctx, "controls", p.opts.ElementTimeout, chromedp.Evaluate(script, &controls)); err != nil {
		return nil, err
	}
	return controls, nil
}

func (p *chromePage) Click(ctx context.Context, sel Selector) error {
	query, err := json.Marshal(sel.Query)
	if err != nil {
		return fmt.Errorf("failed to encode selector: %w", err)
	}
	script := fmt.Sprintf(`(() => {
		%s
		const el = deepQueryAll(document, %s)[%d];
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	})()`, deepQueryAll, query, sel.Index)

	var clicked bool
	if err := p.run(ctx, "click "+sel.Query, p.opts.ElementTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return &ElementNotFoundError{Selector: sel}
	}
	return nil
}

func (p *chromePage) Fill(ctx context.Context, css, value string) error {
	return p.run(ctx, "field "+css, p.opts.ElementTimeout,
		chromedp.WaitVisible(css, chromedp.ByQuery),
		chromedp.Clear(css, chromedp.ByQuery),
		chromedp.SendKeys(css, value, chromedp.ByQuery),
	)
}

func (p *chromePage) WaitPresent(ctx context.Context, css string, timeout time.Duration) error {
	return p.run(ctx, "element "+css, timeout, chromedp.WaitReady(css, chromedp.ByQuery))
}

func (p *chromePage) Settle(ctx context.Context, timeout time.Duration) error {
	return Poll(ctx, "document ready", timeout, DefaultPollInterval, func(ctx context.Context) (bool, error) {
		var state string
		if err := p.run(ctx, "document ready", timeout, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

func (p *chromePage) WatchPopup(_ context.Context) PopupWatch {
	watchCtx, cancel := context.WithCancel(p.ctx)
	var opener target.ID
	if c := chromedp.FromContext(p.ctx); c != nil && c.Target != nil {
		opener = c.Target.TargetID
	}
	ch := chromedp.WaitNewTarget(watchCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID == opener
	})
	return &chromePopupWatch{parent: p, ch: ch, cancel: cancel}
}

func (p *chromePage) NewTab(_ context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(p.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel, opts: p.opts}, nil
}

func (p *chromePage) Close(_ context.Context) error {
	if p.root || p.cancel == nil {
		return nil
	}
	// Cancelling a non-root chromedp context closes its target.
	p.cancel()
	return nil
}

type chromePopupWatch struct {
	parent *chromePage
	ch     <-chan target.ID
	cancel context.CancelFunc
}

func (w *chromePopupWatch) Wait(ctx context.Context, timeout time.Duration) (Page, bool) {
	defer w.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id, ok := <-w.ch:
		if !ok || id == "" {
			return nil, false
		}
		popupCtx, cancel := chromedp.NewContext(w.parent.ctx, chromedp.WithTargetID(id))
		if err := chromedp.Run(popupCtx); err != nil {
			cancel()
			return nil, false
		}
		return &chromePage{ctx: popupCtx, cancel: cancel, opts: w.parent.opts}, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (w *chromePopupWatch) Stop() {
	w.cancel()
}
