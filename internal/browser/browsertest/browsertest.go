// Package browsertest provides an in-memory browser.Page for tests.
//
// Pages are static HTML documents keyed by URL. Clicking an element follows
// its data-href attribute (same page) or data-popup attribute (new popup
// page). Every navigation, click, fill and tab is recorded on the Browser.
// Elements under a hidden or aria-hidden="true" attribute, or an inline style
// of display:none or visibility:hidden, are not reported as controls.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/autoapply/internal/browser"
)

const emptyDocument = "<html><head></head><body></body></html>"

var _ browser.Page = (*Page)(nil)

// Click records one activation.
type Click struct {
	URL   string
	Query string
	Index int
	Text  string
}

// Fill records one field entry.
type Fill struct {
	URL   string
	Field string
	Value string
}

// Browser is the shared state behind every fake page.
type Browser struct {
	Pages          map[string]string
	NavigateErrors map[string]error
	SettleErrors   map[string]error

	Navigations  []string
	Clicks       []Click
	Fills        []Fill
	TabsOpened   int
	TabsClosed   int
	PopupsOpened int
	PopupsClosed int
}

// NewBrowser returns a fake browser serving pages.
func NewBrowser(pages map[string]string) *Browser {
	if pages == nil {
		pages = map[string]string{}
	}
	return &Browser{
		Pages:          pages,
		NavigateErrors: map[string]error{},
		SettleErrors:   map[string]error{},
	}
}

// Page returns a new root page positioned on about:blank.
func (b *Browser) Page() *Page {
	return &Page{b: b, url: "about:blank", root: true}
}

// Navigated reports whether url was ever loaded by any page.
func (b *Browser) Navigated(url string) bool {
	for _, n := range b.Navigations {
		if n == url {
			return true
		}
	}
	return false
}

// NavigationCount returns how many times url was loaded.
func (b *Browser) NavigationCount(url string) int {
	count := 0
	for _, n := range b.Navigations {
		if n == url {
			count++
		}
	}
	return count
}

// ClickedTexts returns the trimmed text of every clicked element in order.
func (b *Browser) ClickedTexts() []string {
	texts := make([]string, 0, len(b.Clicks))
	for _, c := range b.Clicks {
		texts = append(texts, c.Text)
	}
	return texts
}

// Page is a fake browser.Page.
type Page struct {
	b      *Browser
	url    string
	root   bool
	popup  bool
	closed bool

	pendingPopup *Page
}

// URL returns the page's current URL without a context.
func (p *Page) URL() string {
	return p.url
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	return p.closed
}

func (p *Page) document() (*goquery.Document, error) {
	html, ok := p.b.Pages[p.url]
	if !ok {
		html = emptyDocument
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.b.Navigations = append(p.b.Navigations, url)
	if err := p.b.NavigateErrors[url]; err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *Page) Location(_ context.Context) (string, error) {
	return p.url, nil
}

func (p *Page) HTML(_ context.Context) (string, error) {
	if html, ok := p.b.Pages[p.url]; ok {
		return html, nil
	}
	return emptyDocument, nil
}

func (p *Page) Controls(ctx context.Context) ([]browser.Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := p.document()
	if err != nil {
		return nil, err
	}

	var controls []browser.Control
	doc.Find(browser.ControlQuery).Each(func(i int, s *goquery.Selection) {
		if hidden(s) {
			return
		}
		controls = append(controls, browser.Control{
			Index:      i,
			Text:       s.Text(),
			Link:       s.Is("a"),
			Navigation: s.Closest(browser.NavigationQuery).Length() > 0,
		})
	})
	return controls, nil
}

func hidden(s *goquery.Selection) bool {
	for n := s; n.Length() > 0; n = n.Parent() {
		if _, ok := n.Attr("hidden"); ok {
			return true
		}
		if aria, _ := n.Attr("aria-hidden"); strings.EqualFold(aria, "true") {
			return true
		}
		style, _ := n.Attr("style")
		style = strings.ToLower(strings.Join(strings.Fields(style), ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

func (p *Page) Click(ctx context.Context, sel browser.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := p.document()
	if err != nil {
		return err
	}
	nodes := doc.Find(sel.Query)
	if sel.Index < 0 || sel.Index >= nodes.Length() {
		return &browser.ElementNotFoundError{Selector: sel}
	}
	el := nodes.Eq(sel.Index)

	p.b.Clicks = append(p.b.Clicks, Click{
		URL:   p.url,
		Query: sel.Query,
		Index: sel.Index,
		Text:  strings.Join(strings.Fields(el.Text()), " "),
	})

	if target, ok := el.Attr("data-popup"); ok {
		p.pendingPopup = &Page{b: p.b, url: target, popup: true}
		p.b.PopupsOpened++
	}
	if target, ok := el.Attr("data-href"); ok {
		p.b.Navigations = append(p.b.Navigations, target)
		p.url = target
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, css, value string) error {
	if err := p.WaitPresent(ctx, css, 0); err != nil {
		return err
	}
	p.b.Fills = append(p.b.Fills, Fill{URL: p.url, Field: css, Value: value})
	return nil
}

func (p *Page) WaitPresent(ctx context.Context, css string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(css).Length() == 0 {
		return &browser.TimeoutError{Op: "element " + css, Timeout: timeout}
	}
	return nil
}

func (p *Page) Settle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.b.SettleErrors[p.url]; err != nil {
		return err
	}
	return nil
}

func (p *Page) WatchPopup(_ context.Context) browser.PopupWatch {
	p.pendingPopup = nil
	return &popupWatch{page: p}
}

func (p *Page) NewTab(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.b.TabsOpened++
	return &Page{b: p.b, url: "about:blank"}, nil
}

func (p *Page) Close(_ context.Context) error {
	if p.root {
		return nil
	}
	if p.closed {
		return fmt.Errorf("page %s already closed", p.url)
	}
	p.closed = true
	if p.popup {
		p.b.PopupsClosed++
	} else {
		p.b.TabsClosed++
	}
	return nil
}

type popupWatch struct {
	page    *Page
	stopped bool
}

func (w *popupWatch) Wait(_ context.Context, _ time.Duration) (browser.Page, bool) {
	defer w.Stop()
	popup := w.page.pendingPopup
	w.page.pendingPopup = nil
	if popup == nil {
		return nil, false
	}
	return popup, true
}

func (w *popupWatch) Stop() {
	w.stopped = true
}
