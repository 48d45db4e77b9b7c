// Package browser provides the page abstraction the apply engine drives, plus a
// Chrome implementation built on chromedp.
package browser

import (
	"context"
	"time"
)

// ControlQuery matches every clickable control the engine considers. Selectors
// built on it index into document order, with the contents of open shadow roots
// placed ahead of their host's light children.
const ControlQuery = `button, a, [role="button"]`

// NavigationQuery matches page chrome whose controls belong to the site rather
// than to the listing.
const NavigationQuery = `nav, header, [role="navigation"]`

// Control is one visible element matching ControlQuery.
type Control struct {
	// Index addresses the element as Selector{Query: ControlQuery, Index: Index}.
	Index int    `json:"index"`
	Text  string `json:"text"`
	Link  bool   `json:"link"`
	// Navigation is set for controls inside a NavigationQuery element.
	Navigation bool `json:"navigation"`
}

// Selector returns the selector that clicks c.
func (c Control) Selector() Selector {
	return Selector{Query: ControlQuery, Index: c.Index}
}

// Selector addresses the Index-th element (document order) matching the CSS Query.
type Selector struct {
	Query string
	Index int
}

// CSS returns a selector for the first element matching query.
func CSS(query string) Selector {
	return Selector{Query: query}
}

// Page is a single browser context (tab, window or popup). Only one page is
// operated on at a time; switching between pages is a synchronous call.
type Page interface {
	// Navigate loads url and waits for the load event, bounded by the page load timeout.
	Navigate(ctx context.Context, url string) error
	// Location returns the current URL.
	Location(ctx context.Context) (string, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// Controls returns the visible controls in document order. Hidden
	// elements are left out but keep their place in the index sequence.
	Controls(ctx context.Context) ([]Control, error)
	// Click activates the element addressed by sel.
	Click(ctx context.Context, sel Selector) error
	// Fill waits for the field matching css and types value into it.
	Fill(ctx context.Context, css, value string) error
	// WaitPresent waits until an element matching css exists.
	WaitPresent(ctx context.Context, css string, timeout time.Duration) error
	// Settle waits until the document reports it has finished loading.
	Settle(ctx context.Context, timeout time.Duration) error
	// WatchPopup starts listening for a page opened by this one. Call before
	// the action that may open it.
	WatchPopup(ctx context.Context) PopupWatch
	// NewTab opens a blank tab in the same browser.
	NewTab(ctx context.Context) (Page, error)
	// Close discards the page. Closing the root page is a no-op.
	Close(ctx context.Context) error
}

// PopupWatch waits for a popup opened after WatchPopup was called.
type PopupWatch interface {
	// Wait returns the popup, or false if none opened within timeout.
	Wait(ctx context.Context, timeout time.Duration) (Page, bool)
	// Stop releases the listener. Safe to call more than once.
	Stop()
}
