// Package portal - site.go holds the per-portal navigation endpoints and selectors.
package portal

import (
	"net/url"
	"strings"

	"github.com/jonathan/autoapply/internal/types"
)

// StepKind is the action a login step performs.
type StepKind int

const (
	// FillEmail types the account email into Target
	FillEmail StepKind = iota
	// FillPassword types the account password into Target
	FillPassword
	// ClickSelector clicks the first element matching the CSS selector Target
	ClickSelector
	// ClickLabel clicks the control labelled Target via the element locator
	ClickLabel
)

// LoginStep is one action in a portal's login form.
type LoginStep struct {
	Kind   StepKind
	Target string
}

// Pagination describes a portal's filtered result pages for single-portal mode.
type Pagination struct {
	// CardSelector matches the result cards that link to listings
	CardSelector string
	// RequiredLabel must appear in a card's text for it to be processed
	RequiredLabel string
	// AppliedMarker in a card's text means the portal already shows it as applied
	AppliedMarker string
	// NextSelector matches the next-page control
	NextSelector string
	// DisabledClass on the next-page control marks the last page
	DisabledClass string
}

// Site is everything that differs between portals.
type Site struct {
	Portal         types.Portal
	BaseURL        string
	LoginURL       string
	LoginSteps     []LoginStep
	SearchURL      string // contains a single %s for the escaped query
	ResultSelector string
	Pagination     *Pagination
}

// SearchPage returns the search URL for query.
func (s Site) SearchPage(query string) string {
	return strings.Replace(s.SearchURL, "%s", url.QueryEscape(query), 1)
}

// Dice is portal A.
var Dice = Site{
	Portal:   types.PortalDice,
	BaseURL:  "https://www.dice.com",
	LoginURL: "https://www.dice.com/dashboard/login",
	LoginSteps: []LoginStep{
		{Kind: FillEmail, Target: "input[name=email]"},
		{Kind: ClickLabel, Target: "Continue"},
		{Kind: FillPassword, Target: "input[name=password]"},
		{Kind: ClickLabel, Target: "Sign In"},
	},
	SearchURL:      "https://www.dice.com/jobs?q=%s",
	ResultSelector: "a[href*='/job-detail/']",
	Pagination: &Pagination{
		CardSelector:  "a[class*='inline-flex'][target='_blank']",
		RequiredLabel: "Easy Apply",
		AppliedMarker: "Applied",
		NextSelector:  "span[role='link'][aria-label='Next']",
		DisabledClass: "cursor-not-allowed",
	},
}

// LinkedIn is portal B.
var LinkedIn = Site{
	Portal:   types.PortalLinkedIn,
	BaseURL:  "https://www.linkedin.com",
	LoginURL: "https://www.linkedin.com/login",
	LoginSteps: []LoginStep{
		{Kind: FillEmail, Target: "input#username"},
		{Kind: FillPassword, Target: "input#password"},
		{Kind: ClickSelector, Target: "button[type='submit']"},
	},
	SearchURL:      "https://www.linkedin.com/jobs/search/?keywords=%s",
	ResultSelector: "a.base-card__full-link, a.result-card__full-card-link",
}

// Indeed is portal C.
var Indeed = Site{
	Portal:   types.PortalIndeed,
	BaseURL:  "https://www.indeed.com",
	LoginURL: "https://secure.indeed.com/account/login",
	LoginSteps: []LoginStep{
		{Kind: FillEmail, Target: "#login-email-input"},
		{Kind: FillPassword, Target: "#login-password-input"},
		{Kind: ClickSelector, Target: "button[type='submit']"},
	},
	SearchURL:      "https://www.indeed.com/jobs?q=%s",
	ResultSelector: "a[data-jk]",
}

// SiteFor returns the site table for p.
func SiteFor(p types.Portal) (Site, bool) {
	switch p {
	case types.PortalDice:
		return Dice, true
	case types.PortalLinkedIn:
		return LinkedIn, true
	case types.PortalIndeed:
		return Indeed, true
	default:
		return Site{}, false
	}
}

// Detect identifies the portal a listing URL belongs to.
func Detect(urlStr string) (types.Portal, bool) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(parsed.Host)

	switch {
	case host == "dice.com" || strings.HasSuffix(host, ".dice.com"):
		return types.PortalDice, true
	case host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com"):
		return types.PortalLinkedIn, true
	case host == "indeed.com" || strings.HasSuffix(host, ".indeed.com"):
		return types.PortalIndeed, true
	default:
		return "", false
	}
}
