// Package types provides type definitions for structured data used throughout the autoapply system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// Portal identifies one of the supported job boards.
type Portal string

const (
	// PortalDice is the Dice job board
	PortalDice Portal = "dice"
	// PortalLinkedIn is the LinkedIn jobs board
	PortalLinkedIn Portal = "linkedin"
	// PortalIndeed is the Indeed job board
	PortalIndeed Portal = "indeed"
)

// Portals lists every supported portal in a stable order.
var Portals = []Portal{PortalDice, PortalLinkedIn, PortalIndeed}

// ParsePortal maps a configuration value to a Portal, ignoring case and surrounding space.
func ParsePortal(name string) (Portal, error) {
	p := Portal(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Portals {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown portal %q", name)
}

// Sentinels used when a listing page does not expose a title or company.
const (
	UnknownTitle   = "Unknown Title"
	UnknownCompany = "Unknown Company"
)

// SearchSpec is one query to run against one portal.
type SearchSpec struct {
	Portal Portal `json:"portal" yaml:"portal" validate:"required,oneof=dice linkedin indeed"`
	Query  string `json:"query" yaml:"query" validate:"required"`
}

// JobListing is a single posting discovered on a portal. URL is the unique key.
type JobListing struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Portal  Portal `json:"portal,omitempty"`
}

// NewJobListing returns a listing with the title and company sentinels filled in.
func NewJobListing(url string, portal Portal) JobListing {
	return JobListing{
		URL:     url,
		Title:   UnknownTitle,
		Company: UnknownCompany,
		Portal:  portal,
	}
}
