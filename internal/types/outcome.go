package types

import "time"

// OutcomeStatus is the terminal state of a single listing.
type OutcomeStatus string

const (
	// StatusApplied means the apply control was activated
	StatusApplied OutcomeStatus = "applied"
	// StatusSkipped means the listing was deliberately not attempted
	StatusSkipped OutcomeStatus = "skipped"
	// StatusFailed means an attempt was made and could not proceed
	StatusFailed OutcomeStatus = "failed"
)

// Reasons recorded for skipped and failed listings.
const (
	ReasonExperience       = "Experience requirement"
	ReasonNoApplyControl   = "No apply control"
	ReasonNoSecondary      = "No secondary control"
	ReasonAlreadyApplied   = "Already applied"
	ReasonDuplicate        = "Duplicate"
	ReasonPageTimeout      = "Page timeout"
	ReasonElementNotFound  = "Element not found"
	ReasonNavigationFailed = "Navigation failed"
)

// Outcome is the result of processing one listing.
type Outcome struct {
	Status  OutcomeStatus
	Reason  string
	Listing JobListing
}

// Applied builds an applied outcome.
func Applied(listing JobListing) Outcome {
	return Outcome{Status: StatusApplied, Listing: listing}
}

// Skipped builds a skipped outcome with the given reason.
func Skipped(listing JobListing, reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason, Listing: listing}
}

// Failed builds a failed outcome with the given reason.
func Failed(listing JobListing, reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Listing: listing}
}

// AppliedRecord is an append-only log entry for a successful apply.
type AppliedRecord struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	Portal    Portal    `json:"portal,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// FailedRecord is an append-only log entry for a skipped or failed listing.
type FailedRecord struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Company  string    `json:"company"`
	Portal   Portal    `json:"portal,omitempty"`
	RunID    string    `json:"run_id,omitempty"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// NewAppliedRecord stamps a listing as applied at the given time.
func NewAppliedRecord(listing JobListing, runID string, at time.Time) AppliedRecord {
	return AppliedRecord{
		URL:       listing.URL,
		Title:     listing.Title,
		Company:   listing.Company,
		Portal:    listing.Portal,
		RunID:     runID,
		AppliedAt: at,
	}
}

// NewFailedRecord stamps a listing as failed or skipped for reason at the given time.
func NewFailedRecord(listing JobListing, runID, reason string, at time.Time) FailedRecord {
	return FailedRecord{
		URL:      listing.URL,
		Title:    listing.Title,
		Company:  listing.Company,
		Portal:   listing.Portal,
		RunID:    runID,
		Reason:   reason,
		FailedAt: at,
	}
}
