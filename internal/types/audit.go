package types

import (
	"time"

	"github.com/google/uuid"
)

// IssueType classifies a scraping audit row.
type IssueType string

const (
	// IssueNoHomepage means no official homepage could be resolved for the council.
	IssueNoHomepage IssueType = "no_homepage"
	// IssueNoRegisterFound means discovery produced no candidate register URLs.
	IssueNoRegisterFound IssueType = "no_register_found"
	// IssueFetchError means a candidate could not be downloaded.
	IssueFetchError IssueType = "fetch_error"
	// IssueParseError means a downloaded candidate could not be turned into text.
	IssueParseError IssueType = "parse_error"
	// IssueNoNameMatch means candidates were read but none named the councillor.
	IssueNoNameMatch IssueType = "no_name_match"
)

// AllIssueTypes lists every issue type in pipeline order.
func AllIssueTypes() []IssueType {
	return []IssueType{
		IssueNoHomepage,
		IssueNoRegisterFound,
		IssueFetchError,
		IssueParseError,
		IssueNoNameMatch,
	}
}

// Terminal reports whether the issue ends processing for a councillor.
func (t IssueType) Terminal() bool {
	switch t {
	case IssueNoHomepage, IssueNoRegisterFound, IssueNoNameMatch:
		return true
	}
	return false
}

// ScrapingAudit is an append-only record of a pipeline failure.
type ScrapingAudit struct {
	ID           int64     `json:"id"`
	RunID        uuid.UUID `json:"run_id"`
	CouncillorID *int64    `json:"councillor_id,omitempty"`
	ProfileURL   *string   `json:"profile_url,omitempty"`
	IssueType    IssueType `json:"issue_type"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	IssueType IssueType
	RunID     uuid.UUID
	Limit     int
}
