package types

import (
	"time"

	"github.com/google/uuid"
)

// CouncillorRegister records that a register document was fetched and matched to a councillor.
type CouncillorRegister struct {
	ID            int64     `json:"id"`
	CouncillorID  int64     `json:"councillor_id"`
	RegisterURL   string    `json:"register_url"`
	FetchedAt     time.Time `json:"fetched_at"`
	ContentType   string    `json:"content_type"`
	RawBytes      []byte    `json:"-"` // kept for PDFs only
	ExtractedText string    `json:"extracted_text,omitempty"`
}

// RegisterMatch is a register row joined with its councillor, as returned by text search.
type RegisterMatch struct {
	CouncillorID int64     `json:"councillor_id"`
	Name         string    `json:"name"`
	Council      string    `json:"council"`
	Ward         string    `json:"ward,omitempty"`
	RegisterURL  string    `json:"register_url"`
	FetchedAt    time.Time `json:"fetched_at"`
	ContentType  string    `json:"content_type"`
	Snippet      string    `json:"snippet"`
}

// SnippetLength is the number of characters of extracted text returned with a search match.
const SnippetLength = 800

// Outcome collects everything produced while processing one councillor.
// A store commits an Outcome atomically.
type Outcome struct {
	RunID      uuid.UUID
	Councillor Councillor
	Register   *CouncillorRegister
	Audits     []ScrapingAudit
	// ProfileURL is a newly discovered profile page to record on the councillor.
	ProfileURL string
	// AlreadyStored is set when the matching register row existed before this run.
	AlreadyStored bool
}

// Empty reports whether committing the outcome would write nothing.
func (o *Outcome) Empty() bool {
	return o.Register == nil && len(o.Audits) == 0 && o.ProfileURL == ""
}

// RegisterText is a stored register joined with its councillor, as exported
// for analysis.
type RegisterText struct {
	Council       string `json:"council"`
	Councillor    string `json:"councillor"`
	Ward          string `json:"ward,omitempty"`
	RegisterURL   string `json:"register_url"`
	ContentType   string `json:"content_type"`
	ExtractedText string `json:"extracted_text"`
}

// AddAudit appends an audit row for the outcome's councillor.
func (o *Outcome) AddAudit(issue IssueType, details string) {
	id := o.Councillor.ID
	o.Audits = append(o.Audits, ScrapingAudit{
		RunID:        o.RunID,
		CouncillorID: &id,
		ProfileURL:   o.Councillor.ProfileURL,
		IssueType:    issue,
		Details:      details,
	})
}

// Matched reports whether the councillor ended with a register document.
func (o *Outcome) Matched() bool {
	return o.Register != nil || o.AlreadyStored
}
