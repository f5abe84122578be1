package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a scrape run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// ScrapeRun records one invocation of the matching pipeline.
type ScrapeRun struct {
	ID          uuid.UUID  `json:"id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Processed   int        `json:"processed"`
	Matched     int        `json:"matched"`
	Failed      int        `json:"failed"`
}

// RunSummary tallies what one pipeline run did.
type RunSummary struct {
	RunID     uuid.UUID
	Status    RunStatus
	StartedAt time.Time
	Duration  time.Duration
	// Total is the number of councillors in the seed list.
	Total int
	// Skipped councillors already had a register and were not reprocessed.
	Skipped   int
	Processed int
	Matched   int
	// StoreErrors counts outcomes that could not be committed.
	StoreErrors int
	Issues      map[IssueType]int
	// Missing lists councillors that ended the run without a register.
	Missing []Councillor
}

// NewRunSummary returns an empty summary for a run.
func NewRunSummary(runID uuid.UUID, started time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		Status:    RunRunning,
		StartedAt: started,
		Issues:    make(map[IssueType]int),
	}
}

// Failed is the number of processed councillors that ended without a register.
func (s *RunSummary) Failed() int {
	return s.Processed - s.Matched
}

// Record folds one committed outcome into the summary.
func (s *RunSummary) Record(o *Outcome) {
	s.Processed++
	for _, a := range o.Audits {
		s.Issues[a.IssueType]++
	}
	if o.Matched() {
		s.Matched++
		return
	}
	s.Missing = append(s.Missing, o.Councillor)
}

// Run converts the summary into the persisted run record.
func (s *RunSummary) Run() ScrapeRun {
	completed := s.StartedAt.Add(s.Duration)
	return ScrapeRun{
		ID:          s.RunID,
		Status:      s.Status,
		StartedAt:   s.StartedAt,
		CompletedAt: &completed,
		Processed:   s.Processed,
		Matched:     s.Matched,
		Failed:      s.Failed(),
	}
}
