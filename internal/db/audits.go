package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/council-registers/internal/types"
)

// DefaultAuditLimit is used when a filter does not set one.
const DefaultAuditLimit = 100

// MaxAuditLimit caps audit listings.
const MaxAuditLimit = 1000

// ListAudits returns audit rows matching the filter, newest first
func (db *DB) ListAudits(ctx context.Context, filter types.AuditFilter) ([]types.ScrapingAudit, error) {
	query := `SELECT id, run_id, councillor_id, profile_url, issue_type, details, created_at
		FROM scraping_audit`
	var conditions []string
	var args []any
	argNum := 1

	if filter.IssueType != "" {
		conditions = append(conditions, fmt.Sprintf("issue_type = $%d", argNum))
		args = append(args, string(filter.IssueType))
		argNum++
	}
	if filter.RunID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", argNum))
		args = append(args, filter.RunID)
		argNum++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argNum)
	args = append(args, clampLimit(filter.Limit, DefaultAuditLimit, MaxAuditLimit))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer rows.Close()

	var audits []types.ScrapingAudit
	for rows.Next() {
		var a types.ScrapingAudit
		var runID *uuid.UUID
		var issue string
		if err := rows.Scan(&a.ID, &runID, &a.CouncillorID, &a.ProfileURL, &issue, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		if runID != nil {
			a.RunID = *runID
		}
		a.IssueType = types.IssueType(issue)
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// CountAuditsByIssue returns the number of audit rows per issue type for a run.
// A nil run ID counts across all runs.
func (db *DB) CountAuditsByIssue(ctx context.Context, runID uuid.UUID) (map[types.IssueType]int, error) {
	query := `SELECT issue_type, COUNT(*) FROM scraping_audit`
	var args []any
	if runID != uuid.Nil {
		query += ` WHERE run_id = $1`
		args = append(args, runID)
	}
	query += ` GROUP BY issue_type`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count audits: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.IssueType]int)
	for rows.Next() {
		var issue string
		var n int
		if err := rows.Scan(&issue, &n); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		counts[types.IssueType(issue)] = n
	}
	return counts, rows.Err()
}

// -----------------------------------------------------------------------------
// Scrape Run Methods
// -----------------------------------------------------------------------------

// StartRun records the start of a pipeline run
func (db *DB) StartRun(ctx context.Context, runID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, status) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		runID, string(types.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun marks a pipeline run as finished with its final counts
func (db *DB) FinishRun(ctx context.Context, run types.ScrapeRun) error {
	completed := time.Now()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE scrape_runs
		 SET status = $1, completed_at = $2, processed = $3, matched = $4, failed = $5
		 WHERE id = $6`,
		string(run.Status), completed, run.Processed, run.Matched, run.Failed, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListRuns retrieves recent pipeline runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]types.ScrapeRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, processed, matched, failed
		 FROM scrape_runs ORDER BY started_at DESC LIMIT $1`,
		clampLimit(limit, 20, MaxAuditLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.ScrapeRun
	for rows.Next() {
		var run types.ScrapeRun
		var status string
		if err := rows.Scan(&run.ID, &status, &run.StartedAt, &run.CompletedAt, &run.Processed, &run.Matched, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = types.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
