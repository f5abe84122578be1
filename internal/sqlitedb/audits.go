package sqlitedb

import (
	"context"
	"database/sql"
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

// ListAudits returns audit rows matching the filter, newest first.
func (s *Store) ListAudits(ctx context.Context, filter types.AuditFilter) ([]types.ScrapingAudit, error) {
	query := `SELECT id, run_id, councillor_id, profile_url, issue_type, details, created_at FROM scraping_audit`
	var conditions []string
	var args []any
	if filter.IssueType != "" {
		conditions = append(conditions, "issue_type = ?")
		args = append(args, string(filter.IssueType))
	}
	if filter.RunID != uuid.Nil {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID.String())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit, DefaultAuditLimit, MaxAuditLimit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer rows.Close()

	var audits []types.ScrapingAudit
	for rows.Next() {
		var a types.ScrapingAudit
		var runID, profile sql.NullString
		var councillorID sql.NullInt64
		var issue, created string
		if err := rows.Scan(&a.ID, &runID, &councillorID, &profile, &issue, &a.Details, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		if runID.Valid {
			if a.RunID, err = uuid.Parse(runID.String); err != nil {
				return nil, fmt.Errorf("failed to parse run id: %w", err)
			}
		}
		if councillorID.Valid {
			id := councillorID.Int64
			a.CouncillorID = &id
		}
		a.ProfileURL = nullString(profile)
		a.IssueType = types.IssueType(issue)
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// CountAuditsByIssue returns the number of audit rows per issue type for a run.
// A nil run ID counts across all runs.
func (s *Store) CountAuditsByIssue(ctx context.Context, runID uuid.UUID) (map[types.IssueType]int, error) {
	query := `SELECT issue_type, COUNT(*) FROM scraping_audit`
	var args []any
	if runID != uuid.Nil {
		query += ` WHERE run_id = ?`
		args = append(args, runID.String())
	}
	query += ` GROUP BY issue_type`

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// StartRun records the start of a pipeline run.
func (s *Store) StartRun(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, status, started_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		runID.String(), string(types.RunRunning), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun marks a pipeline run as finished with its final counts.
func (s *Store) FinishRun(ctx context.Context, run types.ScrapeRun) error {
	completed := s.now()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs
		 SET status = ?, completed_at = ?, processed = ?, matched = ?, failed = ?
		 WHERE id = ?`,
		string(run.Status), formatTime(completed), run.Processed, run.Matched, run.Failed, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListRuns retrieves recent pipeline runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, processed, matched, failed
		 FROM scrape_runs ORDER BY started_at DESC LIMIT ?`,
		clampLimit(limit, 20, MaxAuditLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.ScrapeRun
	for rows.Next() {
		var run types.ScrapeRun
		var id, status, started string
		var completed sql.NullString
		if err := rows.Scan(&id, &status, &started, &completed, &run.Processed, &run.Matched, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse run id: %w", err)
		}
		run.Status = types.RunStatus(status)
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		var done *time.Time
		if done, err = parseNullTime(completed); err != nil {
			return nil, err
		}
		run.CompletedAt = done
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
