package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/council-registers/internal/types"
)

// MaxSearchResults caps register search listings.
const MaxSearchResults = 200

// HasRegister reports whether any register row exists for the councillor
func (db *DB) HasRegister(ctx context.Context, councillorID int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM councillor_registers WHERE councillor_id = $1)`,
		councillorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check register: %w", err)
	}
	return exists, nil
}

// RegisterExists reports whether the (councillor, url) pair is already stored
func (db *DB) RegisterExists(ctx context.Context, councillorID int64, registerURL string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM councillor_registers WHERE councillor_id = $1 AND register_url = $2)`,
		councillorID, registerURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check register: %w", err)
	}
	return exists, nil
}

// ListRegisters returns the registers stored for a councillor, newest first
func (db *DB) ListRegisters(ctx context.Context, councillorID int64) ([]types.CouncillorRegister, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, councillor_id, register_url, fetched_at, content_type, pdf_bytes, COALESCE(extracted_text, '')
		 FROM councillor_registers WHERE councillor_id = $1
		 ORDER BY fetched_at DESC, id DESC`,
		councillorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list registers: %w", err)
	}
	defer rows.Close()

	var registers []types.CouncillorRegister
	for rows.Next() {
		var r types.CouncillorRegister
		if err := rows.Scan(&r.ID, &r.CouncillorID, &r.RegisterURL, &r.FetchedAt, &r.ContentType, &r.RawBytes, &r.ExtractedText); err != nil {
			return nil, fmt.Errorf("failed to scan register: %w", err)
		}
		registers = append(registers, r)
	}
	return registers, rows.Err()
}

// SaveOutcome commits a councillor's profile URL, register row and audit rows in
// one transaction. The register insert is a no-op when the pair already exists.
func (db *DB) SaveOutcome(ctx context.Context, outcome *types.Outcome) error {
	if outcome == nil || outcome.Empty() {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if outcome.ProfileURL != "" {
		if _, err := tx.Exec(ctx, setProfileURLSQL, outcome.ProfileURL, outcome.Councillor.ID); err != nil {
			return fmt.Errorf("failed to set profile url: %w", err)
		}
	}

	if r := outcome.Register; r != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO councillor_registers (councillor_id, register_url, content_type, pdf_bytes, extracted_text)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (councillor_id, register_url) DO NOTHING`,
			r.CouncillorID, r.RegisterURL, r.ContentType, r.RawBytes, r.ExtractedText,
		)
		if err != nil {
			return fmt.Errorf("failed to insert register: %w", err)
		}
	}

	if len(outcome.Audits) > 0 {
		batch := &pgx.Batch{}
		for _, a := range outcome.Audits {
			batch.Queue(
				`INSERT INTO scraping_audit (run_id, councillor_id, profile_url, issue_type, details)
				 VALUES ($1, $2, $3, $4, $5)`,
				a.RunID, a.CouncillorID, a.ProfileURL, string(a.IssueType), a.Details,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert audits: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}
	return nil
}

// SearchRegisters finds registers whose councillor name, council, ward or text contains term
func (db *DB) SearchRegisters(ctx context.Context, term string, limit int) ([]types.RegisterMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	limit = clampLimit(limit, MaxSearchResults, MaxSearchResults)

	rows, err := db.pool.Query(ctx,
		`SELECT c.id, c.name, c.council, c.ward, r.register_url, r.fetched_at, r.content_type,
		        LEFT(COALESCE(r.extracted_text, ''), $2)
		 FROM councillor_registers r
		 JOIN councillors c ON c.id = r.councillor_id
		 WHERE c.name ILIKE $1 OR c.council ILIKE $1 OR c.ward ILIKE $1 OR r.extracted_text ILIKE $1
		 ORDER BY r.fetched_at DESC
		 LIMIT $3`,
		likePattern(term), types.SnippetLength, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search registers: %w", err)
	}
	defer rows.Close()

	var matches []types.RegisterMatch
	for rows.Next() {
		var m types.RegisterMatch
		if err := rows.Scan(&m.CouncillorID, &m.Name, &m.Council, &m.Ward, &m.RegisterURL, &m.FetchedAt, &m.ContentType, &m.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan register match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListRegisterTexts returns every stored register with its councillor, ordered
// by council, councillor and URL.
func (db *DB) ListRegisterTexts(ctx context.Context) ([]types.RegisterText, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT c.council, c.name, c.ward, r.register_url, r.content_type, COALESCE(r.extracted_text, '')
		 FROM councillor_registers r
		 JOIN councillors c ON c.id = r.councillor_id
		 ORDER BY c.council, c.name, r.register_url`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list register texts: %w", err)
	}
	defer rows.Close()

	var texts []types.RegisterText
	for rows.Next() {
		var t types.RegisterText
		if err := rows.Scan(&t.Council, &t.Councillor, &t.Ward, &t.RegisterURL, &t.ContentType, &t.ExtractedText); err != nil {
			return nil, fmt.Errorf("failed to scan register text: %w", err)
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}
