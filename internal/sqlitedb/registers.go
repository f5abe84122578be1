package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jonathan/council-registers/internal/types"
)

// MaxSearchResults caps register search listings.
const MaxSearchResults = 200

// HasRegister reports whether any register row exists for the councillor.
func (s *Store) HasRegister(ctx context.Context, councillorID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM councillor_registers WHERE councillor_id = ?)`,
		councillorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check register: %w", err)
	}
	return exists, nil
}

// RegisterExists reports whether the (councillor, url) pair is already stored.
func (s *Store) RegisterExists(ctx context.Context, councillorID int64, registerURL string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM councillor_registers WHERE councillor_id = ? AND register_url = ?)`,
		councillorID, registerURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check register: %w", err)
	}
	return exists, nil
}

// ListRegisters returns the registers stored for a councillor, newest first.
func (s *Store) ListRegisters(ctx context.Context, councillorID int64) ([]types.CouncillorRegister, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, councillor_id, register_url, fetched_at, content_type, pdf_bytes, COALESCE(extracted_text, '')
		 FROM councillor_registers WHERE councillor_id = ?
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
		var fetched string
		if err := rows.Scan(&r.ID, &r.CouncillorID, &r.RegisterURL, &fetched, &r.ContentType, &r.RawBytes, &r.ExtractedText); err != nil {
			return nil, fmt.Errorf("failed to scan register: %w", err)
		}
		if r.FetchedAt, err = parseTime(fetched); err != nil {
			return nil, err
		}
		registers = append(registers, r)
	}
	return registers, rows.Err()
}

// SaveOutcome commits a councillor's profile URL, register row and audit rows in
// one transaction.
func (s *Store) SaveOutcome(ctx context.Context, outcome *types.Outcome) error {
	if outcome == nil || outcome.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if outcome.ProfileURL != "" {
		if _, err := tx.ExecContext(ctx, setProfileURLSQL, outcome.ProfileURL, outcome.Councillor.ID); err != nil {
			return fmt.Errorf("failed to set profile url: %w", err)
		}
	}

	now := s.timestamp()
	if r := outcome.Register; r != nil {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO councillor_registers (councillor_id, register_url, fetched_at, content_type, pdf_bytes, extracted_text)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (councillor_id, register_url) DO NOTHING`,
			r.CouncillorID, r.RegisterURL, now, r.ContentType, r.RawBytes, r.ExtractedText,
		)
		if err != nil {
			return fmt.Errorf("failed to insert register: %w", err)
		}
	}

	for _, a := range outcome.Audits {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scraping_audit (run_id, councillor_id, profile_url, issue_type, details, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.RunID.String(), a.CouncillorID, a.ProfileURL, string(a.IssueType), a.Details, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert audit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}
	return nil
}

// SearchRegisters finds registers whose councillor name, council, ward or text contains term.
func (s *Store) SearchRegisters(ctx context.Context, term string, limit int) ([]types.RegisterMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	limit = clampLimit(limit, MaxSearchResults, MaxSearchResults)
	like := likePattern(term)

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.council, c.ward, r.register_url, r.fetched_at, r.content_type,
		        substr(COALESCE(r.extracted_text, ''), 1, ?1)
		 FROM councillor_registers r
		 JOIN councillors c ON c.id = r.councillor_id
		 WHERE c.name LIKE ?2 ESCAPE '\' OR c.council LIKE ?2 ESCAPE '\'
		    OR c.ward LIKE ?2 ESCAPE '\' OR r.extracted_text LIKE ?2 ESCAPE '\'
		 ORDER BY r.fetched_at DESC, r.id DESC
		 LIMIT ?3`,
		types.SnippetLength, like, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search registers: %w", err)
	}
	defer rows.Close()

	var matches []types.RegisterMatch
	for rows.Next() {
		var m types.RegisterMatch
		var fetched string
		var snippet sql.NullString
		if err := rows.Scan(&m.CouncillorID, &m.Name, &m.Council, &m.Ward, &m.RegisterURL, &fetched, &m.ContentType, &snippet); err != nil {
			return nil, fmt.Errorf("failed to scan register match: %w", err)
		}
		if m.FetchedAt, err = parseTime(fetched); err != nil {
			return nil, err
		}
		m.Snippet = snippet.String
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListRegisterTexts returns every stored register with its councillor, ordered
// by council, councillor and URL.
func (s *Store) ListRegisterTexts(ctx context.Context) ([]types.RegisterText, error) {
	rows, err := s.db.QueryContext(ctx,
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
