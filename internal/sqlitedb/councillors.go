package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/council-registers/internal/types"
)

const councillorColumns = `id, name, council, ward, profile_url, next_election, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCouncillor(row rowScanner) (types.Councillor, error) {
	var c types.Councillor
	var profile, election sql.NullString
	var created string
	if err := row.Scan(&c.ID, &c.Name, &c.Council, &c.Ward, &profile, &election, &created); err != nil {
		return c, err
	}
	c.ProfileURL = nullString(profile)
	c.NextElection = nullString(election)
	t, err := parseTime(created)
	if err != nil {
		return c, err
	}
	c.CreatedAt = t
	return c, nil
}

// InsertCouncillor adds a seed row. It reports false when (name, council, ward) already exists.
func (s *Store) InsertCouncillor(ctx context.Context, c types.Councillor) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO councillors (name, council, ward, next_election, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name, council, ward) DO NOTHING`,
		strings.TrimSpace(c.Name), strings.TrimSpace(c.Council), strings.TrimSpace(c.Ward), c.NextElection, s.timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert councillor %q: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert councillor %q: %w", c.Name, err)
	}
	return n == 1, nil
}

// ListCouncillors returns every councillor in seed order.
func (s *Store) ListCouncillors(ctx context.Context) ([]types.Councillor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+councillorColumns+` FROM councillors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list councillors: %w", err)
	}
	defer rows.Close()

	var councillors []types.Councillor
	for rows.Next() {
		c, err := scanCouncillor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan councillor: %w", err)
		}
		councillors = append(councillors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate councillors: %w", err)
	}
	return councillors, nil
}

// GetCouncillor retrieves a councillor by ID, or nil.
func (s *Store) GetCouncillor(ctx context.Context, id int64) (*types.Councillor, error) {
	c, err := scanCouncillor(s.db.QueryRowContext(ctx,
		`SELECT `+councillorColumns+` FROM councillors WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get councillor: %w", err)
	}
	return &c, nil
}

// setProfileURLSQL leaves a URL already owned by another councillor alone.
const setProfileURLSQL = `UPDATE councillors SET profile_url = ?1
	 WHERE id = ?2
	   AND NOT EXISTS (SELECT 1 FROM councillors WHERE profile_url = ?1 AND id <> ?2)`

// SetCouncillorProfileURL records the profile page discovered for a councillor.
// A URL already owned by another councillor is left alone.
func (s *Store) SetCouncillorProfileURL(ctx context.Context, councillorID int64, profileURL string) error {
	_, err := s.db.ExecContext(ctx, setProfileURLSQL, profileURL, councillorID)
	if err != nil {
		return fmt.Errorf("failed to set profile url: %w", err)
	}
	return nil
}

// GetCouncilHomepage returns the cached homepage for a council, or nil.
func (s *Store) GetCouncilHomepage(ctx context.Context, council string) (*types.CouncilHomepage, error) {
	var h types.CouncilHomepage
	var discovered string
	err := s.db.QueryRowContext(ctx,
		`SELECT council, homepage_url, discovered_at FROM council_homepages WHERE council = ?`,
		council,
	).Scan(&h.Council, &h.HomepageURL, &discovered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get council homepage: %w", err)
	}
	if h.DiscoveredAt, err = parseTime(discovered); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpsertCouncilHomepage stores the homepage for a council, replacing any earlier one.
func (s *Store) UpsertCouncilHomepage(ctx context.Context, council, homepageURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO council_homepages (council, homepage_url, discovered_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (council) DO UPDATE
		 SET homepage_url = excluded.homepage_url, discovered_at = excluded.discovered_at`,
		council, homepageURL, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert council homepage: %w", err)
	}
	return nil
}
