package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/council-registers/internal/types"
)

// -----------------------------------------------------------------------------
// Councillor Methods
// -----------------------------------------------------------------------------

const councillorColumns = `id, name, council, ward, profile_url, next_election, created_at`

// InsertCouncillor adds a seed row. It reports false when (name, council, ward) already exists.
func (db *DB) InsertCouncillor(ctx context.Context, c types.Councillor) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO councillors (name, council, ward, next_election)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name, council, ward) DO NOTHING`,
		strings.TrimSpace(c.Name), strings.TrimSpace(c.Council), strings.TrimSpace(c.Ward), c.NextElection,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert councillor %q: %w", c.Name, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListCouncillors returns every councillor in seed order
func (db *DB) ListCouncillors(ctx context.Context) ([]types.Councillor, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+councillorColumns+` FROM councillors ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list councillors: %w", err)
	}
	defer rows.Close()

	var councillors []types.Councillor
	for rows.Next() {
		var c types.Councillor
		if err := rows.Scan(&c.ID, &c.Name, &c.Council, &c.Ward, &c.ProfileURL, &c.NextElection, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan councillor: %w", err)
		}
		councillors = append(councillors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate councillors: %w", err)
	}
	return councillors, nil
}

// GetCouncillor retrieves a councillor by ID
func (db *DB) GetCouncillor(ctx context.Context, id int64) (*types.Councillor, error) {
	var c types.Councillor
	err := db.pool.QueryRow(ctx,
		`SELECT `+councillorColumns+` FROM councillors WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Council, &c.Ward, &c.ProfileURL, &c.NextElection, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get councillor: %w", err)
	}
	return &c, nil
}

// setProfileURLSQL leaves a URL already owned by another councillor alone.
const setProfileURLSQL = `UPDATE councillors SET profile_url = $1
	 WHERE id = $2
	   AND NOT EXISTS (SELECT 1 FROM councillors WHERE profile_url = $1 AND id <> $2)`

// SetCouncillorProfileURL records the profile page discovered for a councillor.
// A URL already owned by another councillor is left alone.
func (db *DB) SetCouncillorProfileURL(ctx context.Context, councillorID int64, profileURL string) error {
	_, err := db.pool.Exec(ctx, setProfileURLSQL, profileURL, councillorID)
	if err != nil {
		return fmt.Errorf("failed to set profile url: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Council Homepage Methods
// -----------------------------------------------------------------------------

// GetCouncilHomepage returns the cached homepage for a council, or nil
func (db *DB) GetCouncilHomepage(ctx context.Context, council string) (*types.CouncilHomepage, error) {
	var h types.CouncilHomepage
	err := db.pool.QueryRow(ctx,
		`SELECT council, homepage_url, discovered_at FROM council_homepages WHERE council = $1`,
		council,
	).Scan(&h.Council, &h.HomepageURL, &h.DiscoveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get council homepage: %w", err)
	}
	return &h, nil
}

// UpsertCouncilHomepage stores the homepage for a council, replacing any earlier one
func (db *DB) UpsertCouncilHomepage(ctx context.Context, council, homepageURL string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO council_homepages (council, homepage_url)
		 VALUES ($1, $2)
		 ON CONFLICT (council) DO UPDATE
		 SET homepage_url = EXCLUDED.homepage_url, discovered_at = NOW()`,
		council, homepageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert council homepage: %w", err)
	}
	return nil
}
