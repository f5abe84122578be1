// Package types provides the records shared by the discovery pipeline, the stores and the CLI.
package types

import "time"

// Councillor is a seed record loaded from the councillor CSV.
type Councillor struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Council      string    `json:"council"`
	Ward         string    `json:"ward,omitempty"` // empty when the seed row had no ward
	ProfileURL   *string   `json:"profile_url,omitempty"`
	NextElection *string   `json:"next_election,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WardOrDefault returns the ward, or "no ward" for logging.
func (c *Councillor) WardOrDefault() string {
	if c.Ward == "" {
		return "no ward"
	}
	return c.Ward
}

// CouncilHomepage caches the official homepage discovered for a council.
type CouncilHomepage struct {
	Council      string    `json:"council"`
	HomepageURL  string    `json:"homepage_url"`
	DiscoveredAt time.Time `json:"discovered_at"`
}
