package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDefinesTables(t *testing.T) {
	for _, table := range []string{"councillors", "council_homepages", "councillor_registers", "scraping_audit", "scrape_runs"} {
		assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, Schema, "UNIQUE (councillor_id, register_url)")
	assert.Contains(t, Schema, "UNIQUE (name, council, ward)")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, def, max, want int
	}{
		{0, 100, 200, 100},
		{-5, 100, 200, 100},
		{50, 100, 200, 50},
		{500, 100, 200, 200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.limit, tt.def, tt.max))
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%smith%", likePattern("smith"))
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\d%`, likePattern(`c:\d`))
}
