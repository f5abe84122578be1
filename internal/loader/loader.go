// Package loader reads the councillor seed CSV into the store.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/jonathan/council-registers/internal/types"
)

// Column names, matched case-insensitively.
const (
	ColCouncil      = "council"
	ColWard         = "ward"
	ColName         = "name"
	ColNextElection = "next election"
)

var requiredColumns = []string{ColCouncil, ColWard, ColName}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var yearOnly = regexp.MustCompile(`^\d{4}$`)

// Store receives councillor rows.
type Store interface {
	InsertCouncillor(ctx context.Context, c types.Councillor) (bool, error)
}

// Stats counts what a load did.
type Stats struct {
	Read       int
	Inserted   int
	Duplicates int
	Skipped    int
	// Encoding is the detected source charset when the file was not UTF-8.
	Encoding string
}

// HeaderError reports a CSV header missing required columns.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("csv header missing required columns: %s", strings.Join(e.Missing, ", "))
}

// LoadCouncillors reads seed rows from r and inserts them. Rows without a name
// or council are skipped. Rows already present (same name, council and ward)
// count as duplicates.
func LoadCouncillors(ctx context.Context, r io.Reader, store Store) (Stats, error) {
	logger := slog.Default()
	var stats Stats

	data, err := io.ReadAll(r)
	if err != nil {
		return stats, fmt.Errorf("failed to read csv: %w", err)
	}
	data, stats.Encoding, err = toUTF8(data)
	if err != nil {
		return stats, err
	}
	if stats.Encoding != "" {
		logger.Info("transcoded seed csv", "encoding", stats.Encoding)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return stats, &HeaderError{Missing: requiredColumns}
		}
		return stats, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return stats, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read csv row %d: %w", stats.Read+2, err)
		}
		stats.Read++

		c, ok := rowToCouncillor(record, cols)
		if !ok {
			stats.Skipped++
			logger.Debug("skipping incomplete row", "row", stats.Read+1)
			continue
		}
		if c.NextElection != nil && !validElection(*c.NextElection) {
			logger.Warn("unrecognised next election value", "name", c.Name, "value", *c.NextElection)
		}

		inserted, err := store.InsertCouncillor(ctx, c)
		if err != nil {
			return stats, fmt.Errorf("failed to insert %s (%s): %w", c.Name, c.Council, err)
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}

	logger.Info("loaded councillors", "read", stats.Read, "inserted", stats.Inserted,
		"duplicates", stats.Duplicates, "skipped", stats.Skipped)
	return stats, nil
}

func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	var missing []string
	for _, want := range requiredColumns {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}
	return cols, nil
}

func rowToCouncillor(record []string, cols map[string]int) (types.Councillor, bool) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	c := types.Councillor{
		Name:    field(ColName),
		Council: field(ColCouncil),
		Ward:    field(ColWard),
	}
	if c.Name == "" || c.Council == "" {
		return c, false
	}
	if next := field(ColNextElection); next != "" {
		c.NextElection = &next
	}
	return c, true
}

// validElection accepts a bare year or anything dateparse understands.
func validElection(value string) bool {
	if yearOnly.MatchString(value) {
		return true
	}
	_, err := dateparse.ParseAny(value)
	return err == nil
}

// toUTF8 strips a UTF-8 BOM, or detects and transcodes other charsets. The
// returned encoding name is empty for UTF-8 input.
func toUTF8(data []byte) ([]byte, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, "", nil
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to detect csv encoding: %w", err)
	}
	charset := result.Charset
	enc, err := htmlindex.Get(charset)
	if err != nil {
		// Latin-1 family is the usual spreadsheet export
		charset = "windows-1252"
		enc, _ = htmlindex.Get(charset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode csv as %s: %w", charset, err)
	}
	return out, strings.ToLower(charset), nil
}
