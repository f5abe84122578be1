package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jonathan/council-registers/internal/types"
)

// TextColumns is the header of an exported register-text CSV.
var TextColumns = []string{"council", "councillor", "ward", "register_url", "content_type", "extracted_text"}

// ClusterColumns is the header of a shared-interests CSV.
var ClusterColumns = []string{"example_interest", "register_count", "example_councils", "example_councillors", "example_register_urls"}

// WriteTextsCSV writes one row per stored register.
func WriteTextsCSV(w io.Writer, texts []types.RegisterText) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TextColumns); err != nil {
		return err
	}
	for _, t := range texts {
		if err := cw.Write([]string{t.Council, t.Councillor, t.Ward, t.RegisterURL, t.ContentType, t.ExtractedText}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTextsCSV reads rows written by WriteTextsCSV. Columns are matched by
// header name, so extra or reordered columns are accepted.
func ReadTextsCSV(r io.Reader) ([]types.RegisterText, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("register text csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range []string{"council", "councillor", "register_url", "extracted_text"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("register text csv missing column %q", col)
		}
	}
	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var texts []types.RegisterText
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		texts = append(texts, types.RegisterText{
			Council:       field(rec, "council"),
			Councillor:    field(rec, "councillor"),
			Ward:          field(rec, "ward"),
			RegisterURL:   field(rec, "register_url"),
			ContentType:   field(rec, "content_type"),
			ExtractedText: field(rec, "extracted_text"),
		})
	}
	return texts, nil
}

// WriteClustersCSV writes one row per cluster. Example councils, councillors
// and register URLs are joined with " | ".
func WriteClustersCSV(w io.Writer, clusters []Cluster) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClusterColumns); err != nil {
		return err
	}
	for _, c := range clusters {
		councils := make([]string, 0, len(c.Examples))
		councillors := make([]string, 0, len(c.Examples))
		urls := make([]string, 0, len(c.Examples))
		for _, o := range c.Examples {
			councils = append(councils, o.Council)
			councillors = append(councillors, o.Councillor)
			urls = append(urls, o.RegisterURL)
		}
		row := []string{
			c.Example,
			strconv.Itoa(c.RegisterCount),
			strings.Join(councils, " | "),
			strings.Join(councillors, " | "),
			strings.Join(urls, " | "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
