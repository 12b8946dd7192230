package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// ErrLoad is matched by errors from Load.
var ErrLoad = errors.New("training table load failed")

// Column headers of the labeled CSV format.
const (
	QueryColumn = "Query"
	URLColumn   = "Assessment_url"
)

// LabeledSet is the JSON form: one object per query with its relevant
// URLs.
type LabeledSet struct {
	Query    string   `json:"query"`
	Relevant []string `json:"relevant"`
}

// Load reads a table from a CSV (Query,Assessment_url) or JSON
// ([{query, relevant}]) file, chosen by extension.
func Load(path string) (*Table, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	return NewTable(rows), nil
}

// ReadRows reads labeled rows in file order.
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeJSON(f, path)
	default:
		return decodeCSV(f, path)
	}
}

func decodeJSON(r io.Reader, path string) ([]Row, error) {
	var sets []LabeledSet
	if err := json.NewDecoder(r).Decode(&sets); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	var rows []Row
	for _, s := range sets {
		for _, u := range s.Relevant {
			rows = append(rows, Row{Query: s.Query, URL: u})
		}
	}
	return rows, nil
}

func decodeCSV(r io.Reader, path string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading header: %w", ErrLoad, path, err)
	}
	qi, ui := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case QueryColumn:
			qi = i
		case URLColumn:
			ui = i
		}
	}
	if qi < 0 || ui < 0 {
		return nil, fmt.Errorf("%w: %s: header must contain %s and %s", ErrLoad, path, QueryColumn, URLColumn)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
		}
		if qi >= len(rec) || ui >= len(rec) {
			return nil, fmt.Errorf("%w: %s: line %d has %d fields", ErrLoad, path, line, len(rec))
		}
		rows = append(rows, Row{Query: rec[qi], URL: rec[ui]})
	}
	return rows, nil
}

// ReadQueries reads the distinct queries of an unlabeled file in first-seen
// order. CSV files need only a Query column; JSON files use the same
// [{query}] shape as labeled sets.
func ReadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	var raw []string
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var sets []LabeledSet
		if err := json.NewDecoder(f).Decode(&sets); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
		}
		for _, s := range sets {
			raw = append(raw, s.Query)
		}
	} else {
		cr := csv.NewReader(f)
		cr.FieldsPerRecord = -1
		header, err := cr.Read()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: reading header: %w", ErrLoad, path, err)
		}
		qi := -1
		for i, h := range header {
			if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == QueryColumn {
				qi = i
			}
		}
		if qi < 0 {
			return nil, fmt.Errorf("%w: %s: header must contain %s", ErrLoad, path, QueryColumn)
		}
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
			}
			if qi < len(rec) {
				raw = append(raw, rec[qi])
			}
		}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		if strings.TrimSpace(q) == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out, nil
}
