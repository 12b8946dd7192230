package catalog

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Store is the read-only catalog. It is safe for concurrent use.
type Store struct {
	records    []Record
	byURL      map[string]int
	dim        int
	categories map[Category]bool
}

// NewStore validates records and builds a store over them. Embeddings are
// copied and unit-normalized; the caller's slices are not modified.
func NewStore(records []Record) (*Store, error) {
	return newStore("", records)
}

// Load reads a catalog JSON array from path. Every record must carry a
// non-zero embedding of the same dimension.
func Load(path string) (*Store, error) {
	records, err := LoadRecords(path)
	if err != nil {
		return nil, err
	}
	return newStore(path, records)
}

// LoadRecords reads a catalog JSON array without requiring embeddings.
// URLs must still be present and unique.
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Index: -1, Reason: "open", Err: err}
	}
	defer f.Close()
	return Decode(f, path)
}

// Decode reads a catalog JSON array from r. name is used in errors only.
func Decode(r io.Reader, name string) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, &LoadError{Path: name, Index: -1, Reason: "malformed catalog", Err: err}
	}
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.URL == "" {
			return nil, &LoadError{Path: name, Index: i, Reason: "missing url"}
		}
		if prev, dup := seen[rec.URL]; dup {
			return nil, &LoadError{Path: name, Index: i, URL: rec.URL, Reason: fmt.Sprintf("duplicate url (first seen at record %d)", prev)}
		}
		seen[rec.URL] = i
	}
	return records, nil
}

func newStore(path string, records []Record) (*Store, error) {
	if len(records) == 0 {
		return nil, &LoadError{Path: path, Index: -1, Reason: "catalog is empty"}
	}

	s := &Store{
		records:    make([]Record, len(records)),
		byURL:      make(map[string]int, len(records)),
		categories: make(map[Category]bool),
	}
	for i, rec := range records {
		if rec.URL == "" {
			return nil, &LoadError{Path: path, Index: i, Reason: "missing url"}
		}
		if _, dup := s.byURL[rec.URL]; dup {
			return nil, &LoadError{Path: path, Index: i, URL: rec.URL, Reason: "duplicate url"}
		}
		if len(rec.Embedding) == 0 {
			return nil, &LoadError{Path: path, Index: i, URL: rec.URL, Reason: "missing embedding"}
		}
		if s.dim == 0 {
			s.dim = len(rec.Embedding)
		} else if len(rec.Embedding) != s.dim {
			return nil, &LoadError{Path: path, Index: i, URL: rec.URL,
				Reason: fmt.Sprintf("embedding dimension %d, expected %d", len(rec.Embedding), s.dim)}
		}

		vec, err := Normalize(rec.Embedding)
		if err != nil {
			return nil, &LoadError{Path: path, Index: i, URL: rec.URL, Reason: "invalid embedding", Err: err}
		}
		rec.Embedding = vec

		s.records[i] = rec
		s.byURL[rec.URL] = i
		if c := rec.Category(); c != Uncategorized {
			s.categories[c] = true
		}
	}
	return s, nil
}

// Normalize returns a unit-length copy of v. Zero and non-finite vectors
// are rejected.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite component")
		}
		sum += f * f
	}
	if sum == 0 {
		return nil, fmt.Errorf("zero-norm vector")
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Get returns the record for url.
func (s *Store) Get(url string) (Record, bool) {
	i, ok := s.byURL[url]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// At returns the record at ingestion position i.
func (s *Store) At(i int) Record { return s.records[i] }

// All returns records in ingestion order. The slice must not be modified.
func (s *Store) All() []Record { return s.records }

// Count returns the number of records.
func (s *Store) Count() int { return len(s.records) }

// Dimension returns the embedding dimension shared by all records.
func (s *Store) Dimension() int { return s.dim }

// Position returns the ingestion index of url, or -1.
func (s *Store) Position(url string) int {
	if i, ok := s.byURL[url]; ok {
		return i
	}
	return -1
}

// HasCategory reports whether any record satisfies category c. Mixed
// records count for both broad categories.
func (s *Store) HasCategory(c Category) bool {
	for have := range s.categories {
		if have.Covers(c) {
			return true
		}
	}
	return false
}

// Save writes records as an indented JSON array, replacing path atomically.
func Save(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
