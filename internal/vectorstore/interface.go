// Package vectorstore provides nearest-neighbour search over catalog
// embeddings.
//
// Three backends implement Index: FlatIndex, an exact brute-force cosine
// scan; ChromemIndex, backed by an in-memory chromem-go collection; and
// QdrantIndex, backed by a Qdrant server over gRPC. All return identical
// orderings: similarity descending, ties broken by ingestion position.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
)

// ErrIndex is matched by every *IndexError.
var ErrIndex = errors.New("vector index error")

// IndexError reports an invalid vector at build or query time.
// Position is -1 for query vectors and catalog-level failures.
type IndexError struct {
	Op       string // "build" or "search"
	ID       string
	Position int
	Reason   string
}

func (e *IndexError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("vectorstore %s: %s (position %d): %s", e.Op, e.ID, e.Position, e.Reason)
	}
	return fmt.Sprintf("vectorstore %s: %s", e.Op, e.Reason)
}

// Is makes errors.Is(err, ErrIndex) hold for any *IndexError.
func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// Match is one search hit.
type Match struct {
	ID         string
	Position   int
	Similarity float32
}

// Index answers top-n cosine similarity queries over a fixed set of vectors.
// Implementations are immutable after construction and safe for concurrent
// use.
type Index interface {
	// Search returns at most n matches ordered by similarity descending and
	// then by position ascending. n is clamped to Len(); n <= 0 yields no
	// matches. Query vectors need not be normalized.
	Search(ctx context.Context, vector []float32, n int) ([]Match, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Dimension returns the vector dimension.
	Dimension() int
}

// entry is a normalized vector ready for scoring.
type entry struct {
	id  string
	pos int
	vec []float32
}

// prepare validates and normalizes catalog vectors.
func prepare(records []catalog.Record) ([]entry, int, error) {
	if len(records) == 0 {
		return nil, 0, &IndexError{Op: "build", Position: -1, Reason: "no records to index"}
	}
	dim := len(records[0].Embedding)
	entries := make([]entry, len(records))
	for i, r := range records {
		if len(r.Embedding) != dim || dim == 0 {
			return nil, 0, &IndexError{Op: "build", ID: r.URL, Position: i,
				Reason: fmt.Sprintf("dimension %d, expected %d", len(r.Embedding), dim)}
		}
		vec, err := catalog.Normalize(r.Embedding)
		if err != nil {
			return nil, 0, &IndexError{Op: "build", ID: r.URL, Position: i, Reason: err.Error()}
		}
		entries[i] = entry{id: r.URL, pos: i, vec: vec}
	}
	return entries, dim, nil
}

// prepareQuery validates and normalizes a query vector.
func prepareQuery(vector []float32, dim int) ([]float32, error) {
	if len(vector) != dim {
		return nil, &IndexError{Op: "search", Position: -1,
			Reason: fmt.Sprintf("query dimension %d, index dimension %d", len(vector), dim)}
	}
	vec, err := catalog.Normalize(vector)
	if err != nil {
		return nil, &IndexError{Op: "search", Position: -1, Reason: "query vector: " + err.Error()}
	}
	return vec, nil
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return clampSimilarity(float32(sum))
}

func clampSimilarity(s float32) float32 {
	switch {
	case math.IsNaN(float64(s)):
		return -1
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// sortMatches orders by similarity descending, then position ascending.
func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Similarity != m[j].Similarity {
			return m[i].Similarity > m[j].Similarity
		}
		return m[i].Position < m[j].Position
	})
}

func clampN(n, size int) int {
	if n > size {
		return size
	}
	return n
}
