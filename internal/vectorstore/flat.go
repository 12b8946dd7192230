package vectorstore

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("assessd/vectorstore")

// FlatIndex is an exact cosine index that scores every vector per query.
// A few hundred catalog entries make this cheaper than any ANN structure.
type FlatIndex struct {
	entries []entry
	dim     int
}

// NewFlatIndex indexes the embeddings of records in order. Record i gets
// position i.
func NewFlatIndex(records []catalog.Record) (*FlatIndex, error) {
	entries, dim, err := prepare(records)
	if err != nil {
		return nil, err
	}
	return &FlatIndex{entries: entries, dim: dim}, nil
}

// Search implements Index.
func (f *FlatIndex) Search(ctx context.Context, vector []float32, n int) ([]Match, error) {
	_, span := tracer.Start(ctx, "FlatIndex.Search")
	defer span.End()
	start := time.Now()

	n = clampN(n, len(f.entries))
	span.SetAttributes(attribute.Int("n", n))
	if n <= 0 {
		return []Match{}, nil
	}

	q, err := prepareQuery(vector, f.dim)
	if err != nil {
		observeSearch(backendFlat, start, err)
		return nil, err
	}

	matches := make([]Match, len(f.entries))
	for i, e := range f.entries {
		matches[i] = Match{ID: e.id, Position: e.pos, Similarity: dot(q, e.vec)}
	}
	sortMatches(matches)

	observeSearch(backendFlat, start, nil)
	return matches[:n], nil
}

// Len implements Index.
func (f *FlatIndex) Len() int { return len(f.entries) }

// Dimension implements Index.
func (f *FlatIndex) Dimension() int { return f.dim }
