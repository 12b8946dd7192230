package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	chromemCollection = "assessments"
	positionKey       = "position"
)

// errNoEmbeddingFunc guards against chromem trying to embed content itself.
// Every document and query arrives with a precomputed vector.
var errNoEmbeddingFunc = errors.New("chromem: embeddings must be precomputed")

// ChromemIndex serves searches from an in-memory chromem-go collection.
type ChromemIndex struct {
	collection *chromem.Collection
	positions  map[string]int
	entries    []entry
	size       int
	dim        int
	logger     *zap.Logger
}

// NewChromemIndex loads record embeddings into a fresh chromem collection.
func NewChromemIndex(ctx context.Context, records []catalog.Record, logger *zap.Logger) (*ChromemIndex, error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Build")
	defer span.End()

	if logger == nil {
		logger = zap.NewNop()
	}

	entries, dim, err := prepare(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(chromemCollection, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}

	docs := make([]chromem.Document, len(entries))
	positions := make(map[string]int, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.id,
			Embedding: e.vec,
			Metadata:  map[string]string{positionKey: strconv.Itoa(e.pos)},
		}
		positions[e.id] = e.pos
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("adding documents to chromem: %w", err)
	}

	span.SetAttributes(attribute.Int("documents", len(docs)), attribute.Int("dimension", dim))
	logger.Debug("built chromem index", zap.Int("documents", len(docs)), zap.Int("dimension", dim))

	return &ChromemIndex{
		collection: collection,
		positions:  positions,
		entries:    entries,
		size:       len(entries),
		dim:        dim,
		logger:     logger,
	}, nil
}

// Search implements Index. chromem orders equal similarities arbitrarily,
// so the query is widened until the n-th similarity is strictly above the
// last one fetched (or the whole collection is fetched), then re-sorted.
func (c *ChromemIndex) Search(ctx context.Context, vector []float32, n int) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Search")
	defer span.End()
	start := time.Now()

	n = clampN(n, c.size)
	span.SetAttributes(attribute.Int("n", n))
	if n <= 0 {
		return []Match{}, nil
	}

	q, err := prepareQuery(vector, c.dim)
	if err != nil {
		observeSearch(backendChromem, start, err)
		return nil, err
	}

	var results []chromem.Result
	for k := n; ; k = clampN(k*2, c.size) {
		results, err = c.collection.QueryEmbedding(ctx, q, k, nil, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observeSearch(backendChromem, start, err)
			return nil, fmt.Errorf("querying chromem: %w", err)
		}
		if k == c.size || results[len(results)-1].Similarity < results[n-1].Similarity {
			break
		}
	}

	// Rescore in float64 so both backends report identical similarities.
	matches := make([]Match, len(results))
	for i, r := range results {
		pos := c.positions[r.ID]
		matches[i] = Match{ID: r.ID, Position: pos, Similarity: dot(q, c.entries[pos].vec)}
	}
	sortMatches(matches)

	span.SetAttributes(attribute.Int("fetched", len(results)))
	observeSearch(backendChromem, start, nil)
	return matches[:n], nil
}

// Len implements Index.
func (c *ChromemIndex) Len() int { return c.size }

// Dimension implements Index.
func (c *ChromemIndex) Dimension() int { return c.dim }
