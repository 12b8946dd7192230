// Package retrieval is stage one of the recommendation pipeline: an
// over-fetching nearest-neighbour search that favors recall.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/vectorstore"
)

var tracer = otel.Tracer("assessd/retrieval")

// Fanout defaults.
const (
	DefaultFanout            = 50
	DefaultMaxFanout         = 100
	DefaultMinFanoutMultiple = 5
)

// Config bounds the over-fetch width.
type Config struct {
	DefaultFanout int
	MaxFanout     int
	// MinFanoutMultiple keeps fanout at least this many times top_k.
	MinFanoutMultiple int
}

// DefaultConfig returns the built-in fanout settings.
func DefaultConfig() Config {
	return Config{
		DefaultFanout:     DefaultFanout,
		MaxFanout:         DefaultMaxFanout,
		MinFanoutMultiple: DefaultMinFanoutMultiple,
	}
}

// Validate checks that the bounds are consistent.
func (c Config) Validate() error {
	var errs []error
	if c.DefaultFanout < 1 {
		errs = append(errs, fmt.Errorf("default fanout must be positive, got %d", c.DefaultFanout))
	}
	if c.MaxFanout < c.DefaultFanout {
		errs = append(errs, fmt.Errorf("max fanout %d is below default fanout %d", c.MaxFanout, c.DefaultFanout))
	}
	if c.MinFanoutMultiple < 1 {
		errs = append(errs, fmt.Errorf("min fanout multiple must be positive, got %d", c.MinFanoutMultiple))
	}
	return errors.Join(errs...)
}

// Candidate is a stage-one hit. Similarity is the raw cosine in [-1,1].
type Candidate struct {
	Record     catalog.Record
	Similarity float32
	// Position is the catalog ingestion index.
	Position int
	// Rank is the 0-based position in similarity order.
	Rank int
}

// Retriever runs stage-one searches. It is immutable and safe for
// concurrent use.
type Retriever struct {
	index  vectorstore.Index
	store  *catalog.Store
	cfg    Config
	logger *zap.Logger
}

// New creates a Retriever. index must have been built from store.All() in
// order. logger may be nil.
func New(index vectorstore.Index, store *catalog.Store, cfg Config, logger *zap.Logger) (*Retriever, error) {
	if index == nil || store == nil {
		return nil, errors.New("retrieval: index and store are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if index.Len() != store.Count() {
		return nil, fmt.Errorf("retrieval: index has %d vectors, catalog has %d records", index.Len(), store.Count())
	}
	if index.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("retrieval: index dimension %d, catalog dimension %d", index.Dimension(), store.Dimension())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{index: index, store: store, cfg: cfg, logger: logger}, nil
}

// Fanout resolves the search width for a request: requested (or the
// default when <= 0) clamped to MaxFanout, then raised to
// MinFanoutMultiple*topK. The index further clamps to catalog size.
func (r *Retriever) Fanout(requested, topK int) int {
	f := requested
	if f <= 0 {
		f = r.cfg.DefaultFanout
	}
	f = min(f, r.cfg.MaxFanout)
	if topK > 0 {
		f = max(f, r.cfg.MinFanoutMultiple*topK)
	}
	return f
}

// Retrieve returns candidates in similarity order. No final scores are
// assigned here.
func (r *Retriever) Retrieve(ctx context.Context, qc *query.Context, fanout int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	n := r.Fanout(fanout, qc.TopK)
	span.SetAttributes(attribute.Int("retrieval.fanout", n))

	matches, err := r.index.Search(ctx, qc.Embedding, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("stage-one search: %w", err)
	}

	out := make([]Candidate, 0, len(matches))
	for i, m := range matches {
		rec := r.store.At(m.Position)
		if rec.ID() != m.ID {
			return nil, fmt.Errorf("stage-one search: index position %d holds %q, catalog holds %q", m.Position, m.ID, rec.ID())
		}
		out = append(out, Candidate{
			Record:     rec,
			Similarity: m.Similarity,
			Position:   m.Position,
			Rank:       i,
		})
	}

	span.SetAttributes(attribute.Int("retrieval.candidates", len(out)))
	r.logger.Debug("retrieved candidates", zap.Int("fanout", n), zap.Int("candidates", len(out)))
	return out, nil
}
