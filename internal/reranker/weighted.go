package reranker

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/retrieval"
	"github.com/fyrsmithlabs/assessd/internal/training"
)

var tracer = otel.Tracer("assessd/reranker")

// Weighted is the linear multi-signal reranker. It is immutable after
// construction and safe for concurrent use.
type Weighted struct {
	cfg        Config
	weights    Weights
	table      *training.Table
	categories CategoryIndex
	tokenizer  *query.Tokenizer
	logger     *zap.Logger
}

var _ Reranker = (*Weighted)(nil)

// NewWeighted validates cfg and builds a reranker. table may be nil (the
// training signal is then 0 for every candidate). logger may be nil.
func NewWeighted(cfg Config, table *training.Table, categories CategoryIndex, logger *zap.Logger) (*Weighted, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reranker config: %w", err)
	}
	if categories == nil {
		return nil, fmt.Errorf("reranker: category index is required")
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	stop := cfg.StopWords
	if len(stop) == 0 {
		stop = query.DefaultStopWords()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Weighted{
		cfg:        cfg,
		weights:    cfg.Weights.Normalized(),
		table:      table,
		categories: categories,
		tokenizer:  query.NewTokenizer(stop, cfg.MinTokenLength),
		logger:     logger,
	}, nil
}

// Weights returns the normalized weights in use.
func (w *Weighted) Weights() Weights { return w.weights }

// Score computes the sub-scores and final score of one candidate.
func (w *Weighted) Score(qc *query.Context, c retrieval.Candidate) Scored {
	rec := c.Record
	sub := SubScores{
		Training: w.table.Overlap(qc.Normalized, rec.URL),
		Lexical: lexicalScore(qc.Tokens,
			w.tokenizer.Tokenize(rec.Name),
			w.tokenizer.Tokenize(rec.Description)),
		Type:      typeScore(qc.Intent, rec, w.cfg.PartialCredit),
		Duration:  durationScore(qc.Durations, rec, w.cfg.DurationTolerance, w.cfg.DurationBand),
		Embedding: embeddingScore(c.Similarity),
	}.sanitized()

	return Scored{
		Record:       rec,
		Score:        clamp01(w.weights.combine(sub)),
		Sub:          sub,
		Similarity:   c.Similarity,
		Position:     c.Position,
		StageOneRank: c.Rank,
	}
}

// Rerank implements Reranker.
func (w *Weighted) Rerank(ctx context.Context, qc *query.Context, candidates []retrieval.Candidate, topK int) ([]Scored, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if qc == nil {
		return nil, ErrNilQuery
	}
	_, span := tracer.Start(ctx, "reranker.Rerank")
	defer span.End()

	if topK <= 0 {
		topK = w.cfg.DefaultTopK
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}
	span.SetAttributes(
		attribute.Int("reranker.candidates", len(candidates)),
		attribute.Int("reranker.top_k", topK),
	)
	if topK == 0 {
		return []Scored{}, nil
	}

	scored := make([]Scored, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	n := 0
	for _, c := range candidates {
		if _, dup := seen[c.Record.URL]; dup {
			continue
		}
		seen[c.Record.URL] = struct{}{}
		scored[n] = w.Score(qc, c)
		n++
	}
	scored = scored[:n]
	topK = min(topK, n)
	sortScored(scored)

	out := w.diversify(scored, topK)
	promoted := 0
	for _, s := range out {
		if s.Promoted {
			promoted++
		}
	}
	span.SetAttributes(attribute.Int("reranker.promoted", promoted))
	if promoted > 0 {
		w.logger.Debug("diversity adjustment promoted candidates", zap.Int("promoted", promoted))
	}
	return out, nil
}

// sortScored orders by score desc, stage-one similarity desc, then
// catalog position asc.
func sortScored(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		if s[i].Similarity != s[j].Similarity {
			return s[i].Similarity > s[j].Similarity
		}
		return s[i].Position < s[j].Position
	})
}

// diversify returns the top topK of sorted, swapping in a candidate of
// any broad category that the catalog and candidate set contain but the
// top topK lacks. The replacement is the best-scoring candidate of that
// category below the cut, at any rank, and must score within
// DiversityMargin of the lowest retained score. The evicted item is the
// lowest-scoring one whose removal leaves every other represented
// category still represented.
func (w *Weighted) diversify(sorted []Scored, topK int) []Scored {
	top := append([]Scored(nil), sorted[:topK]...)
	rest := append([]Scored(nil), sorted[topK:]...)

	for _, cat := range catalog.BroadCategories {
		if !w.categories.HasCategory(cat) || !anyCovers(sorted, cat) || anyCovers(top, cat) {
			continue
		}
		ci := -1
		for i, s := range rest {
			if s.Record.Category().Covers(cat) {
				ci = i
				break
			}
		}
		if ci < 0 {
			continue
		}
		floor := top[len(top)-1].Score - w.cfg.DiversityMargin
		if rest[ci].Score < floor {
			continue
		}
		victim := -1
		for j := len(top) - 1; j >= 0; j-- {
			if safeToReplace(top, j, rest[ci]) {
				victim = j
				break
			}
		}
		if victim < 0 {
			continue
		}

		incoming := rest[ci]
		incoming.Promoted = true
		top[victim], rest[ci] = incoming, top[victim]
		sortScored(top)
		sortScored(rest)
	}
	return top
}

// safeToReplace reports whether replacing top[j] with incoming keeps every
// broad category that top currently covers.
func safeToReplace(top []Scored, j int, incoming Scored) bool {
	for _, cat := range catalog.BroadCategories {
		if !top[j].Record.Category().Covers(cat) || incoming.Record.Category().Covers(cat) {
			continue
		}
		still := false
		for i, s := range top {
			if i != j && s.Record.Category().Covers(cat) {
				still = true
				break
			}
		}
		if !still {
			return false
		}
	}
	return true
}

func anyCovers(s []Scored, cat catalog.Category) bool {
	for _, x := range s {
		if x.Record.Category().Covers(cat) {
			return true
		}
	}
	return false
}
