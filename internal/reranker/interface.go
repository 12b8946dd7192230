// Package reranker is stage two of the recommendation pipeline. It scores
// stage-one candidates with a fixed linear combination of normalized
// signals and balances the final list across broad test categories.
package reranker

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/retrieval"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// ErrNilQuery is returned when Rerank is called without a query context.
var ErrNilQuery = errors.New("query context cannot be nil")

// SubScores are the individual signals behind a final score. Every field
// lies in [0,1].
type SubScores struct {
	Training  float64 `json:"training"`
	Lexical   float64 `json:"lexical"`
	Type      float64 `json:"type"`
	Duration  float64 `json:"duration"`
	Embedding float64 `json:"embedding"`
}

// Scored is a reranked candidate.
type Scored struct {
	Record catalog.Record
	Score  float64
	Sub    SubScores
	// Similarity is the stage-one cosine, passed through.
	Similarity float32
	Position   int
	// StageOneRank is the candidate's rank before reranking.
	StageOneRank int
	// Promoted marks items swapped in by the diversity adjustment.
	Promoted bool
}

// Reranker orders stage-one candidates into the final result list.
type Reranker interface {
	// Rerank returns at most topK candidates ordered by score descending.
	// topK <= 0 selects the default; topK beyond the candidate count is
	// clamped.
	Rerank(ctx context.Context, qc *query.Context, candidates []retrieval.Candidate, topK int) ([]Scored, error)
}

// CategoryIndex reports which broad categories the catalog contains.
// *catalog.Store implements it.
type CategoryIndex interface {
	HasCategory(catalog.Category) bool
}
