package reranker

import (
	"math"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/query"
)

// lexicalScore is the share of query tokens found in the candidate's
// name or description.
func lexicalScore(q, name, desc query.Tokens) float64 {
	if len(q) == 0 {
		return 0
	}
	n := 0
	for tok := range q {
		if name.Has(tok) || desc.Has(tok) {
			n++
		}
	}
	return float64(n) / float64(len(q))
}

// typeScore rewards candidates whose test types answer the query's intent.
func typeScore(intent query.Intent, rec catalog.Record, partial float64) float64 {
	if !intent.Any() {
		return NeutralTypeScore
	}
	cat := rec.Category()
	switch {
	case intent.Technical && cat.Covers(catalog.Technical),
		intent.Behavioral && cat.Covers(catalog.Behavioral),
		intent.Business && rec.HasType(catalog.BiodataSituational),
		intent.Entry && (rec.IsEntryLevel() || rec.HasType(catalog.AbilityAptitude)):
		return 1
	case cat == catalog.Mixed:
		return partial
	default:
		return 0
	}
}

// durationScore is 1 without a requested duration or a known candidate
// duration, 1 within tolerance of the closest request, then decays
// linearly to 0 across band.
func durationScore(requested []int, rec catalog.Record, tolerance, band int) float64 {
	if len(requested) == 0 || rec.Duration == nil {
		return 1
	}
	have := *rec.Duration
	var best float64
	for _, want := range requested {
		diff := have - want
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return 1
		}
		if band > 0 {
			best = math.Max(best, 1-float64(diff-tolerance)/float64(band))
		}
	}
	return math.Max(best, 0)
}

// embeddingScore rescales cosine similarity from [-1,1] to [0,1].
func embeddingScore(sim float32) float64 {
	return clamp01((float64(sim) + 1) / 2)
}

// clamp01 bounds s to [0,1], mapping NaN and infinities to 0.
func clamp01(s float64) float64 {
	switch {
	case math.IsNaN(s), math.IsInf(s, 0):
		return 0
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

func (s SubScores) sanitized() SubScores {
	return SubScores{
		Training:  clamp01(s.Training),
		Lexical:   clamp01(s.Lexical),
		Type:      clamp01(s.Type),
		Duration:  clamp01(s.Duration),
		Embedding: clamp01(s.Embedding),
	}
}

func (w Weights) combine(s SubScores) float64 {
	return w.Training*s.Training +
		w.Lexical*s.Lexical +
		w.Type*s.Type +
		w.Duration*s.Duration +
		w.Embedding*s.Embedding
}
