// Package evaluation measures recommendation quality against labeled
// queries: Recall@K, precision and per-query ranked lists.
package evaluation

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/training"
)

// ErrEvaluationData is matched by every *EvaluationDataError.
var ErrEvaluationData = errors.New("evaluation data error")

// EvaluationDataError flags a labeled query that cannot be scored.
type EvaluationDataError struct {
	Index  int
	Query  string
	Reason string
}

func (e *EvaluationDataError) Error() string {
	return fmt.Sprintf("labeled query %d (%q): %s", e.Index, e.Query, e.Reason)
}

func (e *EvaluationDataError) Is(target error) bool { return target == ErrEvaluationData }

// LabeledQuery is a query with the URLs judged relevant to it.
type LabeledQuery struct {
	Query    string   `json:"query"`
	Relevant []string `json:"relevant"`
}

// LoadLabeled reads labeled queries from CSV (Query,Assessment_url rows,
// grouped by query in first-seen order) or JSON ([{query, relevant}]).
func LoadLabeled(path string) ([]LabeledQuery, error) {
	rows, err := training.ReadRows(path)
	if err != nil {
		return nil, err
	}
	return Group(rows), nil
}

// Group collects rows by normalized query, keeping the first spelling of
// each query and the first-seen order of queries and URLs.
func Group(rows []training.Row) []LabeledQuery {
	var out []LabeledQuery
	index := make(map[string]int)
	for _, r := range rows {
		key := query.Normalize(r.Query)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, LabeledQuery{Query: r.Query})
		}
		if r.URL != "" {
			out[i].Relevant = append(out[i].Relevant, r.URL)
		}
	}
	return out
}
