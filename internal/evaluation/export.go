package evaluation

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/fyrsmithlabs/assessd/internal/training"
)

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Prediction is the ranked output for one unlabeled query.
type Prediction struct {
	Query string
	URLs  []string
}

// Predict runs each query through p. A failing query aborts the run.
func Predict(ctx context.Context, queries []string, p Pipeline, k int) ([]Prediction, error) {
	if k <= 0 {
		k = DefaultK
	}
	out := make([]Prediction, 0, len(queries))
	for _, q := range queries {
		res, err := p.Recommend(ctx, q, k)
		if err != nil {
			return nil, fmt.Errorf("predict %q: %w", q, err)
		}
		out = append(out, Prediction{Query: q, URLs: res.URLs()})
	}
	return out, nil
}

// WritePredictionsCSV writes one Query,Assessment_url row per ranked URL.
func WritePredictionsCSV(w io.Writer, preds []Prediction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{training.QueryColumn, training.URLColumn}); err != nil {
		return err
	}
	for _, p := range preds {
		for _, u := range p.URLs {
			if err := cw.Write([]string{p.Query, u}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Predictions returns the retrieved lists of a report in predictions form,
// skipping excluded and failed queries.
func (r *Report) Predictions() []Prediction {
	var out []Prediction
	for _, q := range r.Queries {
		if q.Excluded || q.Error != "" {
			continue
		}
		out = append(out, Prediction{Query: q.Query, URLs: q.Retrieved})
	}
	return out
}
