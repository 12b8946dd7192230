package evaluation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/logging"
	"github.com/fyrsmithlabs/assessd/internal/recommend"
)

// DefaultK is the cutoff used when Options.K is unset.
const DefaultK = 10

// Pipeline produces a ranked result for a query. *recommend.Engine
// implements it.
type Pipeline interface {
	Recommend(ctx context.Context, text string, topK int) (*recommend.RankedResult, error)
}

// Options configures a run.
type Options struct {
	K int
	// Concurrency bounds parallel pipeline calls; <= 1 runs sequentially.
	Concurrency int
	Logger      *logging.Logger
}

// QueryResult is the outcome for one labeled query.
type QueryResult struct {
	Query     string   `json:"query"`
	Relevant  []string `json:"relevant"`
	Retrieved []string `json:"retrieved"`
	Hits      []string `json:"hits"`
	Recall    float64  `json:"recall"`
	Precision float64  `json:"precision"`
	// Excluded queries have no relevant URLs and are left out of means.
	Excluded bool   `json:"excluded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report aggregates a run.
type Report struct {
	K             int           `json:"k"`
	MeanRecall    float64       `json:"mean_recall"`
	MeanPrecision float64       `json:"mean_precision"`
	Evaluated     int           `json:"evaluated"`
	Excluded      int           `json:"excluded"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration_ns"`
	Queries       []QueryResult `json:"queries"`
}

// Evaluate runs every labeled query through p. Queries with no relevant
// URLs are logged and excluded. A pipeline error scores recall 0 and
// still counts towards the mean. Only context cancellation aborts the run.
func Evaluate(ctx context.Context, labeled []LabeledQuery, p Pipeline, opts Options) (*Report, error) {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	start := time.Now()

	results := make([]QueryResult, len(labeled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))

	for i, lq := range labeled {
		if len(normalizedSet(lq.Relevant)) == 0 {
			err := &EvaluationDataError{Index: i, Query: lq.Query, Reason: "no relevant URLs"}
			log.Warn(ctx, "excluding labeled query", zap.Error(err))
			results[i] = QueryResult{Query: lq.Query, Excluded: true, Error: err.Error()}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Recommend(gctx, lq.Query, opts.K)
			if err != nil {
				if errors.Is(err, context.Canceled) && gctx.Err() != nil {
					return err
				}
				log.Warn(gctx, "pipeline failed for labeled query", zap.Int("index", i), zap.Error(err))
				results[i] = QueryResult{Query: lq.Query, Relevant: lq.Relevant, Error: err.Error()}
				return nil
			}
			results[i] = Score(lq, res.URLs(), opts.K)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{K: opts.K, Queries: results}
	var recallSum, precisionSum float64
	for _, r := range results {
		switch {
		case r.Excluded:
			report.Excluded++
			continue
		case r.Error != "":
			report.Failed++
		}
		report.Evaluated++
		recallSum += r.Recall
		precisionSum += r.Precision
	}
	if report.Evaluated > 0 {
		report.MeanRecall = recallSum / float64(report.Evaluated)
		report.MeanPrecision = precisionSum / float64(report.Evaluated)
	}
	report.Duration = time.Since(start)

	log.Info(ctx, "evaluation complete",
		zap.Int("k", report.K),
		zap.Float64("mean_recall", report.MeanRecall),
		zap.Float64("mean_precision", report.MeanPrecision),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("excluded", report.Excluded),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Score computes recall@k and precision@k of retrieved against lq. URLs
// are compared after catalog.NormalizeURL. Precision divides by the
// number of retrieved items within the cutoff, and is 0 when none were
// retrieved.
func Score(lq LabeledQuery, retrieved []string, k int) QueryResult {
	if len(retrieved) > k {
		retrieved = retrieved[:k]
	}
	relevant := normalizedSet(lq.Relevant)
	res := QueryResult{
		Query:     lq.Query,
		Relevant:  lq.Relevant,
		Retrieved: append([]string(nil), retrieved...),
		Hits:      []string{},
	}
	counted := make(map[string]struct{})
	for _, u := range retrieved {
		n := catalog.NormalizeURL(u)
		if _, ok := relevant[n]; !ok {
			continue
		}
		if _, dup := counted[n]; dup {
			continue
		}
		counted[n] = struct{}{}
		res.Hits = append(res.Hits, u)
	}
	if len(relevant) > 0 {
		res.Recall = float64(len(counted)) / float64(len(relevant))
	}
	if len(retrieved) > 0 {
		res.Precision = float64(len(counted)) / float64(len(retrieved))
	}
	return res
}

func normalizedSet(urls []string) map[string]struct{} {
	out := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if n := catalog.NormalizeURL(u); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}
