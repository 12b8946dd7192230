// Package recommend wires query encoding, stage-one retrieval and
// reranking into the public recommendation entry point.
package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/assessd/internal/fetch"
	"github.com/fyrsmithlabs/assessd/internal/logging"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/reranker"
	"github.com/fyrsmithlabs/assessd/internal/retrieval"
)

var tracer = otel.Tracer("assessd/recommend")

// Resolver turns a job-posting URL into plain text.
type Resolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Options configures an Engine.
type Options struct {
	// Fanout is the stage-one width; 0 uses the retriever default.
	Fanout int
	// DefaultTopK applies when callers pass top_k <= 0.
	DefaultTopK int
	// Resolver is optional; without it URL input is rejected.
	Resolver Resolver
}

// Engine is the recommendation pipeline. It holds only immutable
// components and is safe for concurrent use.
type Engine struct {
	encoder   *query.Encoder
	retriever *retrieval.Retriever
	reranker  reranker.Reranker
	opts      Options
	logger    *logging.Logger
}

// New assembles an Engine. logger may be nil.
func New(encoder *query.Encoder, retriever *retrieval.Retriever, rr reranker.Reranker, opts Options, logger *logging.Logger) (*Engine, error) {
	if encoder == nil || retriever == nil || rr == nil {
		return nil, errors.New("recommend: encoder, retriever and reranker are required")
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = reranker.DefaultTopK
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{encoder: encoder, retriever: retriever, reranker: rr, opts: opts, logger: logger}, nil
}

// WithFanout returns a copy of e that retrieves n candidates per query.
func (e *Engine) WithFanout(n int) *Engine {
	c := *e
	c.opts.Fanout = n
	return &c
}

// Recommend ranks catalog items for free-text input. It never returns a
// partial result: on error the result is nil.
func (e *Engine) Recommend(ctx context.Context, text string, topK int) (*RankedResult, error) {
	ctx, requestID := ensureRequestID(ctx)
	ctx, span := tracer.Start(ctx, "recommend.Recommend")
	defer span.End()
	start := time.Now()

	if topK <= 0 {
		topK = e.opts.DefaultTopK
	}
	span.SetAttributes(attribute.Int("recommend.top_k", topK), attribute.String("request.id", requestID))

	qc, err := e.encoder.Encode(ctx, text)
	if err != nil {
		return nil, e.fail(ctx, span, "query encoding failed", err)
	}
	qc.TopK = topK

	cands, err := e.retriever.Retrieve(ctx, qc, e.opts.Fanout)
	if err != nil {
		return nil, e.fail(ctx, span, "candidate retrieval failed", err)
	}

	items, err := e.reranker.Rerank(ctx, qc, cands, topK)
	if err != nil {
		return nil, e.fail(ctx, span, "reranking failed", err)
	}

	res := &RankedResult{
		Query:      text,
		RequestID:  requestID,
		TopK:       topK,
		Items:      items,
		Candidates: len(cands),
		Intent:     qc.Intent,
		Elapsed:    time.Since(start),
	}
	span.SetAttributes(attribute.Int("recommend.results", len(items)))
	e.logger.Info(ctx, "recommendation served",
		zap.Int("top_k", topK),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(items)),
		zap.Stringer("intent", qc.Intent),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// RecommendURL resolves a job-posting URL to text and recommends for it.
// Resolution failures are reported as *query.EncodingError.
func (e *Engine) RecommendURL(ctx context.Context, url string, topK int) (*RankedResult, error) {
	if e.opts.Resolver == nil {
		return nil, &query.EncodingError{Stage: query.StageResolve, Reason: "URL input is not supported"}
	}
	text, err := e.opts.Resolver.Resolve(ctx, url)
	if err != nil {
		e.logger.Warn(ctx, "url resolution failed", zap.String("url", url), zap.Error(err))
		return nil, &query.EncodingError{Stage: query.StageResolve, Reason: "could not resolve URL", Err: err}
	}
	res, err := e.Recommend(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	res.Query = url
	return res, nil
}

// RecommendInput dispatches to RecommendURL for http(s) URLs and to
// Recommend otherwise.
func (e *Engine) RecommendInput(ctx context.Context, input string, topK int) (*RankedResult, error) {
	if fetch.IsURL(input) {
		return e.RecommendURL(ctx, input, topK)
	}
	return e.Recommend(ctx, input, topK)
}

func (e *Engine) fail(ctx context.Context, span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	e.logger.Warn(ctx, msg, zap.Error(err))
	return err
}

func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return logging.WithRequestID(ctx, id), id
}
