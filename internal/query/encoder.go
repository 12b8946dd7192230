package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("assessd/query")

// ErrEncoding is matched by every *EncodingError.
var ErrEncoding = errors.New("query encoding failed")

// Stages at which encoding can fail.
const (
	StageInput   = "input"
	StageResolve = "resolve"
	StageEmbed   = "embed"
	StageVector  = "vector"
)

// EncodingError reports why a query could not be turned into a Context.
type EncodingError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("encode query (%s): %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// Embedder produces the query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Context is everything derived from one query. It is owned by the
// request that created it.
type Context struct {
	Raw        string
	Normalized string
	Embedding  []float32
	Tokens     Tokens
	Intent     Intent
	Durations  []int
	TopK       int
}

// Encoder builds query Contexts. It is safe for concurrent use.
type Encoder struct {
	embedder   Embedder
	cfg        Config
	tokenizer  *Tokenizer
	classifier *IntentClassifier
	logger     *zap.Logger
}

// NewEncoder creates an Encoder. logger may be nil.
func NewEncoder(embedder Embedder, cfg Config, logger *zap.Logger) *Encoder {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		embedder:   embedder,
		cfg:        cfg,
		tokenizer:  NewTokenizer(cfg.StopWords, cfg.MinTokenLength),
		classifier: NewIntentClassifier(cfg.Keywords),
		logger:     logger,
	}
}

// Tokenizer returns the tokenizer used for queries, so that candidate
// text can be tokenized identically.
func (e *Encoder) Tokenizer() *Tokenizer { return e.tokenizer }

// Analyze derives the lexical parts of a Context without embedding.
func (e *Encoder) Analyze(raw string) *Context {
	normalized := Normalize(raw)
	tokens := e.tokenizer.Tokenize(normalized)
	return &Context{
		Raw:        raw,
		Normalized: normalized,
		Tokens:     tokens,
		Intent:     e.classifier.Classify(tokens, normalized),
		Durations:  ExtractDurations(normalized),
	}
}

// Encode analyzes raw and embeds its normalized form. It never returns a
// Context without a valid, finite, non-empty vector.
func (e *Encoder) Encode(ctx context.Context, raw string) (*Context, error) {
	ctx, span := tracer.Start(ctx, "query.Encode")
	defer span.End()

	if strings.TrimSpace(raw) == "" {
		return nil, fail(span, &EncodingError{Stage: StageInput, Reason: "query is empty"})
	}

	qc := e.Analyze(raw)
	span.SetAttributes(
		attribute.Int("query.tokens", len(qc.Tokens)),
		attribute.String("query.intent", qc.Intent.String()),
	)

	embedCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	vec, err := e.embedder.EmbedQuery(embedCtx, qc.Normalized)
	if err != nil {
		return nil, fail(span, &EncodingError{Stage: StageEmbed, Reason: "embedding call failed", Err: err})
	}
	if err := e.checkVector(vec); err != nil {
		return nil, fail(span, err)
	}
	qc.Embedding = vec

	e.logger.Debug("encoded query",
		zap.Int("tokens", len(qc.Tokens)),
		zap.Stringer("intent", qc.Intent),
		zap.Ints("durations", qc.Durations))
	return qc, nil
}

func (e *Encoder) checkVector(vec []float32) error {
	if len(vec) == 0 {
		return &EncodingError{Stage: StageVector, Reason: "embedding is empty"}
	}
	if e.cfg.Dimension > 0 && len(vec) != e.cfg.Dimension {
		return &EncodingError{
			Stage:  StageVector,
			Reason: fmt.Sprintf("embedding has dimension %d, want %d", len(vec), e.cfg.Dimension),
		}
	}
	var norm float64
	for _, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &EncodingError{Stage: StageVector, Reason: "embedding has non-finite values"}
		}
		norm += f * f
	}
	if norm == 0 {
		return &EncodingError{Stage: StageVector, Reason: "embedding is a zero vector"}
	}
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
