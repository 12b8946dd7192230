// Package embeddings turns text into dense vectors.
//
// Providers: "openai" (any OpenAI-compatible endpoint, through langchaingo),
// "tei" (HuggingFace text-embeddings-inference /embed), "fastembed" (local
// ONNX models, cgo only) and "hash" (deterministic token hashing for offline
// runs and tests). Resilient adds retries and rate limiting; Cached memoizes
// query embeddings.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the provider could not produce a vector.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments returns one vector per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns the vector for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known output dimension and resources to
// release.
type Provider interface {
	Embedder
	Dimension() int
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	CacheDir  string
	BatchSize int
	Timeout   time.Duration
}

// NewProvider creates the provider named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "hash":
		dim := cfg.Dimension
		if dim == 0 {
			dim = DefaultHashDimension
		}
		return NewHashProvider(dim)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimension returns the output size of well-known models, or 0.
func detectDimension(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch m := strings.ToLower(model); {
	case strings.Contains(m, "text-embedding-3-large"):
		return 3072
	case strings.Contains(m, "text-embedding-3-small"), strings.Contains(m, "ada-002"):
		return 1536
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	case strings.Contains(m, "small"), strings.Contains(m, "mini"):
		return 384
	default:
		return 0
	}
}
