// Package config provides configuration loading for assessd.
//
// Configuration is read from an optional YAML file and overridden by
// ASSESSD_-prefixed environment variables. Defaults are applied for any
// value left unset, and the result is validated before use.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete assessd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Training   TrainingConfig   `koanf:"training"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Reranker   RerankerConfig   `koanf:"reranker"`
	Query      QueryConfig      `koanf:"query"`
	Fetch      FetchConfig      `koanf:"fetch"`
	Evaluation EvaluationConfig `koanf:"evaluation"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxTopK         int           `koanf:"max_top_k"`
}

// CatalogConfig points at the vector-bearing catalog file.
type CatalogConfig struct {
	Path string `koanf:"path"`
	// Index selects the vector index backend: "flat", "chromem" or "qdrant".
	Index  string       `koanf:"index"`
	Qdrant QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig locates the Qdrant server used by the "qdrant" index.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     Secret `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
	Collection string `koanf:"collection"`
}

// TrainingConfig points at the optional labeled training table.
type TrainingConfig struct {
	Path string `koanf:"path"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of "openai", "tei", "fastembed" or "hash".
	Provider   string        `koanf:"provider"`
	Model      string        `koanf:"model"`
	BaseURL    string        `koanf:"base_url"`
	APIKey     Secret        `koanf:"api_key"`
	Dimension  int           `koanf:"dimension"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	CacheSize int     `koanf:"cache_size"`
	CacheDir  string  `koanf:"cache_dir"`
	BatchSize int     `koanf:"batch_size"`
}

// RetrievalConfig configures stage-one candidate retrieval.
type RetrievalConfig struct {
	Fanout            int `koanf:"fanout"`
	MaxFanout         int `koanf:"max_fanout"`
	MinFanoutMultiple int `koanf:"min_fanout_multiple"`
}

// WeightsConfig holds the linear reranking weights.
type WeightsConfig struct {
	Training  float64 `koanf:"training"`
	Lexical   float64 `koanf:"lexical"`
	Type      float64 `koanf:"type"`
	Duration  float64 `koanf:"duration"`
	Embedding float64 `koanf:"embedding"`
}

// RerankerConfig configures stage-two scoring.
type RerankerConfig struct {
	Weights           WeightsConfig `koanf:"weights"`
	DiversityMargin   float64       `koanf:"diversity_margin"`
	DurationTolerance int           `koanf:"duration_tolerance"`
	DurationBand      int           `koanf:"duration_band"`
	PartialCredit     float64       `koanf:"partial_credit"`
}

// QueryConfig configures query normalization and intent detection.
type QueryConfig struct {
	MinTokenLength int           `koanf:"min_token_length"`
	StopWords      []string      `koanf:"stop_words"`
	Timeout        time.Duration `koanf:"timeout"`
	// Intent keywords. A non-empty list replaces the built-in list.
	TechnicalKeywords  []string `koanf:"technical_keywords"`
	BehavioralKeywords []string `koanf:"behavioral_keywords"`
	BusinessKeywords   []string `koanf:"business_keywords"`
	EntryKeywords      []string `koanf:"entry_keywords"`
}

// FetchConfig configures job-posting URL resolution.
type FetchConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	MaxChars  int           `koanf:"max_chars"`
	UserAgent string        `koanf:"user_agent"`
}

// EvaluationConfig configures the offline evaluation harness.
type EvaluationConfig struct {
	K      int `koanf:"k"`
	Fanout int `koanf:"fanout"`
}

// LoggingConfig is the subset of logging settings exposed in config files.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the subset of telemetry settings exposed in config files.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns the built-in configuration. Load layers the config file
// and environment over it, so any field may be set explicitly to zero.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			MaxTopK:         10,
		},
		Catalog: CatalogConfig{
			Path:  "data/catalog.json",
			Index: "flat",
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "assessd_catalog",
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Timeout:    8 * time.Second,
			MaxRetries: 3,
			CacheSize:  1024,
			BatchSize:  100,
		},
		Retrieval: RetrievalConfig{
			Fanout:            50,
			MaxFanout:         100,
			MinFanoutMultiple: 5,
		},
		Reranker: RerankerConfig{
			Weights: WeightsConfig{
				Training:  0.55,
				Lexical:   0.18,
				Type:      0.12,
				Duration:  0.05,
				Embedding: 0.10,
			},
			DiversityMargin:   0.15,
			DurationTolerance: 10,
			DurationBand:      30,
			PartialCredit:     0.5,
		},
		Query: QueryConfig{
			MinTokenLength: 2,
			Timeout:        8 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:   10 * time.Second,
			MaxChars:  2000,
			UserAgent: "assessd/1.0",
		},
		Evaluation: EvaluationConfig{K: 10},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			ServiceName: "assessd",
			SampleRate:  1.0,
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - The catalog index backend or embedding provider is unknown
//   - Retrieval fanout bounds are inconsistent
//   - Reranker weights are negative or training is not the dominant signal
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Server.MaxTopK < 1 {
		errs = append(errs, fmt.Errorf("server.max_top_k must be positive, got %d", c.Server.MaxTopK))
	}

	switch strings.ToLower(c.Catalog.Index) {
	case "flat", "chromem":
	case "qdrant":
		if c.Catalog.Qdrant.Port < 1 || c.Catalog.Qdrant.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid catalog.qdrant.port: %d", c.Catalog.Qdrant.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog.index %q (want flat, chromem or qdrant)", c.Catalog.Index))
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "openai", "tei", "fastembed", "hash":
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings.provider %q", c.Embeddings.Provider))
	}
	if c.Embeddings.MaxRetries < 1 {
		errs = append(errs, errors.New("embeddings.max_retries must be at least 1"))
	}
	if c.Embeddings.RateLimit < 0 {
		errs = append(errs, errors.New("embeddings.rate_limit cannot be negative"))
	}

	if c.Retrieval.MaxFanout < 1 {
		errs = append(errs, errors.New("retrieval.max_fanout must be positive"))
	}
	if c.Retrieval.Fanout > c.Retrieval.MaxFanout {
		errs = append(errs, fmt.Errorf("retrieval.fanout %d exceeds max_fanout %d", c.Retrieval.Fanout, c.Retrieval.MaxFanout))
	}

	w := c.Reranker.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"training", w.Training}, {"lexical", w.Lexical}, {"type", w.Type},
		{"duration", w.Duration}, {"embedding", w.Embedding},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("reranker.weights.%s cannot be negative", f.name))
		}
	}
	if w.Training <= w.Lexical || w.Training <= w.Type || w.Training <= w.Duration || w.Training <= w.Embedding {
		errs = append(errs, errors.New("reranker.weights.training must be strictly the largest weight"))
	}
	if c.Reranker.DiversityMargin < 0 {
		errs = append(errs, errors.New("reranker.diversity_margin cannot be negative"))
	}
	if c.Reranker.PartialCredit < 0 || c.Reranker.PartialCredit > 1 {
		errs = append(errs, errors.New("reranker.partial_credit must be within [0,1]"))
	}

	if c.Evaluation.K < 1 {
		errs = append(errs, errors.New("evaluation.k must be positive"))
	}

	return errors.Join(errs...)
}
