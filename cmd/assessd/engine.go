package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/config"
	"github.com/fyrsmithlabs/assessd/internal/embeddings"
	"github.com/fyrsmithlabs/assessd/internal/fetch"
	"github.com/fyrsmithlabs/assessd/internal/logging"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/recommend"
	"github.com/fyrsmithlabs/assessd/internal/reranker"
	"github.com/fyrsmithlabs/assessd/internal/retrieval"
	"github.com/fyrsmithlabs/assessd/internal/training"
	"github.com/fyrsmithlabs/assessd/internal/vectorstore"
)

// pipeline is a fully wired recommendation engine and the resources it
// owns.
type pipeline struct {
	engine   *recommend.Engine
	store    *catalog.Store
	provider embeddings.Provider
	cache    *embeddings.Cached
	index    io.Closer
}

// Close releases the embedding provider and any remote index connection.
func (p *pipeline) Close() error {
	var errs []error
	if p.index != nil {
		errs = append(errs, p.index.Close())
	}
	switch {
	case p.cache != nil:
		errs = append(errs, p.cache.Close())
	case p.provider != nil:
		errs = append(errs, p.provider.Close())
	}
	return errors.Join(errs...)
}

// newEmbedder builds the configured provider wrapped with retries and rate
// limiting.
func newEmbedder(cfg config.EmbeddingsConfig, metrics *embeddings.Metrics, logger *zap.Logger) (embeddings.Provider, error) {
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey.Value(),
		Dimension: cfg.Dimension,
		CacheDir:  cfg.CacheDir,
		BatchSize: cfg.BatchSize,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s embedding provider: %w", cfg.Provider, err)
	}

	return embeddings.NewResilient(provider, embeddings.ResilientConfig{
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
		RateLimit:  cfg.RateLimit,
	}, metrics, logger), nil
}

// newIndex builds the configured backend. The returned closer is nil for
// in-process indexes.
func newIndex(ctx context.Context, cfg config.CatalogConfig, store *catalog.Store, logger *zap.Logger) (vectorstore.Index, io.Closer, error) {
	switch strings.ToLower(cfg.Index) {
	case "chromem":
		idx, err := vectorstore.NewChromemIndex(ctx, store.All(), logger)
		return idx, nil, err
	case "qdrant":
		idx, err := vectorstore.NewQdrantIndex(ctx, store.All(), vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx, nil
	default:
		idx, err := vectorstore.NewFlatIndex(store.All())
		return idx, nil, err
	}
}

// intentKeywords replaces each built-in keyword list that the config
// sets.
func intentKeywords(cfg config.QueryConfig) query.IntentKeywords {
	return query.DefaultIntentKeywords().Override(query.IntentKeywords{
		Technical:  cfg.TechnicalKeywords,
		Behavioral: cfg.BehavioralKeywords,
		Business:   cfg.BusinessKeywords,
		Entry:      cfg.EntryKeywords,
	})
}

func rerankerConfig(cfg *config.Config, stopWords []string) reranker.Config {
	rc := reranker.DefaultConfig()
	w := cfg.Reranker.Weights
	rc.Weights = reranker.Weights{
		Training:  w.Training,
		Lexical:   w.Lexical,
		Type:      w.Type,
		Duration:  w.Duration,
		Embedding: w.Embedding,
	}
	rc.DiversityMargin = cfg.Reranker.DiversityMargin
	rc.DurationTolerance = cfg.Reranker.DurationTolerance
	rc.DurationBand = cfg.Reranker.DurationBand
	rc.PartialCredit = cfg.Reranker.PartialCredit
	rc.DefaultTopK = cfg.Server.MaxTopK
	rc.StopWords = stopWords
	rc.MinTokenLength = cfg.Query.MinTokenLength
	return rc
}

// buildPipeline loads the catalog and training table and wires every
// stage. Any failure here is a startup error.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pipeline, error) {
	z := logger.Underlying()

	store, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("records", store.Count()),
		zap.Int("dimension", store.Dimension()))

	var table *training.Table
	if cfg.Training.Path != "" {
		table, err = training.Load(cfg.Training.Path)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "training table loaded",
			zap.String("path", cfg.Training.Path),
			zap.Int("queries", table.Len()))
	}

	metrics := embeddings.NewMetrics(z)
	provider, err := newEmbedder(cfg.Embeddings, metrics, z.Named("embeddings"))
	if err != nil {
		return nil, err
	}
	cache, err := embeddings.NewCached(provider, cfg.Embeddings.CacheSize, metrics)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	p := &pipeline{store: store, provider: provider, cache: cache}

	if d := cache.Dimension(); d > 0 && d != store.Dimension() {
		_ = p.Close()
		return nil, fmt.Errorf("embedding dimension %d does not match catalog dimension %d", d, store.Dimension())
	}

	stopWords := cfg.Query.StopWords
	if len(stopWords) == 0 {
		stopWords = query.DefaultStopWords()
	}
	encoder := query.NewEncoder(cache, query.Config{
		MinTokenLength: cfg.Query.MinTokenLength,
		StopWords:      stopWords,
		Timeout:        cfg.Query.Timeout,
		Dimension:      store.Dimension(),
		Keywords:       intentKeywords(cfg.Query),
	}, z.Named("query"))

	index, closer, err := newIndex(ctx, cfg.Catalog, store, z.Named("vectorstore"))
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.index = closer

	retriever, err := retrieval.New(index, store, retrieval.Config{
		DefaultFanout:     cfg.Retrieval.Fanout,
		MaxFanout:         cfg.Retrieval.MaxFanout,
		MinFanoutMultiple: cfg.Retrieval.MinFanoutMultiple,
	}, z.Named("retrieval"))
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	rr, err := reranker.NewWeighted(rerankerConfig(cfg, stopWords), table, store, z.Named("reranker"))
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	resolver := fetch.NewResolver(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		MaxChars:  cfg.Fetch.MaxChars,
		UserAgent: cfg.Fetch.UserAgent,
	}, z.Named("fetch"))

	p.engine, err = recommend.New(encoder, retriever, rr, recommend.Options{
		DefaultTopK: cfg.Server.MaxTopK,
		Resolver:    resolver,
	}, logger.Named("recommend"))
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}
