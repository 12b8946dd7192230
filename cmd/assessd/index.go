package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/embeddings"
	"github.com/fyrsmithlabs/assessd/internal/logging"
)

func newIndexCmd(flags *globalFlags) *cobra.Command {
	var (
		inPath      string
		outPath     string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed a raw catalog and write the vector-bearing catalog",
		Long: `Embed every catalog record and write the result.

The embedded text is the record name, description, test types, job levels
and duration phrases. Records are sent in batches of embeddings.batch_size.`,
		Example: `  assessd index --in data/catalog_raw.json --out data/catalog.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			if outPath == "" {
				outPath = env.cfg.Catalog.Path
			}

			z := env.logger.Underlying()
			provider, err := newEmbedder(env.cfg.Embeddings, embeddings.NewMetrics(z), z.Named("embeddings"))
			if err != nil {
				return err
			}
			defer provider.Close()

			records, err := catalog.LoadRecords(inPath)
			if err != nil {
				return err
			}

			start := time.Now()
			if err := embedRecords(ctx, provider, records, env.cfg.Embeddings.BatchSize, concurrency, env.logger); err != nil {
				return err
			}
			// Round-trip through NewStore to validate and unit-normalize.
			store, err := catalog.NewStore(records)
			if err != nil {
				return err
			}
			if err := catalog.Save(outPath, store.All()); err != nil {
				return err
			}

			env.logger.Info(ctx, "catalog indexed",
				zap.String("out", outPath),
				zap.Int("records", store.Count()),
				zap.Int("dimension", store.Dimension()),
				zap.Duration("elapsed", time.Since(start)))
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d records (dimension %d) to %s\n", store.Count(), store.Dimension(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "raw catalog JSON")
	cmd.Flags().StringVar(&outPath, "out", "", "output path (default catalog.path)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel embedding batches")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// embedRecords fills Embedding on every record in place. Batches run
// concurrently; each writes a disjoint slice range.
func embedRecords(ctx context.Context, e embeddings.Embedder, records []catalog.Record, batchSize, concurrency int, logger *logging.Logger) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for lo := 0; lo < len(records); lo += batchSize {
		hi := min(lo+batchSize, len(records))
		g.Go(func() error {
			texts := make([]string, hi-lo)
			for i := range texts {
				texts[i] = catalog.EmbeddingText(records[lo+i])
			}
			vectors, err := e.EmbedDocuments(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding records %d-%d: %w", lo, hi-1, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embedding records %d-%d: got %d vectors for %d texts", lo, hi-1, len(vectors), len(texts))
			}
			for i, v := range vectors {
				records[lo+i].Embedding = v
			}
			logger.Debug(gctx, "embedded batch", zap.Int("from", lo), zap.Int("to", hi-1))
			return nil
		})
	}
	return g.Wait()
}
