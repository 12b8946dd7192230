package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/assessd/internal/evaluation"
	"github.com/fyrsmithlabs/assessd/internal/training"
)

func newEvaluateCmd(flags *globalFlags) *cobra.Command {
	var (
		labeledPath string
		reportPath  string
		k           int
		fanout      int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure mean Recall@K on a labeled query set",
		Example: `  assessd evaluate --labeled data/train.csv
  assessd evaluate --labeled data/train.csv --k 10 --fanout 100 --report report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			if !cmd.Flags().Changed("k") {
				k = env.cfg.Evaluation.K
			}
			if !cmd.Flags().Changed("fanout") {
				fanout = env.cfg.Evaluation.Fanout
			}

			labeled, err := evaluation.LoadLabeled(labeledPath)
			if err != nil {
				return err
			}

			p, err := buildPipeline(ctx, env.cfg, env.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			engine := p.engine
			if fanout > 0 {
				engine = engine.WithFanout(fanout)
			}

			report, err := evaluation.Evaluate(ctx, labeled, engine, evaluation.Options{
				K:           k,
				Concurrency: concurrency,
				Logger:      env.logger.Named("evaluation"),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mean Recall@%d:    %.4f\n", report.K, report.MeanRecall)
			fmt.Fprintf(out, "Mean Precision@%d: %.4f\n", report.K, report.MeanPrecision)
			fmt.Fprintf(out, "Evaluated: %d  Excluded: %d  Failed: %d\n", report.Evaluated, report.Excluded, report.Failed)

			if reportPath == "" {
				return nil
			}
			return writeFile(reportPath, report.WriteJSON)
		},
	}
	cmd.Flags().StringVar(&labeledPath, "labeled", "", "labeled query set (CSV Query,Assessment_url or JSON)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the full report as JSON to this path")
	cmd.Flags().IntVar(&k, "k", evaluation.DefaultK, "recall cutoff")
	cmd.Flags().IntVar(&fanout, "fanout", 0, "stage-one fanout (0 uses retrieval.fanout)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel queries")
	_ = cmd.MarkFlagRequired("labeled")
	return cmd
}

func newPredictCmd(flags *globalFlags) *cobra.Command {
	var (
		queriesPath string
		outPath     string
		k           int
	)

	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Write ranked predictions for unlabeled queries as CSV",
		Example: `  assessd predict --queries data/test.csv --out predictions.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			queries, err := training.ReadQueries(queriesPath)
			if err != nil {
				return err
			}

			p, err := buildPipeline(ctx, env.cfg, env.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			preds, err := evaluation.Predict(ctx, queries, p.engine, k)
			if err != nil {
				return err
			}
			if err := writeFile(outPath, func(w io.Writer) error {
				return evaluation.WritePredictionsCSV(w, preds)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote predictions for %d queries to %s\n", len(preds), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&queriesPath, "queries", "", "query file (CSV with a Query column, or JSON)")
	cmd.Flags().StringVar(&outPath, "out", "predictions.csv", "output CSV path")
	cmd.Flags().IntVar(&k, "k", evaluation.DefaultK, "assessments per query")
	_ = cmd.MarkFlagRequired("queries")
	return cmd
}

// writeFile creates path and hands it to write, closing it afterwards.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}
