package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/assessd/internal/recommend"
)

func newRecommendCmd(flags *globalFlags) *cobra.Command {
	var (
		topK   int
		format string
	)

	cmd := &cobra.Command{
		Use:   "recommend <query|url>",
		Short: "Recommend assessments for a query or job-posting URL",
		Example: `  assessd recommend "Java developer who collaborates with business teams"
  assessd recommend --top-k 5 --format table https://example.com/jobs/123`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			p, err := buildPipeline(ctx, env.cfg, env.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := p.engine.RecommendInput(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result, format)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "number of assessments to return")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or table")
	return cmd
}

// recommendOutput mirrors the HTTP response body.
type recommendOutput struct {
	Query           string                 `json:"query"`
	RequestID       string                 `json:"request_id"`
	Recommendations []recommend.Assessment `json:"recommendations"`
	Count           int                    `json:"count"`
}

func writeResult(w io.Writer, result *recommend.RankedResult, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recommendOutput{
			Query:           result.Query,
			RequestID:       result.RequestID,
			Recommendations: result.Assessments(),
			Count:           result.Len(),
		})
	case "table":
		_, err := fmt.Fprintln(w, renderTable(result))
		return err
	default:
		return fmt.Errorf("unknown format %q (want json or table)", format)
	}
}
