package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/fyrsmithlabs/assessd/internal/http"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recommendation JSON API",
		Long: `Start the HTTP server.

Endpoints:
  GET  /health
  POST /recommend          {"query": "...", "top_k": 10}
  POST /api/v1/recommend
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer env.Close(context.Background())

			if cmd.Flags().Changed("port") {
				env.cfg.Server.Port = port
			}
			return serve(ctx, env)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

// serve blocks until ctx is cancelled, then shuts the server down within
// the configured timeout.
func serve(ctx context.Context, env *runtimeEnv) error {
	cfg := env.cfg
	p, err := buildPipeline(ctx, cfg, env.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer p.Close()

	srv, err := httpapi.NewServer(p.engine, env.logger.Underlying().Named("http"), &httpapi.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		MaxTopK: cfg.Server.MaxTopK,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		env.logger.Warn(shutdownCtx, "graceful shutdown failed", zap.Error(err))
		return err
	}
	env.logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
