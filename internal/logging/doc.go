// Package logging provides structured logging for assessd.
//
// The package wraps zap with context-aware methods that attach trace and
// request correlation automatically, a custom Trace level, encoder-level
// secret redaction and optional export through the OpenTelemetry log bridge.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "req-42")
//	logger.Info(ctx, "recommendations ready", zap.Int("count", 10))
//
// Library packages (catalog, retrieval, reranker, ...) take a *zap.Logger
// from Underlying() so they stay independent of this package.
//
// Errors are never sampled. Debug, Info and Warn are sampled per second
// when sampling is enabled.
package logging
