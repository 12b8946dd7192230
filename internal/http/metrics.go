package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/assessd/internal/http"

// HTTPMetrics holds the OTEL instruments for the API.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
	resultCount    metric.Int64Histogram
	rejections     metric.Int64Counter
}

// NewHTTPMetrics creates HTTPMetrics on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"assessd.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"assessd.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"assessd.http.active_requests",
		metric.WithDescription("Requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	m.resultCount, err = m.meter.Int64Histogram(
		"assessd.http.recommendations",
		metric.WithDescription("Number of assessments returned per successful recommendation"),
		metric.WithUnit("{assessment}"),
		metric.WithExplicitBucketBoundaries(0, 1, 3, 5, 10),
	)
	if err != nil {
		m.logger.Warn("failed to create result histogram", zap.Error(err))
	}

	m.rejections, err = m.meter.Int64Counter(
		"assessd.http.rejections_total",
		metric.WithDescription("Recommend requests rejected, by error kind"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create rejections counter", zap.Error(err))
	}
}

// RecordResults records the size of a served recommendation.
func (m *HTTPMetrics) RecordResults(ctx context.Context, n int) {
	if m == nil || m.resultCount == nil {
		return
	}
	m.resultCount.Record(ctx, int64(n))
}

// RecordRejection counts a failed recommend request by kind.
func (m *HTTPMetrics) RecordRejection(ctx context.Context, kind string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
				defer m.activeRequests.Add(ctx, -1)
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return nil
		}
	}
}

// normalizePath maps the matched route to a metric label. Unmatched
// requests have an empty route and are grouped under "/".
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
