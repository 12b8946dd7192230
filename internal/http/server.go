// Package http provides the JSON API for assessd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/assessd/internal/logging"
	"github.com/fyrsmithlabs/assessd/internal/query"
	"github.com/fyrsmithlabs/assessd/internal/recommend"
)

// DefaultMaxTopK bounds top_k when the config leaves it unset.
const DefaultMaxTopK = 10

// Engine is the recommendation pipeline served over HTTP.
type Engine interface {
	RecommendInput(ctx context.Context, input string, topK int) (*recommend.RankedResult, error)
}

// Server is the HTTP server for assessd.
type Server struct {
	echo    *echo.Echo
	engine  Engine
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	MaxTopK int
}

// NewServer creates a new HTTP server.
func NewServer(engine Engine, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for Server")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8000}
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultMaxTopK
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewHTTPMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:    e,
		engine:  engine,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/recommend", s.handleRecommend)
	v1 := s.echo.Group("/api/v1")
	v1.POST("/recommend", s.handleRecommend)
}

// RecommendRequest is the request body for POST /recommend.
type RecommendRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// RecommendResponse is the response body for POST /recommend.
type RecommendResponse struct {
	Query           string                 `json:"query"`
	RequestID       string                 `json:"request_id,omitempty"`
	Recommendations []recommend.Assessment `json:"recommendations"`
	Count           int                    `json:"count"`
}

// ErrorResponse is the structured body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "assessment recommendation service is running",
	})
}

func (s *Server) handleRecommend(c echo.Context) error {
	var req RecommendRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid recommend request", zap.Error(err))
		s.metrics.RecordRejection(c.Request().Context(), query.StageInput)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Kind: query.StageInput})
	}

	if strings.TrimSpace(req.Query) == "" {
		s.metrics.RecordRejection(c.Request().Context(), query.StageInput)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query field is required", Kind: query.StageInput})
	}

	topK := s.config.MaxTopK
	if req.TopK != nil {
		topK = *req.TopK
		if topK < 1 || topK > s.config.MaxTopK {
			s.metrics.RecordRejection(c.Request().Context(), query.StageInput)
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("top_k must be between 1 and %d", s.config.MaxTopK),
				Kind:  query.StageInput,
			})
		}
	}

	ctx := c.Request().Context()
	result, err := s.engine.RecommendInput(ctx, req.Query, topK)
	if err != nil {
		return s.writeError(c, err)
	}

	s.metrics.RecordResults(ctx, result.Len())
	return c.JSON(http.StatusOK, RecommendResponse{
		Query:           req.Query,
		RequestID:       result.RequestID,
		Recommendations: result.Assessments(),
		Count:           result.Len(),
	})
}

// writeError maps pipeline failures to structured responses.
func (s *Server) writeError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	var encErr *query.EncodingError
	if errors.As(err, &encErr) {
		s.metrics.RecordRejection(ctx, encErr.Stage)
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: encErr.Error(), Kind: encErr.Stage})
	}
	s.metrics.RecordRejection(ctx, "internal")
	s.logger.Error("recommendation failed",
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: "internal"})
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
