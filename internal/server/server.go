// Package server exposes the dashboard queries as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/logging"
	"learner-dashboard/internal/providers/platform"
	"learner-dashboard/internal/queries"
	"learner-dashboard/internal/view"
)

// Dashboard is the query surface served over HTTP; *queries.Service implements it.
type Dashboard interface {
	Dashboard(ctx context.Context, req view.Request) (queries.Dashboard, error)
	ListCourses(ctx context.Context) ([]domain.CourseSummary, error)
	GetCourseDetail(ctx context.Context, id string) (domain.CourseSummary, error)
	PrefetchCourse(ctx context.Context, id string)
	ListLearningPaths(ctx context.Context) ([]domain.LearningPathSummary, error)
	GetLearningPathDetail(ctx context.Context, key string) (domain.LearningPathDetail, error)
	PrefetchLearningPath(ctx context.Context, key string)
	EnrollLearningPath(ctx context.Context, key string) queries.EnrollResult
	EnrollCourse(ctx context.Context, pathKey, courseID string) queries.EnrollResult
	Organizations(ctx context.Context) ([]domain.Organization, error)
	InvalidateCourse(id string)
	InvalidateLearningPath(key string)
	InvalidateAll()
	CacheEntries() int
}

// Server provides the dashboard HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	svc    Dashboard
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// PageSize is the dashboard page size when the request does not set one.
	PageSize int
}

const maxPageSize = 100

// NewServer creates a new HTTP server.
func NewServer(svc Dashboard, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("dashboard service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = view.DefaultPageSize
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
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
		echo:   e,
		svc:    svc,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/dashboard", s.handleDashboard)
	v1.GET("/organizations", s.handleOrganizations)
	v1.POST("/cache/invalidate", s.handleInvalidate)

	v1.GET("/courses", s.handleCourses)
	v1.GET("/courses/:key", s.handleCourse)
	v1.POST("/courses/:key/prefetch", s.handlePrefetchCourse)
	v1.POST("/courses/:key/invalidate", s.handleInvalidateCourse)

	v1.GET("/learning-paths", s.handleLearningPaths)
	v1.GET("/learning-paths/:key", s.handleLearningPath)
	v1.POST("/learning-paths/:key/prefetch", s.handlePrefetchLearningPath)
	v1.POST("/learning-paths/:key/invalidate", s.handleInvalidateLearningPath)
	v1.POST("/learning-paths/:key/enroll", s.handleEnrollLearningPath)
	v1.POST("/learning-paths/:key/courses/:course/enroll", s.handleEnrollCourse)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

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

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// upstreamError maps a query failure onto an HTTP error.
func (s *Server) upstreamError(c echo.Context, err error) error {
	status := statusFor(err)
	log := logging.For(c.Request().Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Warn("query failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Debug("query failed", zap.Int("status", status), zap.Error(err))
	}
	return echo.NewHTTPError(status, http.StatusText(status)).SetInternal(err)
}

func statusFor(err error) int {
	var (
		apiErr *platform.APIError
		valErr *platform.ValidationError
		netErr *platform.NetworkError
	)
	switch {
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.As(err, &valErr):
		return http.StatusBadGateway
	case errors.As(err, &netErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
