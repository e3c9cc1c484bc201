package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/N9work/CrewAi-Project/config"
	"github.com/N9work/CrewAi-Project/internal/agent/core"
	"github.com/N9work/CrewAi-Project/internal/agent/telemetry"
	"github.com/N9work/CrewAi-Project/internal/catalog"
	"github.com/N9work/CrewAi-Project/internal/planner"
	"github.com/N9work/CrewAi-Project/internal/tools/pagereader"
	"github.com/N9work/CrewAi-Project/internal/tools/websearch"
	"github.com/N9work/CrewAi-Project/provider"
)

// TripPlanner runs one planning request.
type TripPlanner interface {
	Plan(ctx context.Context, req catalog.Request) (planner.Report, error)
}

// Server is the HTTP surface of the trip planner.
type Server struct {
	cfg      config.ServerConfig
	echo     *echo.Echo
	planner  TripPlanner
	registry *catalog.Registry
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New builds the echo instance and registers every route.
func New(cfg config.ServerConfig, p TripPlanner, reg *catalog.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.Normalize(),
		planner:  p,
		registry: reg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.Origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	if s.cfg.StaticDir != "" {
		e.Static("/static", s.cfg.StaticDir)
	}

	th := &TripsHandler{Planner: s.planner, Registry: s.registry}
	var mw []echo.MiddlewareFunc
	if s.cfg.JWTSecret != "" {
		mw = append(mw, EchoAuthMiddleware([]byte(s.cfg.JWTSecret)))
	}
	e.POST("/set_task", th.plan, mw...)
	th.Register(e.Group("/api"), mw...)

	s.echo = e
	return s
}

// ServeHTTP lets the server be mounted or tested as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", s.cfg.Address))
		errCh <- s.echo.Start(s.cfg.Address)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return s.echo.Shutdown(shutdownCtx)
	}
}

// handleError writes every error as structured JSON and logs it.
func (s *Server) handleError(err error, c echo.Context) {
	code, body := errorResponse(err)
	if id, ok := c.Get("run_id").(string); ok {
		body.RunID = id
	}
	req := c.Request()
	fields := []zap.Field{
		zap.Int("status", code),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("remote", c.RealIP()),
		zap.Error(err),
	}
	if sub, ok := c.Get("user_id").(string); ok {
		fields = append(fields, zap.String("subject", sub))
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Info("request rejected", fields...)
	}
	if !c.Response().Committed {
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

// Run wires configuration into the planner and serves until ctx ends.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	p, tel, reg, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Search.SerperAPIKey == "" {
		logger.Warn("SERPER_API_KEY is not set; planning requests will fail until it is configured")
	}
	srv := New(cfg.Server, p, reg, WithLogger(logger), WithMetrics(tel.Registry()))
	return srv.Start(ctx)
}

// Build constructs the planner and its dependencies from cfg.
func Build(cfg *config.Config, logger *zap.Logger) (*planner.Planner, *telemetry.Telemetry, *catalog.Registry, error) {
	reg, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	backend, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("llm provider: %w", err)
	}
	tel, err := telemetry.NewTelemetry()
	if err != nil {
		return nil, nil, nil, err
	}

	search := websearch.New(cfg.Search,
		websearch.WithLogger(logger.Named("search")),
		websearch.WithRetryHook(tel.RetryHook(websearch.ToolName)))

	var extra []core.Tool
	if cfg.Tools.PageReader.Enabled {
		extra = append(extra, pagereader.New(cfg.Tools.PageReader, pagereader.WithLogger(logger.Named("pagereader"))))
	}

	p := planner.New(reg, backend, search,
		planner.WithLogger(logger.Named("planner")),
		planner.WithTelemetry(tel),
		planner.WithTimeout(cfg.Pipeline.Timeout),
		planner.WithMaxToolRounds(cfg.Pipeline.MaxToolRounds),
		planner.WithTools(extra...))
	return p, tel, reg, nil
}

