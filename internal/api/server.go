// Package api exposes the cover resolution service over HTTP using the Echo
// framework: the cover lookup endpoint, a health probe and the Prometheus
// metrics endpoint.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/logging"
	"github.com/jylhava/coverd/internal/observability"
	"github.com/jylhava/coverd/internal/resolver"
)

// Server hosts the HTTP API. Dependencies are wired explicitly at
// construction; there is no global state.
type Server struct {
	echo     *echo.Echo
	settings conf.WebServerSettings
	resolver *resolver.Service
	metrics  *observability.ResolverMetrics
	logger   *slog.Logger
}

// New builds the server and registers its routes. metrics may be nil, in
// which case the /metrics endpoint is not registered.
func New(settings conf.WebServerSettings, svc *resolver.Service, metrics *observability.ResolverMetrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.Gzip())

	s := &Server{
		echo:     e,
		settings: settings,
		resolver: svc,
		metrics:  metrics,
		logger:   logging.ForService("api"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/books/:id/cover", s.handleGetCover)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "listen", s.settings.Listen)
	err := s.echo.Start(s.settings.Listen)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
