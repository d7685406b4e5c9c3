package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/platform/config"
)

type appService interface {
	Mount(ctx context.Context, screenID string) (uuid.UUID, error)
	Unmount(ctx context.Context, id uuid.UUID) error
	Snapshot(ctx context.Context, id uuid.UUID) ([]domain.InstanceView, error)
	Dismiss(ctx context.Context, id, instanceID uuid.UUID) error
	Submit(ctx context.Context, id uuid.UUID, kind domain.OverlayKind, email string) (domain.CaptureOutcome, error)
	RefreshSales(ctx context.Context, id uuid.UUID) error
	InvalidateCatalog(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app appService

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

// Handlers groups the optional handlers mounted next to the API.
type Handlers struct {
	WebSocket   http.Handler
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTPMetrics
}

func NewServer(cfg *config.Config, app appService, handlers Handlers, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if err := HandleError(c, err); err != nil {
			slog.ErrorContext(c.Request().Context(), "Failed to render error", "error", err)
		}
	}

	srv := &Server{
		echo:             e,
		config:           cfg,
		app:              app,
		websocketHandler: handlers.WebSocket,
		metricsHandler:   handlers.Metrics,
		httpMetrics:      handlers.HTTPMetrics,
		healthChecks:     healthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
