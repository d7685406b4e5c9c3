package httpserver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/platform/config"
)

// --- Mock implementations ---

type mockAppService struct {
	mountFn             func(ctx context.Context, screenID string) (uuid.UUID, error)
	unmountFn           func(ctx context.Context, id uuid.UUID) error
	snapshotFn          func(ctx context.Context, id uuid.UUID) ([]domain.InstanceView, error)
	dismissFn           func(ctx context.Context, id, instanceID uuid.UUID) error
	submitFn            func(ctx context.Context, id uuid.UUID, kind domain.OverlayKind, email string) (domain.CaptureOutcome, error)
	refreshSalesFn      func(ctx context.Context, id uuid.UUID) error
	invalidateCatalogFn func(ctx context.Context) error
}

func (m *mockAppService) Mount(ctx context.Context, screenID string) (uuid.UUID, error) {
	if m.mountFn != nil {
		return m.mountFn(ctx, screenID)
	}
	return uuid.New(), nil
}

func (m *mockAppService) Unmount(ctx context.Context, id uuid.UUID) error {
	if m.unmountFn != nil {
		return m.unmountFn(ctx, id)
	}
	return nil
}

func (m *mockAppService) Snapshot(ctx context.Context, id uuid.UUID) ([]domain.InstanceView, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAppService) Dismiss(ctx context.Context, id, instanceID uuid.UUID) error {
	if m.dismissFn != nil {
		return m.dismissFn(ctx, id, instanceID)
	}
	return nil
}

func (m *mockAppService) Submit(ctx context.Context, id uuid.UUID, kind domain.OverlayKind, email string) (domain.CaptureOutcome, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, id, kind, email)
	}
	return domain.CaptureOutcome{Result: domain.CaptureCompleted, CouponCode: "WELCOME-ABC234"}, nil
}

func (m *mockAppService) RefreshSales(ctx context.Context, id uuid.UUID) error {
	if m.refreshSalesFn != nil {
		return m.refreshSalesFn(ctx, id)
	}
	return nil
}

func (m *mockAppService) InvalidateCatalog(ctx context.Context) error {
	if m.invalidateCatalogFn != nil {
		return m.invalidateCatalogFn(ctx)
	}
	return nil
}

// --- Test helpers ---

func newTestServer(t *testing.T, app appService, opts ...func(*Server)) *Server {
	t.Helper()

	srv := &Server{
		echo: echo.New(),
		config: &config.Config{
			Port:             "8080",
			CaptureRateLimit: 100,
			CaptureRateBurst: 100,
		},
		app: app,
	}

	for _, opt := range opts {
		opt(srv)
	}

	// Register routes so endpoints are available for testing
	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withCaptureRateLimit(rate float64, burst int) func(*Server) {
	return func(s *Server) {
		s.config.CaptureRateLimit = rate
		s.config.CaptureRateBurst = burst
	}
}
