package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/kioskads/internal/domain"
	apperrors "github.com/pscheid92/kioskads/internal/platform/errors"
)

type mountRequest struct {
	ScreenID string `json:"screen_id" form:"screen_id"`
}

type captureRequest struct {
	Kind  string `json:"kind" form:"kind"`
	Email string `json:"email" form:"email"`
}

type captureResponse struct {
	Result           domain.CaptureResult `json:"result"`
	CouponCode       string               `json:"couponCode,omitempty"`
	Failure          string               `json:"failure,omitempty"`
	AlreadyCompleted bool                 `json:"alreadyCompleted,omitempty"`
}

func (s *Server) registerSessionRoutes() {
	g := s.echo.Group("/api/sessions")
	g.POST("", s.handleMount)
	g.GET("/:id", s.handleSnapshot)
	g.DELETE("/:id", s.handleUnmount)
	g.POST("/:id/instances/:instance/dismiss", s.handleDismiss)
	g.POST("/:id/capture", s.handleCapture, newCaptureLimiter(s.config.CaptureRateLimit, s.config.CaptureRateBurst))
	g.POST("/:id/sales/refresh", s.handleRefreshSales)
}

func (s *Server) handleMount(c echo.Context) error {
	var req mountRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	id, err := s.app.Mount(c.Request().Context(), req.ScreenID)
	if err != nil {
		return err
	}

	response := map[string]string{
		"session_id": id.String(),
		"channel":    "overlay:" + id.String(),
	}
	if err := c.JSON(http.StatusCreated, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSnapshot(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	views, err := s.app.Snapshot(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if views == nil {
		views = []domain.InstanceView{}
	}

	if err := c.JSON(http.StatusOK, map[string]any{"instances": views}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUnmount(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.Unmount(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDismiss(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	instanceID, err := parseUUIDParam(c, "instance")
	if err != nil {
		return err
	}

	if err := s.app.Dismiss(c.Request().Context(), id, instanceID); err != nil {
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return apperrors.NotFoundError("overlay instance not found").WithField("instance_id", instanceID.String())
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleCapture answers 200 for every workflow outcome, failed or not; the
// kiosk renders the result. Only invalid input and state conflicts are errors.
func (s *Server) handleCapture(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req captureRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	kind, ok := domain.ParseOverlayKind(req.Kind)
	if !ok || !kind.Captures() {
		return apperrors.ValidationError("kind must be banner or popup").WithField("kind", req.Kind)
	}

	outcome, err := s.app.Submit(c.Request().Context(), id, kind, req.Email)
	alreadyCompleted := errors.Is(err, domain.ErrAlreadyCompleted)
	if err != nil && !alreadyCompleted {
		return err
	}

	response := captureResponse{
		Result:           outcome.Result,
		CouponCode:       outcome.CouponCode,
		AlreadyCompleted: alreadyCompleted,
	}
	if outcome.Err != nil {
		response.Failure = outcome.Err.Error()
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRefreshSales(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.RefreshSales(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) registerCatalogRoutes() {
	s.echo.POST("/api/catalog/invalidate", s.handleInvalidateCatalog)
}

func (s *Server) handleInvalidateCatalog(c echo.Context) error {
	if err := s.app.InvalidateCatalog(c.Request().Context()); err != nil {
		return apperrors.InternalError("failed to invalidate catalog", err)
	}
	if err := c.JSON(http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField(name, raw)
	}
	return id, nil
}
