package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/pscheid92/kioskads/internal/platform/errors"
)

const captureLimiterExpiry = 5 * time.Minute

// newCaptureLimiter throttles capture submissions per kiosk session. Screens
// behind one venue NAT share an IP, so the bucket is keyed by IP and session.
func newCaptureLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: captureLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: captureLimitKey,
		Store:               store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return HandleError(c, apperrors.RateLimitedError("too many capture attempts, try again shortly"))
		},
	})
}

func captureLimitKey(c echo.Context) (string, error) {
	return c.RealIP() + "|" + c.Param("id"), nil
}
