package mailing

import (
	"context"
	"log/slog"
)

// LogSubscriber accepts every address and only logs it. Used when no mailing list API is configured.
type LogSubscriber struct{}

func (LogSubscriber) Subscribe(ctx context.Context, email string, tags []string) (bool, error) {
	slog.InfoContext(ctx, "Mailing list not configured, subscription logged only", "tags", tags)
	return true, nil
}

// LogIssuer accepts every coupon and only logs it. Used when Brevo is not configured.
type LogIssuer struct{}

func (LogIssuer) IssueCouponEmail(ctx context.Context, email, code, overlayID string) (bool, error) {
	slog.InfoContext(ctx, "Coupon email not configured, issuance logged only", "overlay_id", overlayID, "code", code)
	return true, nil
}
