package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pscheid92/kioskads/internal/domain"
)

const (
	eventEmailCapture  = "banner_email_capture"
	eventRecordTimeout = 2 * time.Second
	maxEmailLength     = 254
)

// CaptureRequest is one submission of the capture form on a banner or popup.
type CaptureRequest struct {
	OverlayID string
	Kind      domain.OverlayKind
	Email     string
	Settings  Settings
}

// CaptureWorkflow subscribes an address and then issues its coupon email.
// Neither step is retried here; a failed step is reported and the user may resubmit.
type CaptureWorkflow struct {
	subscriber domain.Subscriber
	issuer     domain.CouponIssuer
	events     domain.EventRecorder
}

// NewCaptureWorkflow creates the workflow. events may be nil.
func NewCaptureWorkflow(subscriber domain.Subscriber, issuer domain.CouponIssuer, events domain.EventRecorder) *CaptureWorkflow {
	return &CaptureWorkflow{subscriber: subscriber, issuer: issuer, events: events}
}

// NormalizeEmail trims and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", &domain.ValidationError{Field: "email", Reason: "is required"}
	}
	if len(email) > maxEmailLength || !govalidator.IsEmail(email) {
		return "", &domain.ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	return email, nil
}

// Run executes the workflow. The returned error is non-nil only for invalid input,
// in which case no side effect was performed.
func (w *CaptureWorkflow) Run(ctx context.Context, req CaptureRequest) (domain.CaptureOutcome, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return domain.CaptureOutcome{}, err
	}

	accepted, err := w.subscriber.Subscribe(ctx, email, req.Settings.Tags)
	if err != nil || !accepted {
		if err == nil {
			err = domain.ErrSubscribeRejected
		}
		slog.WarnContext(ctx, "Subscribe failed", "overlay_id", req.OverlayID, "kind", req.Kind, "error", err)
		return domain.CaptureOutcome{Result: domain.CaptureSubscribeFailed, Err: fmt.Errorf("subscribe: %w", err)}, nil
	}

	if req.Kind == domain.KindBanner {
		w.recordCapture(ctx, req.OverlayID, email)
	}

	if !req.Settings.IssueCoupon {
		return domain.CaptureOutcome{Result: domain.CaptureSubscribed}, nil
	}

	code := req.Settings.CouponCode
	if code == "" {
		code = GenerateCouponCode(req.Settings.CouponPrefix)
	}

	accepted, err = w.issuer.IssueCouponEmail(ctx, email, code, req.OverlayID)
	if err != nil || !accepted {
		if err == nil {
			err = domain.ErrIssueRejected
		}
		slog.WarnContext(ctx, "Coupon issuance failed", "overlay_id", req.OverlayID, "kind", req.Kind, "error", err)
		return domain.CaptureOutcome{Result: domain.CaptureIssueFailed, CouponCode: code, Err: fmt.Errorf("issue coupon: %w", err)}, nil
	}

	slog.InfoContext(ctx, "Capture completed", "overlay_id", req.OverlayID, "kind", req.Kind)
	return domain.CaptureOutcome{Result: domain.CaptureCompleted, CouponCode: code}, nil
}

func (w *CaptureWorkflow) recordCapture(ctx context.Context, overlayID, email string) {
	if w.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, eventRecordTimeout)
	defer cancel()

	payload := map[string]any{"email": email, "source": string(domain.KindBanner)}
	if err := w.events.RecordEvent(ctx, eventEmailCapture, overlayID, payload); err != nil {
		slog.WarnContext(ctx, "Failed to record capture event", "overlay_id", overlayID, "error", err)
	}
}
