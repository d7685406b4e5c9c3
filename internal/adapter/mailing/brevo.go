package mailing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/pscheid92/kioskads/internal/platform/version"
)

const defaultBrevoURL = "https://api.brevo.com/v3"

var couponTemplate = template.Must(template.New("coupon").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h1>Thanks for signing up!</h1>
  <p>Here is your coupon code:</p>
  <p style="font-size: 24px; font-weight: bold; letter-spacing: 2px;">{{.Code}}</p>
  <p>Show it at the counter or enter it at checkout.</p>
</body>
</html>
`))

type BrevoConfig struct {
	APIKey     string
	FromAddr   string
	FromName   string
	BaseURL    string
	RetryDelay time.Duration
}

// BrevoIssuer sends coupon emails through the Brevo transactional email API.
type BrevoIssuer struct {
	apiKey     string
	fromAddr   string
	fromName   string
	baseURL    string
	retryDelay time.Duration
	client     *http.Client
}

func NewBrevoIssuer(cfg BrevoConfig) *BrevoIssuer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBrevoURL
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = time.Second
	}
	return &BrevoIssuer{
		apiKey:     cfg.APIKey,
		fromAddr:   cfg.FromAddr,
		fromName:   cfg.FromName,
		baseURL:    baseURL,
		retryDelay: delay,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type brevoSendRequest struct {
	Sender  brevoContact      `json:"sender"`
	To      []brevoContact    `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"htmlContent"`
	Tags    []string          `json:"tags,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// IssueCouponEmail sends the coupon. Only dial failures are retried: once a
// request reached Brevo the message may have been queued, and a second send
// would mail the customer twice.
func (b *BrevoIssuer) IssueCouponEmail(ctx context.Context, email, code, overlayID string) (bool, error) {
	var html bytes.Buffer
	if err := couponTemplate.Execute(&html, struct{ Code string }{Code: code}); err != nil {
		return false, fmt.Errorf("render coupon email: %w", err)
	}

	payload, err := json.Marshal(brevoSendRequest{
		Sender:  brevoContact{Email: b.fromAddr, Name: b.fromName},
		To:      []brevoContact{{Email: email}},
		Subject: "Your coupon code " + code,
		HTML:    html.String(),
		Tags:    []string{"coupon", "overlay:" + overlayID},
	})
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}

	var accepted bool
	err = retry.Do(
		func() error {
			start := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/smtp/email", bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("api-key", b.apiKey)
			req.Header.Set("User-Agent", version.UserAgent())

			resp, err := b.client.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				accepted = true
				slog.InfoContext(ctx, "Coupon email accepted", "overlay_id", overlayID,
					"duration_ms", time.Since(start).Milliseconds())
				return nil
			case resp.StatusCode >= 500:
				return fmt.Errorf("brevo returned HTTP %d", resp.StatusCode)
			default:
				slog.WarnContext(ctx, "Brevo rejected coupon email", "overlay_id", overlayID, "status_code", resp.StatusCode)
				return nil
			}
		},
		retry.Attempts(3),
		retry.Delay(b.retryDelay),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.RetryIf(isDialError),
		retry.OnRetry(func(n uint, err error) {
			slog.InfoContext(ctx, "Retrying coupon email after dial error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return false, fmt.Errorf("send coupon email: %w", err)
	}
	return accepted, nil
}

// isDialError reports whether err happened before any byte reached the server.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
