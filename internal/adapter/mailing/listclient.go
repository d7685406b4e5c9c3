package mailing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/platform/version"
)

const breakerComponent = "mailing_list"

// ErrListUnavailable is returned while the circuit breaker is open.
var ErrListUnavailable = errors.New("mailing list API unavailable")

// ListClient subscribes addresses to a mailing list over its HTTP API.
type ListClient struct {
	baseURL string
	apiKey  string
	listID  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

type ListConfig struct {
	BaseURL string
	APIKey  string
	ListID  string
	// Breaker overrides the default breaker timings. Zero values keep the defaults.
	BreakerTimeout time.Duration
	Metrics        *metrics.BreakerMetrics
}

// NewListClient creates a client. The breaker opens once at least 5 requests in
// a 60s window fail at a rate of 60% or more, and probes again after 30s.
func NewListClient(cfg ListConfig) *ListClient {
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &ListClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		listID:  cfg.ListID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerComponent,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if cfg.Metrics != nil {
				cfg.Metrics.Record(name, to.String(), stateLevel(to))
			}
		},
	})
	return c
}

func stateLevel(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type memberRequest struct {
	EmailAddress string   `json:"email_address"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags,omitempty"`
}

type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Subscribe adds email to the list. An address that is already a member counts as accepted.
// A 4xx rejection returns false with a nil error and does not count against the breaker.
func (c *ListClient) Subscribe(ctx context.Context, email string, tags []string) (bool, error) {
	body, err := json.Marshal(memberRequest{EmailAddress: email, Status: "subscribed", Tags: tags})
	if err != nil {
		return false, fmt.Errorf("marshal member: %w", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %w", ErrListUnavailable, err)
		}
		return false, err
	}
	return result.(bool), nil
}

func (c *ListClient) post(ctx context.Context, body []byte) (bool, error) {
	endpoint := fmt.Sprintf("%s/lists/%s/members", c.baseURL, url.PathEscape(c.listID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("mailing list request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("mailing list API returned HTTP %d", resp.StatusCode)
	}

	var problem apiProblem
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &problem)
	if problem.Title == "Member Exists" {
		return true, nil
	}

	slog.WarnContext(ctx, "Mailing list rejected subscription",
		"status_code", resp.StatusCode, "title", problem.Title, "detail", problem.Detail)
	return false, nil
}

// State reports the breaker state.
func (c *ListClient) State() gobreaker.State {
	return c.cb.State()
}
