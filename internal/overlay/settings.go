package overlay

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pscheid92/kioskads/internal/domain"
)

const (
	defaultPopupDelay   = 5 * time.Second
	defaultToastDelay   = 2 * time.Second
	defaultToastDismiss = 5 * time.Second
	defaultSettle       = 3 * time.Second
	defaultExit         = 300 * time.Millisecond
	defaultStagger      = 200 * time.Millisecond
	defaultMaxVisible   = 1
	defaultFetchLimit   = 5
	defaultCouponPrefix = "WELCOME"

	maxFetchLimit = 50
)

// Settings are the normalized per-definition options. Every field has a default,
// so a malformed value never rejects the definition.
type Settings struct {
	DisplayDelay time.Duration
	// AutoClose closes a visible instance after it elapses. Zero disables it.
	// Toast streams read it from autoDismissSec.
	AutoClose time.Duration
	Settle    time.Duration
	// Exit is the exit animation length. Toasts use the entrance length for both.
	Exit time.Duration

	Stagger    time.Duration
	MaxVisible int
	FetchLimit int
	Refresh    time.Duration

	CouponCode   string
	CouponPrefix string
	IssueCoupon  bool
	Tags         []string
}

// DefaultSettings returns the defaults for kind.
func DefaultSettings(kind domain.OverlayKind) Settings {
	s := Settings{
		Settle:       defaultSettle,
		Exit:         defaultExit,
		Stagger:      defaultStagger,
		MaxVisible:   defaultMaxVisible,
		FetchLimit:   defaultFetchLimit,
		CouponPrefix: defaultCouponPrefix,
		IssueCoupon:  true,
		Tags:         []string{"overlay:" + string(kind)},
	}
	switch kind {
	case domain.KindPopup:
		s.DisplayDelay = defaultPopupDelay
	case domain.KindToastStream:
		s.DisplayDelay = defaultToastDelay
		s.AutoClose = defaultToastDismiss
	}
	return s
}

// ParseSettings normalizes the raw settings map of a definition of the given kind.
// Keys are accepted in camelCase or snake_case.
func ParseSettings(kind domain.OverlayKind, raw map[string]any) Settings {
	s := DefaultSettings(kind)
	p := settingsReader(raw)

	if d, ok := p.seconds("displayDelaySec", "display_delay_sec"); ok {
		s.DisplayDelay = d
	}
	closeKeys := []string{"autoCloseSec", "auto_close_sec"}
	if kind == domain.KindToastStream {
		closeKeys = []string{"autoDismissSec", "auto_dismiss_sec"}
	}
	if d, ok := p.seconds(closeKeys...); ok {
		s.AutoClose = d
	}
	if d, ok := p.seconds("settleSec", "settle_sec"); ok {
		s.Settle = d
	}
	if d, ok := p.millis("exitMs", "exit_ms", "animationMs", "animation_ms"); ok {
		s.Exit = d
	}
	if d, ok := p.millis("staggerMs", "stagger_ms"); ok {
		s.Stagger = d
	}
	if n, ok := p.count("maxVisible", "max_visible"); ok && n > 0 {
		s.MaxVisible = n
	}
	if n, ok := p.count("limit", "fetchLimit", "fetch_limit"); ok && n > 0 {
		s.FetchLimit = min(n, maxFetchLimit)
	}
	if d, ok := p.seconds("refreshSec", "refresh_sec"); ok {
		s.Refresh = d
	}
	if v, ok := p.text("couponCode", "coupon_code"); ok {
		s.CouponCode = v
	}
	if v, ok := p.text("couponPrefix", "coupon_prefix"); ok {
		s.CouponPrefix = strings.ToUpper(v)
	}
	if v, ok := p.flag("issueCoupon", "issue_coupon"); ok {
		s.IssueCoupon = v
	}
	if tags, ok := p.list("tags"); ok {
		s.Tags = tags
	}
	return s
}

type settingsReader map[string]any

func (r settingsReader) lookup(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r settingsReader) number(keys []string) (float64, bool) {
	v, ok := r.lookup(keys)
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func (r settingsReader) seconds(keys ...string) (time.Duration, bool) {
	f, ok := r.number(keys)
	if !ok {
		return 0, false
	}
	return toDuration(f, time.Second)
}

func (r settingsReader) millis(keys ...string) (time.Duration, bool) {
	f, ok := r.number(keys)
	if !ok {
		return 0, false
	}
	return toDuration(f, time.Millisecond)
}

// toDuration rejects values that do not fit in a time.Duration.
func toDuration(f float64, unit time.Duration) (time.Duration, bool) {
	ns := f * float64(unit)
	if ns >= math.MaxInt64 {
		return 0, false
	}
	return time.Duration(ns), true
}

func (r settingsReader) count(keys ...string) (int, bool) {
	f, ok := r.number(keys)
	if !ok || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func (r settingsReader) text(keys ...string) (string, bool) {
	v, ok := r.lookup(keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func (r settingsReader) flag(keys ...string) (bool, bool) {
	v, ok := r.lookup(keys)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

func (r settingsReader) list(keys ...string) ([]string, bool) {
	v, ok := r.lookup(keys)
	if !ok {
		return nil, false
	}
	var out []string
	switch items := v.(type) {
	case []string:
		out = append(out, items...)
	case []any:
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
	case string:
		for _, part := range strings.Split(items, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	default:
		return nil, false
	}
	return out, true
}
