package domain

import (
	"time"

	"github.com/google/uuid"
)

// OverlayKind identifies which presentation slot an overlay occupies.
type OverlayKind string

const (
	KindBanner      OverlayKind = "banner"
	KindPopup       OverlayKind = "popup"
	KindToastStream OverlayKind = "toast-stream"
)

// ParseOverlayKind converts a string to an OverlayKind. Unknown values report false.
func ParseOverlayKind(s string) (OverlayKind, bool) {
	switch OverlayKind(s) {
	case KindBanner, KindPopup, KindToastStream:
		return OverlayKind(s), true
	default:
		return "", false
	}
}

// Captures reports whether instances of this kind host the email capture form.
func (k OverlayKind) Captures() bool {
	return k == KindBanner || k == KindPopup
}

// OverlayContent is the copy and artwork rendered by the presentation layer.
type OverlayContent struct {
	Headline     string `json:"headline"`
	Body         string `json:"body"`
	CallToAction string `json:"callToAction"`
	ImageURL     string `json:"imageUrl"`
}

// OverlayDefinition is one configured marketing overlay. Immutable once loaded.
type OverlayDefinition struct {
	ID       string         `json:"id"`
	Kind     OverlayKind    `json:"kind"`
	Content  OverlayContent `json:"content"`
	Settings map[string]any `json:"settings"`
	IsActive bool           `json:"isActive"`
	StartAt  *time.Time     `json:"startAt,omitempty"`
	EndAt    *time.Time     `json:"endAt,omitempty"`
	Priority int            `json:"priority"`
}

// OverlayState is a node in the per-instance state machine.
type OverlayState int

const (
	StateIdle OverlayState = iota
	StateScheduled
	StateVisible
	StateSubmitting
	StateSucceeded
	StateClosing
	StateRemoved
)

func (s OverlayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateVisible:
		return "visible"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateClosing:
		return "closing"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s OverlayState) Terminal() bool {
	return s == StateRemoved
}

// Observable reports whether the presentation layer should render the instance.
func (s OverlayState) Observable() bool {
	switch s {
	case StateVisible, StateSubmitting, StateSucceeded, StateClosing:
		return true
	default:
		return false
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s OverlayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InstanceView is a read-only copy of one live overlay instance.
type InstanceView struct {
	ID           uuid.UUID      `json:"id"`
	DefinitionID string         `json:"definitionId"`
	Kind         OverlayKind    `json:"kind"`
	State        OverlayState   `json:"state"`
	Content      OverlayContent `json:"content"`
	VisibleSince *time.Time     `json:"visibleSince,omitempty"`
	Sale         *SaleRecord    `json:"sale,omitempty"`
	Email        string         `json:"email,omitempty"`
	LastResult   CaptureResult  `json:"lastResult,omitempty"`
	Failure      string         `json:"failure,omitempty"`
	CouponCode   string         `json:"couponCode,omitempty"`
}
