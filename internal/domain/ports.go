package domain

import (
	"context"

	"github.com/google/uuid"
)

// DefinitionReader lists every configured overlay definition.
type DefinitionReader interface {
	ListOverlayDefinitions(ctx context.Context) ([]OverlayDefinition, error)
}

// SalesReader lists the most recent sale records, newest first.
type SalesReader interface {
	ListRecentSales(ctx context.Context, limit int) ([]SaleRecord, error)
}

// CatalogReader is the full read side of the overlay data source.
type CatalogReader interface {
	DefinitionReader
	SalesReader
}

// Subscriber adds an address to the mailing list. true means the list accepted it.
type Subscriber interface {
	Subscribe(ctx context.Context, email string, tags []string) (bool, error)
}

// CouponIssuer sends the coupon email. true means the message was accepted for delivery.
type CouponIssuer interface {
	IssueCouponEmail(ctx context.Context, email, code, overlayID string) (bool, error)
}

// EventRecorder stores audit events. Callers treat it as fire-and-forget.
type EventRecorder interface {
	RecordEvent(ctx context.Context, eventType, targetID string, payload map[string]any) error
}

// Presenter pushes instance views to whatever renders the session.
type Presenter interface {
	Present(ctx context.Context, sessionID uuid.UUID, view InstanceView) error
}

// CatalogChangePublisher announces that stored overlay definitions changed.
type CatalogChangePublisher interface {
	PublishCatalogChanged(ctx context.Context) error
}
