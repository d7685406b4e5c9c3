package overlay

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
)

// instance is one live occurrence of a definition. Only the session loop touches it.
type instance struct {
	id    uuid.UUID
	seq   int
	entry Entry
	state domain.OverlayState

	visibleSince time.Time
	sale         *domain.SaleRecord
	email        string
	lastResult   domain.CaptureResult
	failure      string
	couponCode   string

	// One timer slot. gen advances on every arm and disarm so a callback
	// from a replaced timer can recognize itself as stale.
	timer clockwork.Timer
	gen   uint64

	// admitted is set while a toast holds one of the visible slots.
	admitted bool
}

func (i *instance) kind() domain.OverlayKind {
	return i.entry.Definition.Kind
}

func (i *instance) settings() Settings {
	return i.entry.Settings
}

func (i *instance) view() domain.InstanceView {
	v := domain.InstanceView{
		ID:           i.id,
		DefinitionID: i.entry.Definition.ID,
		Kind:         i.kind(),
		State:        i.state,
		Content:      i.entry.Definition.Content,
		Email:        i.email,
		LastResult:   i.lastResult,
		Failure:      i.failure,
		CouponCode:   i.couponCode,
	}
	if !i.visibleSince.IsZero() {
		since := i.visibleSince
		v.VisibleSince = &since
	}
	if i.sale != nil {
		sale := *i.sale
		v.Sale = &sale
	}
	return v
}
