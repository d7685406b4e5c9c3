package overlay

import (
	"time"

	"github.com/pscheid92/kioskads/internal/domain"
)

// IsEligible reports whether def may be shown at now. Both window bounds are inclusive.
func IsEligible(def domain.OverlayDefinition, now time.Time) bool {
	if !def.IsActive {
		return false
	}
	if def.StartAt != nil && now.Before(*def.StartAt) {
		return false
	}
	if def.EndAt != nil && now.After(*def.EndAt) {
		return false
	}
	return true
}
