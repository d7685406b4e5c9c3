package overlay

import "github.com/pscheid92/kioskads/internal/domain"

// Observer receives engine events for instrumentation. Implementations must not block.
type Observer interface {
	Transition(kind domain.OverlayKind, state domain.OverlayState)
	Capture(kind domain.OverlayKind, result domain.CaptureResult)
	Fetch(source string, err error)
	StaleTimer(kind domain.OverlayKind)
	PresenterDropped()
}

type nopObserver struct{}

func (nopObserver) Transition(domain.OverlayKind, domain.OverlayState) {}
func (nopObserver) Capture(domain.OverlayKind, domain.CaptureResult)   {}
func (nopObserver) Fetch(string, error)                                {}
func (nopObserver) StaleTimer(domain.OverlayKind)                      {}
func (nopObserver) PresenterDropped()                                  {}
