package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type harness struct {
	clock     *clockwork.FakeClock
	defs      *mockDefinitions
	sales     *mockSales
	sub       *mockSubscriber
	iss       *mockIssuer
	events    *mockRecorder
	presenter *mockPresenter
	observer  *mockObserver
	engine    *Engine
}

func newHarness(defs ...domain.OverlayDefinition) *harness {
	h := &harness{
		clock:     clockwork.NewFakeClock(),
		defs:      staticDefinitions(defs...),
		sales:     &mockSales{},
		sub:       &mockSubscriber{},
		iss:       &mockIssuer{},
		events:    &mockRecorder{},
		presenter: &mockPresenter{},
		observer:  newMockObserver(),
	}
	return h
}

func (h *harness) mount(t *testing.T) *Session {
	t.Helper()
	if h.engine == nil {
		h.engine = NewEngine(Deps{
			Definitions: h.defs,
			Sales:       h.sales,
			Subscriber:  h.sub,
			Issuer:      h.iss,
			Events:      h.events,
			Presenter:   h.presenter,
			Observer:    h.observer,
			Clock:       h.clock,
		})
	}
	s := h.engine.Mount(uuid.New(), "screen-1")
	t.Cleanup(s.Unmount)
	return s
}

func definition(id string, kind domain.OverlayKind, settings map[string]any) domain.OverlayDefinition {
	return domain.OverlayDefinition{
		ID:       id,
		Kind:     kind,
		Content:  domain.OverlayContent{Headline: "Get 10% off"},
		Settings: settings,
		IsActive: true,
	}
}

func waitForViews(t *testing.T, s *Session, pred func([]domain.InstanceView) bool) []domain.InstanceView {
	t.Helper()
	var last []domain.InstanceView
	require.Eventually(t, func() bool {
		views, err := s.Snapshot(context.Background())
		if err != nil {
			return false
		}
		last = views
		return pred(views)
	}, waitTimeout, time.Millisecond)
	return last
}

func ofKind(views []domain.InstanceView, kind domain.OverlayKind) []domain.InstanceView {
	var out []domain.InstanceView
	for _, v := range views {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// waitForKindState waits until exactly one instance of kind exists and is in state.
func waitForKindState(t *testing.T, s *Session, kind domain.OverlayKind, state domain.OverlayState) domain.InstanceView {
	t.Helper()
	views := waitForViews(t, s, func(views []domain.InstanceView) bool {
		matches := ofKind(views, kind)
		return len(matches) == 1 && matches[0].State == state
	})
	return ofKind(views, kind)[0]
}

func waitForKindGone(t *testing.T, s *Session, kind domain.OverlayKind) {
	t.Helper()
	waitForViews(t, s, func(views []domain.InstanceView) bool {
		return len(ofKind(views, kind)) == 0
	})
}

func snapshot(t *testing.T, s *Session) []domain.InstanceView {
	t.Helper()
	views, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return views
}
