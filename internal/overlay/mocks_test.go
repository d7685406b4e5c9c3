package overlay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pscheid92/kioskads/internal/domain"
)

// --- Mock implementations ---

type mockDefinitions struct {
	listFn func(ctx context.Context) ([]domain.OverlayDefinition, error)
	calls  atomic.Int32
}

func (m *mockDefinitions) ListOverlayDefinitions(ctx context.Context) ([]domain.OverlayDefinition, error) {
	m.calls.Add(1)
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockSales struct {
	listFn func(ctx context.Context, limit int) ([]domain.SaleRecord, error)
	calls  atomic.Int32
}

func (m *mockSales) ListRecentSales(ctx context.Context, limit int) ([]domain.SaleRecord, error) {
	m.calls.Add(1)
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

type mockSubscriber struct {
	subscribeFn func(ctx context.Context, email string, tags []string) (bool, error)
	calls       atomic.Int32
}

func (m *mockSubscriber) Subscribe(ctx context.Context, email string, tags []string) (bool, error) {
	m.calls.Add(1)
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email, tags)
	}
	return true, nil
}

type mockIssuer struct {
	issueFn func(ctx context.Context, email, code, overlayID string) (bool, error)
	calls   atomic.Int32
}

func (m *mockIssuer) IssueCouponEmail(ctx context.Context, email, code, overlayID string) (bool, error) {
	m.calls.Add(1)
	if m.issueFn != nil {
		return m.issueFn(ctx, email, code, overlayID)
	}
	return true, nil
}

type recordedEvent struct {
	eventType string
	targetID  string
	payload   map[string]any
}

type mockRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (m *mockRecorder) RecordEvent(_ context.Context, eventType, targetID string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{eventType: eventType, targetID: targetID, payload: payload})
	return m.err
}

func (m *mockRecorder) recorded() []recordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedEvent(nil), m.events...)
}

type mockPresenter struct {
	mu    sync.Mutex
	views []domain.InstanceView
}

func (m *mockPresenter) Present(_ context.Context, _ uuid.UUID, view domain.InstanceView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, view)
	return nil
}

func (m *mockPresenter) states(id uuid.UUID) []domain.OverlayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OverlayState
	for _, v := range m.views {
		if v.ID == id {
			out = append(out, v.State)
		}
	}
	return out
}

type mockObserver struct {
	mu          sync.Mutex
	transitions map[domain.OverlayKind][]domain.OverlayState
	captures    []domain.CaptureResult
	fetches     map[string][]error
	stale       int
	dropped     int

	// panicOn, when set before mount, makes Transition panic for matching calls.
	panicOn func(domain.OverlayKind, domain.OverlayState) bool
}

func newMockObserver() *mockObserver {
	return &mockObserver{
		transitions: make(map[domain.OverlayKind][]domain.OverlayState),
		fetches:     make(map[string][]error),
	}
}

func (m *mockObserver) Transition(kind domain.OverlayKind, state domain.OverlayState) {
	if m.panicOn != nil && m.panicOn(kind, state) {
		panic(fmt.Sprintf("observer failure on %s %s", kind, state))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[kind] = append(m.transitions[kind], state)
}

func (m *mockObserver) Capture(_ domain.OverlayKind, result domain.CaptureResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, result)
}

func (m *mockObserver) Fetch(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[source] = append(m.fetches[source], err)
}

func (m *mockObserver) StaleTimer(domain.OverlayKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}

func (m *mockObserver) PresenterDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *mockObserver) fetchCount(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches[source])
}

func (m *mockObserver) lastFetchErr(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := m.fetches[source]
	if len(errs) == 0 {
		return nil
	}
	return errs[len(errs)-1]
}

func (m *mockObserver) staleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}
