package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/overlay"
)

const waitTimeout = 2 * time.Second

type stubCatalog struct {
	defs []domain.OverlayDefinition
}

func (c stubCatalog) ListOverlayDefinitions(context.Context) ([]domain.OverlayDefinition, error) {
	return c.defs, nil
}

func (stubCatalog) ListRecentSales(context.Context, int) ([]domain.SaleRecord, error) {
	return nil, nil
}

type acceptAll struct{}

func (acceptAll) Subscribe(context.Context, string, []string) (bool, error) { return true, nil }
func (acceptAll) IssueCouponEmail(context.Context, string, string, string) (bool, error) {
	return true, nil
}

type countingPublisher struct {
	calls atomic.Int32
}

func (p *countingPublisher) PublishCatalogChanged(context.Context) error {
	p.calls.Add(1)
	return nil
}

func newTestManager(t *testing.T, cfg SessionManagerConfig, defs ...domain.OverlayDefinition) (*SessionManager, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cfg.Clock = clock

	catalog := stubCatalog{defs: defs}
	engine := overlay.NewEngine(overlay.Deps{
		Definitions: catalog,
		Sales:       catalog,
		Subscriber:  acceptAll{},
		Issuer:      acceptAll{},
		Clock:       clock,
	})

	m := NewSessionManager(engine, cfg)
	t.Cleanup(m.Stop)
	return m, clock
}

func banner() domain.OverlayDefinition {
	return domain.OverlayDefinition{
		ID:       "banner-1",
		Kind:     domain.KindBanner,
		Content:  domain.OverlayContent{Headline: "Join the club"},
		IsActive: true,
	}
}

func TestSessionManager_MountAndSnapshot(t *testing.T) {
	m, _ := newTestManager(t, SessionManagerConfig{}, banner())
	ctx := context.Background()

	id, err := m.Mount(ctx, "screen-1")
	require.NoError(t, err)
	assert.True(t, m.SessionExists(id))

	require.Eventually(t, func() bool {
		views, err := m.Snapshot(ctx, id)
		return err == nil && len(views) == 1 && views[0].State == domain.StateVisible
	}, waitTimeout, time.Millisecond)
}

func TestSessionManager_MountValidatesScreenID(t *testing.T) {
	m, _ := newTestManager(t, SessionManagerConfig{})

	var vErr *domain.ValidationError
	_, err := m.Mount(context.Background(), "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "screen_id", vErr.Field)

	_, err = m.Mount(context.Background(), string(make([]byte, maxScreenIDLength+1)))
	assert.ErrorAs(t, err, &vErr)
}

func TestSessionManager_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t, SessionManagerConfig{})
	ctx := context.Background()
	id := uuid.New()

	_, err := m.Snapshot(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Dismiss(ctx, id, uuid.New()), domain.ErrSessionNotFound)
	_, err = m.Submit(ctx, id, domain.KindBanner, "a@b.co")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.RefreshSales(ctx, id), domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Unmount(ctx, id), domain.ErrSessionNotFound)
}

func TestSessionManager_UnmountRemovesSession(t *testing.T) {
	m, _ := newTestManager(t, SessionManagerConfig{}, banner())
	ctx := context.Background()

	id, err := m.Mount(ctx, "screen-1")
	require.NoError(t, err)
	require.NoError(t, m.Unmount(ctx, id))

	assert.False(t, m.SessionExists(id))
	_, err = m.Snapshot(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Unmount(ctx, id), domain.ErrSessionNotFound)
}

func TestSessionManager_SubmitThroughSession(t *testing.T) {
	m, _ := newTestManager(t, SessionManagerConfig{}, banner())
	ctx := context.Background()

	id, err := m.Mount(ctx, "screen-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		views, err := m.Snapshot(ctx, id)
		return err == nil && len(views) == 1
	}, waitTimeout, time.Millisecond)

	outcome, err := m.Submit(ctx, id, domain.KindBanner, " A@B.co ")
	require.NoError(t, err)
	assert.Equal(t, domain.CaptureCompleted, outcome.Result)
	assert.NotEmpty(t, outcome.CouponCode)
}

func TestSessionManager_ReclaimIdle(t *testing.T) {
	reg := prometheus.NewRegistry()
	om := metrics.NewOverlayMetrics(reg)
	m, clock := newTestManager(t, SessionManagerConfig{IdleTimeout: 30 * time.Minute, Metrics: om})
	ctx := context.Background()

	idle, err := m.Mount(ctx, "screen-idle")
	require.NoError(t, err)
	busy, err := m.Mount(ctx, "screen-busy")
	require.NoError(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(om.SessionsActive), 0)

	clock.Advance(20 * time.Minute)
	_, err = m.Snapshot(ctx, busy)
	require.NoError(t, err)

	// The ticker may reclaim concurrently, so only the end state is checked.
	clock.Advance(10 * time.Minute)
	m.ReclaimIdle(ctx)

	assert.False(t, m.SessionExists(idle))
	assert.True(t, m.SessionExists(busy))
	assert.InDelta(t, 1, testutil.ToFloat64(om.SessionsActive), 0)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(om.SessionsReclaimed) == 1
	}, waitTimeout, time.Millisecond)
}

func TestSessionManager_SweepRunsOnTicker(t *testing.T) {
	m, clock := newTestManager(t, SessionManagerConfig{IdleTimeout: time.Minute})

	id, err := m.Mount(context.Background(), "screen-1")
	require.NoError(t, err)

	clock.Advance(sweepInterval)
	require.Eventually(t, func() bool { return !m.SessionExists(id) }, waitTimeout, time.Millisecond)
}

func TestSessionManager_StopUnmountsEverything(t *testing.T) {
	m, _ := newTestManager(t, SessionManagerConfig{}, banner())
	ctx := context.Background()

	id, err := m.Mount(ctx, "screen-1")
	require.NoError(t, err)

	m.Stop()
	m.Stop()

	assert.False(t, m.SessionExists(id))
	_, err = m.Mount(ctx, "screen-2")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestSessionManager_InvalidateCatalog(t *testing.T) {
	pub := &countingPublisher{}
	m, _ := newTestManager(t, SessionManagerConfig{Catalog: pub})

	require.NoError(t, m.InvalidateCatalog(context.Background()))
	assert.Equal(t, int32(1), pub.calls.Load())

	without, _ := newTestManager(t, SessionManagerConfig{})
	assert.NoError(t, without.InvalidateCatalog(context.Background()))
}
