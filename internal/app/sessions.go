package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/overlay"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	sweepInterval      = time.Minute
	maxScreenIDLength  = 128
)

type mountedSession struct {
	session  *overlay.Session
	lastUsed time.Time
}

// SessionManager is the registry of overlay sessions mounted on this instance.
type SessionManager struct {
	engine      *overlay.Engine
	catalog     domain.CatalogChangePublisher
	metrics     *metrics.OverlayMetrics
	clock       clockwork.Clock
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*mountedSession
	stopped  bool

	sweepStopCh chan struct{}
	stopOnce    sync.Once
	sweepWg     sync.WaitGroup
}

type SessionManagerConfig struct {
	IdleTimeout time.Duration
	// Catalog is optional; without it InvalidateCatalog is a no-op.
	Catalog domain.CatalogChangePublisher
	Metrics *metrics.OverlayMetrics
	Clock   clockwork.Clock
}

// NewSessionManager creates the registry and starts the idle sweep.
func NewSessionManager(engine *overlay.Engine, cfg SessionManagerConfig) *SessionManager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	m := &SessionManager{
		engine:      engine,
		catalog:     cfg.Catalog,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		idleTimeout: cfg.IdleTimeout,
		sessions:    make(map[uuid.UUID]*mountedSession),
		sweepStopCh: make(chan struct{}),
	}

	m.startSweep()
	return m
}

// Mount creates a session for a kiosk screen and starts loading its overlays.
func (m *SessionManager) Mount(ctx context.Context, screenID string) (uuid.UUID, error) {
	if screenID == "" {
		return uuid.Nil, &domain.ValidationError{Field: "screen_id", Reason: "is required"}
	}
	if len(screenID) > maxScreenIDLength {
		return uuid.Nil, &domain.ValidationError{Field: "screen_id", Reason: "is too long"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return uuid.Nil, domain.ErrSessionClosed
	}

	id := uuid.New()
	m.sessions[id] = &mountedSession{
		session:  m.engine.Mount(id, screenID),
		lastUsed: m.clock.Now(),
	}
	m.updateGauge()

	slog.InfoContext(ctx, "Overlay session mounted", "session_id", id, "screen_id", screenID)
	return id, nil
}

// Unmount tears a session down. Every pending timer and callback is cancelled.
func (m *SessionManager) Unmount(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.updateGauge()
	}
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	entry.session.Unmount()
	slog.InfoContext(ctx, "Overlay session unmounted", "session_id", id)
	return nil
}

func (m *SessionManager) Snapshot(ctx context.Context, id uuid.UUID) ([]domain.InstanceView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(ctx)
}

func (m *SessionManager) Dismiss(ctx context.Context, id, instanceID uuid.UUID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.Dismiss(ctx, instanceID)
}

func (m *SessionManager) Submit(ctx context.Context, id uuid.UUID, kind domain.OverlayKind, email string) (domain.CaptureOutcome, error) {
	s, err := m.lookup(id)
	if err != nil {
		return domain.CaptureOutcome{}, err
	}
	return s.Submit(ctx, kind, email)
}

func (m *SessionManager) RefreshSales(ctx context.Context, id uuid.UUID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	return s.RefreshSales(ctx)
}

// InvalidateCatalog drops cached overlay definitions here and on every other instance.
// Sessions already mounted keep the overlays they loaded.
func (m *SessionManager) InvalidateCatalog(ctx context.Context) error {
	if m.catalog == nil {
		return nil
	}
	return m.catalog.PublishCatalogChanged(ctx)
}

// SessionExists reports whether id is mounted. It does not count as activity.
func (m *SessionManager) SessionExists(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *SessionManager) lookup(id uuid.UUID) (*overlay.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	entry.lastUsed = m.clock.Now()
	return entry.session, nil
}

// ReclaimIdle unmounts sessions unused for longer than the idle timeout and
// returns how many were reclaimed.
func (m *SessionManager) ReclaimIdle(ctx context.Context) int {
	now := m.clock.Now()

	m.mu.Lock()
	var idle []*mountedSession
	for id, entry := range m.sessions {
		if now.Sub(entry.lastUsed) >= m.idleTimeout {
			idle = append(idle, entry)
			delete(m.sessions, id)
		}
	}
	m.updateGauge()
	m.mu.Unlock()

	for _, entry := range idle {
		entry.session.Unmount()
		slog.InfoContext(ctx, "Reclaimed idle overlay session", "session_id", entry.session.ID(), "screen_id", entry.session.ScreenID())
		if m.metrics != nil {
			m.metrics.SessionsReclaimed.Inc()
		}
	}
	return len(idle)
}

func (m *SessionManager) startSweep() {
	ticker := m.clock.NewTicker(sweepInterval)
	m.sweepWg.Go(func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				m.ReclaimIdle(context.Background())
			case <-m.sweepStopCh:
				return
			}
		}
	})
	slog.Info("Idle session sweep started", "interval", sweepInterval, "idle_timeout", m.idleTimeout)
}

// Stop ends the idle sweep and unmounts every session. Later mounts fail with domain.ErrSessionClosed.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.sweepStopCh)
		m.sweepWg.Wait()

		m.mu.Lock()
		m.stopped = true
		all := make([]*overlay.Session, 0, len(m.sessions))
		for id, entry := range m.sessions {
			all = append(all, entry.session)
			delete(m.sessions, id)
		}
		m.updateGauge()
		m.mu.Unlock()

		var wg sync.WaitGroup
		for _, s := range all {
			wg.Go(s.Unmount)
		}
		wg.Wait()
		slog.Info("Overlay sessions stopped", "count", len(all))
	})
}

// updateGauge must be called with mu held.
func (m *SessionManager) updateGauge() {
	if m.metrics != nil {
		m.metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
}
