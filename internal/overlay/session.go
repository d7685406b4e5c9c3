package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
)

const (
	stopTimeout    = 10 * time.Second
	presentTimeout = 2 * time.Second

	// maxTombstones bounds how many removed instance IDs still dismiss cleanly.
	maxTombstones = 256
)

// sessionCmd is the command interface for the Session actor.
type sessionCmd interface{ isSessionCmd() }

type baseSessionCmd struct{}

func (baseSessionCmd) isSessionCmd() {}

type catalogLoadedCmd struct {
	baseSessionCmd
	entries []Entry
	err     error
}

type timerFiredCmd struct {
	baseSessionCmd
	instanceID uuid.UUID
	kind       domain.OverlayKind
	gen        uint64
}

type salesFetchedCmd struct {
	baseSessionCmd
	records []domain.SaleRecord
	err     error
}

type refreshTickCmd struct {
	baseSessionCmd
	gen uint64
}

type captureDoneCmd struct {
	baseSessionCmd
	instanceID uuid.UUID
	outcome    domain.CaptureOutcome
	err        error
	reply      chan submitReply
}

type snapshotCmd struct {
	baseSessionCmd
	reply chan []domain.InstanceView
}

type dismissCmd struct {
	baseSessionCmd
	instanceID uuid.UUID
	reply      chan error
}

type submitCmd struct {
	baseSessionCmd
	kind  domain.OverlayKind
	email string
	reply chan submitReply
}

type refreshSalesCmd struct {
	baseSessionCmd
	reply chan error
}

type stopCmd struct {
	baseSessionCmd
}

type submitReply struct {
	outcome domain.CaptureOutcome
	err     error
}

// Session is one page mount. A single goroutine owns every instance, timer
// and fetch flag; timers and I/O goroutines only post commands to it.
type Session struct {
	id       uuid.UUID
	screenID string
	deps     Deps
	clock    clockwork.Clock
	observer Observer
	loader   *CatalogLoader
	workflow *CaptureWorkflow

	ctx      context.Context
	cancel   context.CancelFunc
	cmdCh    chan sessionCmd
	updates  chan domain.InstanceView
	done     chan struct{}
	stopOnce sync.Once

	// owned by the run goroutine
	instances  map[uuid.UUID]*instance
	active     map[domain.OverlayKind]*instance
	tombstones map[uuid.UUID]struct{}
	buried     []uuid.UUID
	toasts     *toastSequencer
	seq        int
	closed     bool
}

func (s *Session) ID() uuid.UUID    { return s.id }
func (s *Session) ScreenID() string { return s.screenID }

// Done is closed once the session has unmounted.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns every live instance in creation order.
func (s *Session) Snapshot(ctx context.Context) ([]domain.InstanceView, error) {
	reply := make(chan []domain.InstanceView, 1)
	return request(ctx, s, snapshotCmd{reply: reply}, reply)
}

// Dismiss closes a visible instance on user request.
func (s *Session) Dismiss(ctx context.Context, instanceID uuid.UUID) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, s, dismissCmd{instanceID: instanceID, reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// Submit runs the capture workflow on the live instance of kind and blocks until it settles.
func (s *Session) Submit(ctx context.Context, kind domain.OverlayKind, email string) (domain.CaptureOutcome, error) {
	reply := make(chan submitReply, 1)
	r, err := request(ctx, s, submitCmd{kind: kind, email: email, reply: reply}, reply)
	if err != nil {
		return domain.CaptureOutcome{}, err
	}
	return r.outcome, r.err
}

// RefreshSales re-reads recent sales for the toast stream. A read already in
// flight makes this return domain.ErrLoadInFlight.
func (s *Session) RefreshSales(ctx context.Context) error {
	reply := make(chan error, 1)
	err, reqErr := request(ctx, s, refreshSalesCmd{reply: reply}, reply)
	if reqErr != nil {
		return reqErr
	}
	return err
}

// Unmount cancels every timer and in-flight callback, then stops the loop.
// Blocks until the loop has exited or stopTimeout elapses.
func (s *Session) Unmount() {
	s.stopOnce.Do(func() {
		if !s.post(stopCmd{}) {
			return
		}

		timeout := s.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-s.done:
			slog.DebugContext(s.ctx, "Overlay session unmounted", "session_id", s.id)
		case <-timeout.Chan():
			slog.WarnContext(s.ctx, "Overlay session stop timeout exceeded", "session_id", s.id, "timeout", stopTimeout)
		}
	})
}

func request[T any](ctx context.Context, s *Session, cmd sessionCmd, reply <-chan T) (T, error) {
	var zero T
	if !s.post(cmd) {
		return zero, domain.ErrSessionClosed
	}

	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, domain.ErrSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// post enqueues cmd unless the session has stopped.
func (s *Session) post(cmd sessionCmd) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.cmdCh <- cmd:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.updates)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(s.ctx, "Overlay session panic recovered", "session_id", s.id, "panic", r)
			s.shutdown()
		}
	}()

	slog.InfoContext(s.ctx, "Overlay session mounted", "session_id", s.id, "screen_id", s.screenID)
	s.startLoad()

	for {
		cmd := <-s.cmdCh
		if _, ok := cmd.(stopCmd); ok {
			s.shutdown()
			return
		}
		s.handle(cmd)
	}
}

// handle runs one command. A panic drops the overlay the command acted on
// and leaves the rest of the session running.
func (s *Session) handle(cmd sessionCmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(s.ctx, "Overlay command panic recovered",
				"session_id", s.id, "command", fmt.Sprintf("%T", cmd), "panic", r)
			s.recoverCommand(cmd)
		}
	}()
	s.dispatch(cmd)
}

func (s *Session) dispatch(cmd sessionCmd) {
	switch c := cmd.(type) {
	case catalogLoadedCmd:
		s.handleCatalogLoaded(c)
	case timerFiredCmd:
		s.handleTimer(c)
	case salesFetchedCmd:
		s.handleSalesFetched(c)
	case refreshTickCmd:
		s.handleRefreshTick(c)
	case captureDoneCmd:
		s.handleCaptureDone(c)
	case snapshotCmd:
		c.reply <- s.snapshot()
	case dismissCmd:
		c.reply <- s.dismiss(c.instanceID)
	case submitCmd:
		s.handleSubmit(c)
	case refreshSalesCmd:
		c.reply <- s.fetchSales()
	default:
		slog.WarnContext(s.ctx, "Unknown session command", "session_id", s.id)
	}
}

func (s *Session) startLoad() {
	go func() {
		entries, err := s.loader.Load(s.ctx)
		s.post(catalogLoadedCmd{entries: entries, err: err})
	}()
}

func (s *Session) handleCatalogLoaded(cmd catalogLoadedCmd) {
	s.observer.Fetch("definitions", cmd.err)
	if cmd.err != nil {
		if errors.Is(cmd.err, context.Canceled) {
			return
		}
		slog.WarnContext(s.ctx, "Overlay catalog unavailable, showing no overlays", "session_id", s.id, "error", cmd.err)
		return
	}

	for _, entry := range cmd.entries {
		s.startEntry(entry)
	}
}

func (s *Session) startEntry(entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(s.ctx, "Overlay start panic recovered",
				"session_id", s.id, "overlay_id", entry.Definition.ID, "panic", r)
			s.dropEntry(entry)
		}
	}()

	switch entry.Definition.Kind {
	case domain.KindBanner, domain.KindPopup:
		s.schedule(entry)
	case domain.KindToastStream:
		s.activateToasts(entry)
	}
}

func (s *Session) snapshot() []domain.InstanceView {
	live := make([]*instance, 0, len(s.instances))
	for _, inst := range s.instances {
		live = append(live, inst)
	}
	slices.SortFunc(live, func(a, b *instance) int { return a.seq - b.seq })

	views := make([]domain.InstanceView, 0, len(live))
	for _, inst := range live {
		views = append(views, inst.view())
	}
	return views
}

func (s *Session) dismiss(instanceID uuid.UUID) error {
	inst, ok := s.instances[instanceID]
	if !ok {
		if _, removed := s.tombstones[instanceID]; removed {
			return nil
		}
		return domain.ErrInstanceNotFound
	}

	switch inst.state {
	case domain.StateVisible, domain.StateSucceeded:
		s.beginClose(inst)
		return nil
	case domain.StateSubmitting:
		return domain.ErrInstanceBusy
	case domain.StateClosing:
		return nil
	default:
		return domain.ErrInstanceNotVisible
	}
}

func (s *Session) setState(inst *instance, state domain.OverlayState) {
	inst.state = state
	s.observer.Transition(inst.kind(), state)
	slog.DebugContext(s.ctx, "Overlay transition",
		"session_id", s.id,
		"overlay_id", inst.entry.Definition.ID,
		"instance_id", inst.id,
		"kind", inst.kind(),
		"state", state.String(),
	)
	s.present(inst)
}

// present queues a view for the presenter without ever blocking the loop.
func (s *Session) present(inst *instance) {
	if s.deps.Presenter == nil || s.closed {
		return
	}
	select {
	case s.updates <- inst.view():
	default:
		s.observer.PresenterDropped()
		slog.WarnContext(s.ctx, "Presenter queue full, dropping update", "session_id", s.id, "instance_id", inst.id)
	}
}

func (s *Session) presentLoop() {
	for view := range s.updates {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), presentTimeout)
		if err := s.deps.Presenter.Present(ctx, s.id, view); err != nil {
			slog.WarnContext(ctx, "Failed to present overlay update", "session_id", s.id, "instance_id", view.ID, "error", err)
		}
		cancel()
	}
}

func (s *Session) shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()

	if s.toasts != nil {
		s.toasts.stopRefresh()
		s.toasts.waiting = nil
	}
	for id, inst := range s.instances {
		s.disarm(inst)
		inst.state = domain.StateRemoved
		s.observer.Transition(inst.kind(), domain.StateRemoved)
		s.bury(id)
	}
	clear(s.instances)
	clear(s.active)

	slog.InfoContext(s.ctx, "Overlay session stopped", "session_id", s.id)
}

// bury remembers a removed instance so a late dismiss is a no-op. Only the
// most recent maxTombstones IDs are kept.
func (s *Session) bury(id uuid.UUID) {
	s.tombstones[id] = struct{}{}
	s.buried = append(s.buried, id)
	if len(s.buried) > maxTombstones {
		delete(s.tombstones, s.buried[0])
		s.buried = s.buried[1:]
	}
}
