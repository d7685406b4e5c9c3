package overlay

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/platform/correlation"
)

const defaultPresenterBuffer = 64

// Deps are the collaborators shared by every mounted session.
// Sales, Events and Presenter may be nil.
type Deps struct {
	Definitions domain.DefinitionReader
	Sales       domain.SalesReader
	Subscriber  domain.Subscriber
	Issuer      domain.CouponIssuer
	Events      domain.EventRecorder
	Presenter   domain.Presenter
	Observer    Observer
	Clock       clockwork.Clock

	// PresenterBuffer bounds queued presenter updates per session. Overflow is dropped.
	PresenterBuffer int
}

// Engine mounts overlay sessions.
type Engine struct {
	deps     Deps
	workflow *CaptureWorkflow
}

func NewEngine(deps Deps) *Engine {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.PresenterBuffer <= 0 {
		deps.PresenterBuffer = defaultPresenterBuffer
	}
	return &Engine{
		deps:     deps,
		workflow: NewCaptureWorkflow(deps.Subscriber, deps.Issuer, deps.Events),
	}
}

// Mount starts a session and begins loading its catalog in the background.
func (e *Engine) Mount(id uuid.UUID, screenID string) *Session {
	ctx := correlation.Ensure(context.Background())
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:         id,
		screenID:   screenID,
		deps:       e.deps,
		clock:      e.deps.Clock,
		observer:   e.deps.Observer,
		loader:     NewCatalogLoader(e.deps.Definitions, e.deps.Clock),
		workflow:   e.workflow,
		ctx:        ctx,
		cancel:     cancel,
		cmdCh:      make(chan sessionCmd, 256),
		updates:    make(chan domain.InstanceView, e.deps.PresenterBuffer),
		done:       make(chan struct{}),
		instances:  make(map[uuid.UUID]*instance),
		active:     make(map[domain.OverlayKind]*instance),
		tombstones: make(map[uuid.UUID]struct{}),
	}

	if e.deps.Presenter != nil {
		go s.presentLoop()
	}
	go s.run()
	return s
}
