package overlay

import (
	"github.com/google/uuid"
	"github.com/pscheid92/kioskads/internal/domain"
)

// recoverCommand drops whatever cmd was acting on after a panic and answers
// any caller still waiting on a reply.
func (s *Session) recoverCommand(cmd sessionCmd) {
	switch c := cmd.(type) {
	case timerFiredCmd:
		s.dropInstance(c.instanceID)
	case captureDoneCmd:
		s.dropInstance(c.instanceID)
		trySend(c.reply, submitReply{outcome: c.outcome, err: c.err})
	case dismissCmd:
		s.dropInstance(c.instanceID)
		trySend(c.reply, domain.ErrInstanceNotFound)
	case submitCmd:
		if inst, ok := s.active[c.kind]; ok {
			s.drop(inst)
		}
		trySend(c.reply, submitReply{err: domain.ErrNoCaptureOverlay})
	case salesFetchedCmd, refreshTickCmd:
		s.dropToasts()
	case refreshSalesCmd:
		s.dropToasts()
		trySend(c.reply, domain.ErrOverlayNotActive)
	case snapshotCmd:
		trySend(c.reply, []domain.InstanceView{})
	}
}

// dropEntry removes what a catalog entry managed to start before panicking.
func (s *Session) dropEntry(entry Entry) {
	if entry.Definition.Kind == domain.KindToastStream {
		s.dropToasts()
		return
	}
	if inst, ok := s.active[entry.Definition.Kind]; ok && inst.entry.Definition.ID == entry.Definition.ID {
		s.drop(inst)
	}
}

func (s *Session) dropInstance(id uuid.UUID) {
	if inst, ok := s.instances[id]; ok {
		s.drop(inst)
	}
}

// drop removes inst immediately, skipping its exit animation.
func (s *Session) drop(inst *instance) {
	s.disarm(inst)
	inst.state = domain.StateRemoved
	delete(s.instances, inst.id)
	s.bury(inst.id)
	if s.active[inst.kind()] == inst {
		delete(s.active, inst.kind())
	}

	s.observer.Transition(inst.kind(), domain.StateRemoved)
	s.present(inst)

	if inst.kind() == domain.KindToastStream {
		s.releaseToast(inst)
	}
}

// dropToasts tears down the toast stream and every toast it put on screen.
func (s *Session) dropToasts() {
	t := s.toasts
	if t == nil {
		return
	}
	t.stopRefresh()
	t.waiting = nil
	s.toasts = nil

	for _, inst := range s.instances {
		if inst.kind() == domain.KindToastStream {
			s.drop(inst)
		}
	}
}

func trySend[T any](reply chan T, v T) {
	select {
	case reply <- v:
	default:
	}
}
