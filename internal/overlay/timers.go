package overlay

import (
	"log/slog"
	"time"

	"github.com/pscheid92/kioskads/internal/domain"
)

// arm replaces the instance's timer. The callback only posts into the loop.
func (s *Session) arm(inst *instance, d time.Duration) {
	s.disarm(inst)

	cmd := timerFiredCmd{instanceID: inst.id, kind: inst.kind(), gen: inst.gen}
	inst.timer = s.clock.AfterFunc(d, func() { s.post(cmd) })
}

func (s *Session) disarm(inst *instance) {
	if inst.timer != nil {
		inst.timer.Stop()
		inst.timer = nil
	}
	inst.gen++
}

// handleTimer advances the instance according to the state it was armed in.
// Callbacks for removed instances or replaced timers are dropped.
func (s *Session) handleTimer(cmd timerFiredCmd) {
	inst, ok := s.instances[cmd.instanceID]
	if !ok || inst.gen != cmd.gen || inst.timer == nil {
		s.observer.StaleTimer(cmd.kind)
		slog.DebugContext(s.ctx, "Ignoring stale overlay timer", "instance_id", cmd.instanceID, "kind", cmd.kind)
		return
	}
	inst.timer = nil

	switch inst.state {
	case domain.StateScheduled:
		s.show(inst)
	case domain.StateVisible, domain.StateSucceeded:
		s.beginClose(inst)
	case domain.StateClosing:
		s.remove(inst)
	default:
		s.observer.StaleTimer(cmd.kind)
	}
}
