package overlay

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/kioskads/internal/domain"
)

const (
	failureSubscribe = "We could not add you to the list. Please try again."
	failureIssue     = "You are subscribed, but we could not send your coupon. Please try again."
)

func (s *Session) newInstance(entry Entry) *instance {
	s.seq++
	inst := &instance{
		id:    uuid.New(),
		seq:   s.seq,
		entry: entry,
		state: domain.StateIdle,
	}
	s.instances[inst.id] = inst
	return inst
}

// schedule starts the single banner or popup instance for entry.
func (s *Session) schedule(entry Entry) {
	kind := entry.Definition.Kind
	if current, ok := s.active[kind]; ok {
		slog.WarnContext(s.ctx, "Overlay kind already live, ignoring definition",
			"session_id", s.id, "kind", kind, "overlay_id", entry.Definition.ID, "live_instance", current.id)
		return
	}

	inst := s.newInstance(entry)
	s.active[kind] = inst
	s.enterScheduled(inst, entry.Settings.DisplayDelay)
}

func (s *Session) enterScheduled(inst *instance, delay time.Duration) {
	s.setState(inst, domain.StateScheduled)
	if delay <= 0 {
		s.show(inst)
		return
	}
	s.arm(inst, delay)
}

func (s *Session) show(inst *instance) {
	if inst.kind() == domain.KindToastStream && !s.toasts.admit(inst) {
		s.toasts.enqueue(inst)
		return
	}

	inst.visibleSince = s.clock.Now()
	s.setState(inst, domain.StateVisible)
	s.armAutoClose(inst)
}

func (s *Session) armAutoClose(inst *instance) {
	if d := inst.settings().AutoClose; d > 0 {
		s.arm(inst, d)
	}
}

func (s *Session) beginClose(inst *instance) {
	s.disarm(inst)
	s.setState(inst, domain.StateClosing)
	if exit := inst.settings().Exit; exit > 0 {
		s.arm(inst, exit)
		return
	}
	s.remove(inst)
}

func (s *Session) remove(inst *instance) {
	s.disarm(inst)
	s.setState(inst, domain.StateRemoved)

	delete(s.instances, inst.id)
	s.bury(inst.id)
	if s.active[inst.kind()] == inst {
		delete(s.active, inst.kind())
	}
	if inst.kind() == domain.KindToastStream {
		s.releaseToast(inst)
	}
}

func (s *Session) handleSubmit(cmd submitCmd) {
	inst, ok := s.active[cmd.kind]
	if !cmd.kind.Captures() || !ok {
		cmd.reply <- submitReply{err: domain.ErrNoCaptureOverlay}
		return
	}

	switch inst.state {
	case domain.StateVisible:
	case domain.StateSubmitting:
		cmd.reply <- submitReply{err: domain.ErrSubmissionInFlight}
		return
	case domain.StateSucceeded:
		outcome := domain.CaptureOutcome{Result: inst.lastResult, CouponCode: inst.couponCode}
		cmd.reply <- submitReply{outcome: outcome, err: domain.ErrAlreadyCompleted}
		return
	default:
		cmd.reply <- submitReply{err: domain.ErrInstanceNotVisible}
		return
	}

	email, err := NormalizeEmail(cmd.email)
	if err != nil {
		inst.failure = err.Error()
		s.present(inst)
		cmd.reply <- submitReply{err: err}
		return
	}

	inst.email = email
	inst.failure = ""
	s.disarm(inst)
	s.setState(inst, domain.StateSubmitting)

	req := CaptureRequest{
		OverlayID: inst.entry.Definition.ID,
		Kind:      inst.kind(),
		Email:     email,
		Settings:  inst.settings(),
	}
	instanceID := inst.id
	go func() {
		outcome, err := s.workflow.Run(s.ctx, req)
		done := captureDoneCmd{instanceID: instanceID, outcome: outcome, err: err, reply: cmd.reply}
		if !s.post(done) {
			cmd.reply <- submitReply{outcome: outcome, err: domain.ErrSessionClosed}
		}
	}()
}

func (s *Session) handleCaptureDone(cmd captureDoneCmd) {
	inst, ok := s.instances[cmd.instanceID]
	if !ok || inst.state != domain.StateSubmitting {
		cmd.reply <- submitReply{outcome: cmd.outcome, err: cmd.err}
		return
	}

	if cmd.err != nil {
		inst.failure = cmd.err.Error()
		s.setState(inst, domain.StateVisible)
		s.armAutoClose(inst)
		cmd.reply <- submitReply{err: cmd.err}
		return
	}

	result := cmd.outcome.Result
	s.observer.Capture(inst.kind(), result)
	inst.lastResult = result

	if result.Succeeded() {
		inst.couponCode = cmd.outcome.CouponCode
		s.setState(inst, domain.StateSucceeded)
		if settle := inst.settings().Settle; settle > 0 {
			s.arm(inst, settle)
		} else {
			s.beginClose(inst)
		}
		cmd.reply <- submitReply{outcome: cmd.outcome}
		return
	}

	switch result {
	case domain.CaptureIssueFailed:
		inst.failure = failureIssue
	default:
		inst.failure = failureSubscribe
	}
	s.setState(inst, domain.StateVisible)
	s.armAutoClose(inst)
	cmd.reply <- submitReply{outcome: cmd.outcome}
}
