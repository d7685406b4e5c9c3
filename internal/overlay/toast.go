package overlay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
)

// toastSequencer holds the recent-sale stream state. Only the session loop touches it.
type toastSequencer struct {
	entry   Entry
	loading bool
	seen    map[string]struct{}
	waiting []*instance
	visible int

	refresh    clockwork.Timer
	refreshGen uint64
}

func (t *toastSequencer) admit(inst *instance) bool {
	if t.visible >= t.entry.Settings.MaxVisible {
		return false
	}
	t.visible++
	inst.admitted = true
	return true
}

// enqueue parks a toast whose entrance arrived while every slot was taken.
func (t *toastSequencer) enqueue(inst *instance) {
	t.waiting = append(t.waiting, inst)
}

func (t *toastSequencer) stopRefresh() {
	if t.refresh != nil {
		t.refresh.Stop()
		t.refresh = nil
	}
	t.refreshGen++
}

func (s *Session) activateToasts(entry Entry) {
	if s.deps.Sales == nil {
		slog.WarnContext(s.ctx, "Toast stream configured without a sales source", "session_id", s.id, "overlay_id", entry.Definition.ID)
		return
	}
	if s.toasts != nil {
		return
	}

	s.toasts = &toastSequencer{entry: entry, seen: make(map[string]struct{})}
	if err := s.fetchSales(); err != nil {
		slog.WarnContext(s.ctx, "Initial sales fetch not started", "session_id", s.id, "error", err)
	}
}

// fetchSales checks and sets the loading flag in one loop step before the read starts.
func (s *Session) fetchSales() error {
	t := s.toasts
	if t == nil {
		return domain.ErrOverlayNotActive
	}
	if t.loading {
		return domain.ErrLoadInFlight
	}
	t.loading = true
	t.stopRefresh()

	limit := t.entry.Settings.FetchLimit
	go func() {
		records, err := s.deps.Sales.ListRecentSales(s.ctx, limit)
		if err != nil {
			err = &domain.LoadError{Source: "sales", Err: err}
		}
		s.post(salesFetchedCmd{records: records, err: err})
	}()
	return nil
}

func (s *Session) handleSalesFetched(cmd salesFetchedCmd) {
	t := s.toasts
	if t == nil {
		return
	}
	t.loading = false
	s.armRefresh()

	s.observer.Fetch("sales", cmd.err)
	if cmd.err != nil {
		if !errors.Is(cmd.err, context.Canceled) {
			slog.WarnContext(s.ctx, "Recent sales unavailable", "session_id", s.id, "error", cmd.err)
		}
		return
	}

	records := cmd.records
	if limit := t.entry.Settings.FetchLimit; len(records) > limit {
		records = records[:limit]
	}

	settings := t.entry.Settings
	scheduled := 0
	for _, rec := range records {
		if _, dup := t.seen[rec.ID]; dup {
			continue
		}
		t.seen[rec.ID] = struct{}{}

		inst := s.newInstance(t.entry)
		sale := rec
		inst.sale = &sale
		s.enterScheduled(inst, settings.DisplayDelay+time.Duration(scheduled)*settings.Stagger)
		scheduled++
	}

	slog.DebugContext(s.ctx, "Sales fetched", "session_id", s.id, "records", len(records), "scheduled", scheduled)
}

func (s *Session) armRefresh() {
	t := s.toasts
	d := t.entry.Settings.Refresh
	if d <= 0 {
		return
	}

	t.stopRefresh()
	cmd := refreshTickCmd{gen: t.refreshGen}
	t.refresh = s.clock.AfterFunc(d, func() { s.post(cmd) })
}

func (s *Session) handleRefreshTick(cmd refreshTickCmd) {
	t := s.toasts
	if t == nil || t.refreshGen != cmd.gen {
		return
	}
	t.refresh = nil

	if err := s.fetchSales(); err != nil {
		slog.DebugContext(s.ctx, "Skipping sales refresh", "session_id", s.id, "error", err)
	}
}

// releaseToast frees the slot of a removed toast and shows the next waiting one.
func (s *Session) releaseToast(inst *instance) {
	t := s.toasts
	if t == nil {
		return
	}

	if inst.admitted {
		inst.admitted = false
		t.visible--
	}

	for len(t.waiting) > 0 && t.visible < t.entry.Settings.MaxVisible {
		next := t.waiting[0]
		t.waiting = t.waiting[1:]
		if _, live := s.instances[next.id]; !live {
			continue
		}
		s.show(next)
	}
}
