package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
)

// Entry is an eligible definition paired with its normalized settings.
type Entry struct {
	Definition domain.OverlayDefinition
	Settings   Settings
}

var kindOrder = []domain.OverlayKind{domain.KindBanner, domain.KindPopup, domain.KindToastStream}

// CatalogLoader reads the configured definitions and keeps the eligible
// highest-priority one per kind.
type CatalogLoader struct {
	reader   domain.DefinitionReader
	clock    clockwork.Clock
	inFlight atomic.Bool
}

func NewCatalogLoader(reader domain.DefinitionReader, clock clockwork.Clock) *CatalogLoader {
	return &CatalogLoader{reader: reader, clock: clock}
}

// Load returns at most one entry per kind, ordered banner, popup, toast-stream.
// A concurrent call while a load is running returns domain.ErrLoadInFlight.
func (l *CatalogLoader) Load(ctx context.Context) ([]Entry, error) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return nil, domain.ErrLoadInFlight
	}
	defer l.inFlight.Store(false)

	defs, err := l.reader.ListOverlayDefinitions(ctx)
	if err != nil {
		return nil, &domain.LoadError{Source: "definitions", Err: err}
	}

	now := l.clock.Now()
	best := make(map[domain.OverlayKind]Entry, len(kindOrder))

	for _, def := range defs {
		if _, ok := domain.ParseOverlayKind(string(def.Kind)); !ok {
			slog.WarnContext(ctx, "Skipping overlay with unknown kind", "overlay_id", def.ID, "kind", def.Kind)
			continue
		}
		if !IsEligible(def, now) {
			continue
		}

		entry, err := normalize(def)
		if err != nil {
			slog.ErrorContext(ctx, "Dropping overlay definition", "overlay_id", def.ID, "kind", def.Kind, "error", err)
			continue
		}

		if current, ok := best[def.Kind]; ok && current.Definition.Priority >= def.Priority {
			continue
		}
		best[def.Kind] = entry
	}

	entries := make([]Entry, 0, len(best))
	for _, kind := range kindOrder {
		if entry, ok := best[kind]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// normalize isolates a panic while parsing one definition so it only drops that definition.
func normalize(def domain.OverlayDefinition) (entry Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalize settings: %v", r)
		}
	}()

	return Entry{Definition: def, Settings: ParseSettings(def.Kind, def.Settings)}, nil
}
