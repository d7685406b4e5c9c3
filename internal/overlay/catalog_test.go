package overlay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticDefinitions(defs ...domain.OverlayDefinition) *mockDefinitions {
	return &mockDefinitions{listFn: func(context.Context) ([]domain.OverlayDefinition, error) {
		return defs, nil
	}}
}

func TestCatalogLoader_PicksHighestPriorityPerKind(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reader := staticDefinitions(
		domain.OverlayDefinition{ID: "popup-low", Kind: domain.KindPopup, IsActive: true, Priority: 1},
		domain.OverlayDefinition{ID: "banner", Kind: domain.KindBanner, IsActive: true},
		domain.OverlayDefinition{ID: "popup-high", Kind: domain.KindPopup, IsActive: true, Priority: 5},
		domain.OverlayDefinition{ID: "popup-tie", Kind: domain.KindPopup, IsActive: true, Priority: 5},
		domain.OverlayDefinition{ID: "toasts", Kind: domain.KindToastStream, IsActive: true},
	)

	entries, err := NewCatalogLoader(reader, clock).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "banner", entries[0].Definition.ID)
	assert.Equal(t, "popup-high", entries[1].Definition.ID, "first definition wins a priority tie")
	assert.Equal(t, "toasts", entries[2].Definition.ID)
}

func TestCatalogLoader_FiltersIneligibleAndUnknown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	past := clock.Now().Add(-time.Hour)
	future := clock.Now().Add(time.Hour)
	reader := staticDefinitions(
		domain.OverlayDefinition{ID: "inactive", Kind: domain.KindBanner, IsActive: false, Priority: 9},
		domain.OverlayDefinition{ID: "expired", Kind: domain.KindPopup, IsActive: true, EndAt: &past},
		domain.OverlayDefinition{ID: "pending", Kind: domain.KindToastStream, IsActive: true, StartAt: &future},
		domain.OverlayDefinition{ID: "weird", Kind: domain.OverlayKind("marquee"), IsActive: true},
		domain.OverlayDefinition{ID: "banner", Kind: domain.KindBanner, IsActive: true},
	)

	entries, err := NewCatalogLoader(reader, clock).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "banner", entries[0].Definition.ID)
}

func TestCatalogLoader_NormalizesSettings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reader := staticDefinitions(domain.OverlayDefinition{
		ID: "popup", Kind: domain.KindPopup, IsActive: true,
		Settings: map[string]any{"displayDelaySec": 2, "autoCloseSec": "bogus"},
	})

	entries, err := NewCatalogLoader(reader, clock).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2*time.Second, entries[0].Settings.DisplayDelay)
	assert.Equal(t, time.Duration(0), entries[0].Settings.AutoClose)
}

func TestCatalogLoader_ReaderErrorIsLoadError(t *testing.T) {
	boom := errors.New("connection refused")
	reader := &mockDefinitions{listFn: func(context.Context) ([]domain.OverlayDefinition, error) {
		return nil, boom
	}}

	entries, err := NewCatalogLoader(reader, clockwork.NewFakeClock()).Load(context.Background())

	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "definitions", loadErr.Source)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, entries)
}

func TestCatalogLoader_SuppressesConcurrentLoad(t *testing.T) {
	release := make(chan struct{})
	reader := &mockDefinitions{listFn: func(context.Context) ([]domain.OverlayDefinition, error) {
		<-release
		return []domain.OverlayDefinition{{ID: "banner", Kind: domain.KindBanner, IsActive: true}}, nil
	}}
	loader := NewCatalogLoader(reader, clockwork.NewFakeClock())

	firstDone := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background())
		firstDone <- err
	}()

	require.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err := loader.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrLoadInFlight)

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, int32(1), reader.calls.Load())

	// Flag resets after completion.
	_, err = loader.Load(context.Background())
	assert.NoError(t, err)
}

func TestNormalize_ParsesSettings(t *testing.T) {
	def := domain.OverlayDefinition{ID: "x", Kind: domain.KindPopup, Settings: map[string]any{"tags": []any{"ok"}}}
	entry, err := normalize(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, entry.Settings.Tags)
}
