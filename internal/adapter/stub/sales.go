// Package stub provides demo data sources for showrooms and local development.
package stub

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/kioskads/internal/domain"
)

var demoCustomers = []struct{ name, location string }{
	{"Anna K.", "Berlin"},
	{"Jonas M.", "Hamburg"},
	{"Sofia R.", "Munich"},
	{"Lukas B.", "Cologne"},
	{"Mia S.", "Leipzig"},
	{"Felix W.", "Dresden"},
	{"Emma H.", "Frankfurt"},
	{"Paul T.", "Stuttgart"},
}

const demoCampaign = "Demo Week"

// SalesReader serves a fixed rotation of fabricated sales. Each call returns
// records timestamped relative to the clock so the feed looks recent.
type SalesReader struct {
	clock clockwork.Clock
}

func NewSalesReader(clock clockwork.Clock) *SalesReader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SalesReader{clock: clock}
}

func (r *SalesReader) ListRecentSales(ctx context.Context, limit int) ([]domain.SaleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit = min(limit, len(demoCustomers))
	now := r.clock.Now()
	records := make([]domain.SaleRecord, 0, limit)
	for i := range limit {
		c := demoCustomers[i]
		records = append(records, domain.SaleRecord{
			ID:                  fmt.Sprintf("demo-%d", i+1),
			CustomerDisplayName: c.name,
			Location:            c.location,
			CampaignLabel:       demoCampaign,
			Timestamp:           now.Add(-time.Duration(i*7+3) * time.Minute),
		})
	}
	return records, nil
}

// Catalog combines a definition source with the demo sales feed.
type Catalog struct {
	domain.DefinitionReader
	*SalesReader
}

func NewCatalog(defs domain.DefinitionReader, clock clockwork.Clock) *Catalog {
	return &Catalog{DefinitionReader: defs, SalesReader: NewSalesReader(clock)}
}
