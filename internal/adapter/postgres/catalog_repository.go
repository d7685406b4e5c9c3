package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/platform/retry"
)

const (
	listDefinitionsSQL = `
SELECT id, kind, headline, body, call_to_action, image_url, settings, is_active, start_at, end_at, priority
FROM overlay_definitions
ORDER BY priority DESC, id`

	listRecentSalesSQL = `
SELECT id, customer_display_name, location, campaign_label, occurred_at
FROM sales
ORDER BY occurred_at DESC, id
LIMIT $1`

	upsertDefinitionSQL = `
INSERT INTO overlay_definitions (id, kind, headline, body, call_to_action, image_url, settings, is_active, start_at, end_at, priority)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
    kind = EXCLUDED.kind,
    headline = EXCLUDED.headline,
    body = EXCLUDED.body,
    call_to_action = EXCLUDED.call_to_action,
    image_url = EXCLUDED.image_url,
    settings = EXCLUDED.settings,
    is_active = EXCLUDED.is_active,
    start_at = EXCLUDED.start_at,
    end_at = EXCLUDED.end_at,
    priority = EXCLUDED.priority,
    updated_at = NOW()`

	insertSaleSQL = `
INSERT INTO sales (id, customer_display_name, location, campaign_label, occurred_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`
)

// DefaultReadPolicy retries transient read failures a few times with short backoff.
var DefaultReadPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   100 * time.Millisecond,
	RateLimitBackoff: time.Second,
}

// CatalogRepo serves overlay definitions and recent sales.
type CatalogRepo struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

func NewCatalogRepo(pool *pgxpool.Pool, policy retry.Policy) *CatalogRepo {
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Retrying catalog read", "attempt", attempt, "backoff", backoff, "error", err)
		}
	}
	return &CatalogRepo{pool: pool, policy: policy}
}

func (r *CatalogRepo) ListOverlayDefinitions(ctx context.Context) ([]domain.OverlayDefinition, error) {
	defs, err := retry.Do(ctx, r.policy, classify, func() ([]domain.OverlayDefinition, error) {
		return r.listDefinitions(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list overlay definitions: %w", err)
	}
	return defs, nil
}

func (r *CatalogRepo) listDefinitions(ctx context.Context) ([]domain.OverlayDefinition, error) {
	rows, err := r.pool.Query(ctx, listDefinitionsSQL)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OverlayDefinition, error) {
		var (
			def      domain.OverlayDefinition
			kind     string
			settings []byte
			priority int32
		)
		err := row.Scan(
			&def.ID, &kind,
			&def.Content.Headline, &def.Content.Body, &def.Content.CallToAction, &def.Content.ImageURL,
			&settings, &def.IsActive, &def.StartAt, &def.EndAt, &priority,
		)
		if err != nil {
			return def, err
		}
		def.Kind = domain.OverlayKind(kind)
		def.Priority = int(priority)
		def.Settings = decodeSettings(def.ID, settings)
		return def, nil
	})
}

// decodeSettings never fails the row: unreadable settings fall back to defaults downstream.
func decodeSettings(id string, raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var settings map[string]any
	if err := json.Unmarshal(raw, &settings); err != nil {
		slog.Warn("Ignoring unreadable overlay settings", "overlay_id", id, "error", err)
		return nil
	}
	return settings
}

func (r *CatalogRepo) ListRecentSales(ctx context.Context, limit int) ([]domain.SaleRecord, error) {
	sales, err := retry.Do(ctx, r.policy, classify, func() ([]domain.SaleRecord, error) {
		rows, err := r.pool.Query(ctx, listRecentSalesSQL, limit)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SaleRecord, error) {
			var sale domain.SaleRecord
			err := row.Scan(&sale.ID, &sale.CustomerDisplayName, &sale.Location, &sale.CampaignLabel, &sale.Timestamp)
			return sale, err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sales: %w", err)
	}
	return sales, nil
}

// UpsertDefinition creates or replaces an overlay definition.
func (r *CatalogRepo) UpsertDefinition(ctx context.Context, def domain.OverlayDefinition) error {
	settings := def.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode overlay settings: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertDefinitionSQL,
		def.ID, string(def.Kind),
		def.Content.Headline, def.Content.Body, def.Content.CallToAction, def.Content.ImageURL,
		raw, def.IsActive, def.StartAt, def.EndAt, int32(def.Priority),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert overlay definition: %w", err)
	}
	return nil
}

// InsertSale stores a sale. Duplicate IDs are ignored.
func (r *CatalogRepo) InsertSale(ctx context.Context, sale domain.SaleRecord) error {
	if _, err := r.pool.Exec(ctx, insertSaleSQL, sale.ID, sale.CustomerDisplayName, sale.Location, sale.CampaignLabel, sale.Timestamp); err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return nil
}

// classify retries connection-level and serialization failures; anything the
// server rejected on its merits is permanent.
func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return retry.Retry
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return retry.Retry
		case pgErr.Code == "53300":
			return retry.After
		default:
			return retry.Stop
		}
	}

	// Dial failures, resets and timeouts never reached the server.
	return retry.Retry
}
