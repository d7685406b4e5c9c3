package eventpublisher

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/kioskads/internal/adapter/redis"
)

// catalogInvalidator drops a local catalog cache.
type catalogInvalidator interface {
	Invalidate(ctx context.Context, origin string) error
}

// EventPublisher implements domain.CatalogChangePublisher by dropping the local
// catalog cache and announcing the change to other instances over Redis.
type EventPublisher struct {
	catalog     catalogInvalidator
	redisClient *goredis.Client
}

// New creates a publisher. redisClient may be nil on single-instance deployments.
func New(catalog catalogInvalidator, redisClient *goredis.Client) *EventPublisher {
	return &EventPublisher{
		catalog:     catalog,
		redisClient: redisClient,
	}
}

func (ep *EventPublisher) PublishCatalogChanged(ctx context.Context) error {
	if err := ep.catalog.Invalidate(ctx, "local"); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	if ep.redisClient == nil {
		return nil
	}
	if err := redis.PublishCatalogInvalidation(ctx, ep.redisClient, "catalog changed"); err != nil {
		slog.WarnContext(ctx, "Failed to publish catalog invalidation", "error", err)
	}
	return nil
}
