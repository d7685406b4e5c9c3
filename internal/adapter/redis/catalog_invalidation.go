package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const catalogInvalidationChannel = "catalog:invalidate"

// CatalogInvalidationSubscriber drops the local catalog cache whenever any
// instance announces a definition change.
type CatalogInvalidationSubscriber struct {
	rdb   *goredis.Client
	cache *CatalogCache
}

func NewCatalogInvalidationSubscriber(rdb *goredis.Client, cache *CatalogCache) *CatalogInvalidationSubscriber {
	return &CatalogInvalidationSubscriber{rdb: rdb, cache: cache}
}

// Start blocks until ctx is cancelled.
func (s *CatalogInvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, catalogInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleInvalidation(ctx, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *CatalogInvalidationSubscriber) handleInvalidation(ctx context.Context, payload string) {
	if payload == "" {
		slog.Warn("Empty catalog invalidation message")
		return
	}

	if err := s.cache.Invalidate(ctx, "remote"); err != nil {
		slog.Warn("Failed to invalidate catalog cache via pub/sub", "reason", payload, "error", err)
		return
	}

	slog.Debug("Catalog cache invalidated via pub/sub", "reason", payload)
}

// PublishCatalogInvalidation tells every subscribed instance to drop its catalog cache.
func PublishCatalogInvalidation(ctx context.Context, rdb *goredis.Client, reason string) error {
	if err := rdb.Publish(ctx, catalogInvalidationChannel, reason).Err(); err != nil {
		return fmt.Errorf("failed to publish catalog invalidation: %w", err)
	}
	return nil
}
