package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/kioskads/internal/adapter/eventpublisher"
	"github.com/pscheid92/kioskads/internal/adapter/httpserver"
	"github.com/pscheid92/kioskads/internal/adapter/mailing"
	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/adapter/postgres"
	"github.com/pscheid92/kioskads/internal/adapter/redis"
	"github.com/pscheid92/kioskads/internal/adapter/stub"
	"github.com/pscheid92/kioskads/internal/adapter/websocket"
	"github.com/pscheid92/kioskads/internal/app"
	"github.com/pscheid92/kioskads/internal/domain"
	"github.com/pscheid92/kioskads/internal/overlay"
	"github.com/pscheid92/kioskads/internal/platform/config"
	"github.com/pscheid92/kioskads/internal/platform/logging"
)

type appMetrics struct {
	registry  *prometheus.Registry
	overlay   *metrics.OverlayMetrics
	http      *metrics.HTTPMetrics
	cache     *metrics.CacheMetrics
	breaker   *metrics.BreakerMetrics
	db        *metrics.DBMetrics
	websocket *metrics.WebSocketMetrics
}

// sessionLookup defers to the session manager, which is built after the
// centrifuge node it serves.
type sessionLookup struct {
	manager *app.SessionManager
}

func (l *sessionLookup) SessionExists(id uuid.UUID) bool {
	return l.manager != nil && l.manager.SessionExists(id)
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupMetrics() appMetrics {
	reg := metrics.NewRegistry()
	return appMetrics{
		registry:  reg,
		overlay:   metrics.NewOverlayMetrics(reg),
		http:      metrics.NewHTTPMetrics(reg),
		cache:     metrics.NewCacheMetrics(reg),
		breaker:   metrics.NewBreakerMetrics(reg),
		db:        metrics.NewDBMetrics(reg),
		websocket: metrics.NewWebSocketMetrics(reg),
	}
}

func setupDB(cfg *config.Config, m appMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, m.db)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupRedis returns nil when REDIS_URL is unset; the service then runs as a
// single instance with an in-memory catalog cache.
func setupRedis(cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, running without shared cache and broker")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupSubscriber(cfg *config.Config, m appMetrics) domain.Subscriber {
	if !cfg.MailingEnabled() {
		slog.Warn("MAILING_API_URL not set, subscriptions are logged only")
		return mailing.LogSubscriber{}
	}
	return mailing.NewListClient(mailing.ListConfig{
		BaseURL: cfg.MailingAPIURL,
		APIKey:  cfg.MailingAPIKey,
		ListID:  cfg.MailingListID,
		Metrics: m.breaker,
	})
}

func setupIssuer(cfg *config.Config) domain.CouponIssuer {
	if !cfg.CouponEmailEnabled() {
		slog.Warn("BREVO_API_KEY not set, coupon emails are logged only")
		return mailing.LogIssuer{}
	}
	return mailing.NewBrevoIssuer(mailing.BrevoConfig{
		APIKey:   cfg.BrevoAPIKey,
		FromAddr: cfg.CouponSenderEmail,
		FromName: cfg.CouponSenderName,
	})
}

func setupNode(cfg *config.Config, lookup websocket.SessionLookup, redisClient *goredis.Client, m appMetrics) *centrifuge.Node {
	node, err := websocket.NewNode(lookup, m.websocket, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		if err := websocket.SetupRedis(node, redisClient.Options().Addr); err != nil {
			slog.Error("Failed to set up centrifuge Redis broker", "error", err)
			os.Exit(1)
		}
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}
	return node
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}
	if redisClient != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return checks
}

func runGracefulShutdown(srv *httpserver.Server, sessions *app.SessionManager, node *centrifuge.Node, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		sessions.Stop()
		stopBackground()

		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	m := setupMetrics()

	pool := setupDB(cfg, m)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	repo := postgres.NewCatalogRepo(pool, postgres.DefaultReadPolicy)
	var source domain.CatalogReader = repo
	if cfg.DemoSales {
		slog.Warn("DEMO_SALES enabled, toast streams show fabricated sales")
		source = stub.NewCatalog(repo, clock)
	}

	// A nil client keeps the cache in memory only.
	var cacheBackend goredis.Cmdable
	if redisClient != nil {
		cacheBackend = redisClient
	}
	catalog := redis.NewCatalogCache(source, cacheBackend, cfg.CatalogCacheTTL, clock, m.cache)
	if redisClient != nil {
		go redis.NewCatalogInvalidationSubscriber(redisClient, catalog).Start(bgCtx)
	}

	lookup := &sessionLookup{}
	node := setupNode(cfg, lookup, redisClient, m)

	engine := overlay.NewEngine(overlay.Deps{
		Definitions:     catalog,
		Sales:           catalog,
		Subscriber:      setupSubscriber(cfg, m),
		Issuer:          setupIssuer(cfg),
		Events:          postgres.NewEventRepo(pool),
		Presenter:       websocket.NewPresenter(node, m.websocket),
		Observer:        m.overlay,
		Clock:           clock,
		PresenterBuffer: cfg.PresenterBuffer,
	})

	sessions := app.NewSessionManager(engine, app.SessionManagerConfig{
		IdleTimeout: cfg.SessionIdleTimeout,
		Catalog:     eventpublisher.New(catalog, redisClient),
		Metrics:     m.overlay,
		Clock:       clock,
	})
	lookup.manager = sessions

	wsHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.KioskOrigins, cfg.AppEnv == "development"),
	})

	srv := httpserver.NewServer(cfg, sessions, httpserver.Handlers{
		WebSocket:   wsHandler,
		Metrics:     metrics.Handler(m.registry),
		HTTPMetrics: m.http,
	}, healthChecks(pool, redisClient))

	done := runGracefulShutdown(srv, sessions, node, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
