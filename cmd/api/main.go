package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/handlers"
	"github.com/arkamarket/checkout/internal/platform/auth"
	"github.com/arkamarket/checkout/internal/platform/config"
	"github.com/arkamarket/checkout/internal/platform/idempotency"
	"github.com/arkamarket/checkout/internal/platform/observability"
	"github.com/arkamarket/checkout/internal/repositories"
	redisrepo "github.com/arkamarket/checkout/internal/repositories/redis"
	"github.com/arkamarket/checkout/internal/services"
	"github.com/arkamarket/checkout/internal/upstream"
)

const sessionPurgeInterval = 10 * time.Minute

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("checkout")

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}()

	snapshotStore := redisrepo.NewSnapshotStore(redisClient, cfg.Redis.SnapshotTTL)
	sessionStore := repositories.NewMemorySessionStore()

	upstreamClient, err := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	if err != nil {
		logger.Fatal("failed to initialise upstream client", zap.Error(err))
	}
	ordersClient := upstream.NewOrdersClient(upstreamClient)
	cartsClient := upstream.NewCartsClient(upstreamClient)
	usersClient := upstream.NewUsersClient(upstreamClient)

	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret)

	idempotencyStore := idempotency.NewMemoryStore()
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	// Background workers run outside the request middleware chain, so the
	// process logger is attached to their context directly.
	backgroundCtx, backgroundCancel := context.WithCancel(
		observability.WithLogger(context.Background(), logger.Named("background")),
	)
	var backgroundWG sync.WaitGroup

	if cfg.Idempotency.CleanupInterval > 0 {
		ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
		backgroundWG.Add(1)
		go func() {
			defer backgroundWG.Done()
			defer ticker.Stop()
			cleanupLogger := observability.FromContext(backgroundCtx).Named("idempotency")
			for {
				select {
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(backgroundCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-backgroundCtx.Done():
					return
				}
			}
		}()
	}

	backgroundWG.Add(1)
	go func() {
		defer backgroundWG.Done()
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		purgeLogger := observability.FromContext(backgroundCtx).Named("sessions")
		for {
			select {
			case <-ticker.C:
				removed, err := sessionStore.PurgeExpired(backgroundCtx, time.Now().UTC())
				if err != nil {
					purgeLogger.Error("session purge error", zap.Error(err))
					continue
				}
				if removed > 0 {
					purgeLogger.Info("purged expired sessions", zap.Int("count", removed))
				}
			case <-backgroundCtx.Done():
				return
			}
		}
	}()

	submitter, err := services.NewOrderSubmitter(services.OrderSubmitterDeps{
		Orders:      ordersClient,
		Carts:       cartsClient,
		IDGenerator: func() string { return ulid.Make().String() },
		Clock:       time.Now,
		Logger:      eventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order submitter", zap.Error(err))
	}

	wizard, err := services.NewCheckoutWizard(services.CheckoutWizardDeps{
		Sessions:  sessionStore,
		Snapshots: snapshotStore,
		Profiles:  usersClient,
		Validator: services.NewFormValidator(domain.DefaultShippingPolicy()),
		Pricing: services.NewPricingEngine(services.PricingEngineDeps{
			Logger: eventLogger(logger.Named("pricing")),
		}),
		Submitter:   submitter,
		Clock:       time.Now,
		IDGenerator: func() string { return ulid.Make().String() },
		Logger:      eventLogger(logger.Named("wizard")),
		SessionTTL:  cfg.Sessions.TTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout wizard", zap.Error(err))
	}

	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, wizard,
		handlers.WithSubmitMiddlewares(idempotencyMiddleware),
	)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("redis", snapshotStore.Ping),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware,
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("checkout api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	backgroundCancel()
	backgroundWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// eventLogger adapts a zap logger to the event-style logging hook the
// services expect.
func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info("checkout event", zFields...)
	}
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("CHECKOUT_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}
