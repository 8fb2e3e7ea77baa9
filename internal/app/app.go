// Package app wires configuration, storage, clients, and HTTP surface into
// the running connector.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/loyalty-bridge/internal/commerce"
	"github.com/xenking/loyalty-bridge/internal/handler"
	"github.com/xenking/loyalty-bridge/internal/loyalty"
	"github.com/xenking/loyalty-bridge/internal/mapper"
	"github.com/xenking/loyalty-bridge/internal/processor"
	"github.com/xenking/loyalty-bridge/internal/settle"
	"github.com/xenking/loyalty-bridge/internal/statestore"
	"github.com/xenking/loyalty-bridge/pkg/breaker"
	"github.com/xenking/loyalty-bridge/pkg/health"
	"github.com/xenking/loyalty-bridge/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store.Driver))

	store, healthSvc, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(500*time.Millisecond))
	healthSvc.Start(ctx, 10*time.Second)

	// Loyalty engine client behind the circuit breaker.
	wallet := loyalty.NewWalletClient(loyalty.Config{
		BaseURL:      cfg.Loyalty.BaseURL,
		ClientID:     cfg.Loyalty.ClientID,
		ClientSecret: cfg.Loyalty.ClientSecret,
	})
	br := breaker.New(breaker.Options{
		Timeout:                  cfg.CircuitBreaker.Timeout,
		ResetTimeout:             cfg.CircuitBreaker.ResetTimeout,
		ErrorThresholdPercentage: cfg.CircuitBreaker.ErrorThresholdPercentage,
		VolumeThreshold:          cfg.CircuitBreaker.VolumeThreshold,
	})
	resilient := loyalty.NewResilientClient(wallet, br, store, cfg.CircuitBreaker.Enabled, cfg.CircuitBreaker.Timeout, lg.Named("loyalty"))
	if err := resilient.Start(ctx); err != nil {
		return errors.Wrap(err, "start resilient client")
	}
	defer resilient.Stop()

	// Commerce platform client and the custom type the connector relies on.
	commerceClient := commerce.New(commerce.Config{
		BaseURL:    cfg.Commerce.BaseURL,
		ProjectKey: cfg.Commerce.ProjectKey,
		AuthToken:  cfg.Commerce.AuthToken,
	})
	if err := commerce.EnsureType(ctx, commerceClient, commerce.CartTypeDraft(), lg.Named("commerce")); err != nil {
		return errors.Wrap(err, "ensure custom type")
	}

	// Mapping and settlement services.
	baskets := statestore.NewBasketStore(store)
	basketMapper := mapper.New(mapper.Config{
		UseItemSKU:                   cfg.Loyalty.UseItemSKU,
		IncomingIdentifier:           cfg.Loyalty.IncomingIdentifier,
		ParentIncomingIdentifier:     cfg.Loyalty.ParentIncomingIdentifier,
		ExcludeUnidentifiedCustomers: cfg.Loyalty.ExcludeUnidentifiedCustomers,
		ShippingMethodMap:            cfg.Loyalty.ShippingMethodMap,
	}, commerceClient, baskets)
	settleSvc := settle.New(basketMapper, resilient, lg.Named("settle"))

	registry := processor.NewRegistry(
		processor.NewOrderCreatedProcessor(commerceClient, settleSvc, cfg.Events.DisableOrderCreated, lg.Named("processor")),
	)
	seen := processor.NewSeenFilter(cfg.Events.DedupeCapacity, cfg.Events.DedupeFPRate)

	h := handler.New(registry, seen, basketMapper, resilient, baskets, commerce.CartTypeKey)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("loyalty-bridge", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// buildStore constructs the configured state store plus the matching
// readiness check. The returned cleanup closes any underlying pool.
func buildStore(ctx context.Context, cfg *Config) (statestore.Store, *health.Health, func(), error) {
	healthSvc := health.New()

	switch cfg.Store.Driver {
	case "postgres":
		pool, err := statestore.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := statestore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		return statestore.NewPostgres(pool), healthSvc, pool.Close, nil

	case "redis":
		store, err := statestore.NewRedis(ctx, cfg.Store.RedisAddr)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "connect redis")
		}
		healthSvc.AddReadinessCheck("redis", 5*time.Second, store.Ping)
		return store, healthSvc, func() {}, nil

	case "memory":
		return statestore.NewMemory(), healthSvc, func() {}, nil

	default:
		return nil, nil, nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
