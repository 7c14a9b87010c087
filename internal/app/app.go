// Package app wires the application together: configuration, storage, domain
// services, the event bus, and the HTTP server with graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/order"
	"github.com/vendhub/marketplace/internal/event"
	"github.com/vendhub/marketplace/internal/handler"
	"github.com/vendhub/marketplace/internal/notify"
	"github.com/vendhub/marketplace/internal/storage/postgres"
	"github.com/vendhub/marketplace/pkg/health"
	"github.com/vendhub/marketplace/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the event
// dispatcher, and handles graceful shutdown. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricingRules, err := cfg.PricingRules()
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	usageRepo := postgres.NewCouponUsageRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	cartStore := postgres.NewCartStore(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool)

	// In-process event bus: order events fan out to the notification
	// dispatcher; delivery is best-effort by design.
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		event.NewZapLoggerAdapter(lg.Named("events")),
	)
	bus := event.NewBus(pubsub, lg.Named("events"))
	dispatcher := event.NewDispatcher(pubsub, notify.NewLogSender(lg.Named("notify")), lg.Named("events"))

	// Domain services.
	couponValidator := coupon.NewValidator(couponRepo, usageRepo)
	cartService := cart.NewService(cartStore, productRepo, couponValidator, pricingRules)
	orderService := order.NewService(orderRepo, cartStore, productRepo, userRepo, couponValidator, pricingRules, bus)

	// HTTP surface.
	h := handler.New(productRepo, cartService, orderService, couponRepo, inventoryRepo)
	security := handler.NewSecurity(apikeyRepo, []byte(cfg.APIKeyPepper))
	webhooks := handler.NewWebhookHandler(orderService, []byte(cfg.WebhookSecret))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux, security, webhooks)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					AllowOrigins:     cfg.CORS.Origins,
					AllowHeaders:     []string{"Content-Type", "X-API-Key", "X-Request-ID"},
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           86400,
				}),
				httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
					Max:    cfg.RateLimit.Max,
					Window: cfg.RateLimit.Window,
				}),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.LogRequests(),
			),
			"marketplace-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
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
		if err := pubsub.Close(); err != nil {
			lg.Error("Event bus close error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
