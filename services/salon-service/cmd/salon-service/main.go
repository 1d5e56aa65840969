package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	libmetrics "github.com/md-rashed-zaman/salonbook/libs/metrics"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/checkout"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/config"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/migrations"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("salon-service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.Otel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		return err
	}
	defer pool.Close()
	bdb, err := db.OpenBun(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		return err
	}
	defer bdb.Close()

	if cfg.Migrate {
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			return err
		}
	}

	reg := libmetrics.NewRegistry()
	salonMetrics := metrics.New(reg)

	outboxRepo := outbox.NewRepository()
	reservations := storage.NewReservationRepository(pool, outboxRepo)
	orders := storage.NewOrderRepository(pool, outboxRepo)
	users := storage.NewUserRepository(pool)
	catalogRepo := catalog.NewRepository(bdb)

	if err := ensureAdmin(ctx, users, cfg, logger); err != nil {
		return err
	}

	calc, err := availability.NewCalculator(catalogRepo, reservations, cfg.Slots, nil)
	if err != nil {
		return err
	}
	bookings := booking.NewService(reservations, catalogRepo, calc, logger, salonMetrics, nil)

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe, nil)
	} else {
		logger.Warn("stripe is not configured; order payments are disabled")
	}
	shop := checkout.NewService(orders, catalogRepo, gateway, cfg.Pricing, logger, salonMetrics, nil)

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return err
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "bun", Check: db.BunReadyCheck(bdb)},
	}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
		if cfg.EnsureTopics {
			if err := kafkax.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.TopicPartitions, events.Topics()...); err != nil {
				logger.Warn("kafka topic setup failed", "err", err)
			}
		}
		go outbox.NewPublisher(pool, outboxRepo, logger, salonMetrics, cfg.Publisher).Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, "salon:ratelimit")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	go worker.New(bookings, shop, logger, salonMetrics, cfg.Worker).Run(ctx)

	if err := startHealthServer(ctx, logger, cfg.GRPCPort, cfg.ServiceName, checks...); err != nil {
		return err
	}

	mux := runtime.NewBaseMux(libmetrics.Handler(reg), checks...)
	handlers.New(handlers.Deps{
		Slots:    calc,
		Bookings: bookings,
		Orders:   shop,
		Catalog:  catalogRepo,
		Users:    users,
		Tokens:   signer,
		Webhook:  handlers.WebhookConfig{Secret: cfg.WebhookSecret, Tolerance: cfg.WebhookTolerance},
		Logger:   logger,
		Metrics:  salonMetrics,
		Limit:    httpx.RateLimit(limiter, logger, cfg.RateLimit.FailOpen),
	}).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		libmetrics.NewHTTP(reg, "salon").Middleware(),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "salon")
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		stop()
		return err
	}
	if err := runtime.Shutdown(10*time.Second, srv.Shutdown, otelShutdown); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func ensureAdmin(ctx context.Context, users *storage.UserRepository, cfg config.Config, logger *slog.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	u := model.User{ID: uuid.NewString(), Email: cfg.AdminEmail, Name: "Administrator", PasswordHash: hash, Role: auth.RoleAdmin}
	if err := users.EnsureAdmin(ctx, &u); err != nil {
		return err
	}
	logger.Info("admin account ensured", "user_id", u.ID)
	return nil
}
