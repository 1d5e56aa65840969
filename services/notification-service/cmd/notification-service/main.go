package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	libmetrics "github.com/md-rashed-zaman/salonbook/libs/metrics"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/config"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/dispatch"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/migrations"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("notification-service stopped", "err", err)
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
	if cfg.Migrate {
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			return err
		}
	}

	reg := libmetrics.NewRegistry()
	m := metrics.New(reg)

	mailer := email.NewRetryingSender(email.NewSMTPSender(cfg.SMTP), cfg.Retry, logger,
		func(int, error, time.Duration) { m.Retry() })
	dispatcher := dispatch.New(mailer, storage.NewRepository(pool), logger, m, cfg.Salon, nil)
	inboxRepo := inbox.NewRepository(pool)

	topics := cfg.Topics
	if len(topics) == 0 {
		topics = events.Topics()
	}
	for _, topic := range topics {
		c := consumer.New(logger, inboxRepo, m, consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.GroupID,
			Topic:   topic,
		}, dispatcher.Handle)
		go c.Run(ctx)
	}
	logger.Info("consumers started", "topics", topics)

	mux := runtime.NewBaseMux(libmetrics.Handler(reg),
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		libmetrics.NewHTTP(reg, "notify").Middleware(),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
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
		return err
	}
	if err := runtime.Shutdown(10*time.Second, srv.Shutdown, otelShutdown); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
