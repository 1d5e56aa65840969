// Package worker runs the periodic maintenance jobs: completing finished
// reservations and expiring unpaid orders.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
)

type ReservationCompleter interface {
	CompletePast(ctx context.Context, limit int) (int, error)
}

type OrderExpirer interface {
	ExpireUnpaid(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

type Config struct {
	Interval   time.Duration `json:"interval"`
	BatchSize  int           `json:"batch_size"`
	PaymentTTL time.Duration `json:"payment_ttl"`
}

func DefaultConfig() Config {
	return Config{Interval: time.Minute, BatchSize: 100, PaymentTTL: time.Hour}
}

type Worker struct {
	reservations ReservationCompleter
	orders       OrderExpirer
	logger       *slog.Logger
	metrics      *metrics.Salon
	cfg          Config
}

func New(reservations ReservationCompleter, orders OrderExpirer, logger *slog.Logger, m *metrics.Salon, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PaymentTTL <= 0 {
		cfg.PaymentTTL = def.PaymentTTL
	}
	return &Worker{reservations: reservations, orders: orders, logger: logger, metrics: m, cfg: cfg}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	// Catch up right away after downtime.
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes every job a single time. A failing job does not stop the
// others.
func (w *Worker) RunOnce(ctx context.Context) {
	if w.reservations != nil {
		n, err := w.reservations.CompletePast(ctx, w.cfg.BatchSize)
		w.record(ctx, "complete_reservations", n, err)
	}
	if w.orders != nil {
		n, err := w.orders.ExpireUnpaid(ctx, w.cfg.PaymentTTL, w.cfg.BatchSize)
		w.record(ctx, "expire_orders", n, err)
	}
}

func (w *Worker) record(ctx context.Context, job string, n int, err error) {
	w.metrics.Maintained(job, n)
	if err != nil {
		w.logger.ErrorContext(ctx, "maintenance job failed", "job", job, "processed", n, "err", err)
		return
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "maintenance job done", "job", job, "processed", n)
	}
}
