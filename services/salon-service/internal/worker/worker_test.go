package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
)

type completer struct {
	calls atomic.Int32
	n     int
	err   error
}

func (c *completer) CompletePast(_ context.Context, limit int) (int, error) {
	c.calls.Add(1)
	return c.n, c.err
}

type expirer struct {
	calls atomic.Int32
	ttl   time.Duration
	n     int
}

func (e *expirer) ExpireUnpaid(_ context.Context, ttl time.Duration, _ int) (int, error) {
	e.calls.Add(1)
	e.ttl = ttl
	return e.n, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceRecordsBothJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := &completer{n: 3}
	e := &expirer{n: 2}
	w := New(c, e, discardLogger(), m, Config{PaymentTTL: 30 * time.Minute})

	w.RunOnce(context.Background())

	assert.EqualValues(t, 1, c.calls.Load())
	assert.EqualValues(t, 1, e.calls.Load())
	assert.Equal(t, 30*time.Minute, e.ttl)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Maintenance.WithLabelValues("complete_reservations")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Maintenance.WithLabelValues("expire_orders")))
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	c := &completer{err: errors.New("db down")}
	e := &expirer{}
	w := New(c, e, discardLogger(), metrics.Discard(), Config{})

	w.RunOnce(context.Background())

	assert.EqualValues(t, 1, e.calls.Load())
	assert.Equal(t, DefaultConfig().PaymentTTL, e.ttl)
}

func TestRunStopsWithContext(t *testing.T) {
	c := &completer{}
	w := New(c, nil, discardLogger(), nil, Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
