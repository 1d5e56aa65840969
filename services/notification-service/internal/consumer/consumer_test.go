package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/metrics"
)

type sliceReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	commits []string
	closed  bool
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) == 0 {
		r.mu.Unlock()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	r.mu.Unlock()
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, kafkax.ExtractEventMeta(m).EventID)
	}
	return nil
}

func (r *sliceReader) committed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func (r *sliceReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type memInbox struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memInbox) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	m.released = append(m.released, id)
	return nil
}

func msg(id string) kafka.Message {
	return kafka.Message{
		Topic:   "salon.order.paid.v1",
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: id, EventType: "salon.order.paid.v1"}),
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsumerDeduplicatesAndRetriesFailures(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{msg("a"), msg("a"), msg("b")}}
	inbox := &memInbox{seen: map[string]bool{}}
	m := metrics.New(prometheus.NewRegistry())

	var handled []string
	var mu sync.Mutex
	failB := true
	handler := func(_ context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		id := kafkax.ExtractEventMeta(msg).EventID
		handled = append(handled, id)
		if id == "b" && failB {
			failB = false
			return errors.New("boom")
		}
		return nil
	}
	c := newWithReader(reader, discard(), inbox, m, "salon.order.paid.v1", handler)
	c.errPause = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(reader.committed()) == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"a", "b", "b"}, handled)
	assert.Equal(t, []string{"a", "a", "b"}, reader.committed())
	assert.Equal(t, []string{"b"}, inbox.released)
	assert.True(t, reader.closed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("salon.order.paid.v1", "duplicate")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("salon.order.paid.v1", "handled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("salon.order.paid.v1", "error")))
}

func TestConsumerNeverCommitsPastFailingEvent(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{msg("a"), msg("b"), msg("c")}}
	inbox := &memInbox{seen: map[string]bool{}}
	m := metrics.New(prometheus.NewRegistry())

	handler := func(_ context.Context, msg kafka.Message) error {
		if kafkax.ExtractEventMeta(msg).EventID == "b" {
			return errors.New("database down")
		}
		return nil
	}
	c := newWithReader(reader, discard(), inbox, m, "salon.order.paid.v1", handler)
	c.errPause = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Events.WithLabelValues("salon.order.paid.v1", "error")) >= 3
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"a"}, reader.committed())
	assert.False(t, inbox.seen["b"])
	assert.False(t, inbox.seen["c"])
}
