// Package consumer reads one Kafka topic and hands each new event to a
// handler, skipping event ids the inbox has already seen.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/metrics"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer uses. Offsets are
// committed explicitly, only after an event is handled or found duplicate.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

type Consumer struct {
	reader   Reader
	logger   *slog.Logger
	inbox    Inbox
	metrics  *metrics.Notify
	topic    string
	handler  Handler
	errPause time.Duration
}

func New(logger *slog.Logger, inbox Inbox, m *metrics.Notify, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newWithReader(reader, logger, inbox, m, cfg.Topic, handler)
}

func newWithReader(r Reader, logger *slog.Logger, inbox Inbox, m *metrics.Notify, topic string, handler Handler) *Consumer {
	return &Consumer{
		reader:   r,
		logger:   logger.With("topic", topic),
		inbox:    inbox,
		metrics:  m,
		topic:    topic,
		handler:  handler,
		errPause: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !c.pause(ctx) {
				return
			}
			continue
		}
		// Committing a later offset would skip this one, so a failed event
		// is retried in place until it succeeds or the consumer stops.
		for !c.handle(ctx, msg) {
			if !c.pause(ctx) {
				return
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.errPause):
		return true
	}
}

// handle reports whether msg is done with, either handled or a duplicate.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	fresh, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		c.metrics.Event(c.topic, "error")
		return false
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		c.metrics.Event(c.topic, "duplicate")
		return true
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		c.metrics.Event(c.topic, "error")
		if err := c.inbox.Release(ctxSpan, meta.EventID); err != nil {
			c.logger.Error("inbox release failed", "err", err, "event_id", meta.EventID)
		}
		return false
	}
	c.metrics.Event(c.topic, "handled")
	return true
}
