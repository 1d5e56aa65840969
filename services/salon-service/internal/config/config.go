// Package config loads salon-service settings from SALON_* environment
// variables, with the usual unprefixed fallbacks for shared infrastructure.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/checkout"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/worker"
)

const Prefix = "SALON"

type RateLimit struct {
	Limit    int
	Window   time.Duration
	FailOpen bool
}

type Config struct {
	ServiceName string
	HTTPPort    string
	GRPCPort    string
	LogLevel    string

	DatabaseURL string
	Pool        db.PoolConfig
	Migrate     bool

	KafkaBrokers    string
	EnsureTopics    bool
	TopicPartitions int
	Publisher       outbox.PublisherConfig

	RedisAddr string
	RateLimit RateLimit

	CORSOrigins    []string
	RequestTimeout time.Duration
	BodyLimitBytes int64

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// AdminEmail and AdminPassword, when both set, are upserted as an admin
	// account at startup.
	AdminEmail    string
	AdminPassword string

	Slots   availability.SlotPolicy
	Pricing checkout.PricingConfig

	Stripe           payment.StripeConfig
	WebhookSecret    string
	WebhookTolerance time.Duration

	Worker worker.Config
	Otel   otelx.Config
}

// Load reads the environment. Every problem found is reported, not just the
// first.
func Load() (Config, error) {
	return load(config.NewLoader(Prefix))
}

func load(l *config.Loader) (Config, error) {
	l.Bind("database.url", "DATABASE_URL")
	l.Bind("http.port", "PORT")
	l.Bind("kafka.brokers", "KAFKA_BROKERS")
	l.Bind("log.level", "LOG_LEVEL")
	l.Bind("redis.addr", "REDIS_ADDR")
	l.Bind("stripe.secret_key", "STRIPE_SECRET_KEY")
	l.Bind("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")

	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(key string, fallback time.Duration) time.Duration {
		d, err := l.Duration(key, fallback)
		check(err)
		return d
	}
	num := func(key string, fallback int) int {
		n, err := l.Int(key, fallback)
		check(err)
		return n
	}

	cfg := Config{
		ServiceName:   l.String("service.name", "salon-service"),
		LogLevel:      l.String("log.level", "info"),
		Migrate:       l.Bool("db.migrate", false),
		KafkaBrokers:  l.String("kafka.brokers", ""),
		EnsureTopics:  l.Bool("kafka.ensure_topics", true),
		RedisAddr:     l.String("redis.addr", ""),
		CORSOrigins:   l.List("cors.origins", ""),
		JWTIssuer:     l.String("jwt.issuer", "salonbook"),
		AdminEmail:    l.String("admin.email", ""),
		AdminPassword: l.String("admin.password", ""),
		WebhookSecret: l.String("stripe.webhook_secret", ""),
	}

	var err error
	cfg.HTTPPort, err = l.Port("http.port", "8080")
	check(err)
	cfg.GRPCPort, err = l.Port("grpc.port", "9090")
	check(err)
	cfg.DatabaseURL, err = l.RequiredString("database.url")
	check(err)
	cfg.JWTSecret, err = l.RequiredString("jwt.secret")
	check(err)

	cfg.Pool = db.PoolConfig{
		MaxConns:        int32(num("db.max_conns", 10)),
		MaxConnLifetime: dur("db.max_conn_lifetime", 30*time.Minute),
	}
	cfg.TopicPartitions = num("kafka.topic_partitions", 3)
	cfg.Publisher = outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: dur("outbox.poll_every", 2*time.Second),
		BatchSize: num("outbox.batch_size", 50),
	}
	cfg.RateLimit = RateLimit{
		Limit:    num("ratelimit.limit", 60),
		Window:   dur("ratelimit.window", time.Minute),
		FailOpen: l.Bool("ratelimit.fail_open", true),
	}
	cfg.RequestTimeout = dur("http.request_timeout", 15*time.Second)
	cfg.BodyLimitBytes = int64(num("http.body_limit_bytes", 1<<20))
	cfg.JWTTTL = dur("jwt.ttl", 24*time.Hour)

	cfg.Slots, err = loadSlots(l, dur, num)
	check(err)

	cfg.Pricing = checkout.DefaultPricing()
	cfg.Pricing.Currency = l.String("pricing.currency", cfg.Pricing.Currency)
	cfg.Pricing.TaxRateBasisPoints = int64(num("pricing.tax_rate_bps", 0))
	cfg.Pricing.ShippingFlatCents = int64(num("pricing.shipping_flat_cents", 0))
	cfg.Pricing.FreeShippingThresholdCents = int64(num("pricing.free_shipping_threshold_cents", 0))
	if cfg.Pricing.TaxRateBasisPoints < 0 || cfg.Pricing.ShippingFlatCents < 0 || cfg.Pricing.FreeShippingThresholdCents < 0 {
		check(errors.New("pricing values must not be negative"))
	}

	cfg.Stripe = payment.StripeConfig{
		SecretKey:  l.String("stripe.secret_key", ""),
		SuccessURL: l.String("stripe.success_url", "http://localhost:3000/checkout/success?order={ORDER_ID}"),
		CancelURL:  l.String("stripe.cancel_url", "http://localhost:3000/checkout/cancel?order={ORDER_ID}"),
	}
	cfg.WebhookTolerance = dur("stripe.webhook_tolerance", 5*time.Minute)

	cfg.Worker = worker.Config{
		Interval:   dur("worker.interval", time.Minute),
		BatchSize:  num("worker.batch_size", 100),
		PaymentTTL: dur("orders.payment_ttl", time.Hour),
	}
	cfg.Otel = otelx.LoadConfig(l, cfg.ServiceName)

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		check(errors.New("SALON_ADMIN_EMAIL and SALON_ADMIN_PASSWORD must be set together"))
	}
	return cfg, errors.Join(errs...)
}

func loadSlots(l *config.Loader, dur func(string, time.Duration) time.Duration, num func(string, int) int) (availability.SlotPolicy, error) {
	p := availability.DefaultSlotPolicy()
	p.Step = dur("slots.step", p.Step)
	p.MinLeadTime = dur("slots.min_lead_time", p.MinLeadTime)
	p.MaxAdvanceDays = num("slots.max_advance_days", p.MaxAdvanceDays)

	tz := l.String("timezone", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return p, fmt.Errorf("SALON_TIMEZONE: unknown zone %q", tz)
	}
	p.Location = loc

	start, end := l.String("slots.break_start", ""), l.String("slots.break_end", "")
	if (start == "") != (end == "") {
		return p, errors.New("SALON_SLOTS_BREAK_START and SALON_SLOTS_BREAK_END must be set together")
	}
	if start != "" {
		bs, err := model.ParseTimeOfDay(start)
		if err != nil {
			return p, fmt.Errorf("SALON_SLOTS_BREAK_START: %w", err)
		}
		be, err := model.ParseWindowBound(end)
		if err != nil {
			return p, fmt.Errorf("SALON_SLOTS_BREAK_END: %w", err)
		}
		p.BreakStart, p.BreakEnd = &bs, &be
	}
	return p.Normalize()
}
