// Package config loads notification-service settings from NOTIFY_*
// environment variables.
package config

import (
	"errors"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/dispatch"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/email"
)

const Prefix = "NOTIFY"

type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    string

	DatabaseURL string
	Pool        db.PoolConfig
	Migrate     bool

	KafkaBrokers string
	GroupID      string
	Topics       []string

	SMTP  email.SMTPConfig
	Retry email.RetryConfig
	Salon dispatch.Config

	Otel otelx.Config
}

func Load() (Config, error) {
	return load(config.NewLoader(Prefix))
}

func load(l *config.Loader) (Config, error) {
	l.Bind("database.url", "DATABASE_URL")
	l.Bind("http.port", "PORT")
	l.Bind("kafka.brokers", "KAFKA_BROKERS")
	l.Bind("log.level", "LOG_LEVEL")

	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		ServiceName:  l.String("service.name", "notification-service"),
		LogLevel:     l.String("log.level", "info"),
		Migrate:      l.Bool("db.migrate", false),
		KafkaBrokers: l.String("kafka.brokers", ""),
		GroupID:      l.String("kafka.group_id", "notification-service"),
		Topics:       l.List("kafka.topics", ""),
		SMTP: email.SMTPConfig{
			Host:     l.String("smtp.host", "mailpit"),
			Port:     l.String("smtp.port", "1025"),
			From:     l.String("smtp.from", "no-reply@salonbook.local"),
			Username: l.String("smtp.username", ""),
			Password: l.String("smtp.password", ""),
		},
		Salon: dispatch.Config{
			SalonName:  l.String("salon.name", "SalonBook"),
			SalonInbox: l.String("salon.inbox", ""),
		},
	}

	var err error
	cfg.HTTPPort, err = l.Port("http.port", "8085")
	check(err)
	cfg.DatabaseURL, err = l.RequiredString("database.url")
	check(err)
	_, err = l.Port("smtp.port", "1025")
	check(err)
	if cfg.KafkaBrokers == "" {
		check(errors.New("KAFKA_BROKERS is required"))
	}

	def := email.DefaultRetry()
	cfg.Retry.MaxAttempts, err = l.Int("email.max_attempts", def.MaxAttempts)
	check(err)
	cfg.Retry.InitialDelay, err = l.Duration("email.initial_delay", def.InitialDelay)
	check(err)
	cfg.Retry.MaxDelay, err = l.Duration("email.max_delay", def.MaxDelay)
	check(err)
	if cfg.Retry.MaxAttempts < 1 {
		check(errors.New("NOTIFY_EMAIL_MAX_ATTEMPTS must be at least 1"))
	}

	maxConns, err := l.Int("db.max_conns", 5)
	check(err)
	cfg.Pool = db.PoolConfig{MaxConns: int32(maxConns)}

	cfg.Otel = otelx.LoadConfig(l, cfg.ServiceName)
	return cfg, errors.Join(errs...)
}
