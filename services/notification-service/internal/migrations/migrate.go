// Package migrations holds the notification-service schema.
package migrations

import (
	"context"
	"embed"
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

//go:embed sql/*.sql
var files embed.FS

const lockKey int64 = 0x4e4f54494659

func Files() ([]string, error) {
	return db.MigrationFiles(files, "sql/*.sql")
}

func Apply(ctx context.Context, pool *db.Pool, logger *slog.Logger) error {
	return db.Migrate(ctx, pool, files, "sql/*.sql", lockKey, logger)
}
