// Package migrations holds the salon-service schema.
package migrations

import (
	"context"
	"embed"
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

//go:embed sql/*.sql
var files embed.FS

const lockKey int64 = 0x53414c4f4e

// Files returns the embedded migration names, sorted.
func Files() ([]string, error) {
	return db.MigrationFiles(files, "sql/*.sql")
}

func Apply(ctx context.Context, pool *db.Pool, logger *slog.Logger) error {
	return db.Migrate(ctx, pool, files, "sql/*.sql", lockKey, logger)
}
