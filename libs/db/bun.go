package db

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// OpenBun opens a bun handle over the pgx stdlib driver. It is used by the
// CRUD-heavy repositories; transactional paths stay on the pgx pool.
func OpenBun(ctx context.Context, databaseURL string, pc PoolConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	if pc.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(pc.MaxConns))
		sqlDB.SetMaxIdleConns(int(pc.MaxConns) / 2)
	}
	if pc.MaxConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pc.MaxConnLifetime)
	}
	if pc.MaxConnIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pc.MaxConnIdleTime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func BunReadyCheck(bdb *bun.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if bdb == nil {
			return errors.New("bun db not configured")
		}
		return bdb.PingContext(ctx)
	}
}
