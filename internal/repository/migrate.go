package repository

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"
)

// Migrate applies pending SQL migrations from dir over a database/sql view
// of the pool.
func Migrate(pool *pgxpool.Pool, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing migration db handle", "error", err)
		}
	}()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	logger.Info("applying migrations", "dir", dir)
	if err := goose.Up(db, dir); err != nil {
		return err
	}
	logger.Info("migrations up to date")
	return nil
}
