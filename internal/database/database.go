package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Connect opens the store named by databaseURL. sqlite:// URLs use the
// embedded modernc driver, postgres:// and postgresql:// URLs use lib/pq.
func Connect(databaseURL string, log *zap.SugaredLogger) (*bun.DB, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return connectPostgres(databaseURL, log)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return connectSQLite(strings.TrimPrefix(databaseURL, "sqlite://"), log)
	default:
		return nil, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

func connectSQLite(path string, log *zap.SugaredLogger) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite has a single writer. One connection keeps read-modify-write
	// transactions strictly serialized instead of failing with SQLITE_BUSY.
	sqldb.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infow("connected to sqlite", "path", path)
	return db, nil
}

func connectPostgres(dsn string, log *zap.SugaredLogger) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqldb.SetMaxIdleConns(10)
	sqldb.SetMaxOpenConns(50)

	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infow("connected to postgres")
	return db, nil
}
