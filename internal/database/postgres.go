package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// handlerConns is pool headroom on top of the worker pool for HTTP handlers
// and the status aggregation queries.
const handlerConns = 10

// ConnectPostgres opens the database the submission pipeline writes to. The
// connection pool is sized for the extraction workers, which each hold a
// connection across state-machine writes, plus handler headroom.
func ConnectPostgres(dsn string, workers int) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}
	if workers < 1 {
		workers = 1
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(workers + handlerConns)
	sqlDB.SetMaxIdleConns(workers)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
