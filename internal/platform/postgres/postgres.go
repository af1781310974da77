// Package postgres opens the shared relational connection pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"twym/internal/platform/config"
)

// Open connects to PostgreSQL and verifies the connection. Returns nil if
// the URL is empty (stores fall back to in-memory implementations).
func Open(cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return db, nil
}

// Pinger adapts *sql.DB to the health endpoint's checker interface.
type Pinger struct {
	DB *sql.DB
}

func (p Pinger) Health(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
