package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// New opens the Postgres pool used by every store. maxConns caps open
// connections; idle connections are kept at a fifth of that.
func New(ctx context.Context, connStr string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(1, maxConns/5))
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
