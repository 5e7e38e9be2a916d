package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"cas/internal/platform/config"
)

// Open connects to PostgreSQL through lib/pq. Returns nil if the URL is empty.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// Schema creates the tables read by the identity and service stores.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	otp_secret    TEXT NOT NULL DEFAULT '',
	admin         BOOLEAN NOT NULL DEFAULT FALSE,
	locked        BOOLEAN NOT NULL DEFAULT FALSE,
	roles         TEXT[] NOT NULL DEFAULT '{}',
	api_token     TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS services (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	enabled        BOOLEAN NOT NULL DEFAULT TRUE,
	allowed_urls   TEXT NOT NULL DEFAULT '',
	required_roles TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL
);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
