package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB

	mu    sync.Mutex
	ready bool
}

// NewDB creates a Postgres connection with sane defaults and ensures the schema exists.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return &DB{Client: db}, err
	}
	if err := ensureSchema(db); err != nil {
		return &DB{Client: db}, fmt.Errorf("ensure schema: %w", err)
	}
	return &DB{Client: db, ready: true}, nil
}

// EnsureReady pings the database and, when the startup bootstrap never
// succeeded, creates the schema on the first reachable probe. Safe for
// concurrent use.
func (d *DB) EnsureReady(ctx context.Context) error {
	if err := d.Client.PingContext(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if err := ensureSchema(d.Client); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	d.ready = true
	return nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id     TEXT PRIMARY KEY,
		id_number   VARCHAR(20) UNIQUE NOT NULL,
		rfid_tag    VARCHAR(50) UNIQUE NOT NULL,
		first_name  VARCHAR(100) NOT NULL,
		last_name   VARCHAR(100) NOT NULL,
		email       VARCHAR(150),
		user_type   VARCHAR(10) NOT NULL CHECK (user_type IN ('student', 'faculty')),
		college     VARCHAR(100) NOT NULL,
		department  VARCHAR(100) NOT NULL,
		year_level  VARCHAR(20),
		status      VARCHAR(10) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS entry_logs (
		log_id          TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(user_id),
		entry_timestamp TIMESTAMPTZ NOT NULL,
		entry_method    VARCHAR(10) NOT NULL CHECK (entry_method IN ('rfid', 'manual')),
		status          VARCHAR(10) NOT NULL DEFAULT 'success' CHECK (status IN ('success', 'duplicate', 'error')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_entry_logs_user_status_time
		ON entry_logs (user_id, status, entry_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_entry_logs_time ON entry_logs (entry_timestamp DESC);

	CREATE TABLE IF NOT EXISTS admins (
		admin_id      TEXT PRIMARY KEY,
		username      VARCHAR(50) UNIQUE NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		full_name     VARCHAR(150) NOT NULL,
		email         VARCHAR(150) NOT NULL,
		role          VARCHAR(20) NOT NULL DEFAULT 'admin' CHECK (role IN ('admin', 'super_admin')),
		last_login    TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		audit_id     TEXT PRIMARY KEY,
		admin_id     TEXT NOT NULL,
		action_type  VARCHAR(10) NOT NULL CHECK (action_type IN ('view', 'edit', 'delete', 'export', 'login', 'logout')),
		target_table VARCHAR(50),
		target_id    TEXT,
		description  TEXT,
		ip_address   VARCHAR(45),
		timestamp    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_admin ON audit_logs (admin_id, timestamp DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
