package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS markers (
	handle        TEXT PRIMARY KEY,
	canonical_url TEXT NOT NULL,
	updated_at    TIMESTAMP NOT NULL
)`

// SQLStore keeps markers in a single "markers" table. The same queries
// serve SQLite and PostgreSQL; placeholders are rebound per driver.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db)
}

// OpenPostgres connects to PostgreSQL at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open postgres: %w", err)
	}
	return newSQLStore(ctx, db)
}

// NewSQLStore wraps an existing connection and ensures the schema exists.
func NewSQLStore(ctx context.Context, db *sqlx.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db)
}

func newSQLStore(ctx context.Context, db *sqlx.DB) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, handle string) (string, bool, error) {
	var marker string
	err := s.db.GetContext(ctx, &marker,
		s.db.Rebind(`SELECT canonical_url FROM markers WHERE handle = ?`),
		handle,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state: read marker: %w", err)
	}
	return marker, true, nil
}

func (s *SQLStore) Put(ctx context.Context, handle, marker string) error {
	query := s.db.Rebind(`
		INSERT INTO markers (handle, canonical_url, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET
			canonical_url = EXCLUDED.canonical_url,
			updated_at = EXCLUDED.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, handle, marker, time.Now().UTC()); err != nil {
		return fmt.Errorf("state: write marker: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, handle string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM markers WHERE handle = ?`), handle); err != nil {
		return fmt.Errorf("state: delete marker: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
