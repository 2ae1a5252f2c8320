// Package storage persists LINE account bindings in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite database.
// Writes go through a single connection; reads use a small pool.
type DB struct {
	reader *sql.DB
	writer *sql.DB
	path   string
}

// New opens (creating if needed) the database at dbPath and initializes the schema.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := open(ctx, dbPath, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open writer: %w", err)
	}

	if err := InitSchema(ctx, writer); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// In-memory databases are private per connection, so share the writer.
	reader := writer
	if dbPath != ":memory:" {
		reader, err = open(ctx, dbPath, 4)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("failed to open reader: %w", err)
		}
	}

	return &DB{reader: reader, writer: writer, path: dbPath}, nil
}

func open(ctx context.Context, dbPath string, maxConns int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// dsn applies the pragmas to every pooled connection.
func dsn(dbPath string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(ON)")
	if dbPath != ":memory:" {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(NORMAL)")
	}
	return "file:" + dbPath + "?" + params.Encode()
}

// Ping checks the reader pool; used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.reader.PingContext(ctx)
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Close closes both connection pools
func (db *DB) Close() error {
	var err error
	if db.reader != nil && db.reader != db.writer {
		err = db.reader.Close()
	}
	if db.writer != nil {
		if werr := db.writer.Close(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}
