package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return createBindingsTable(ctx, db)
}

func createBindingsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS bindings (
		tax_id TEXT NOT NULL,
		device_id TEXT NOT NULL,
		line_user_id TEXT NOT NULL,
		bound_at INTEGER NOT NULL,
		PRIMARY KEY (tax_id, device_id)
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create bindings table: %w", err)
	}

	return nil
}
