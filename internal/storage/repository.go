package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
)

// SaveBinding inserts or replaces the binding for (TaxID, DeviceID).
// A zero BoundAt is set to the current time.
func (db *DB) SaveBinding(ctx context.Context, b *Binding) error {
	if b.BoundAt.IsZero() {
		b.BoundAt = time.Now()
	}

	query := `
		INSERT INTO bindings (tax_id, device_id, line_user_id, bound_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tax_id, device_id) DO UPDATE SET
			line_user_id = excluded.line_user_id,
			bound_at = excluded.bound_at
	`
	start := time.Now()
	_, err := db.writer.ExecContext(ctx, query, b.TaxID, b.DeviceID, b.LineUserID, b.BoundAt.Unix())
	if err != nil {
		slog.ErrorContext(ctx, "failed to save binding",
			"tax_id", b.TaxID,
			"device_id", b.DeviceID,
			"error", err)
		return fmt.Errorf("failed to save binding: %w", err)
	}

	// Warn on slow queries (>100ms)
	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveBinding",
			"duration_ms", duration.Milliseconds())
	}
	return nil
}

// GetBinding returns the binding for (taxID, deviceID) or an error
// matching errors.ErrNotFound.
func (db *DB) GetBinding(ctx context.Context, taxID, deviceID string) (*Binding, error) {
	query := `SELECT tax_id, device_id, line_user_id, bound_at FROM bindings WHERE tax_id = ? AND device_id = ?`

	var b Binding
	var boundAt int64
	err := db.reader.QueryRowContext(ctx, query, taxID, deviceID).Scan(&b.TaxID, &b.DeviceID, &b.LineUserID, &boundAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("binding %s-%s: %w", taxID, deviceID, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query binding: %w", err)
	}

	b.BoundAt = time.Unix(boundAt, 0)
	return &b, nil
}

// CountBindings returns the number of stored bindings.
func (db *DB) CountBindings(ctx context.Context) (int, error) {
	var count int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM bindings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bindings: %w", err)
	}
	return count, nil
}
