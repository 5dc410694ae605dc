package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearData truncates every central system table. The schema is preserved and
// RESTART IDENTITY resets transaction ids.
func ClearData(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing central system tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE
		message_log,
		meter_values,
		transactions,
		connector_status,
		id_tags,
		charge_points
		RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Central system data cleared", clearLogPrefix))
	return nil
}
