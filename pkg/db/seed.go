package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/ocpp-central-system/pkg/bootstrap"
)

const seedLogPrefix = "db:seed"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SeedFromFile loads the seed file at path (or the default locations) and
// applies it.
func SeedFromFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	cfg, err := bootstrap.LoadSeedConfig(path)
	if err != nil {
		return fmt.Errorf("%s - load seed config: %w", seedLogPrefix, err)
	}
	return Seed(ctx, pool, cfg)
}

// Seed provisions charge points and id tags in one transaction. Re-running
// it is safe: charge points keep their boot data and tags are replaced.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg *bootstrap.SeedConfig) error {
	if cfg.Empty() {
		slog.Info(fmt.Sprintf("%s - nothing to seed", seedLogPrefix))
		return nil
	}
	slog.Info(fmt.Sprintf("%s - seeding %q", seedLogPrefix, cfg.Name))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s - begin tx: %w", seedLogPrefix, err)
	}
	defer tx.Rollback(ctx)

	for _, cp := range cfg.ChargePoints {
		_, err := tx.Exec(ctx,
			`INSERT INTO charge_points (id, vendor, model, description)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET
			   description = COALESCE(EXCLUDED.description, charge_points.description),
			   modified = NOW()`,
			cp.ID, cp.Vendor, cp.Model, nullIfEmpty(cp.Description))
		if err != nil {
			return fmt.Errorf("%s - insert charge point %s: %w", seedLogPrefix, cp.ID, err)
		}
	}

	for _, t := range cfg.IDTags {
		tag := IDTag{
			IDTag:       t.IDTag,
			Status:      string(t.AuthorizationStatus()),
			ParentIDTag: nullIfEmpty(t.ParentIDTag),
			ExpiryDate:  t.Expiry,
		}
		if err := upsertIDTag(ctx, tx, tag); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s - commit: %w", seedLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - seeded %d charge points and %d id tags", seedLogPrefix, len(cfg.ChargePoints), len(cfg.IDTags)))
	return nil
}

func upsertIDTag(ctx context.Context, db execer, t IDTag) error {
	_, err := db.Exec(ctx,
		`INSERT INTO id_tags (id_tag, status, parent_id_tag, expiry_date)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id_tag) DO UPDATE SET
		   status = EXCLUDED.status,
		   parent_id_tag = EXCLUDED.parent_id_tag,
		   expiry_date = EXCLUDED.expiry_date,
		   modified = NOW()`,
		t.IDTag, t.Status, t.ParentIDTag, t.ExpiryDate)
	if err != nil {
		return fmt.Errorf("%s - upsert id tag %s: %w", seedLogPrefix, t.IDTag, err)
	}
	return nil
}
