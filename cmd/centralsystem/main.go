// Package main is the entrypoint for the OCPP 1.6 central system (binary name "centralsystem").
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/ocpp-central-system/internal/config"
	"github.com/morezero/ocpp-central-system/internal/server"
	"github.com/morezero/ocpp-central-system/pkg/bootstrap"
	"github.com/morezero/ocpp-central-system/pkg/db"
)

const usage = `Usage: centralsystem [command]
       centralsystem serve              Start the central system (station listener, NATS, HTTP ops).
       centralsystem migrate up         Run database migrations.
       centralsystem migrate down       Roll back one migration (not supported by the current schema).
       centralsystem migrate status     Show migration status.
       centralsystem ensure-db [name]   Create database if missing (default name: ocpp_test). Uses DATABASE_URL host/user.
       centralsystem clear              Truncate all central system tables; schema is preserved.
       centralsystem seed [file]        Seed charge points and id tags from a TOML seed file.

Commands:
  serve           (default) Start the central system.
  migrate up      Run database migrations only.
  migrate down    Roll back last migration (optional).
  migrate status  Show current migration status.
  ensure-db [name] Create database (e.g. ocpp_test) on same host as DATABASE_URL; then run tests with that URL.
  clear           Truncate central system data; schema preserved.
  seed [file]     Seed from a TOML file (default OCPP_SEED_FILE, then config/seed.toml, seed.toml).

Environment: DATABASE_URL (empty keeps state in memory), MIGRATION_PATH, OCPP_LISTEN_ADDR (default 0.0.0.0:9000),
HTTP_PORT (default 8080), COMMS_URL, OCPP_SEED_FILE. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("centralsystem migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := withPool(runMigrateUp); err != nil {
				log.Fatalf("centralsystem migrate up: %v", err)
			}
		case "status":
			if err := withPool(runMigrateStatus); err != nil {
				log.Fatalf("centralsystem migrate status: %v", err)
			}
		case "down":
			if err := withPool(runMigrateDown); err != nil {
				log.Fatalf("centralsystem migrate down: %v", err)
			}
		default:
			log.Fatalf("centralsystem migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := withPool(runClear); err != nil {
			log.Fatalf("centralsystem clear: %v", err)
		}
		return
	case "seed":
		seedFile := ""
		if len(args) > 1 {
			seedFile = args[1]
		}
		err := withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
			return runSeed(ctx, cfg, pool, seedFile)
		})
		if err != nil {
			log.Fatalf("centralsystem seed: %v", err)
		}
		return
	case "ensure-db":
		dbName := "ocpp_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("centralsystem ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("centralsystem: %v", err)
	}
}

// withPool loads config, connects to the database and runs fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runMigrateDown(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	return db.MigrationDown(ctx, pool, cfg.MigrationPath)
}

func runClear(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
	if err := db.ClearData(ctx, pool); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, seedFile string) error {
	seed, err := bootstrap.LoadSeedConfig(seedFile, cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed file: %w", err)
	}
	if seed.Empty() {
		fmt.Println("Nothing to seed.")
		return nil
	}
	if err := db.Seed(ctx, pool, seed); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	fmt.Printf("Seeded %d charge points and %d id tags from %q.\n", len(seed.ChargePoints), len(seed.IDTags), seed.Name)
	return nil
}

// targetDatabaseURL replaces the database name of databaseURL; the query
// (e.g. sslmode) is kept.
func targetDatabaseURL(databaseURL, dbName string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	targetURL, err := targetDatabaseURL(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}
