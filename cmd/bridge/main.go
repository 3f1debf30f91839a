// Package main is the entrypoint for the native-bridge service.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/morezero/native-bridge/internal/config"
	"github.com/morezero/native-bridge/internal/server"
	"github.com/morezero/native-bridge/pkg/db"
)

const usage = `Usage: bridge [command]
       bridge serve              Start the bridge (NATS call servers, script engine, HTTP).
       bridge migrate up         Create the call journal tables.
       bridge migrate status     Show applied and pending journal migrations.

Commands:
  serve           (default) Start the native-bridge.
  migrate up      Run database migrations only.
  migrate status  Show current migration status.
  help            Show this message.

Environment: COMMS_URL, BRIDGE_ENGINE (nats|goja), BRIDGE_SCRIPT_FILE, WORKER_MAX,
DATABASE_URL (optional; required for migrate), MIGRATION_PATH, HTTP_PORT. See README.
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
			log.Fatalf("bridge migrate: require subcommand (up, status)")
		}
		switch sub := args[1]; sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("bridge migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(os.Stdout); err != nil {
				log.Fatalf("bridge migrate status: %v", err)
			}
		default:
			log.Fatalf("bridge migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("bridge: %v", err)
	}
}

func loadDBConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrateUp() error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := db.RunMigrations(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	fmt.Printf("Applied %d migration(s)\n", len(applied))
	for _, name := range applied {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runMigrateStatus(w io.Writer) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	state, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	printMigrationState(w, state)
	return nil
}

func printMigrationState(w io.Writer, state *db.MigrationState) {
	fmt.Fprintf(w, "Applied: %d\n", len(state.Applied))
	for _, name := range state.Applied {
		fmt.Fprintf(w, "  [x] %s\n", name)
	}
	fmt.Fprintf(w, "Pending: %d\n", len(state.Pending))
	for _, name := range state.Pending {
		fmt.Fprintf(w, "  [ ] %s\n", name)
	}
}
