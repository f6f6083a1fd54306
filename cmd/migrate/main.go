// Package main provides a dedicated CLI tool for database migrations
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/internal/database"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

const usage = `
flowrun Database Migration Tool

USAGE:
    migrate [options] <command>

COMMANDS:
    up           Apply all pending migrations
    status       Show applied migrations (gorm backend)
    health       Check database connectivity

OPTIONS:
    --json       Output in JSON format
    --help       Show this help message

The database is selected by DB_DRIVER and DB_BACKEND.
`

func main() {
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	help := flag.Bool("help", false, "Show help")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := flag.Arg(0)
	if *help || command == "" || command == "help" {
		fmt.Print(usage)
		if command == "" && !*help {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithConfig("migrate", cfg.LoggerConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// migrations are run explicitly below
	cfg.Database.EnableMigrations = false

	var runErr error
	if cfg.Database.Backend == "sqlx" {
		runErr = runSQL(ctx, cfg, command, *jsonOutput)
	} else {
		runErr = runGorm(ctx, cfg, log, command, *jsonOutput)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %v\n", runErr)
		os.Exit(1)
	}
}

func runGorm(ctx context.Context, cfg *config.Config, log logger.Logger, command string, jsonOutput bool) error {
	db, err := database.Open(cfg.Database, cfg.GetDSN(), log)
	if err != nil {
		return err
	}
	defer db.Close()

	manager := database.NewMigrationManager(db, log)
	switch command {
	case "up":
		if err := manager.Run(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return report(jsonOutput, "Migrations completed successfully")
	case "status":
		return showStatus(ctx, manager, jsonOutput)
	case "health":
		if err := db.Health(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		return report(jsonOutput, "Database is reachable")
	}
	return unknownCommand(command)
}

func runSQL(ctx context.Context, cfg *config.Config, command string, jsonOutput bool) error {
	db, err := database.OpenSQL(ctx, cfg.Database, cfg.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case "up":
		if err := database.MigrateSQL(ctx, db); err != nil {
			return err
		}
		return report(jsonOutput, "Schema applied successfully")
	case "status":
		return fmt.Errorf("status is only tracked by the gorm backend")
	case "health":
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		return report(jsonOutput, "Database is reachable")
	}
	return unknownCommand(command)
}

func showStatus(ctx context.Context, manager *database.MigrationManager, jsonOutput bool) error {
	applied, err := manager.Applied(ctx)
	if err != nil {
		return err
	}

	rows := make([]database.SchemaMigration, 0, len(applied))
	for _, m := range applied {
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Version < rows[j].Version })

	if jsonOutput {
		return jsonx.NewEncoder(os.Stdout).Encode(rows)
	}

	fmt.Printf("Migration Status\n")
	fmt.Printf("================\n")
	fmt.Printf("Applied migrations: %d\n\n", len(rows))
	for _, m := range rows {
		fmt.Printf("%s %s\n", m.Version, m.Name)
		fmt.Printf("   Applied: %s\n", m.AppliedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("   Execution: %dms\n", m.ExecutionTime)
	}
	return nil
}

func report(jsonOutput bool, message string) error {
	if jsonOutput {
		return jsonx.NewEncoder(os.Stdout).Encode(map[string]string{"status": "success", "message": message})
	}
	fmt.Println(message)
	return nil
}

func unknownCommand(command string) error {
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command: %s", command)
}
