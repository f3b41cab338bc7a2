package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status|version]

import (
	"context"
	"fmt"
	"os"

	"skills-backend/internal/shared/config"
	"skills-backend/internal/shared/telemetry"
	"skills-backend/internal/shared/storage/db"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if err := run(context.Background(), config.Load(), command); err != nil {
		telemetry.Error("migrate.exit", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, command string) error {
	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, command); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
