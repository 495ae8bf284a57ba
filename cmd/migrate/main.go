package main

import (
	"flag"
	"os"

	"walknav/backend/internal/config"
	"walknav/backend/internal/db"
	"walknav/backend/internal/logging"
)

func main() {
	statusOnly := flag.Bool("status", false, "list pending migrations without applying them")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New("walknav-migrate", cfg.LogLevel)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	pending, err := db.PendingMigrations(database, cfg.MigrationsDir)
	if err != nil {
		logger.Error("list migrations", "error", err)
		os.Exit(1)
	}
	if *statusOnly {
		logger.Info("pending migrations", "count", len(pending), "files", pending)
		return
	}

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	logger.Info("migrations applied successfully", "applied", pending)
}
