package main

import (
	"flag"
	"log/slog"
	"os"

	"donorlink/internal/platform/config"
	"donorlink/internal/platform/database"
	"donorlink/internal/platform/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server)

	if err := database.Migrate(cfg.Database.URL, *direction); err != nil {
		log.Error("migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	log.Info("migration complete", "direction", *direction)
}
