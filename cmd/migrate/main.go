package main

import (
	"context"
	"fmt"

	"lending/internal/config"
	"lending/internal/db"
	"lending/internal/logging"
	"lending/internal/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	applied, err := migrations.Apply(context.Background(), database, log)
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	fmt.Printf("applied %d migration(s)\n", len(applied))
}
