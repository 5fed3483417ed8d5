package main

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	open := func() (*storage.Service, error) {
		db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		return storage.NewStorageService(db), nil
	}

	if err := newRootCmd(cfg, open).Execute(); err != nil {
		os.Exit(1)
	}
}
