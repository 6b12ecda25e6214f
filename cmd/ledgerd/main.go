// Command ledgerd runs the ledger and settlement engine.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/terangapay/ledger-engine/internal/app"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/internal/app/storage/postgres"
	"github.com/terangapay/ledger-engine/internal/config"
	"github.com/terangapay/ledger-engine/internal/platform/migrations"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		envFile    = flag.String("env-file", "", "optional .env file loaded before config")
	)
	flag.Parse()

	log := logger.NewDefault("ledgerd")

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Errorf("load env file: %v", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("load config: %v", err)
		os.Exit(1)
	}

	var store storage.Store
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			log.Errorf("open database: %v", err)
			os.Exit(1)
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migrations.Apply(migrateCtx, db.DB); err != nil {
			cancel()
			log.Errorf("apply migrations: %v", err)
			os.Exit(1)
		}
		cancel()
		store = postgres.New(db, cfg.Database.LockTimeout, log.With("component", "postgres"))
	} else {
		log.Warn("no database configured, using the in-memory store")
	}

	application := app.New(cfg, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- application.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("serve: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
			os.Exit(1)
		}
	}
}
