// Package app assembles the engine: storage, services, background jobs and
// the REST surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/terangapay/ledger-engine/internal/app/httpapi"
	"github.com/terangapay/ledger-engine/internal/app/identity"
	"github.com/terangapay/ledger-engine/internal/app/notify"
	"github.com/terangapay/ledger-engine/internal/app/services/debts"
	"github.com/terangapay/ledger-engine/internal/app/services/fees"
	"github.com/terangapay/ledger-engine/internal/app/services/journal"
	"github.com/terangapay/ledger-engine/internal/app/services/ledger"
	"github.com/terangapay/ledger-engine/internal/app/services/tontine"
	"github.com/terangapay/ledger-engine/internal/app/services/transfer"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/internal/app/storage/memory"
	"github.com/terangapay/ledger-engine/internal/config"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Application is the fully wired engine.
type Application struct {
	cfg *config.Config
	log *logger.Logger

	Store    storage.Store
	Fees     *fees.Resolver
	Transfer *transfer.Service
	Debts    *debts.Service
	Tontines *tontine.Service

	scheduler *tontine.Scheduler
	server    *http.Server
}

// New wires every component. A nil store falls back to the in-memory
// implementation, which suits tests and local development.
func New(cfg *config.Config, store storage.Store, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("ledger-engine")
	}
	if store == nil {
		store = memory.New()
	}

	notifier := notify.NewLogDispatcher(log.With("component", "notify"))

	ledgerSvc := ledger.New(log.With("component", "ledger"))
	journalSvc := journal.New(log.With("component", "journal"))
	feeResolver := fees.New(cfg)
	debtSvc := debts.New(ledgerSvc, journalSvc, log.With("component", "debts"))
	transferSvc := transfer.New(store, ledgerSvc, journalSvc, feeResolver, debtSvc, notifier,
		log.With("component", "transfer"))
	tontineSvc := tontine.New(store, transferSvc, feeResolver, notifier,
		log.With("component", "tontine"))

	scheduler := tontine.NewScheduler(tontineSvc, tontine.SchedulerConfig{
		PenaltySweep:  cfg.Scheduler.PenaltySweep,
		MaturityCheck: cfg.Scheduler.MaturityCheck,
	}, log.With("component", "scheduler"))

	verifier := identity.NewVerifier(cfg.Server.JWTSecret)
	handler := httpapi.New(store, transferSvc, tontineSvc, debtSvc, verifier, httpapi.Config{
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	}, log.With("component", "httpapi"))

	return &Application{
		cfg:      cfg,
		log:      log,
		Store:    store,
		Fees:     feeResolver,
		Transfer: transferSvc,
		Debts:    debtSvc,
		Tontines: tontineSvc,

		scheduler: scheduler,
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start launches the scheduler and serves HTTP until Shutdown or a listener
// error.
func (a *Application) Start(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.log.Info("listening", "addr", a.cfg.Server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the scheduler and drains the HTTP server.
func (a *Application) Shutdown(ctx context.Context) error {
	a.scheduler.Stop()
	return a.server.Shutdown(ctx)
}
