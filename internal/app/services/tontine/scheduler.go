package tontine

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/terangapay/ledger-engine/pkg/logger"
)

// SchedulerConfig holds the cron specs for the engine's background jobs.
// Specs use six fields, seconds first.
type SchedulerConfig struct {
	PenaltySweep  string
	MaturityCheck string
}

// Scheduler runs the penalty sweep and deadline-policy maturity check on
// cron schedules.
type Scheduler struct {
	engine *Service
	cfg    SchedulerConfig
	log    *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler wires the background jobs. Start must be called before any
// job fires.
func NewScheduler(engine *Service, cfg SchedulerConfig, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("tontine-scheduler")
	}
	return &Scheduler{engine: engine, cfg: cfg, log: log}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.cfg.PenaltySweep, func() {
		s.engine.PenaltySweep(ctx)
	}); err != nil {
		return fmt.Errorf("penalty sweep spec %q: %w", s.cfg.PenaltySweep, err)
	}
	if _, err := c.AddFunc(s.cfg.MaturityCheck, func() {
		s.engine.MaturityCheck(ctx)
	}); err != nil {
		return fmt.Errorf("maturity check spec %q: %w", s.cfg.MaturityCheck, err)
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.Info("scheduler started",
		"penalty_sweep", s.cfg.PenaltySweep, "maturity_check", s.cfg.MaturityCheck)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("scheduler stopped")
}
