/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Scrape Scheduler
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tenders

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

// Scheduler scrapes every source on a cron spec such as "@every 24h".
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	spec   string
}

func NewScheduler(runner *Runner, spec string) *Scheduler {
	if spec == "" {
		spec = "@every 24h"
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{})),
		runner: runner,
		spec:   spec,
	}
}

// Start registers the job and starts the scheduler. One scrape also runs
// immediately so the list is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.scrape(ctx) }); err != nil {
		return fmt.Errorf("invalid scrape schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	logging.Info("scrape scheduler started", "schedule", s.spec)

	go s.scrape(ctx)
	return nil
}

// Stop stops the scheduler and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logging.Info("scrape scheduler stopped")
}

func (s *Scheduler) scrape(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx, KeyAll); err != nil {
		logging.Warn("scheduled scrape failed", "error", err.Error())
	}
}

// cronLogger routes cron's own messages into the structured log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
