/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Background Scrape Runner
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tenders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

const (
	runnerWorkers = 4
	jobTimeout    = 10 * time.Minute

	MessageStillRunning = "Scraping is still running in the background; new tenders will appear when it finishes"
)

type job struct {
	done    chan struct{}
	summary *Summary
	err     error
}

// Runner scrapes on a worker pool and persists what it finds. Callers wait
// up to a deadline; a scrape that outlives the wait keeps running.
type Runner struct {
	scraper *Scraper
	store   *Store
	wait    time.Duration
	pool    *ants.Pool

	mu      sync.Mutex
	running map[string]*job
}

func NewRunner(scraper *Scraper, store *Store, wait time.Duration) (*Runner, error) {
	if wait <= 0 {
		wait = 45 * time.Second
	}
	pool, err := ants.NewPool(runnerWorkers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape pool: %w", err)
	}
	return &Runner{
		scraper: scraper,
		store:   store,
		wait:    wait,
		pool:    pool,
		running: make(map[string]*job),
	}, nil
}

// Run scrapes key and saves the results. If the scrape has not finished
// within the wait it returns a summary with TimedOut set; the scrape itself
// is not cancelled. A request for a source that is already being scraped
// joins the running scrape.
func (r *Runner) Run(ctx context.Context, key string) (*Summary, error) {
	if !ValidSource(key) {
		return nil, apperr.New(apperr.KindInputValidation, "tenders.run", fmt.Sprintf("unknown tender source %q", key))
	}

	j, err := r.start(key)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(r.wait)
	defer timer.Stop()

	select {
	case <-j.done:
		return j.summary, j.err
	case <-timer.C:
	case <-ctx.Done():
	}
	logging.Info("scrape still running after wait", "source", key, "wait", r.wait.String())
	return &Summary{
		Success:   true,
		TimedOut:  true,
		ScrapedAt: time.Now().UTC(),
		Message:   MessageStillRunning,
	}, nil
}

func (r *Runner) start(key string) (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.running[key]; ok {
		return j, nil
	}

	j := &job{done: make(chan struct{})}
	err := r.pool.Submit(func() {
		defer func() {
			r.mu.Lock()
			delete(r.running, key)
			r.mu.Unlock()
			close(j.done)
		}()
		j.summary, j.err = r.execute(key)
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		return nil, apperr.New(apperr.KindBusy, "tenders.run", "too many scrapes in progress, please retry shortly")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start scrape: %w", err)
	}
	r.running[key] = j
	return j, nil
}

// execute runs detached from any request context.
func (r *Runner) execute(key string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	summary, err := r.scraper.Scrape(ctx, key)
	if err != nil {
		logging.Error("scrape failed", "source", key, "error", err.Error())
		return nil, err
	}

	saved, err := r.store.Save(ctx, summary.All())
	if err != nil {
		logging.Error("failed to save tenders", "source", key, "error", err.Error())
		return nil, err
	}
	summary.Saved = saved

	logging.Info("scrape complete", "source", key, "found", summary.TotalFound,
		"saved", saved, "duration", time.Since(start).String())
	return summary, nil
}

// Close releases the worker pool. Running scrapes are not interrupted.
func (r *Runner) Close() {
	r.pool.Release()
}
