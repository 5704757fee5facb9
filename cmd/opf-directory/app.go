/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Service Wiring
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/analysis"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/appstore"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/cache"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/keywords"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/knowledgebase"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/matching"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/pipeline"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/ranking"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/rfp"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

const cacheMaxEntries = 2000

// app holds the services a command opened. Each open* method is
// idempotent; close releases everything in reverse order.
type app struct {
	cfg *config.Config

	directory *directory.Service
	store     *appstore.Store
	rfps      *rfp.Store
	tenders   *tenders.Store
	runner    *tenders.Runner
	kb        *knowledgebase.Base
	cache     *cache.Tiered
	completer llm.Completer

	closers []func()
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) openDirectory(ctx context.Context) (*directory.Service, error) {
	if a.directory != nil {
		return a.directory, nil
	}

	var store directory.Store
	switch strings.ToLower(a.cfg.Directory.Backend) {
	case "sqlite":
		s, err := directory.OpenSQLite(a.cfg.Directory.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = s.Close() })
		store = s
	default:
		s, err := directory.OpenPostgres(ctx, a.cfg.Directory.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to member directory: %w", err)
		}
		a.onClose(func() { _ = s.Close() })
		store = s
	}

	svc, err := directory.NewService(ctx, store, a.cfg.Directory.Table)
	if err != nil {
		return nil, err
	}
	logging.Info("member directory ready", "backend", a.cfg.Directory.Backend,
		"table", a.cfg.Directory.Table, "fields", svc.Registry().Len())
	a.directory = svc
	return svc, nil
}

func (a *app) openAppStore() error {
	if a.store != nil {
		return nil
	}
	store, err := appstore.Open(a.cfg.AppStore.Path)
	if err != nil {
		return err
	}
	a.onClose(func() { _ = store.Close() })
	a.store = store
	a.rfps = rfp.NewStore(store.DB())
	a.tenders = tenders.NewStore(store.DB())
	return nil
}

// openRunner starts the scrape runner. wait overrides the configured
// request wait when positive.
func (a *app) openRunner(wait time.Duration) (*tenders.Runner, error) {
	if a.runner != nil {
		return a.runner, nil
	}
	if err := a.openAppStore(); err != nil {
		return nil, err
	}
	scraper := tenders.NewScraper(tenders.OptionsFromConfig(a.cfg.Scraper))
	if wait <= 0 {
		wait = a.cfg.Scraper.WaitTimeout
	}
	runner, err := tenders.NewRunner(scraper, a.tenders, wait)
	if err != nil {
		return nil, err
	}
	a.onClose(runner.Close)
	a.runner = runner
	return runner, nil
}

func (a *app) openKnowledgeBase(ctx context.Context) (*knowledgebase.Base, error) {
	if a.kb != nil {
		return a.kb, nil
	}
	kb, err := knowledgebase.Open(ctx, a.cfg.Knowledgebase)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = kb.Close() })
	a.kb = kb
	return kb, nil
}

// openCompleter returns the LLM client behind the response cache, or nil
// when the provider has no credentials. Keyword extraction and ranking then
// use their local fallbacks.
func (a *app) openCompleter(ctx context.Context) (llm.Completer, error) {
	if a.completer != nil {
		return a.completer, nil
	}
	client, err := llm.NewClient(a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	if !client.IsConfigured() {
		logging.Warn("LLM provider is not configured; analysis will report the collaborator as unavailable",
			"provider", client.Provider())
		return nil, nil
	}

	a.cache = cache.New(ctx, a.cfg.Cache.RedisURL, a.cfg.Cache.TTL, cacheMaxEntries)
	a.onClose(func() { _ = a.cache.Close() })
	a.completer = cache.NewCachingCompleter(client, a.cache, client.Model())
	return a.completer, nil
}

// openPipeline wires analysis and member matching over every store.
func (a *app) openPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	dir, err := a.openDirectory(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.openAppStore(); err != nil {
		return nil, err
	}
	kb, err := a.openKnowledgeBase(ctx)
	if err != nil {
		return nil, err
	}
	completer, err := a.openCompleter(ctx)
	if err != nil {
		return nil, err
	}

	analyzer := analysis.NewAnalyzer(completer, kb, a.cfg.Knowledgebase.TopK, a.cfg.LLM.FallbackModel)
	matcher := matching.NewMatcher(keywords.NewExtractor(completer), dir, ranking.NewRanker(completer))
	return pipeline.New(a.rfps, analyzer, matcher), nil
}
