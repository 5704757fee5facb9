/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tender Scraper
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
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/panjf2000/ants/v2"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Options controls paging and politeness.
type Options struct {
	MaxPages       int
	RequestTimeout time.Duration
	PageDelay      time.Duration
	UserAgent      string
}

// OptionsFromConfig fills unset values with the defaults.
func OptionsFromConfig(cfg config.ScraperConfig) Options {
	opts := Options{
		MaxPages:       cfg.MaxPages,
		RequestTimeout: cfg.RequestTimeout,
		PageDelay:      cfg.PageDelay,
		UserAgent:      cfg.UserAgent,
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 2
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return opts
}

// Summary reports one scrape. Only the lists for the scraped sources are
// filled.
type Summary struct {
	Success     bool      `json:"success"`
	AUSTenders  []Tender  `json:"aus_tenders"`
	GIZTenders  []Tender  `json:"giz_tenders"`
	UNDPTenders []Tender  `json:"undp_tenders"`
	TotalFound  int       `json:"total_found"`
	Saved       int       `json:"saved"`
	ScrapedAt   time.Time `json:"scraped_at"`
	Message     string    `json:"message"`
	TimedOut    bool      `json:"timed_out,omitempty"`
}

// All returns every tender in the summary.
func (s *Summary) All() []Tender {
	all := make([]Tender, 0, s.TotalFound)
	all = append(all, s.AUSTenders...)
	all = append(all, s.GIZTenders...)
	return append(all, s.UNDPTenders...)
}

func (s *Summary) set(key string, found []Tender) {
	if found == nil {
		found = []Tender{}
	}
	switch key {
	case KeyAUS:
		s.AUSTenders = found
	case KeyGIZ:
		s.GIZTenders = found
	case KeyUNDP:
		s.UNDPTenders = found
	}
	s.TotalFound = len(s.AUSTenders) + len(s.GIZTenders) + len(s.UNDPTenders)
}

// Scraper fetches climate-related tenders from the configured sites.
type Scraper struct {
	client   *http.Client
	opts     Options
	adapters []adapter
}

func NewScraper(opts Options) *Scraper {
	return &Scraper{
		client:   &http.Client{Timeout: opts.RequestTimeout},
		opts:     opts,
		adapters: defaultAdapters(),
	}
}

// SetBaseURL points a source at a different site, e.g. a test server.
func (s *Scraper) SetBaseURL(key, base string) {
	for i := range s.adapters {
		if s.adapters[i].key == key {
			s.adapters[i].baseURL = base
		}
	}
}

// ValidSource reports whether key names a source or "all".
func ValidSource(key string) bool {
	if key == KeyAll {
		return true
	}
	for _, a := range defaultAdapters() {
		if a.key == key {
			return true
		}
	}
	return false
}

// Scrape fetches the given source ("aus", "giz", "undp" or "all"). Page
// errors are logged and skipped, so a site being down yields fewer tenders
// rather than an error.
func (s *Scraper) Scrape(ctx context.Context, key string) (*Summary, error) {
	if !ValidSource(key) {
		return nil, apperr.New(apperr.KindInputValidation, "tenders.scrape", fmt.Sprintf("unknown tender source %q", key))
	}
	if key == KeyAll {
		return s.ScrapeAll(ctx)
	}

	summary := &Summary{ScrapedAt: time.Now().UTC()}
	for _, a := range s.adapters {
		if a.key == key {
			summary.set(key, s.scrapeSite(ctx, a))
		}
	}
	summary.Success = true
	summary.Message = fmt.Sprintf("Successfully scraped %d tenders", summary.TotalFound)
	return summary, nil
}

// ScrapeAll scrapes every source concurrently.
func (s *Scraper) ScrapeAll(ctx context.Context) (*Summary, error) {
	pool, err := ants.NewPool(len(s.adapters))
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape pool: %w", err)
	}
	defer pool.Release()

	summary := &Summary{ScrapedAt: time.Now().UTC()}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, a := range s.adapters {
		a := a
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			found := s.scrapeSite(ctx, a)
			mu.Lock()
			summary.set(a.key, found)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			logging.Error("failed to submit scrape", "source", a.key, "error", err.Error())
		}
	}
	wg.Wait()

	summary.Success = true
	summary.Message = fmt.Sprintf("Successfully scraped %d tenders", summary.TotalFound)
	return summary, nil
}

func (s *Scraper) scrapeSite(ctx context.Context, a adapter) []Tender {
	found := []Tender{}
	for page := 1; page <= s.opts.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		pageURL := a.pageURL(a.baseURL, page)
		doc, base, err := s.fetch(ctx, pageURL)
		if err != nil {
			logging.Warn("tender page fetch failed", "source", a.key, "page", page, "error", err.Error())
			continue
		}

		items := a.parse(doc, base)
		kept := 0
		now := time.Now().UTC()
		for _, t := range items {
			if !IsClimateRelated(t.Title, t.Description) {
				continue
			}
			t.IsClimateRelated = true
			t.ScrapedAt = now
			found = append(found, t)
			kept++
		}
		logging.Debug("tender page scraped", "source", a.key, "page", page, "items", len(items), "climate", kept)

		if page < s.opts.MaxPages && s.opts.PageDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.PageDelay):
			}
		}
	}
	logging.Info("tender source scraped", "source", a.key, "tenders", len(found))
	return found
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil, fmt.Errorf("site returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, resp.Request.URL, nil
}
