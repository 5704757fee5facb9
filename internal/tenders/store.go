/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tender Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tenders

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
)

const recentDays = 7

// Filter narrows a tender listing. Zero values mean "any".
type Filter struct {
	Processed *bool
	Source    string
	Limit     int
}

// SourceCount is the number of tenders from one source.
type SourceCount struct {
	Source      string `json:"source"`
	Total       int    `json:"total"`
	Unprocessed int    `json:"unprocessed"`
}

// DayCount is the number of tenders scraped on one day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats summarises the stored tenders.
type Stats struct {
	TotalTenders     int           `json:"total_tenders"`
	TotalUnprocessed int           `json:"total_unprocessed"`
	BySource         []SourceCount `json:"by_source"`
	RecentActivity   []DayCount    `json:"recent_activity"`
}

// Store persists scraped tenders in the application database.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save upserts tenders keyed by (title, source). A re-scraped tender keeps
// its processed flag.
func (s *Store) Save(ctx context.Context, tenders []Tender) (int, error) {
	if len(tenders) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("tenders.save", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO scraped_tenders
            (title, description, closing_date, organization, link, source,
             scraped_at, is_climate_related, processed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT (title, source) DO UPDATE SET
            description = excluded.description,
            closing_date = excluded.closing_date,
            organization = excluded.organization,
            link = CASE WHEN excluded.link <> '' THEN excluded.link ELSE scraped_tenders.link END,
            scraped_at = excluded.scraped_at,
            updated_at = excluded.updated_at`)
	if err != nil {
		return 0, storeErr("tenders.save", err)
	}
	defer stmt.Close()

	now := s.now()
	saved := 0
	for _, t := range tenders {
		if strings.TrimSpace(t.Title) == "" || t.Source == "" {
			continue
		}
		scraped := t.ScrapedAt
		if scraped.IsZero() {
			scraped = now
		}
		if _, err := stmt.ExecContext(ctx, t.Title, t.Description, t.ClosingDate, t.Organization,
			t.Link, t.Source, scraped.UTC(), true, now, now); err != nil {
			return 0, storeErr("tenders.save", err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("tenders.save", err)
	}
	return saved, nil
}

// List returns tenders matching f, most recently scraped first.
func (s *Store) List(ctx context.Context, f Filter) ([]Tender, error) {
	var where []string
	var args []any
	if f.Processed != nil {
		where = append(where, "processed = ?")
		args = append(args, *f.Processed)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}

	query := `SELECT id, title, description, closing_date, organization, link, source,
                     scraped_at, is_climate_related, processed, created_at
              FROM scraped_tenders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scraped_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("tenders.list", err)
	}
	defer rows.Close()

	out := []Tender{}
	for rows.Next() {
		var t Tender
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.ClosingDate, &t.Organization,
			&t.Link, &t.Source, &t.ScrapedAt, &t.IsClimateRelated, &t.Processed, &t.CreatedAt); err != nil {
			return nil, storeErr("tenders.list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("tenders.list", err)
	}
	return out, nil
}

// MarkProcessed sets a tender's processed flag.
func (s *Store) MarkProcessed(ctx context.Context, id int64, processed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE scraped_tenders SET processed = ?, updated_at = ? WHERE id = ?`,
		processed, s.now(), id)
	if err != nil {
		return storeErr("tenders.mark_processed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("tenders.mark_processed", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, "tenders.mark_processed", fmt.Sprintf("tender %d not found", id))
	}
	return nil
}

// Stats counts tenders overall, per source and per day over the last week.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BySource: []SourceCount{}, RecentActivity: []DayCount{}}

	rows, err := s.db.QueryContext(ctx, `
        SELECT source, COUNT(*), COALESCE(SUM(CASE WHEN processed = 0 THEN 1 ELSE 0 END), 0)
        FROM scraped_tenders
        GROUP BY source
        ORDER BY source`)
	if err != nil {
		return nil, storeErr("tenders.stats", err)
	}
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Source, &c.Total, &c.Unprocessed); err != nil {
			rows.Close()
			return nil, storeErr("tenders.stats", err)
		}
		stats.BySource = append(stats.BySource, c)
		stats.TotalTenders += c.Total
		stats.TotalUnprocessed += c.Unprocessed
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr("tenders.stats", err)
	}

	// Day buckets are computed here rather than in SQL so they do not depend
	// on how the driver formats timestamps.
	rows, err = s.db.QueryContext(ctx, `SELECT scraped_at FROM scraped_tenders`)
	if err != nil {
		return nil, storeErr("tenders.stats", err)
	}
	defer rows.Close()

	cutoff := s.now().AddDate(0, 0, -recentDays)
	perDay := map[string]int{}
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, storeErr("tenders.stats", err)
		}
		if at.Before(cutoff) {
			continue
		}
		perDay[at.UTC().Format("2006-01-02")]++
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("tenders.stats", err)
	}

	for day, n := range perDay {
		stats.RecentActivity = append(stats.RecentActivity, DayCount{Date: day, Count: n})
	}
	sort.Slice(stats.RecentActivity, func(i, j int) bool {
		return stats.RecentActivity[i].Date > stats.RecentActivity[j].Date
	})
	return stats, nil
}

func storeErr(op string, err error) error {
	return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
}
