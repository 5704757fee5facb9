/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tender Store Tests
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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/appstore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := appstore.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.DB())
}

func TestSaveUpsertsByTitleAndSource(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	n, err := s.Save(ctx, []Tender{
		{Title: "Solar mini-grids", Description: "v1", ClosingDate: "1 May", Source: SourceAUS},
		{Title: "Solar mini-grids", Description: "other site", Source: SourceGIZ},
		{Title: "  ", Source: SourceAUS},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	var ausID int64
	for _, tender := range all {
		if tender.Source == SourceAUS {
			ausID = tender.ID
		}
	}
	require.NoError(t, s.MarkProcessed(ctx, ausID, true))

	_, err = s.Save(ctx, []Tender{
		{Title: "Solar mini-grids", Description: "v2", ClosingDate: "8 May", Source: SourceAUS},
	})
	require.NoError(t, err)

	aus, err := s.List(ctx, Filter{Source: SourceAUS})
	require.NoError(t, err)
	require.Len(t, aus, 1)
	assert.Equal(t, ausID, aus[0].ID)
	assert.Equal(t, "v2", aus[0].Description)
	assert.Equal(t, "8 May", aus[0].ClosingDate)
	assert.True(t, aus[0].Processed, "processed flag survives a re-scrape")
	assert.True(t, aus[0].IsClimateRelated)
}

func TestListFilters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	_, err := s.Save(ctx, []Tender{
		{Title: "A", Source: SourceAUS, ScrapedAt: base},
		{Title: "B", Source: SourceUNDP, ScrapedAt: base.Add(time.Minute)},
		{Title: "C", Source: SourceUNDP, ScrapedAt: base.Add(2 * time.Minute)},
	})
	require.NoError(t, err)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].Title, "newest first")
	assert.Equal(t, "A", all[2].Title)

	require.NoError(t, s.MarkProcessed(ctx, all[0].ID, true))

	processed := true
	done, err := s.List(ctx, Filter{Processed: &processed})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "C", done[0].Title)

	unprocessed := false
	todo, err := s.List(ctx, Filter{Processed: &unprocessed, Source: SourceUNDP})
	require.NoError(t, err)
	require.Len(t, todo, 1)
	assert.Equal(t, "B", todo[0].Title)

	limited, err := s.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMarkProcessedMissing(t *testing.T) {
	err := newStore(t).MarkProcessed(context.Background(), 12, true)
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.Save(ctx, []Tender{
		{Title: "A", Source: SourceAUS, ScrapedAt: now},
		{Title: "B", Source: SourceAUS, ScrapedAt: now},
		{Title: "C", Source: SourceGIZ, ScrapedAt: now.AddDate(0, 0, -10)},
	})
	require.NoError(t, err)

	list, err := s.List(ctx, Filter{Source: SourceAUS})
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, list[0].ID, true))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTenders)
	assert.Equal(t, 2, stats.TotalUnprocessed)
	assert.Equal(t, []SourceCount{
		{Source: SourceAUS, Total: 2, Unprocessed: 1},
		{Source: SourceGIZ, Total: 1, Unprocessed: 1},
	}, stats.BySource)

	recent := 0
	for _, d := range stats.RecentActivity {
		recent += d.Count
	}
	assert.Equal(t, 2, recent, "tenders older than a week are not recent")
}

func TestStatsEmpty(t *testing.T) {
	stats, err := newStore(t).Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTenders)
	assert.NotNil(t, stats.BySource)
	assert.NotNil(t, stats.RecentActivity)
}
