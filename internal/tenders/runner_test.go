/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Background Scrape Runner Tests
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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
)

func TestRunnerCompletesWithinWait(t *testing.T) {
	srv, _ := siteServer(t)
	store := newStore(t)
	r, err := NewRunner(testScraper(srv, 1), store, 10*time.Second)
	require.NoError(t, err)
	defer r.Close()

	summary, err := r.Run(context.Background(), KeyUNDP)
	require.NoError(t, err)
	assert.False(t, summary.TimedOut)
	assert.Equal(t, 2, summary.Saved)

	stored, err := store.List(context.Background(), Filter{Source: SourceUNDP})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunnerDetachesAfterWait(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(gizPage))
	}))
	defer srv.Close()

	s := NewScraper(Options{MaxPages: 1, RequestTimeout: 10 * time.Second, UserAgent: "x"})
	s.SetBaseURL(KeyGIZ, srv.URL)
	store := newStore(t)
	r, err := NewRunner(s, store, 50*time.Millisecond)
	require.NoError(t, err)
	defer r.Close()

	summary, err := r.Run(context.Background(), KeyGIZ)
	require.NoError(t, err)
	assert.True(t, summary.TimedOut)
	assert.True(t, summary.Success)
	assert.Equal(t, MessageStillRunning, summary.Message)

	close(release)

	require.Eventually(t, func() bool {
		stored, err := store.List(context.Background(), Filter{Source: SourceGIZ})
		return err == nil && len(stored) == 1
	}, 5*time.Second, 20*time.Millisecond, "detached scrape persists its results")
}

func TestRunnerUnknownSource(t *testing.T) {
	r, err := NewRunner(NewScraper(Options{MaxPages: 1, RequestTimeout: time.Second}), newStore(t), time.Second)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Run(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperr.InputValidation))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	r, err := NewRunner(NewScraper(Options{MaxPages: 1, RequestTimeout: time.Second}), newStore(t), time.Second)
	require.NoError(t, err)
	defer r.Close()

	err = NewScheduler(r, "every now and then").Start(context.Background())
	assert.Error(t, err)
}
