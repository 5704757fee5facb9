/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tender Endpoints
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

var scrapeRoutes = map[string]string{
	"/api/tenders/scrape-aus":  tenders.KeyAUS,
	"/api/tenders/scrape-giz":  tenders.KeyGIZ,
	"/api/tenders/scrape-undp": tenders.KeyUNDP,
	"/api/tenders/scrape-all":  tenders.KeyAll,
}

type markProcessedRequest struct {
	TenderID  int64 `json:"tender_id"`
	Processed *bool `json:"processed"`
}

// scrape runs a scrape for key. A scrape still running when the wait
// expires answers 202 and finishes in the background.
func (h *handler) scrape(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := h.Scrapes.Run(r.Context(), key)
		if err != nil {
			sendError(w, r, err)
			return
		}
		status := http.StatusOK
		if summary.TimedOut {
			status = http.StatusAccepted
		}
		sendJSON(w, status, summary)
	}
}

func (h *handler) listTenders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f tenders.Filter
	if v := strings.TrimSpace(q.Get("processed")); v != "" {
		processed, err := strconv.ParseBool(v)
		if err != nil {
			sendFailure(w, http.StatusBadRequest, "processed must be true or false")
			return
		}
		f.Processed = &processed
	}
	f.Source = tenders.SourceName(strings.TrimSpace(q.Get("source")))
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			sendFailure(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = limit
	}

	list, err := h.Tenders.List(r.Context(), f)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "tenders": list, "count": len(list)})
}

func (h *handler) markProcessed(w http.ResponseWriter, r *http.Request) {
	var req markProcessedRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if req.TenderID <= 0 {
		sendFailure(w, http.StatusBadRequest, "tender_id is required")
		return
	}
	processed := true
	if req.Processed != nil {
		processed = *req.Processed
	}
	if err := h.Tenders.MarkProcessed(r.Context(), req.TenderID, processed); err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Tender updated"})
}

func (h *handler) tenderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tenders.Stats(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*tenders.Stats
	}{true, stats})
}
