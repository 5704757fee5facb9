/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base Endpoints
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/knowledgebase"
)

type initKBRequest struct {
	Force bool `json:"force"`
}

type initKBResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	knowledgebase.InitResult
}

// kbStatusResponse keeps the status vocabulary the web client polls for.
type kbStatusResponse struct {
	Success       bool       `json:"success"`
	Status        string     `json:"status"`
	DocumentCount int        `json:"document_count"`
	Documents     int        `json:"documents"`
	DocumentsPath string     `json:"documents_path"`
	InitializedAt *time.Time `json:"initialized_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func (h *handler) initKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var req initKBRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			sendError(w, r, err)
			return
		}
	}
	if force, err := strconv.ParseBool(r.URL.Query().Get("force")); err == nil && force {
		req.Force = true
	}

	result, err := h.KB.Initialize(r.Context(), req.Force)
	if err != nil {
		sendError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Knowledge base initialized with %d chunks from %d documents", result.Chunks, result.Documents)
	if result.AlreadyInitialized {
		msg = "Knowledge base already initialized"
	}
	sendJSON(w, http.StatusOK, initKBResponse{Success: true, Message: msg, InitResult: result})
}

func (h *handler) knowledgeBaseStatus(w http.ResponseWriter, _ *http.Request) {
	st := h.KB.Status()
	status := "not_initialized"
	switch st.Status {
	case knowledgebase.StateReady:
		status = "initialized"
	case knowledgebase.StateInitializing:
		status = "initializing"
	}
	sendJSON(w, http.StatusOK, kbStatusResponse{
		Success:       true,
		Status:        status,
		DocumentCount: st.Chunks,
		Documents:     st.Documents,
		DocumentsPath: st.DocumentsPath,
		InitializedAt: st.InitializedAt,
		LastError:     st.LastError,
	})
}
