/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - HTTP Responses
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

// errorResponse is the failure envelope shared by every endpoint.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// messageResponse acknowledges an action that returns no data.
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug("failed to encode response", "error", err.Error())
	}
}

func sendFailure(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, errorResponse{Error: msg})
}

// sendError reports err with the status its kind maps to.
func sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		logging.Error("request failed", "request_id", RequestID(r.Context()),
			"path", r.URL.Path, "error", err.Error())
	}
	sendFailure(w, status, apperr.Message(err))
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.KindInputValidation, "api.decode", "Invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindInputValidation, "api.path", "Invalid "+name)
	}
	return id, nil
}
