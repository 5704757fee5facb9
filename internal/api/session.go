/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Login Endpoints
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/auth"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if h.Users == nil {
		sendFailure(w, http.StatusServiceUnavailable, "User accounts are not configured")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		sendFailure(w, http.StatusBadRequest, "email and password are required")
		return
	}

	email := auth.NormalizeEmail(req.Email)
	token, expires, err := h.Users.AuthenticateUser(email, req.Password, h.MaxLoginAttempts)
	// Last login and failed attempts are persisted either way.
	if saveErr := h.Users.Save(); saveErr != nil {
		logging.Warn("failed to save user store", "error", saveErr.Error())
	}
	if err != nil {
		logging.Info("login rejected", "email", email, "error", err.Error())
		switch {
		case errors.Is(err, auth.ErrDomainNotAllowed):
			sendFailure(w, http.StatusForbidden, "Only organisation email addresses may sign in")
		case errors.Is(err, auth.ErrAccountDisabled):
			sendFailure(w, http.StatusForbidden, err.Error())
		default:
			sendFailure(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		}
		return
	}

	logging.Info("login", "email", email)
	sendJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, ExpiresAt: expires, Email: email})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if ok && h.Users != nil {
		h.Users.Logout(token)
	}
	sendJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logged out"})
}
