/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Authentication Middleware
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

type contextKey string

const principalContextKey contextKey = "principal"

const (
	// HealthCheckPath bypasses authentication.
	HealthCheckPath = "/health"
	// LoginPath bypasses authentication so sessions can be opened.
	LoginPath = "/api/auth/login"
)

// Principal kinds.
const (
	KindServiceToken = "token"
	KindUser         = "user"
)

// Principal identifies the caller of an authenticated request.
type Principal struct {
	Kind string // KindServiceToken or KindUser
	Name string // token id or email
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the caller stored by Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// Middleware requires a service token or a session token on every request
// except the health check and login. tokens or users may be nil.
func Middleware(tokens *TokenStore, users *UserStore, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || r.URL.Path == HealthCheckPath || r.URL.Path == LoginPath {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Missing Authorization header")
				return
			}
			token, ok := BearerToken(header)
			if !ok {
				unauthorized(w, "Invalid Authorization header format. Expected: Bearer <token>")
				return
			}

			principal, err := authenticate(tokens, users, token)
			if err != nil {
				// The detail stays in the log; clients get a generic message.
				logging.Debug("authentication rejected", "path", r.URL.Path, "error", err.Error())
				unauthorized(w, "Invalid or unknown token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func authenticate(tokens *TokenStore, users *UserStore, token string) (Principal, error) {
	if tokens != nil {
		id, err := tokens.ValidateToken(token)
		if err == nil {
			return Principal{Kind: KindServiceToken, Name: id}, nil
		}
		if !errors.Is(err, ErrInvalidToken) {
			return Principal{}, err
		}
	}
	if users != nil {
		username, err := users.ValidateSessionToken(token)
		if err != nil {
			return Principal{}, err
		}
		return Principal{Kind: KindUser, Name: username}, nil
	}
	return Principal{}, ErrInvalidToken
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
