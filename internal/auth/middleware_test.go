/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Authentication Middleware Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type seenPrincipal struct {
	principal Principal
	ok        bool
	called    bool
}

func (s *seenPrincipal) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.called = true
		s.principal, s.ok = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareDisabled(t *testing.T) {
	var seen seenPrincipal
	h := Middleware(InitializeTokenStore(), nil, false)(seen.handler())

	if rr := serve(h, "/api/stats", ""); rr.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %d", rr.Code)
	}
	if seen.ok {
		t.Error("Expected no principal when auth is disabled")
	}
}

func TestMiddlewarePublicPaths(t *testing.T) {
	h := Middleware(InitializeTokenStore(), InitializeUserStore(), true)

	for _, path := range []string{HealthCheckPath, LoginPath} {
		var seen seenPrincipal
		if rr := serve(h(seen.handler()), path, ""); rr.Code != http.StatusOK {
			t.Errorf("Expected %s to bypass auth, got %d", path, rr.Code)
		}
	}
}

func TestMiddlewareRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   string
	}{
		{"missing header", "", "Missing Authorization header"},
		{"no bearer prefix", "sometoken123", "Invalid Authorization header format"},
		{"wrong prefix", "Basic sometoken123", "Invalid Authorization header format"},
		{"missing token", "Bearer", "Invalid Authorization header format"},
		{"empty token", "Bearer ", "Invalid or unknown token"},
		{"unknown token", "Bearer nope", "Invalid or unknown token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen seenPrincipal
			h := Middleware(InitializeTokenStore(), InitializeUserStore(), true)(seen.handler())

			rr := serve(h, "/api/rfp-list", tt.header)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", rr.Code)
			}
			if seen.called {
				t.Error("Handler should not be called")
			}
			body := rr.Body.String()
			if !strings.Contains(body, tt.body) || !strings.Contains(body, `"success":false`) {
				t.Errorf("Expected %q in JSON error, got %s", tt.body, body)
			}
		})
	}
}

func TestMiddlewareServiceToken(t *testing.T) {
	tokens := InitializeTokenStore()
	_ = tokens.AddToken("nightly", HashToken("svc-token"), "", nil)
	past := time.Now().Add(-time.Hour)
	_ = tokens.AddToken("old", HashToken("old-token"), "", &past)

	var seen seenPrincipal
	h := Middleware(tokens, InitializeUserStore(), true)(seen.handler())

	if rr := serve(h, "/api/tenders/list", "Bearer svc-token"); rr.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d", rr.Code)
	}
	if !seen.ok || seen.principal != (Principal{Kind: KindServiceToken, Name: "nightly"}) {
		t.Errorf("Unexpected principal %+v", seen.principal)
	}

	rr := serve(h, "/api/tenders/list", "Bearer old-token")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected expired token to be rejected, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "expired") {
		t.Error("Expected generic error without internal detail")
	}
}

func TestMiddlewareSessionToken(t *testing.T) {
	users := InitializeUserStore()
	users.SetPolicy("opf.degree", 0)
	if err := users.AddUser("dana@opf.degree", "pw", ""); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	session, _, err := users.AuthenticateUser("dana@opf.degree", "pw", 0)
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}

	var seen seenPrincipal
	h := Middleware(InitializeTokenStore(), users, true)(seen.handler())

	if rr := serve(h, "/api/rfp-list", "Bearer "+session); rr.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d", rr.Code)
	}
	if seen.principal != (Principal{Kind: KindUser, Name: "dana@opf.degree"}) {
		t.Errorf("Unexpected principal %+v", seen.principal)
	}

	users.Logout(session)
	if rr := serve(h, "/api/rfp-list", "Bearer "+session); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected logged-out session to be rejected, got %d", rr.Code)
	}
}

func TestMiddlewareNilStores(t *testing.T) {
	var seen seenPrincipal
	h := Middleware(nil, nil, true)(seen.handler())

	if rr := serve(h, "/api/stats", "Bearer anything"); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with no credential stores, got %d", rr.Code)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Errorf("Expected abc, got %q %v", tok, ok)
	}
	if _, ok := BearerToken("bearer abc"); ok {
		t.Error("Expected scheme to be case-sensitive")
	}
}
