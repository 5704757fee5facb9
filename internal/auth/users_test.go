/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Staff Account Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestUsers(t *testing.T) *UserStore {
	t.Helper()
	store := InitializeUserStore()
	store.SetPolicy("opf.degree", time.Hour)
	if err := store.AddUser("Alice@OPF.degree ", "correct horse", "Programs"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	return store
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "s3cret" {
		t.Error("Expected hash to differ from the password")
	}
	if err := VerifyPassword("s3cret", hash); err != nil {
		t.Errorf("Expected password to verify: %v", err)
	}
	if err := VerifyPassword("wrong", hash); err == nil {
		t.Error("Expected wrong password to fail")
	}
}

func TestCheckEmailDomain(t *testing.T) {
	tests := []struct {
		email  string
		domain string
		ok     bool
	}{
		{"alice@opf.degree", "opf.degree", true},
		{" Alice@OPF.Degree ", "opf.degree", true},
		{"alice@opf.degree", "@opf.degree", true},
		{"alice@gmail.com", "opf.degree", false},
		{"alice@sub.opf.degree", "opf.degree", false},
		{"alice@gmail.com", "", true},
		{"alice", "", false},
		{"@opf.degree", "opf.degree", false},
		{"alice@", "", false},
	}
	for _, tt := range tests {
		err := CheckEmailDomain(tt.email, tt.domain)
		if (err == nil) != tt.ok {
			t.Errorf("CheckEmailDomain(%q, %q) = %v, want ok=%v", tt.email, tt.domain, err, tt.ok)
		}
	}
	if err := CheckEmailDomain("bob@gmail.com", "opf.degree"); !errors.Is(err, ErrDomainNotAllowed) {
		t.Errorf("Expected ErrDomainNotAllowed, got %v", err)
	}
}

func TestAddUser(t *testing.T) {
	store := newTestUsers(t)

	if _, ok := store.Users["alice@opf.degree"]; !ok {
		t.Fatal("Expected username to be normalized")
	}
	if err := store.AddUser("alice@opf.degree", "x", ""); err == nil {
		t.Error("Expected duplicate user to be rejected")
	}
	if err := store.AddUser("mallory@example.com", "x", ""); !errors.Is(err, ErrDomainNotAllowed) {
		t.Errorf("Expected domain rejection, got %v", err)
	}
	if err := store.AddUser("bob@opf.degree", "", ""); err == nil {
		t.Error("Expected empty password to be rejected")
	}
}

func TestAuthenticateUser(t *testing.T) {
	store := newTestUsers(t)

	token, expires, err := store.AuthenticateUser("ALICE@opf.degree", "correct horse", 0)
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a session token")
	}
	if d := time.Until(expires); d < 59*time.Minute || d > time.Hour {
		t.Errorf("Expected session TTL of one hour, got %v", d)
	}
	if store.Users["alice@opf.degree"].LastLogin == nil {
		t.Error("Expected LastLogin to be recorded")
	}

	if _, _, err := store.AuthenticateUser("alice@opf.degree", "wrong", 0); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := store.AuthenticateUser("nobody@opf.degree", "x", 0); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, _, err := store.AuthenticateUser("alice@gmail.com", "correct horse", 0); !errors.Is(err, ErrDomainNotAllowed) {
		t.Errorf("Expected ErrDomainNotAllowed, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestUsers(t)
	token, _, err := store.AuthenticateUser("alice@opf.degree", "correct horse", 0)
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}

	username, err := store.ValidateSessionToken(token)
	if err != nil || username != "alice@opf.degree" {
		t.Fatalf("Expected valid session for alice, got %q, %v", username, err)
	}

	if !store.Logout(token) {
		t.Error("Expected logout to report an existing session")
	}
	if store.Logout(token) {
		t.Error("Expected second logout to report false")
	}
	if _, err := store.ValidateSessionToken(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected ErrInvalidSession after logout, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	store := newTestUsers(t)
	token, _, err := store.AuthenticateUser("alice@opf.degree", "correct horse", 0)
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}

	store.mu.Lock()
	sess := store.sessions[token]
	sess.expires = time.Now().Add(-time.Second)
	store.sessions[token] = sess
	store.mu.Unlock()

	if _, err := store.ValidateSessionToken(token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Expected ErrSessionExpired, got %v", err)
	}
	if _, err := store.ValidateSessionToken(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected expired session to be dropped, got %v", err)
	}
}

func TestDisableEndsSessions(t *testing.T) {
	store := newTestUsers(t)
	token, _, err := store.AuthenticateUser("alice@opf.degree", "correct horse", 0)
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}

	if err := store.DisableUser("alice@opf.degree"); err != nil {
		t.Fatalf("DisableUser failed: %v", err)
	}
	if _, err := store.ValidateSessionToken(token); err == nil {
		t.Error("Expected session to end when the account is disabled")
	}
	if _, _, err := store.AuthenticateUser("alice@opf.degree", "correct horse", 0); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("Expected ErrAccountDisabled, got %v", err)
	}

	if err := store.EnableUser("alice@opf.degree"); err != nil {
		t.Fatalf("EnableUser failed: %v", err)
	}
	if _, _, err := store.AuthenticateUser("alice@opf.degree", "correct horse", 0); err != nil {
		t.Errorf("Expected login after re-enable, got %v", err)
	}
	if err := store.DisableUser("nobody@opf.degree"); err == nil {
		t.Error("Expected error for unknown user")
	}
}

func TestAccountLockout(t *testing.T) {
	store := newTestUsers(t)

	for i := 0; i < 3; i++ {
		if _, _, err := store.AuthenticateUser("alice@opf.degree", "wrong", 3); err == nil {
			t.Fatal("Expected authentication to fail")
		}
	}
	attempts, err := store.GetFailedAttempts("alice@opf.degree")
	if err != nil || attempts != 3 {
		t.Errorf("Expected 3 failed attempts, got %d, %v", attempts, err)
	}

	_, _, err = store.AuthenticateUser("alice@opf.degree", "correct horse", 3)
	if err == nil || err.Error() != "user account is disabled" {
		t.Errorf("Expected 'user account is disabled', got %v", err)
	}
}

func TestFailedAttemptsReset(t *testing.T) {
	store := newTestUsers(t)

	_, _, _ = store.AuthenticateUser("alice@opf.degree", "wrong", 0)
	_, _, _ = store.AuthenticateUser("alice@opf.degree", "wrong", 0)
	if attempts, _ := store.GetFailedAttempts("alice@opf.degree"); attempts != 2 {
		t.Errorf("Expected 2 failed attempts, got %d", attempts)
	}
	if !store.Users["alice@opf.degree"].Enabled {
		t.Error("Account should not lock when lockout is off")
	}

	if _, _, err := store.AuthenticateUser("alice@opf.degree", "correct horse", 0); err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}
	if attempts, _ := store.GetFailedAttempts("alice@opf.degree"); attempts != 0 {
		t.Errorf("Expected success to clear failed attempts, got %d", attempts)
	}

	_, _, _ = store.AuthenticateUser("alice@opf.degree", "wrong", 0)
	if err := store.ResetFailedAttempts("alice@opf.degree"); err != nil {
		t.Fatalf("ResetFailedAttempts failed: %v", err)
	}
	if attempts, _ := store.GetFailedAttempts("alice@opf.degree"); attempts != 0 {
		t.Errorf("Expected 0 failed attempts after reset, got %d", attempts)
	}
	if _, err := store.GetFailedAttempts("nobody@opf.degree"); err == nil {
		t.Error("Expected error for unknown user")
	}
}

func TestUpdateAndRemoveUser(t *testing.T) {
	store := newTestUsers(t)

	if err := store.UpdateUser("alice@opf.degree", "new password", ""); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if store.Users["alice@opf.degree"].Annotation != "Programs" {
		t.Error("Expected empty annotation to keep the old one")
	}
	if _, _, err := store.AuthenticateUser("alice@opf.degree", "new password", 0); err != nil {
		t.Errorf("Expected new password to work: %v", err)
	}
	if err := store.UpdateUser("nobody@opf.degree", "x", ""); err == nil {
		t.Error("Expected error for unknown user")
	}

	if err := store.RemoveUser("alice@opf.degree"); err != nil {
		t.Fatalf("RemoveUser failed: %v", err)
	}
	if err := store.RemoveUser("alice@opf.degree"); err == nil {
		t.Error("Expected second removal to fail")
	}
	if len(store.ListUsers()) != 0 {
		t.Error("Expected no users left")
	}
}

func TestSaveAndLoadUserStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	store := newTestUsers(t)
	if err := store.AddUser("bob@opf.degree", "hunter2", ""); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := SaveUserStore(path, store); err != nil {
		t.Fatalf("SaveUserStore failed: %v", err)
	}

	loaded, err := LoadUserStore(path)
	if err != nil {
		t.Fatalf("LoadUserStore failed: %v", err)
	}
	users := loaded.ListUsers()
	if len(users) != 2 || users[0].Username != "alice@opf.degree" || users[1].Username != "bob@opf.degree" {
		t.Fatalf("Unexpected users after load: %+v", users)
	}
	if _, _, err := loaded.AuthenticateUser("bob@opf.degree", "hunter2", 0); err != nil {
		t.Errorf("Expected loaded credentials to work: %v", err)
	}
	if err := loaded.Save(); err != nil {
		t.Errorf("Save failed: %v", err)
	}
}

func TestReloadKeepsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	store, err := LoadOrInitUserStore(path)
	if err != nil {
		t.Fatalf("LoadOrInitUserStore failed: %v", err)
	}
	if err := store.AddUser("carol@opf.degree", "pw", ""); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	token, _, err := store.AuthenticateUser("carol@opf.degree", "pw", 0)
	if err != nil {
		t.Fatalf("AuthenticateUser failed: %v", err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, err := store.ValidateSessionToken(token); err != nil {
		t.Errorf("Expected session to survive reload: %v", err)
	}
}

func TestGetDefaultUserPath(t *testing.T) {
	path := GetDefaultUserPath("/opt/opf/bin/opf-directory")
	if path != "/etc/opf-directory/opf-directory-users.yaml" &&
		path != "/opt/opf/bin/opf-directory-users.yaml" {
		t.Errorf("Unexpected default user path %s", path)
	}
}
