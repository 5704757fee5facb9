/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Staff Accounts
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// DefaultSessionTTL applies when no session lifetime is configured.
const DefaultSessionTTL = 24 * time.Hour

const bcryptCost = 12

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("user account is disabled")
	ErrDomainNotAllowed   = errors.New("email domain is not allowed")
	ErrSessionExpired     = errors.New("session has expired")
	ErrInvalidSession     = errors.New("invalid session token")
)

// User is a staff account. Usernames are email addresses.
type User struct {
	Username       string     `yaml:"username"`
	PasswordHash   string     `yaml:"password_hash"`
	CreatedAt      time.Time  `yaml:"created_at"`
	LastLogin      *time.Time `yaml:"last_login"`
	Enabled        bool       `yaml:"enabled"`
	Annotation     string     `yaml:"annotation"`
	FailedAttempts int        `yaml:"failed_attempts"`
}

// UserInfo is the listing view of a user.
type UserInfo struct {
	Username       string
	CreatedAt      time.Time
	LastLogin      *time.Time
	Enabled        bool
	Annotation     string
	FailedAttempts int
}

type session struct {
	username string
	expires  time.Time
}

// UserStore holds staff accounts and their in-memory login sessions.
// Sessions survive a reload of the user file but not a restart.
type UserStore struct {
	mu       sync.RWMutex
	Users    map[string]*User `yaml:"users"`
	sessions map[string]session
	domain   string
	ttl      time.Duration
	path     string
	watcher  *FileWatcher
}

// HashPassword bcrypt-hashes a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a password with its bcrypt hash.
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateSessionToken returns a random session token.
func GenerateSessionToken() (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return token, nil
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckEmailDomain verifies that email is a plausible address under domain.
// An empty domain allows any address.
func CheckEmailDomain(email, domain string) error {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("'%s' is not an email address", email)
	}
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	if domain != "" && email[at+1:] != domain {
		return ErrDomainNotAllowed
	}
	return nil
}

// InitializeUserStore creates an empty store with no backing file.
func InitializeUserStore() *UserStore {
	return &UserStore{
		Users:    make(map[string]*User),
		sessions: make(map[string]session),
		ttl:      DefaultSessionTTL,
	}
}

func parseUsers(data []byte) (map[string]*User, error) {
	var doc struct {
		Users map[string]*User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse user file: %w", err)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*User)
	}
	return doc.Users, nil
}

// LoadUserStore reads a user file and remembers its path.
func LoadUserStore(path string) (*UserStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	users, err := parseUsers(data)
	if err != nil {
		return nil, err
	}
	store := InitializeUserStore()
	store.Users = users
	store.path = path
	return store, nil
}

// LoadOrInitUserStore loads path, or returns an empty store bound to path
// when the file does not exist yet.
func LoadOrInitUserStore(path string) (*UserStore, error) {
	store, err := LoadUserStore(path)
	if errors.Is(err, os.ErrNotExist) {
		store = InitializeUserStore()
		store.path = path
		return store, nil
	}
	return store, err
}

// SaveUserStore writes the accounts to path with owner-only permissions.
func SaveUserStore(path string, store *UserStore) error {
	store.mu.RLock()
	data, err := yaml.Marshal(struct {
		Users map[string]*User `yaml:"users"`
	}{store.Users})
	store.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	return writePrivate(path, data)
}

// Save writes the store back to the file it was loaded from.
func (s *UserStore) Save() error {
	if s.path == "" {
		return nil
	}
	return SaveUserStore(s.path, s)
}

// Path returns the backing file, if any.
func (s *UserStore) Path() string {
	return s.path
}

// SetPolicy restricts accounts to an email domain and sets the session
// lifetime. A non-positive ttl keeps DefaultSessionTTL.
func (s *UserStore) SetPolicy(domain string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = domain
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Reload re-reads the backing file, keeping live sessions.
func (s *UserStore) Reload() error {
	if s.path == "" {
		return fmt.Errorf("no path set for user store")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read user file: %w", err)
	}
	users, err := parseUsers(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Users = users
	s.mu.Unlock()
	return nil
}

// AddUser creates an enabled account.
func (s *UserStore) AddUser(username, password, annotation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = NormalizeEmail(username)
	if err := CheckEmailDomain(username, s.domain); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	if s.Users == nil {
		s.Users = make(map[string]*User)
	}
	if _, exists := s.Users[username]; exists {
		return fmt.Errorf("user '%s' already exists", username)
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.Users[username] = &User{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		Enabled:      true,
		Annotation:   annotation,
	}
	return nil
}

// UpdateUser changes the password and/or annotation; empty values are kept.
func (s *UserStore) UpdateUser(username, newPassword, newAnnotation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	if newPassword != "" {
		passwordHash, err := HashPassword(newPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = passwordHash
	}
	if newAnnotation != "" {
		user.Annotation = newAnnotation
	}
	return nil
}

// RemoveUser deletes an account and ends its sessions.
func (s *UserStore) RemoveUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	delete(s.Users, user.Username)
	s.endSessions(user.Username)
	return nil
}

// EnableUser re-enables an account and clears its failed attempts.
func (s *UserStore) EnableUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	user.Enabled = true
	user.FailedAttempts = 0
	return nil
}

// DisableUser disables an account and ends its sessions.
func (s *UserStore) DisableUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	user.Enabled = false
	s.endSessions(user.Username)
	return nil
}

// AuthenticateUser checks credentials and opens a session. When
// maxFailedAttempts is positive the account is disabled after that many
// consecutive bad passwords.
func (s *UserStore) AuthenticateUser(username, password string, maxFailedAttempts int) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = NormalizeEmail(username)
	if err := CheckEmailDomain(username, s.domain); err != nil {
		return "", time.Time{}, err
	}
	user, exists := s.Users[username]
	if !exists {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if !user.Enabled {
		return "", time.Time{}, ErrAccountDisabled
	}
	if err := VerifyPassword(password, user.PasswordHash); err != nil {
		user.FailedAttempts++
		if maxFailedAttempts > 0 && user.FailedAttempts >= maxFailedAttempts {
			user.Enabled = false
		}
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	expires := now.Add(s.ttl)
	if s.sessions == nil {
		s.sessions = make(map[string]session)
	}
	s.sessions[token] = session{username: username, expires: expires}
	user.LastLogin = &now
	user.FailedAttempts = 0
	return token, expires, nil
}

// ValidateSessionToken returns the username owning a live session.
func (s *UserStore) ValidateSessionToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrInvalidSession
	}
	if sess.expires.Before(time.Now()) {
		delete(s.sessions, token)
		return "", ErrSessionExpired
	}
	user, exists := s.Users[sess.username]
	if !exists || !user.Enabled {
		delete(s.sessions, token)
		return "", ErrAccountDisabled
	}
	return sess.username, nil
}

// Logout ends a session. It reports whether the session existed.
func (s *UserStore) Logout(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// GetFailedAttempts returns the consecutive failed logins for a user.
func (s *UserStore) GetFailedAttempts(username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, err := s.lookup(username)
	if err != nil {
		return 0, err
	}
	return user.FailedAttempts, nil
}

// ResetFailedAttempts clears the failed login counter.
func (s *UserStore) ResetFailedAttempts(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	user.FailedAttempts = 0
	return nil
}

// ListUsers returns all accounts ordered by username.
func (s *UserStore) ListUsers() []*UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*UserInfo, 0, len(s.Users))
	for _, user := range s.Users {
		result = append(result, &UserInfo{
			Username:       user.Username,
			CreatedAt:      user.CreatedAt,
			LastLogin:      user.LastLogin,
			Enabled:        user.Enabled,
			Annotation:     user.Annotation,
			FailedAttempts: user.FailedAttempts,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result
}

// GetDefaultUserPath prefers /etc/opf-directory, then the binary's directory.
func GetDefaultUserPath(binaryPath string) string {
	return defaultPath(binaryPath, "opf-directory-users.yaml")
}

// StartWatching reloads accounts whenever the user file changes on disk.
func (s *UserStore) StartWatching() error {
	if s.path == "" {
		return fmt.Errorf("no path set for user store")
	}
	watcher, err := NewFileWatcher(s.path, s.Reload)
	if err != nil {
		return err
	}
	s.watcher = watcher
	s.watcher.Start()
	return nil
}

// StopWatching stops the file watcher.
func (s *UserStore) StopWatching() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}

// lookup requires s.mu.
func (s *UserStore) lookup(username string) (*User, error) {
	user, exists := s.Users[NormalizeEmail(username)]
	if !exists {
		return nil, fmt.Errorf("user '%s' not found", NormalizeEmail(username))
	}
	return user, nil
}

// endSessions requires s.mu held for writing.
func (s *UserStore) endSessions(username string) {
	for token, sess := range s.sessions {
		if sess.username == username {
			delete(s.sessions, token)
		}
	}
}
