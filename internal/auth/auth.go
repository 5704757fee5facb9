/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Service Tokens
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package auth guards the HTTP API with service tokens for scripts and
// email/password sessions for staff.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidToken is returned for tokens that match neither a service
	// token nor a live session.
	ErrInvalidToken = errors.New("invalid or unknown token")
	// ErrTokenExpired is returned for service tokens past their expiry.
	ErrTokenExpired = errors.New("token has expired")
)

// Token is a service token as stored on disk. Only the hash is kept.
type Token struct {
	Hash       string     `yaml:"hash"`
	ExpiresAt  *time.Time `yaml:"expires_at"` // nil never expires
	Annotation string     `yaml:"annotation"`
	CreatedAt  time.Time  `yaml:"created_at"`
}

func (t *Token) expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// TokenStore holds service tokens keyed by a short identifier.
type TokenStore struct {
	mu      sync.RWMutex
	Tokens  map[string]*Token `yaml:"tokens"`
	path    string
	watcher *FileWatcher
}

// TokenInfo is the listing view of a token.
type TokenInfo struct {
	ID         string
	HashPrefix string
	ExpiresAt  *time.Time
	Annotation string
	CreatedAt  time.Time
	Expired    bool
}

// GenerateToken returns 32 random bytes, URL-safe base64 encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex SHA256 of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// InitializeTokenStore creates an empty store with no backing file.
func InitializeTokenStore() *TokenStore {
	return &TokenStore{Tokens: make(map[string]*Token)}
}

func parseTokens(data []byte) (map[string]*Token, error) {
	var doc struct {
		Tokens map[string]*Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if doc.Tokens == nil {
		doc.Tokens = make(map[string]*Token)
	}
	return doc.Tokens, nil
}

// LoadTokenStore reads a token file. The path is remembered for Reload and
// StartWatching.
func LoadTokenStore(path string) (*TokenStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tokens, err := parseTokens(data)
	if err != nil {
		return nil, err
	}
	return &TokenStore{Tokens: tokens, path: path}, nil
}

// LoadOrInitTokenStore loads path, or returns an empty store bound to path
// when the file does not exist yet.
func LoadOrInitTokenStore(path string) (*TokenStore, error) {
	store, err := LoadTokenStore(path)
	if errors.Is(err, os.ErrNotExist) {
		store = InitializeTokenStore()
		store.path = path
		return store, nil
	}
	return store, err
}

// Path returns the backing file, if any.
func (s *TokenStore) Path() string {
	return s.path
}

// Reload re-reads the backing file.
func (s *TokenStore) Reload() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}
	tokens, err := parseTokens(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Tokens = tokens
	s.mu.Unlock()
	return nil
}

// SaveTokenStore writes the store to path with owner-only permissions.
func SaveTokenStore(path string, store *TokenStore) error {
	store.mu.RLock()
	data, err := yaml.Marshal(struct {
		Tokens map[string]*Token `yaml:"tokens"`
	}{store.Tokens})
	store.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	return writePrivate(path, data)
}

func writePrivate(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AddToken registers a token hash under id.
func (s *TokenStore) AddToken(id, hash, annotation string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Tokens == nil {
		s.Tokens = make(map[string]*Token)
	}
	if _, exists := s.Tokens[id]; exists {
		return fmt.Errorf("token with ID '%s' already exists", id)
	}
	s.Tokens[id] = &Token{
		Hash:       hash,
		ExpiresAt:  expiresAt,
		Annotation: annotation,
		CreatedAt:  time.Now(),
	}
	return nil
}

// RemoveToken deletes a token by id, or by a hash prefix of at least eight
// characters.
func (s *TokenStore) RemoveToken(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Tokens[identifier]; exists {
		delete(s.Tokens, identifier)
		return true
	}
	if len(identifier) < 8 {
		return false
	}
	for id, token := range s.Tokens {
		if strings.HasPrefix(token.Hash, identifier) {
			delete(s.Tokens, id)
			return true
		}
	}
	return false
}

// ValidateToken returns the id of the token matching the presented value.
func (s *TokenStore) ValidateToken(token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := HashToken(token)
	for id, stored := range s.Tokens {
		if stored.Hash != hash {
			continue
		}
		if stored.expired(time.Now()) {
			return "", ErrTokenExpired
		}
		return id, nil
	}
	return "", ErrInvalidToken
}

// ListTokens returns every token ordered by id.
func (s *TokenStore) ListTokens() []*TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	result := make([]*TokenInfo, 0, len(s.Tokens))
	for id, token := range s.Tokens {
		prefix := token.Hash
		if len(prefix) > 12 {
			prefix = prefix[:12]
		}
		result = append(result, &TokenInfo{
			ID:         id,
			HashPrefix: prefix,
			ExpiresAt:  token.ExpiresAt,
			Annotation: token.Annotation,
			CreatedAt:  token.CreatedAt,
			Expired:    token.expired(now),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// CleanupExpiredTokens drops expired tokens and returns how many went.
func (s *TokenStore) CleanupExpiredTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, token := range s.Tokens {
		if token.expired(now) {
			delete(s.Tokens, id)
			removed++
		}
	}
	return removed
}

// GetDefaultTokenPath prefers /etc/opf-directory, then the binary's directory.
func GetDefaultTokenPath(binaryPath string) string {
	return defaultPath(binaryPath, "opf-directory-tokens.yaml")
}

func defaultPath(binaryPath, name string) string {
	systemPath := filepath.Join("/etc/opf-directory", name)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return filepath.Join(filepath.Dir(binaryPath), name)
}

// StartWatching reloads the store whenever its file changes on disk.
func (s *TokenStore) StartWatching() error {
	if s.path == "" {
		return fmt.Errorf("no path set for token store")
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
func (s *TokenStore) StopWatching() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}
