/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Configuration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Directory     DirectoryConfig     `yaml:"directory"`
	AppStore      AppStoreConfig      `yaml:"app_store"`
	LLM           LLMConfig           `yaml:"llm"`
	Knowledgebase KnowledgebaseConfig `yaml:"knowledgebase"`
	Scraper       ScraperConfig       `yaml:"scraper"`
	Cache         CacheConfig         `yaml:"cache"`
}

// HTTPConfig holds HTTP/HTTPS server settings
type HTTPConfig struct {
	Address     string     `yaml:"address"`
	TLS         TLSConfig  `yaml:"tls"`
	Auth        AuthConfig `yaml:"auth"`
	CORSOrigins []string   `yaml:"cors_origins"`
	MaxUploadMB int        `yaml:"max_upload_mb"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Enabled            bool          `yaml:"enabled"`              // Whether authentication is required
	TokenFile          string        `yaml:"token_file"`           // Path to service token file
	UserFile           string        `yaml:"user_file"`            // Path to user file
	AllowedEmailDomain string        `yaml:"allowed_email_domain"` // Only users under this domain may log in
	SessionTTL         time.Duration `yaml:"session_ttl"`          // Lifetime of a login session
	MaxFailedAttempts  int           `yaml:"max_failed_attempts"`  // Lock an account after this many bad passwords (0 = never)
}

// TLSConfig holds TLS/HTTPS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DirectoryConfig selects and configures the member directory store
type DirectoryConfig struct {
	Backend    string         `yaml:"backend"`     // "postgres" or "sqlite"
	Table      string         `yaml:"table"`       // Member table name (default: final)
	SQLitePath string         `yaml:"sqlite_path"` // Used when backend is sqlite
	Postgres   DatabaseConfig `yaml:"postgres"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL      string `yaml:"url"`      // Full connection URL; overrides the fields below
	Host     string `yaml:"host"`     // Database host (default: localhost)
	Port     int    `yaml:"port"`     // Database port (default: 5432)
	Database string `yaml:"database"` // Database name
	User     string `yaml:"user"`     // Database user
	Password string `yaml:"password"` // Database password (optional, .pgpass is consulted otherwise)
	SSLMode  string `yaml:"sslmode"`  // SSL mode: disable, require, verify-ca, verify-full (default: prefer)

	// Connection pool settings
	PoolMaxConns        int    `yaml:"pool_max_conns"`          // Maximum number of connections (default: 4)
	PoolMinConns        int    `yaml:"pool_min_conns"`          // Minimum number of connections (default: 0)
	PoolMaxConnIdleTime string `yaml:"pool_max_conn_idle_time"` // Max idle time before a connection is closed (default: 30m)
}

// AppStoreConfig locates the SQLite file holding RFPs, documents and tenders
type AppStoreConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig holds settings for the analysis, keyword and ranking collaborators
type LLMConfig struct {
	Provider            string        `yaml:"provider"`               // "openai", "anthropic", or "ollama"
	Model               string        `yaml:"model"`                  // Provider-specific model name
	FallbackModel       string        `yaml:"fallback_model"`         // Used once when the context is too long
	AnthropicAPIKey     string        `yaml:"anthropic_api_key"`      // API key for Anthropic (prefer api_key_file or env var)
	AnthropicAPIKeyFile string        `yaml:"anthropic_api_key_file"` // Path to file containing Anthropic API key
	OpenAIAPIKey        string        `yaml:"openai_api_key"`         // API key for OpenAI (prefer api_key_file or env var)
	OpenAIAPIKeyFile    string        `yaml:"openai_api_key_file"`    // Path to file containing OpenAI API key
	OpenAIBaseURL       string        `yaml:"openai_base_url"`        // Optional OpenAI-compatible endpoint
	AnthropicBaseURL    string        `yaml:"anthropic_base_url"`     // Default: https://api.anthropic.com/v1
	OllamaURL           string        `yaml:"ollama_url"`             // URL for Ollama service (default: http://localhost:11434)
	Timeout             time.Duration `yaml:"timeout"`                // Per-call timeout
}

// KnowledgebaseConfig holds company knowledge base settings
type KnowledgebaseConfig struct {
	DocumentsPath string `yaml:"documents_path"` // Directory scanned for company documents
	DatabasePath  string `yaml:"database_path"`  // SQLite file holding the chunk store
	ChunkSize     int    `yaml:"chunk_size"`     // Characters per chunk (default: 1000)
	ChunkOverlap  int    `yaml:"chunk_overlap"`  // Characters shared between chunks (default: 200)
	TopK          int    `yaml:"top_k"`          // Chunks retrieved per analysis (default: 8)
	Workers       int    `yaml:"workers"`        // Concurrent document conversions
}

// ScraperConfig holds tender scraping settings
type ScraperConfig struct {
	Enabled        bool          `yaml:"enabled"`         // Run the scheduled scraper with the server
	Schedule       string        `yaml:"schedule"`        // Cron spec (default: @every 24h)
	MaxPages       int           `yaml:"max_pages"`       // Pages fetched per source (default: 2)
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-page timeout (default: 15s)
	PageDelay      time.Duration `yaml:"page_delay"`      // Pause between pages (default: 500ms)
	WaitTimeout    time.Duration `yaml:"wait_timeout"`    // How long an API request waits for a scrape (default: 45s)
	UserAgent      string        `yaml:"user_agent"`
}

// CacheConfig holds collaborator response cache settings
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"` // Optional; in-process cache only when empty
	TTL      time.Duration `yaml:"ttl"`
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	HTTPAddr    string
	HTTPAddrSet bool

	AuthEnabled    bool
	AuthEnabledSet bool

	DirectoryBackend    string
	DirectoryBackendSet bool
	DirectorySQLite     string
	DirectorySQLiteSet  bool

	AppStorePath    string
	AppStorePathSet bool

	LLMProvider    string
	LLMProviderSet bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			// Only an explicitly requested file has to exist
			if cliFlags.ConfigFileSet || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
			TLS: TLSConfig{
				CertFile: "./server.crt",
				KeyFile:  "./server.key",
			},
			Auth: AuthConfig{
				Enabled:            true,
				TokenFile:          "opf-tokens.yaml",
				UserFile:           "opf-users.yaml",
				AllowedEmailDomain: "opf.degree",
				SessionTTL:         12 * time.Hour,
				MaxFailedAttempts:  5,
			},
			MaxUploadMB: 16,
		},
		Directory: DirectoryConfig{
			Backend:    "postgres",
			Table:      "final",
			SQLitePath: "opfa_community.db",
			Postgres: DatabaseConfig{
				Host:                "localhost",
				Port:                5432,
				Database:            "opf_community_local",
				SSLMode:             "prefer",
				PoolMaxConns:        4,
				PoolMinConns:        0,
				PoolMaxConnIdleTime: "30m",
			},
		},
		AppStore: AppStoreConfig{
			Path: "opf-app.db",
		},
		LLM: LLMConfig{
			Provider:         "openai",
			Model:            "gpt-4o-mini",
			FallbackModel:    "gpt-3.5-turbo",
			AnthropicBaseURL: "https://api.anthropic.com/v1",
			OllamaURL:        "http://localhost:11434",
			Timeout:          120 * time.Second,
		},
		Knowledgebase: KnowledgebaseConfig{
			DocumentsPath: "company_docs",
			DatabasePath:  "opf-kb.db",
			ChunkSize:     1000,
			ChunkOverlap:  200,
			TopK:          8,
			Workers:       4,
		},
		Scraper: ScraperConfig{
			Enabled:        false,
			Schedule:       "@every 24h",
			MaxPages:       2,
			RequestTimeout: 15 * time.Second,
			PageDelay:      500 * time.Millisecond,
			WaitTimeout:    45 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
	}
}

// loadConfigFile decodes a YAML file over cfg; keys absent from the file keep
// their current values
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback sets a string config value from an environment variable,
// checking multiple environment variable names in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setBoolFromEnv sets a boolean config value from an environment variable if it exists
// Accepts "true", "1", or "yes" as true values
func setBoolFromEnv(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val == "true" || val == "1" || val == "yes"
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		_, err := fmt.Sscanf(val, "%d", &intVal)
		if err == nil {
			*dest = intVal
		}
	}
}

// setDurationFromEnv sets a duration config value from an environment variable if it parses
func setDurationFromEnv(dest *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dest = d
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables if they exist
// Project variables use the OPF_ prefix; provider keys and DATABASE_URL keep their usual names
func applyEnvironmentVariables(cfg *Config) {
	// HTTP
	setStringFromEnvWithFallback(&cfg.HTTP.Address, "OPF_HTTP_ADDRESS")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("OPF_HTTP_ADDRESS") == "" {
		cfg.HTTP.Address = ":" + port
	}
	setBoolFromEnv(&cfg.HTTP.TLS.Enabled, "OPF_TLS_ENABLED")
	setStringFromEnv(&cfg.HTTP.TLS.CertFile, "OPF_TLS_CERT_FILE")
	setStringFromEnv(&cfg.HTTP.TLS.KeyFile, "OPF_TLS_KEY_FILE")
	setIntFromEnv(&cfg.HTTP.MaxUploadMB, "OPF_MAX_UPLOAD_MB")
	if origins := os.Getenv("OPF_CORS_ORIGINS"); origins != "" {
		cfg.HTTP.CORSOrigins = splitList(origins)
	}

	// Auth
	setBoolFromEnv(&cfg.HTTP.Auth.Enabled, "OPF_AUTH_ENABLED")
	setStringFromEnv(&cfg.HTTP.Auth.TokenFile, "OPF_AUTH_TOKEN_FILE")
	setStringFromEnv(&cfg.HTTP.Auth.UserFile, "OPF_AUTH_USER_FILE")
	setStringFromEnv(&cfg.HTTP.Auth.AllowedEmailDomain, "OPF_AUTH_EMAIL_DOMAIN")
	setDurationFromEnv(&cfg.HTTP.Auth.SessionTTL, "OPF_AUTH_SESSION_TTL")
	setIntFromEnv(&cfg.HTTP.Auth.MaxFailedAttempts, "OPF_AUTH_MAX_FAILED_ATTEMPTS")

	// Directory
	setStringFromEnv(&cfg.Directory.Backend, "OPF_DIRECTORY_BACKEND")
	setStringFromEnv(&cfg.Directory.Table, "OPF_DIRECTORY_TABLE")
	setStringFromEnv(&cfg.Directory.SQLitePath, "OPF_DIRECTORY_SQLITE_PATH")
	pg := &cfg.Directory.Postgres
	setStringFromEnv(&pg.URL, "DATABASE_URL")
	setStringFromEnvWithFallback(&pg.Host, "OPF_DB_HOST", "PGHOST")
	setIntFromEnv(&pg.Port, "PGPORT")
	setIntFromEnv(&pg.Port, "OPF_DB_PORT")
	setStringFromEnvWithFallback(&pg.Database, "OPF_DB_NAME", "PGDATABASE")
	setStringFromEnvWithFallback(&pg.User, "OPF_DB_USER", "PGUSER")
	setStringFromEnvWithFallback(&pg.Password, "OPF_DB_PASSWORD", "PGPASSWORD")
	setStringFromEnvWithFallback(&pg.SSLMode, "OPF_DB_SSLMODE", "PGSSLMODE")

	// App store
	setStringFromEnv(&cfg.AppStore.Path, "OPF_APP_STORE_PATH")

	// LLM
	setStringFromEnv(&cfg.LLM.Provider, "OPF_LLM_PROVIDER")
	setStringFromEnv(&cfg.LLM.Model, "OPF_LLM_MODEL")
	setStringFromEnv(&cfg.LLM.FallbackModel, "OPF_LLM_FALLBACK_MODEL")
	// API key loading priority: env vars > api_key_file > direct config value
	setStringFromEnvWithFallback(&cfg.LLM.AnthropicAPIKey, "OPF_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setStringFromEnvWithFallback(&cfg.LLM.OpenAIAPIKey, "OPF_OPENAI_API_KEY", "OPENAI_API_KEY")
	if cfg.LLM.AnthropicAPIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.LLM.AnthropicAPIKeyFile); err == nil && key != "" && os.Getenv("ANTHROPIC_API_KEY") == "" && os.Getenv("OPF_ANTHROPIC_API_KEY") == "" {
			cfg.LLM.AnthropicAPIKey = key
		}
	}
	if cfg.LLM.OpenAIAPIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.LLM.OpenAIAPIKeyFile); err == nil && key != "" && os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("OPF_OPENAI_API_KEY") == "" {
			cfg.LLM.OpenAIAPIKey = key
		}
	}
	setStringFromEnv(&cfg.LLM.OpenAIBaseURL, "OPF_OPENAI_BASE_URL")
	setStringFromEnv(&cfg.LLM.OllamaURL, "OPF_OLLAMA_URL")
	setDurationFromEnv(&cfg.LLM.Timeout, "OPF_LLM_TIMEOUT")

	// Knowledge base
	setStringFromEnv(&cfg.Knowledgebase.DocumentsPath, "OPF_KB_DOCUMENTS_PATH")
	setStringFromEnv(&cfg.Knowledgebase.DatabasePath, "OPF_KB_DATABASE_PATH")
	setIntFromEnv(&cfg.Knowledgebase.ChunkSize, "OPF_KB_CHUNK_SIZE")
	setIntFromEnv(&cfg.Knowledgebase.ChunkOverlap, "OPF_KB_CHUNK_OVERLAP")
	setIntFromEnv(&cfg.Knowledgebase.TopK, "OPF_KB_TOP_K")

	// Scraper
	setBoolFromEnv(&cfg.Scraper.Enabled, "OPF_SCRAPER_ENABLED")
	setStringFromEnv(&cfg.Scraper.Schedule, "OPF_SCRAPER_SCHEDULE")
	setIntFromEnv(&cfg.Scraper.MaxPages, "OPF_SCRAPER_MAX_PAGES")
	setDurationFromEnv(&cfg.Scraper.WaitTimeout, "OPF_SCRAPER_WAIT_TIMEOUT")

	// Cache
	setStringFromEnvWithFallback(&cfg.Cache.RedisURL, "OPF_REDIS_URL", "REDIS_URL")
	setDurationFromEnv(&cfg.Cache.TTL, "OPF_CACHE_TTL")
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}
	if flags.AuthEnabledSet {
		cfg.HTTP.Auth.Enabled = flags.AuthEnabled
	}
	if flags.DirectoryBackendSet {
		cfg.Directory.Backend = flags.DirectoryBackend
	}
	if flags.DirectorySQLiteSet {
		cfg.Directory.SQLitePath = flags.DirectorySQLite
	}
	if flags.AppStorePathSet {
		cfg.AppStore.Path = flags.AppStorePath
	}
	if flags.LLMProviderSet {
		cfg.LLM.Provider = flags.LLMProvider
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *Config) error {
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.CertFile == "" {
			return fmt.Errorf("TLS certificate file is required when HTTPS is enabled")
		}
		if cfg.HTTP.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when HTTPS is enabled")
		}
	}

	if cfg.HTTP.Auth.Enabled && cfg.HTTP.Auth.TokenFile == "" && cfg.HTTP.Auth.UserFile == "" {
		return fmt.Errorf("a token file or user file is required when auth is enabled (use --no-auth to disable)")
	}

	switch cfg.Directory.Backend {
	case "postgres":
		if cfg.Directory.Postgres.URL == "" && cfg.Directory.Postgres.Host == "" {
			return fmt.Errorf("postgres directory backend needs DATABASE_URL or a host")
		}
	case "sqlite":
		if cfg.Directory.SQLitePath == "" {
			return fmt.Errorf("sqlite directory backend needs sqlite_path")
		}
	default:
		return fmt.Errorf("unknown directory backend %q (expected postgres or sqlite)", cfg.Directory.Backend)
	}
	if strings.TrimSpace(cfg.Directory.Table) == "" {
		return fmt.Errorf("directory table name must not be empty")
	}

	switch cfg.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown LLM provider %q (expected openai, anthropic or ollama)", cfg.LLM.Provider)
	}

	kb := cfg.Knowledgebase
	if kb.ChunkSize <= 0 {
		return fmt.Errorf("knowledgebase chunk_size must be positive")
	}
	if kb.ChunkOverlap < 0 || kb.ChunkOverlap >= kb.ChunkSize {
		return fmt.Errorf("knowledgebase chunk_overlap must be between 0 and chunk_size")
	}
	if kb.TopK <= 0 {
		return fmt.Errorf("knowledgebase top_k must be positive")
	}

	if cfg.Scraper.WaitTimeout < time.Second || cfg.Scraper.WaitTimeout > 5*time.Minute {
		return fmt.Errorf("scraper wait_timeout must be between 1s and 5m")
	}
	if cfg.Scraper.MaxPages <= 0 {
		return fmt.Errorf("scraper max_pages must be positive")
	}

	return nil
}

// readAPIKeyFromFile reads an API key from a file
// Returns the key with whitespace trimmed, or empty string if file doesn't exist or is empty
func readAPIKeyFromFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	// Expand tilde to home directory
	if filePath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, filePath[1:])
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// GetDefaultConfigPath returns the default config file path
// Searches /etc/opf/ first, then the binary directory
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/opf/opf-directory.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "opf-directory.yaml")
}

// BuildConnectionString creates a PostgreSQL connection string from DatabaseConfig
// If password is not set, pgx will automatically look it up from .pgpass file
func (cfg *DatabaseConfig) BuildConnectionString() string {
	if cfg.URL != "" {
		// Hosting platforms hand out postgres:// and postgresql:// interchangeably
		return strings.Replace(cfg.URL, "postgresql://", "postgres://", 1)
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	if cfg.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(cfg.SSLMode)
	}

	return u.String()
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
