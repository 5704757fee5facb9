/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Command Line
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/api"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configFile       string
	logLevel         string
	directoryBackend string
	directorySQLite  string
	appStorePath     string
	llmProvider      string
)

var rootCmd = &cobra.Command{
	Use:   "opf-directory",
	Short: "OPF Community Directory - member search, RFP intake and tender tracking",
	Long: `opf-directory serves the community member directory over HTTP, analyses
RFP documents against the company knowledge base to find members who cover
capability gaps, and scrapes public tender sites for climate-related
opportunities.

Configuration is read from a YAML file, then environment variables
(OPF_*), then command line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		level, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logging.SetLevel(level)
		return nil
	},
}

func init() {
	api.ServerVersion = version
	rootCmd.Version = version

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "opf-directory.yaml", "Path to configuration file")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&directoryBackend, "directory-backend", "", "Member directory backend: postgres or sqlite")
	flags.StringVar(&directorySQLite, "directory-sqlite", "", "SQLite member database (sqlite backend)")
	flags.StringVar(&appStorePath, "app-store", "", "SQLite file holding RFPs, documents and tenders")
	flags.StringVar(&llmProvider, "llm-provider", "", "LLM provider: openai, anthropic or ollama")

	rootCmd.AddCommand(serveCmd, kbCmd, scrapeCmd, searchCmd, shellCmd, tokenCmd, userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies only the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	flags := config.CLIFlags{
		ConfigFileSet:       changed("config"),
		ConfigFile:          configFile,
		DirectoryBackend:    directoryBackend,
		DirectoryBackendSet: changed("directory-backend"),
		DirectorySQLite:     directorySQLite,
		DirectorySQLiteSet:  changed("directory-sqlite"),
		AppStorePath:        appStorePath,
		AppStorePathSet:     changed("app-store"),
		LLMProvider:         llmProvider,
		LLMProviderSet:      changed("llm-provider"),
	}
	if cmd == serveCmd {
		flags.HTTPAddr = httpAddr
		flags.HTTPAddrSet = changed("addr")
		flags.AuthEnabled = !noAuth
		flags.AuthEnabledSet = changed("no-auth")
	}

	cfg, err := config.LoadConfig(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
