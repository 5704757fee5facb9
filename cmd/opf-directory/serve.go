/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - HTTP Server Command
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/api"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/auth"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

var (
	httpAddr string
	noAuth   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().BoolVar(&noAuth, "no-auth", false, "Disable authentication (development only)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a := newApp(cfg)
	defer a.close()

	dir, err := a.openDirectory(ctx)
	if err != nil {
		return err
	}
	intake, err := a.openPipeline(ctx)
	if err != nil {
		return err
	}
	runner, err := a.openRunner(0)
	if err != nil {
		return err
	}

	if cfg.Scraper.Enabled {
		scheduler := tenders.NewScheduler(runner, cfg.Scraper.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	deps := api.Deps{
		Directory:        dir,
		RFPs:             a.rfps,
		Intake:           intake,
		KB:               a.kb,
		Tenders:          a.tenders,
		Scrapes:          runner,
		AuthEnabled:      cfg.HTTP.Auth.Enabled,
		MaxLoginAttempts: cfg.HTTP.Auth.MaxFailedAttempts,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		MaxUploadBytes:   int64(cfg.HTTP.MaxUploadMB) << 20,
	}
	if cfg.HTTP.Auth.Enabled {
		tokens, users, err := openCredentials(cfg.HTTP.Auth)
		if err != nil {
			return err
		}
		defer tokens.StopWatching()
		defer users.StopWatching()
		deps.Tokens, deps.Users = tokens, users
	} else {
		logging.Warn("authentication is disabled; every endpoint is public")
	}

	logging.Info("starting server", "version", version, "address", cfg.HTTP.Address,
		"tls", cfg.HTTP.TLS.Enabled, "auth", cfg.HTTP.Auth.Enabled)
	return api.Run(ctx, cfg.HTTP, api.NewRouter(deps))
}

// openCredentials loads both credential files, creating empty stores for
// files that do not exist yet, and reloads them when they change on disk.
func openCredentials(cfg config.AuthConfig) (*auth.TokenStore, *auth.UserStore, error) {
	tokens, err := auth.LoadOrInitTokenStore(tokenFilePath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load token file: %w", err)
	}
	users, err := auth.LoadOrInitUserStore(userFilePath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user file: %w", err)
	}
	users.SetPolicy(cfg.AllowedEmailDomain, cfg.SessionTTL)

	if err := tokens.StartWatching(); err != nil {
		logging.Warn("token file will not be reloaded on change", "file", tokens.Path(), "error", err.Error())
	}
	if err := users.StartWatching(); err != nil {
		logging.Warn("user file will not be reloaded on change", "file", users.Path(), "error", err.Error())
	}

	logging.Info("credentials loaded", "tokens", len(tokens.ListTokens()), "users", len(users.ListUsers()),
		"domain", cfg.AllowedEmailDomain)
	return tokens, users, nil
}

func tokenFilePath(cfg config.AuthConfig) string {
	if cfg.TokenFile != "" {
		return cfg.TokenFile
	}
	exe, _ := os.Executable()
	return auth.GetDefaultTokenPath(exe)
}

func userFilePath(cfg config.AuthConfig) string {
	if cfg.UserFile != "" {
		return cfg.UserFile
	}
	exe, _ := os.Executable()
	return auth.GetDefaultUserPath(exe)
}
