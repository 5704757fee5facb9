/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Service Token Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/auth"
)

var (
	tokenFile    string
	tokenNote    string
	tokenExpires string
	tokenID      string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage service tokens for scripts and integrations",
}

var tokenAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a service token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := credentialPath(cmd, tokenFile, tokenFilePath)
		if err != nil {
			return err
		}
		var expiresIn time.Duration
		if tokenExpires != "" && tokenExpires != "never" {
			if expiresIn, err = parseDuration(tokenExpires); err != nil {
				return fmt.Errorf("invalid --expires: %w", err)
			}
		}
		return addToken(cmd.OutOrStdout(), path, tokenID, tokenNote, expiresIn, time.Now())
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List service tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := credentialPath(cmd, tokenFile, tokenFilePath)
		if err != nil {
			return err
		}
		return listTokens(cmd.OutOrStdout(), path)
	},
}

var tokenRemoveCmd = &cobra.Command{
	Use:   "remove <id or hash prefix>",
	Short: "Revoke a service token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := credentialPath(cmd, tokenFile, tokenFilePath)
		if err != nil {
			return err
		}
		return removeToken(cmd.OutOrStdout(), path, args[0])
	},
}

var tokenCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired service tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := credentialPath(cmd, tokenFile, tokenFilePath)
		if err != nil {
			return err
		}
		store, err := auth.LoadTokenStore(path)
		if err != nil {
			return fmt.Errorf("failed to load token file: %w", err)
		}
		removed := store.CleanupExpiredTokens()
		if removed > 0 {
			if err := auth.SaveTokenStore(path, store); err != nil {
				return fmt.Errorf("failed to save token file: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired token(s)\n", removed)
		return nil
	},
}

func init() {
	tokenCmd.PersistentFlags().StringVar(&tokenFile, "file", "", "Token file (default from configuration)")
	tokenAddCmd.Flags().StringVar(&tokenNote, "note", "", "Annotation, e.g. who uses the token")
	tokenAddCmd.Flags().StringVar(&tokenExpires, "expires", "never", "Lifetime such as 12h, 30d, 2w, 1y or never")
	tokenAddCmd.Flags().StringVar(&tokenID, "id", "", "Token identifier (default token-<unix time>)")
	tokenCmd.AddCommand(tokenAddCmd, tokenListCmd, tokenRemoveCmd, tokenCleanupCmd)
}

func addToken(out io.Writer, path, id, note string, expiresIn time.Duration, now time.Time) error {
	store, err := auth.LoadOrInitTokenStore(path)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	hash := auth.HashToken(token)

	var expiresAt *time.Time
	if expiresIn > 0 {
		expiry := now.Add(expiresIn)
		expiresAt = &expiry
	}
	if id == "" {
		id = "token-" + strconv.FormatInt(now.Unix(), 10)
	}

	if err := store.AddToken(id, hash, note, expiresAt); err != nil {
		return err
	}
	if err := auth.SaveTokenStore(path, store); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}

	rule := strings.Repeat("=", 70)
	fmt.Fprintf(out, "%s\nToken created\n%s\n\n", rule, rule)
	fmt.Fprintf(out, "Token:   %s\n", token)
	fmt.Fprintf(out, "ID:      %s\n", id)
	fmt.Fprintf(out, "Hash:    %s...\n", hash[:16])
	if note != "" {
		fmt.Fprintf(out, "Note:    %s\n", note)
	}
	if expiresAt != nil {
		fmt.Fprintf(out, "Expires: %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "Expires: never")
	}
	fmt.Fprintf(out, "\nSave this token now; it cannot be shown again.\n")
	fmt.Fprintf(out, "Send it as: Authorization: Bearer <token>\n%s\n", rule)
	return nil
}

func removeToken(out io.Writer, path, identifier string) error {
	store, err := auth.LoadTokenStore(path)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}
	if !store.RemoveToken(identifier) {
		return fmt.Errorf("token not found: %s", identifier)
	}
	if err := auth.SaveTokenStore(path, store); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}
	fmt.Fprintf(out, "Token removed: %s\n", identifier)
	return nil
}

func listTokens(out io.Writer, path string) error {
	store, err := auth.LoadTokenStore(path)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	tokens := store.ListTokens()
	if len(tokens) == 0 {
		fmt.Fprintln(out, "No tokens found.")
		return nil
	}

	fmt.Fprintf(out, "%-20s %-14s %-18s %-8s %s\n", "ID", "HASH PREFIX", "EXPIRES", "STATUS", "NOTE")
	for _, t := range tokens {
		status := "active"
		if t.Expired {
			status = "expired"
		}
		expires := "never"
		if t.ExpiresAt != nil {
			expires = t.ExpiresAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%-20s %-14s %-18s %-8s %s\n", t.ID, t.HashPrefix, expires, status, truncate(t.Annotation, 30))
	}
	return nil
}

// parseDuration accepts Go durations plus d, w and y suffixes.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	day := 24 * time.Hour
	units := map[byte]time.Duration{'d': day, 'w': 7 * day, 'y': 365 * day}

	var d time.Duration
	if unit, ok := units[lastByte(s)]; ok && len(s) > 1 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d = time.Duration(n) * unit
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid duration %q (use e.g. 12h, 30d, 2w or 1y)", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}

func lastByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
