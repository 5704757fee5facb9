/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - User Account Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/auth"
)

var (
	userFile string
	userNote string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage staff accounts that sign in with email and password",
}

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create an account; the password is prompted for",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, policy, err := userStorePath(cmd)
		if err != nil {
			return err
		}
		password, err := promptNewPassword(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return addUser(cmd.OutOrStdout(), path, policy, args[0], password, userNote)
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <email>",
	Short: "Change an account's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _, err := userStorePath(cmd)
		if err != nil {
			return err
		}
		password, err := promptNewPassword(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return modifyUser(cmd.OutOrStdout(), path, args[0], "Password updated", func(s *auth.UserStore, name string) error {
			return s.UpdateUser(name, password, "")
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _, err := userStorePath(cmd)
		if err != nil {
			return err
		}
		return listUsers(cmd.OutOrStdout(), path)
	},
}

func userAction(use, short, done string, fn func(*auth.UserStore, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := userStorePath(cmd)
			if err != nil {
				return err
			}
			return modifyUser(cmd.OutOrStdout(), path, args[0], done, fn)
		},
	}
}

func init() {
	userCmd.PersistentFlags().StringVar(&userFile, "file", "", "User file (default from configuration)")
	userAddCmd.Flags().StringVar(&userNote, "note", "", "Annotation, e.g. the person's team")
	userCmd.AddCommand(
		userAddCmd,
		userPasswdCmd,
		userListCmd,
		userAction("remove", "Delete an account", "User removed", (*auth.UserStore).RemoveUser),
		userAction("disable", "Disable an account and end its sessions", "User disabled", (*auth.UserStore).DisableUser),
		userAction("enable", "Re-enable an account and clear failed logins", "User enabled", (*auth.UserStore).EnableUser),
	)
}

// userPolicy is the sign-in policy applied when accounts are created.
type userPolicy struct {
	domain string
	ttl    time.Duration
}

func userStorePath(cmd *cobra.Command) (string, userPolicy, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", userPolicy{}, err
	}
	policy := userPolicy{domain: cfg.HTTP.Auth.AllowedEmailDomain, ttl: cfg.HTTP.Auth.SessionTTL}
	if userFile != "" {
		return userFile, policy, nil
	}
	return userFilePath(cfg.HTTP.Auth), policy, nil
}

func addUser(out io.Writer, path string, policy userPolicy, email, password, note string) error {
	store, err := auth.LoadOrInitUserStore(path)
	if err != nil {
		return fmt.Errorf("failed to load user file: %w", err)
	}
	store.SetPolicy(policy.domain, policy.ttl)

	if err := store.AddUser(email, password, note); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	if err := auth.SaveUserStore(path, store); err != nil {
		return fmt.Errorf("failed to save user file: %w", err)
	}
	fmt.Fprintf(out, "User created: %s\n", auth.NormalizeEmail(email))
	return nil
}

func modifyUser(out io.Writer, path, email, done string, fn func(*auth.UserStore, string) error) error {
	store, err := auth.LoadUserStore(path)
	if err != nil {
		return fmt.Errorf("failed to load user file: %w", err)
	}
	if err := fn(store, email); err != nil {
		return err
	}
	if err := auth.SaveUserStore(path, store); err != nil {
		return fmt.Errorf("failed to save user file: %w", err)
	}
	fmt.Fprintf(out, "%s: %s\n", done, auth.NormalizeEmail(email))
	return nil
}

func listUsers(out io.Writer, path string) error {
	store, err := auth.LoadUserStore(path)
	if err != nil {
		return fmt.Errorf("failed to load user file: %w", err)
	}

	users := store.ListUsers()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	fmt.Fprintf(out, "%-32s %-9s %-18s %-7s %s\n", "EMAIL", "STATUS", "LAST LOGIN", "FAILED", "NOTE")
	for _, u := range users {
		status := "enabled"
		if !u.Enabled {
			status = "disabled"
		}
		last := "never"
		if u.LastLogin != nil {
			last = u.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%-32s %-9s %-18s %-7d %s\n", u.Username, status, last, u.FailedAttempts, truncate(u.Annotation, 30))
	}
	return nil
}

// promptNewPassword reads a password twice without echo. Without a terminal
// it reads one line from stdin so accounts can be created from scripts.
func promptNewPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return requirePassword(strings.TrimRight(line, "\r\n"))
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return requirePassword(string(first))
}

func requirePassword(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("password is required")
	}
	return p, nil
}
