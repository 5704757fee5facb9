/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Credential Paths
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"github.com/spf13/cobra"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
)

// credentialPath returns the --file flag when given, otherwise the path
// named in the configuration.
func credentialPath(cmd *cobra.Command, flagValue string, fromConfig func(config.AuthConfig) string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return fromConfig(cfg.HTTP.Auth), nil
}
