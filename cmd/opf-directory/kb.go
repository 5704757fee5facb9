/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base and Scrape Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

const cliScrapeWait = 30 * time.Minute

var kbForce bool

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the company knowledge base",
}

var kbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Build the knowledge base from the documents directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		a := newApp(cfg)
		defer a.close()
		kb, err := a.openKnowledgeBase(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Documents: %s\n", cfg.Knowledgebase.DocumentsPath)
		start := time.Now()
		result, err := kb.Initialize(ctx, kbForce)
		if err != nil {
			return err
		}
		if result.AlreadyInitialized {
			fmt.Fprintf(out, "Already initialized: %d chunks from %d documents (use --force to rebuild)\n",
				result.Chunks, result.Documents)
			return nil
		}
		fmt.Fprintf(out, "Built %d chunks from %d documents in %s\n",
			result.Chunks, result.Documents, time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(out, "  converted: %d, unchanged: %d\n", result.Processed, result.Unchanged)
		if len(result.Failed) > 0 {
			fmt.Fprintf(out, "  failed (%d):\n", len(result.Failed))
			for _, f := range result.Failed {
				fmt.Fprintf(out, "    - %s\n", f)
			}
		}
		return nil
	},
}

var kbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		a := newApp(cfg)
		defer a.close()
		kb, err := a.openKnowledgeBase(ctx)
		if err != nil {
			return err
		}

		s := kb.Status()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Status:    %s\n", s.Status)
		fmt.Fprintf(out, "Documents: %d\n", s.Documents)
		fmt.Fprintf(out, "Chunks:    %d\n", s.Chunks)
		fmt.Fprintf(out, "Path:      %s\n", s.DocumentsPath)
		if s.InitializedAt != nil {
			fmt.Fprintf(out, "Built:     %s\n", s.InitializedAt.Local().Format(time.RFC1123))
		}
		if s.LastError != "" {
			fmt.Fprintf(out, "Error:     %s\n", s.LastError)
		}
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:       "scrape [aus|giz|undp|all]",
	Short:     "Scrape tender sites and store new tenders",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{tenders.KeyAUS, tenders.KeyGIZ, tenders.KeyUNDP, tenders.KeyAll},
	RunE: func(cmd *cobra.Command, args []string) error {
		key := tenders.KeyAll
		if len(args) == 1 {
			key = strings.ToLower(args[0])
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		a := newApp(cfg)
		defer a.close()
		runner, err := a.openRunner(cliScrapeWait)
		if err != nil {
			return err
		}

		summary, err := runner.Run(ctx, key)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if summary.TimedOut {
			return fmt.Errorf("scrape interrupted before it finished")
		}
		fmt.Fprintln(out, summary.Message)
		for _, group := range []struct {
			name string
			list []tenders.Tender
		}{
			{tenders.SourceAUS, summary.AUSTenders},
			{tenders.SourceGIZ, summary.GIZTenders},
			{tenders.SourceUNDP, summary.UNDPTenders},
		} {
			if len(group.list) > 0 {
				fmt.Fprintf(out, "  %s: %d\n", group.name, len(group.list))
			}
		}
		fmt.Fprintf(out, "Saved %d new or updated tender(s)\n", summary.Saved)
		return nil
	},
}

func init() {
	kbInitCmd.Flags().BoolVar(&kbForce, "force", false, "Rebuild even if already initialized")
	kbCmd.AddCommand(kbInitCmd, kbStatusCmd)
}
