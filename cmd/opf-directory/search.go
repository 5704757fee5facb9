/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Search and Shell Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/console"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

var (
	searchOr      bool
	searchFilters []string
	searchJSON    bool
	searchLimit   int
	noColor       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [keywords]",
	Short: "Search the member directory",
	Long: `Search the member directory. Separate keywords with commas; by default a
member must match every keyword. Filters take the form category=value and
may be repeated; categories are source, experience, sustainability_experience,
competencies and sectors.`,
	Example: `  opf-directory search "carbon accounting, solar" --filter sectors=Energy
  opf-directory search esg --or --json`,
	RunE: runSearch,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive directory search",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	searchCmd.Flags().BoolVar(&searchOr, "or", false, "Match any keyword instead of all")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, "Filter as category=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print results as JSON")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Rows shown in table output")
	searchCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	shellCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// parseFilters turns category=value pairs into search filters. Values for
// the same category accumulate.
func parseFilters(pairs []string) (predicate.Filters, error) {
	known := map[registry.FilterCategory]bool{}
	for _, b := range registry.DefaultFilterBindings() {
		known[b.Category] = true
	}

	filters := predicate.Filters{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name, value = strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid filter %q (expected category=value)", pair)
		}
		cat := registry.FilterCategory(name)
		if !known[cat] {
			return nil, fmt.Errorf("unknown filter category %q", name)
		}
		filters[cat] = append(filters[cat], value)
	}
	return filters, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}
	mode := predicate.ModeAND
	if searchOr {
		mode = predicate.ModeOR
	}
	keyword := strings.TrimSpace(strings.Join(args, " "))

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

	members, err := dir.Search(ctx, directory.SearchRequest{Keyword: keyword, Filters: filters}, mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		if members == nil {
			members = []directory.Member{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(members)
	}
	ui := console.NewUI(out, noColor, term.IsTerminal(int(os.Stdout.Fd())))
	ui.PrintMarkdown(console.RenderMembers(members, keyword, mode, searchLimit))
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
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
	if err := a.openAppStore(); err != nil {
		return err
	}
	kb, err := a.openKnowledgeBase(ctx)
	if err != nil {
		return err
	}

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".opf-directory-history")
	}
	c := console.New(dir, a.tenders, kb, console.Config{
		HistoryFile:    history,
		NoColor:        noColor,
		RenderMarkdown: true,
	}, cmd.OutOrStdout())
	return c.Run(ctx)
}
