/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Interactive Console
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package console is an interactive terminal for searching the member
// directory and browsing tenders.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/knowledgebase"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

const defaultLimit = 25

// Directory is the member search surface used by the console.
type Directory interface {
	Search(ctx context.Context, req directory.SearchRequest, mode predicate.Mode) ([]directory.Member, error)
	Stats(ctx context.Context) (directory.Stats, error)
	GetByEmail(ctx context.Context, email string) (directory.Member, error)
	FilterOptions(ctx context.Context) (map[registry.FilterCategory][]string, error)
}

// Tenders lists stored tenders.
type Tenders interface {
	List(ctx context.Context, f tenders.Filter) ([]tenders.Tender, error)
}

// KnowledgeBase reports corpus status.
type KnowledgeBase interface {
	Status() knowledgebase.Status
}

// Config holds console preferences.
type Config struct {
	HistoryFile    string
	NoColor        bool
	RenderMarkdown bool
	Limit          int // rows shown per search; 0 uses the default
}

// Console holds the session state: mode, filters and row limit. Tenders and
// KB may be nil.
type Console struct {
	dir     Directory
	tenders Tenders
	kb      KnowledgeBase
	ui      *UI
	cfg     Config

	mode    predicate.Mode
	filters predicate.Filters
	limit   int
}

// New returns a console writing to out.
func New(dir Directory, tenderStore Tenders, kb KnowledgeBase, cfg Config, out io.Writer) *Console {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Console{
		dir:     dir,
		tenders: tenderStore,
		kb:      kb,
		ui:      NewUI(out, cfg.NoColor, cfg.RenderMarkdown),
		cfg:     cfg,
		mode:    predicate.ModeAND,
		filters: predicate.Filters{},
		limit:   limit,
	}
}

func (c *Console) prompt() string {
	return c.ui.Prompt(c.mode.String(), len(c.filters))
}

// Run reads commands until quit, EOF, interrupt or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            c.prompt(),
		HistoryFile:       c.cfg.HistoryFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	c.ui.PrintWelcome()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				c.ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}
		if c.Execute(ctx, line) {
			c.ui.PrintSystemMessage("Goodbye!")
			return nil
		}
		rl.SetPrompt(c.prompt())
	}
}

// Execute handles one input line and reports whether the session should
// end. Plain text is a keyword search.
func (c *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return false
	case "quit", "exit":
		return true
	}

	cmd := ParseSlashCommand(line)
	if cmd == nil {
		c.search(ctx, line)
		return false
	}

	switch cmd.Command {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		c.ui.PrintMarkdown(helpText)
	case "all":
		c.search(ctx, "")
	case "mode":
		c.setMode(cmd.Args)
	case "filter":
		c.setFilter(cmd.Args)
	case "clear":
		c.filters = predicate.Filters{}
		c.ui.PrintSystemMessage("Filters cleared")
	case "options":
		c.options(ctx, cmd.Args)
	case "limit":
		c.setLimit(cmd.Args)
	case "stats":
		c.stats(ctx)
	case "member":
		c.member(ctx, cmd.Args)
	case "tenders":
		c.listTenders(ctx, cmd.Args)
	case "kb":
		c.kbStatus()
	default:
		c.ui.PrintError(fmt.Sprintf("Unknown command: /%s (type /help for available commands)", cmd.Command))
	}
	return false
}

const helpText = `## Commands

| Command | Description |
|---|---|
| _keywords_ | Search; separate keywords with commas |
| /all | List every member matching the filters |
| /mode and\|or | How keywords combine |
| /filter _category_ _value_... | Set filter values; no values removes the category |
| /filter | Show active filters |
| /clear | Remove all filters |
| /options [_category_] | Show filter values in use |
| /limit _n_ | Rows shown per search |
| /member _email_ | Show one member |
| /stats | Directory statistics |
| /tenders [aus\|giz\|undp] | Unprocessed tenders |
| /kb | Knowledge base status |
| /quit | Leave |
`

func (c *Console) fail(err error) {
	c.ui.PrintError(apperr.Message(err))
}

func (c *Console) search(ctx context.Context, keyword string) {
	members, err := c.dir.Search(ctx, directory.SearchRequest{Keyword: keyword, Filters: c.filters}, c.mode)
	if err != nil {
		c.fail(err)
		return
	}
	c.ui.PrintMarkdown(RenderMembers(members, keyword, c.mode, c.limit))
}

func (c *Console) setMode(args []string) {
	if len(args) == 0 {
		c.ui.PrintSystemMessage("Mode is " + strings.ToUpper(c.mode.String()))
		return
	}
	mode, err := predicate.ParseMode(args[0])
	if err != nil {
		c.ui.PrintError(err.Error())
		return
	}
	c.mode = mode
	c.ui.PrintSystemMessage("Mode set to " + strings.ToUpper(mode.String()))
}

var categories = []registry.FilterCategory{
	registry.FilterSource,
	registry.FilterExperience,
	registry.FilterSustainabilityExperience,
	registry.FilterCompetencies,
	registry.FilterSectors,
}

func categoryOf(name string) registry.FilterCategory {
	return registry.FilterCategory(strings.ToLower(strings.TrimSpace(name)))
}

func knownCategory(cat registry.FilterCategory) bool {
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}

func categoryNames() string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func (c *Console) setFilter(args []string) {
	if len(args) == 0 {
		c.ui.PrintMarkdown(renderFilters(c.filters))
		return
	}
	cat := categoryOf(args[0])
	if !knownCategory(cat) {
		c.ui.PrintError(fmt.Sprintf("Unknown filter %q; use one of: %s", args[0], categoryNames()))
		return
	}

	var values []string
	for _, v := range args[1:] {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		delete(c.filters, cat)
		c.ui.PrintSystemMessage("Removed filter " + string(cat))
		return
	}
	c.filters[cat] = values
	c.ui.PrintSystemMessage(fmt.Sprintf("Filter %s = %s", cat, strings.Join(values, ", ")))
}

func (c *Console) options(ctx context.Context, args []string) {
	opts, err := c.dir.FilterOptions(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	if len(args) > 0 {
		cat := categoryOf(args[0])
		if !knownCategory(cat) {
			c.ui.PrintError(fmt.Sprintf("Unknown filter %q; use one of: %s", args[0], categoryNames()))
			return
		}
		c.ui.PrintMarkdown(renderOptions(string(cat), opts[cat]))
		return
	}
	var b strings.Builder
	for _, cat := range categories {
		b.WriteString(renderOptions(string(cat), opts[cat]))
		b.WriteString("\n")
	}
	c.ui.PrintMarkdown(b.String())
}

func (c *Console) setLimit(args []string) {
	if len(args) == 0 {
		c.ui.PrintSystemMessage(fmt.Sprintf("Showing up to %d rows", c.limit))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		c.ui.PrintError("limit must be a positive number")
		return
	}
	c.limit = n
	c.ui.PrintSystemMessage(fmt.Sprintf("Showing up to %d rows", n))
}

func (c *Console) stats(ctx context.Context) {
	s, err := c.dir.Stats(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.ui.PrintMarkdown(renderStats(s))
}

func (c *Console) member(ctx context.Context, args []string) {
	if len(args) == 0 {
		c.ui.PrintError("usage: /member <email>")
		return
	}
	m, err := c.dir.GetByEmail(ctx, args[0])
	if err != nil {
		c.fail(err)
		return
	}
	c.ui.PrintMarkdown(renderMember(m))
}

func (c *Console) listTenders(ctx context.Context, args []string) {
	if c.tenders == nil {
		c.ui.PrintError("tender store is not configured")
		return
	}
	unprocessed := false
	f := tenders.Filter{Processed: &unprocessed, Limit: c.limit}
	if len(args) > 0 {
		f.Source = tenders.SourceName(args[0])
	}
	list, err := c.tenders.List(ctx, f)
	if err != nil {
		c.fail(err)
		return
	}
	c.ui.PrintMarkdown(renderTenders(list))
}

func (c *Console) kbStatus() {
	if c.kb == nil {
		c.ui.PrintError("knowledge base is not configured")
		return
	}
	c.ui.PrintMarkdown(renderKB(c.kb.Status()))
}
