/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Console Rendering
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/knowledgebase"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

// memberDetailColumns are shown by /member, in order.
var memberDetailColumns = []struct{ column, label string }{
	{"current_job", "Role"},
	{"current_company", "Company"},
	{"city", "City"},
	{"country", "Country"},
	{"years_xp", "Experience"},
	{"years_sustainability_xp", "Sustainability experience"},
	{"key_competencies", "Competencies"},
	{"key_sectors", "Sectors"},
	{"linkedin", "LinkedIn"},
	{"source", "Source"},
	{"executive_summary", "Summary"},
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	if r := []rune(s); len(r) > 60 {
		s = string(r[:57]) + "..."
	}
	if s == "" {
		return "-"
	}
	return s
}

// RenderMembers formats search results as a markdown table of at most
// limit rows.
func RenderMembers(members []directory.Member, keyword string, mode predicate.Mode, limit int) string {
	var b strings.Builder
	what := "all members"
	if keyword != "" {
		what = fmt.Sprintf("%q (%s)", keyword, strings.ToUpper(mode.String()))
	}
	fmt.Fprintf(&b, "## %d result(s) for %s\n\n", len(members), what)
	if len(members) == 0 {
		return b.String()
	}

	b.WriteString("| Name | Email | Role | Country | Experience |\n")
	b.WriteString("|---|---|---|---|---|\n")
	shown := members
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, m := range shown {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cell(m.Name()), cell(m.Email()), cell(m.Get("current_job")),
			cell(m.Get("country")), cell(m.Get("years_xp")))
	}
	if len(shown) < len(members) {
		fmt.Fprintf(&b, "\n_%d more not shown; use /limit to see more._\n", len(members)-len(shown))
	}
	return b.String()
}

func renderMember(m directory.Member) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", cell(m.Name()), m.Email())
	for _, c := range memberDetailColumns {
		if v := strings.TrimSpace(m.Get(c.column)); v != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", c.label, v)
		}
	}
	return b.String()
}

func renderStats(s directory.Stats) string {
	return fmt.Sprintf("## Directory\n\n| Members | With LinkedIn | With resume |\n|---|---|---|\n| %d | %d | %d |\n",
		s.TotalRecords, s.RecordsWithLinkedins, s.RecordsWithResumes)
}

func renderFilters(active predicate.Filters) string {
	if len(active) == 0 {
		return "No filters set.\n"
	}
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("## Active filters\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- **%s:** %s\n", k, strings.Join(active[categoryOf(k)], ", "))
	}
	return b.String()
}

func renderOptions(category string, values []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", category)
	for _, v := range values {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	return b.String()
}

func renderTenders(list []tenders.Tender) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %d tender(s)\n\n", len(list))
	if len(list) == 0 {
		return b.String()
	}
	b.WriteString("| ID | Title | Source | Closes | Climate | Processed |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, t := range list {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			t.ID, cell(t.Title), cell(t.Source), cell(t.ClosingDate), yesNo(t.IsClimateRelated), yesNo(t.Processed))
	}
	return b.String()
}

func renderKB(s knowledgebase.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Knowledge base: %s\n\n", s.Status)
	fmt.Fprintf(&b, "- **Documents:** %d\n- **Chunks:** %d\n", s.Documents, s.Chunks)
	if s.DocumentsPath != "" {
		fmt.Fprintf(&b, "- **Path:** %s\n", s.DocumentsPath)
	}
	if s.InitializedAt != nil {
		fmt.Fprintf(&b, "- **Initialized:** %s\n", s.InitializedAt.Format("2006-01-02 15:04 MST"))
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "- **Last error:** %s\n", s.LastError)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
