/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Console UI
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Terminal colors
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

const maxRenderWidth = 120

// UI writes console output, rendering markdown through glamour when
// enabled.
type UI struct {
	out            io.Writer
	noColor        bool
	RenderMarkdown bool
}

// NewUI returns a UI writing to out.
func NewUI(out io.Writer, noColor, renderMarkdown bool) *UI {
	return &UI{out: out, noColor: noColor, RenderMarkdown: renderMarkdown}
}

func (ui *UI) colorize(color, text string) string {
	if ui.noColor {
		return text
	}
	return color + text + ColorReset
}

// PrintWelcome prints the banner.
func (ui *UI) PrintWelcome() {
	fmt.Fprintln(ui.out, ui.colorize(ColorCyan+ColorBold, "OPF Community Directory"))
	fmt.Fprintln(ui.out, ui.colorize(ColorGray, "Type keywords to search, /help for commands, /quit to leave"))
	fmt.Fprintln(ui.out)
}

// Prompt shows the active combination mode and filter count.
func (ui *UI) Prompt(mode string, filters int) string {
	label := "search[" + mode
	if filters > 0 {
		label += fmt.Sprintf(" +%d", filters)
	}
	return ui.colorize(ColorGreen+ColorBold, label+"]> ")
}

// PrintMarkdown renders text as terminal markdown, falling back to plain
// text when rendering is disabled or fails.
func (ui *UI) PrintMarkdown(text string) {
	if ui.RenderMarkdown {
		style := "dark"
		if ui.noColor {
			style = "notty"
		}
		width := ui.terminalWidth()
		if width > maxRenderWidth {
			width = maxRenderWidth
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			if rendered, err := r.Render(text); err == nil {
				fmt.Fprint(ui.out, rendered)
				return
			}
		}
	}
	fmt.Fprintln(ui.out, strings.TrimRight(text, "\n"))
}

// PrintSystemMessage prints an informational line.
func (ui *UI) PrintSystemMessage(text string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorYellow, "» ")+text)
}

// PrintError prints an error line.
func (ui *UI) PrintError(text string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorRed, "Error: ")+text)
}

func (ui *UI) terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 2 {
		return width - 2
	}
	return 80
}
