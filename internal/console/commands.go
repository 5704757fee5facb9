/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Console Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package console

import "strings"

// SlashCommand is a parsed "/command arg..." line.
type SlashCommand struct {
	Command string
	Args    []string
}

// ParseSlashCommand returns nil unless input starts with a slash and names a
// command. Arguments may be single or double quoted.
func ParseSlashCommand(input string) *SlashCommand {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}
	parts := splitArgs(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}
	return &SlashCommand{Command: strings.ToLower(parts[0]), Args: parts[1:]}
}

func splitArgs(input string) []string {
	args := []string{}
	var current strings.Builder
	var quote rune
	pending := false

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			pending = true
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0 && r == '\\' && i+1 < len(runes) && (runes[i+1] == quote || runes[i+1] == '\\'):
			current.WriteRune(runes[i+1])
			i++
		case quote == 0 && (r == ' ' || r == '\t'):
			if pending || current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteRune(r)
		}
	}
	if pending || current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
