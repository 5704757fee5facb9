/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - HTML and Markdown Conversion
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package textextract

import (
	"bufio"
	"fmt"
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// convertHTML converts HTML to Markdown, which keeps headings and lists
// readable for the analysis prompt
func convertHTML(content []byte) (Document, error) {
	converter := md.NewConverter("", true, nil)

	// Scripts, styles and navigation carry no document text
	converter.Remove("script", "style", "nav", "footer", "noscript")

	// Shift headings down one level since the <title> becomes the H1
	converter.AddRules(md.Rule{
		Filter: []string{"h1", "h2", "h3", "h4", "h5", "h6"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			level := int(selec.Nodes[0].Data[1]-'0') + 1
			if level > 6 {
				level = 6
			}
			result := "\n\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(content) + "\n\n"
			return &result
		},
	})

	markdown, err := converter.ConvertBytes(content)
	if err != nil {
		return Document{}, fmt.Errorf("failed to convert HTML: %w", err)
	}

	title := htmlTitle(content)
	text := strings.TrimSpace(string(markdown))
	if title != "" {
		// The converter emits the <title> text as a plain first line
		text = strings.TrimSpace(strings.TrimPrefix(text, title))
		text = "# " + title + "\n\n" + text
	}

	return Document{Text: text, Title: title}, nil
}

// htmlTitle extracts the text of the <title> tag
func htmlTitle(content []byte) string {
	matches := titleRe.FindSubmatch(content)
	if len(matches) > 1 {
		return strings.TrimSpace(html.UnescapeString(string(matches[1])))
	}
	return ""
}

// markdownTitle returns the first level-one heading, skipping YAML front matter
func markdownTitle(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	inFrontMatter := false
	delimiters := 0

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" && delimiters < 2 {
			delimiters++
			inFrontMatter = delimiters == 1
			continue
		}
		if inFrontMatter {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return ""
}
