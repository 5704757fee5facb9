/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Document Text Extraction
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package textextract turns uploaded RFP files and company documents into
// plain text.
package textextract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
)

// Format identifies a supported document format
type Format string

const (
	FormatUnknown  Format = ""
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
)

// Document is the text of a converted file and its title when one could be found
type Document struct {
	Text   string
	Title  string
	Format Format
}

// DetectFormat detects the document format from a file name or bare extension
func DetectFormat(name string) Format {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = "." + strings.ToLower(strings.TrimPrefix(name, "."))
	}
	switch ext {
	case ".txt", ".text":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	case ".docx":
		return FormatDOCX
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

// IsSupported checks if a file name has a supported extension
func IsSupported(name string) bool {
	return DetectFormat(name) != FormatUnknown
}

// SupportedExtensions returns the accepted file extensions
func SupportedExtensions() []string {
	return []string{".txt", ".text", ".md", ".markdown", ".html", ".htm", ".docx", ".pdf"}
}

// Extract returns the text of a file. name may be a file name or an extension.
// Unknown formats fail with UnsupportedFormat; files with no text fail with
// ExtractionFailed.
func Extract(content []byte, name string) (string, error) {
	doc, err := Convert(content, name)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Convert extracts text and a title from a file
func Convert(content []byte, name string) (Document, error) {
	const op = "textextract.convert"

	format := DetectFormat(name)
	var doc Document
	var err error

	switch format {
	case FormatText:
		doc = Document{Text: decodeUTF8(content)}
	case FormatMarkdown:
		text := decodeUTF8(content)
		doc = Document{Text: text, Title: markdownTitle(text)}
	case FormatHTML:
		doc, err = convertHTML(content)
	case FormatDOCX:
		doc, err = convertDOCX(content)
	case FormatPDF:
		doc, err = convertPDF(content)
	default:
		return Document{}, apperr.New(apperr.KindUnsupportedFormat, op,
			fmt.Sprintf("unsupported file type %q (supported: %s)", filepath.Ext(name),
				strings.Join(SupportedExtensions(), ", ")))
	}
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindExtractionFailed, op, err)
	}

	doc.Format = format
	doc.Text = normalizeWhitespace(doc.Text)
	if doc.Text == "" {
		return Document{}, apperr.New(apperr.KindExtractionFailed, op, "no text could be extracted from "+name)
	}
	return doc, nil
}

// decodeUTF8 drops a byte order mark and replaces invalid sequences
func decodeUTF8(content []byte) string {
	s := strings.TrimPrefix(string(content), "\ufeff")
	return strings.ToValidUTF8(s, "\uFFFD")
}

// normalizeWhitespace trims trailing spaces from lines and collapses runs of
// blank lines to one
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\u00a0")
		if strings.TrimSpace(line) == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}
