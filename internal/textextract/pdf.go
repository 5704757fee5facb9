/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - PDF Text Extraction
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package textextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFText bounds the text read out of a single PDF
const maxPDFText = 32 << 20

// convertPDF reads the text layer of every page. Fonts are decoded through
// their ToUnicode maps where present, so Identity-H fonts from word
// processors come out as readable text.
func convertPDF(content []byte) (doc Document, err error) {
	// The parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			doc, err = Document{}, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Document{}, err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("failed to read PDF text: %w", err)
	}
	text, err := io.ReadAll(io.LimitReader(plain, maxPDFText))
	if err != nil {
		return Document{}, err
	}

	doc = Document{Text: string(text)}
	if info := reader.Trailer().Key("Info"); !info.IsNull() {
		doc.Title = strings.TrimSpace(info.Key("Title").Text())
	}
	return doc, nil
}
