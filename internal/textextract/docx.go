/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - DOCX Text Extraction
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// convertDOCX reads the paragraphs of an Office Open XML document. Each
// w:p becomes a line; w:tab and w:br map to a tab and a newline. A paragraph
// styled Title supplies the document title.
func convertDOCX(content []byte) (Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Document{}, fmt.Errorf("not a valid DOCX archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return Document{}, fmt.Errorf("DOCX archive has no %s", docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return Document{}, fmt.Errorf("failed to open %s: %w", docxBody, err)
	}
	defer rc.Close()

	return parseDocumentXML(rc)
}

func parseDocumentXML(r io.Reader) (Document, error) {
	dec := xml.NewDecoder(r)

	var text strings.Builder
	var para strings.Builder
	var title string
	inText := false
	titleStyle := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("failed to parse %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" && strings.EqualFold(a.Value, "Title") {
						titleStyle = true
					}
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				line := para.String()
				if titleStyle && title == "" {
					title = strings.TrimSpace(line)
				}
				text.WriteString(line)
				text.WriteByte('\n')
				para.Reset()
				titleStyle = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	if para.Len() > 0 {
		text.WriteString(para.String())
	}

	return Document{Text: text.String(), Title: title}, nil
}
