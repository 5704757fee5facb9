/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Document Text Extraction Tests
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
	"compress/zlib"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"rfp.pdf":          FormatPDF,
		"RFP.PDF":          FormatPDF,
		"scope.docx":       FormatDOCX,
		"notes.txt":        FormatText,
		"README.md":        FormatMarkdown,
		"page.htm":         FormatHTML,
		"page.html":        FormatHTML,
		"pdf":              FormatPDF,
		".docx":            FormatDOCX,
		"legacy.doc":       FormatUnknown,
		"archive.zip":      FormatUnknown,
		"no-extension-xyz": FormatUnknown,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
	assert.True(t, IsSupported("a.pdf"))
	assert.False(t, IsSupported("a.doc"))
}

func TestExtractText(t *testing.T) {
	text, err := Extract([]byte("\ufeffLine one  \r\n\r\n\r\nLine two\n"), "brief.txt")
	require.NoError(t, err)
	assert.Equal(t, "Line one\n\nLine two", text)
}

func TestConvertMarkdownTitle(t *testing.T) {
	src := "---\ntitle: ignored\n---\n\nIntro\n\n# Capability Statement\n\nBody"
	doc, err := Convert([]byte(src), "cap.md")
	require.NoError(t, err)
	assert.Equal(t, "Capability Statement", doc.Title)
	assert.Equal(t, FormatMarkdown, doc.Format)
}

func TestConvertHTML(t *testing.T) {
	src := `<html><head><title>Climate Services</title><style>p{color:red}</style></head>
<body><h1>Overview</h1><p>We model <b>climate risk</b> for insurers.</p>
<script>alert(1)</script></body></html>`

	doc, err := Convert([]byte(src), "services.html")
	require.NoError(t, err)
	assert.Equal(t, "Climate Services", doc.Title)
	assert.Contains(t, doc.Text, "# Climate Services")
	assert.Contains(t, doc.Text, "## Overview")
	assert.Contains(t, doc.Text, "climate risk")
	assert.NotContains(t, doc.Text, "alert(1)")
	assert.NotContains(t, doc.Text, "color:red")
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestConvertDOCX(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Coastal Resilience RFP</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t xml:space="preserve">Scope: </w:t></w:r><w:r><w:t>mangrove restoration</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Budget</w:t><w:tab/><w:t>USD 250,000</w:t></w:r></w:p>`)

	doc, err := Convert(data, "rfp.docx")
	require.NoError(t, err)
	assert.Equal(t, "Coastal Resilience RFP", doc.Title)
	assert.Equal(t, "Coastal Resilience RFP\nScope: mangrove restoration\nBudget\tUSD 250,000", doc.Text)
}

func TestConvertDOCXInvalid(t *testing.T) {
	_, err := Convert([]byte("not a zip"), "rfp.docx")
	require.Error(t, err)
	assert.Equal(t, apperr.KindExtractionFailed, apperr.KindOf(err))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = Convert(buf.Bytes(), "rfp.docx")
	assert.Equal(t, apperr.KindExtractionFailed, apperr.KindOf(err))
}

// buildPDF writes a one-page PDF with a cross-reference table whose only
// content stream is stream.
func buildPDF(t *testing.T, stream string, compress bool) []byte {
	t.Helper()
	data := []byte(stream)
	filter := ""
	if compress {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = z.Bytes()
		filter = " /Filter /FlateDecode"
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d%s >>\nstream\n%s\nendstream", len(data), filter, data),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Title (Tender \\(Draft\\)) >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestConvertPDF(t *testing.T) {
	stream := "BT /F1 12 Tf 72 720 Td (Request for Proposal) Tj T* " +
		"[(Carbon ) -300 (accounting ) 20 (services)] TJ T* (Due \\(2025\\)) Tj ET"

	for _, compress := range []bool{true, false} {
		t.Run(fmt.Sprintf("compressed=%v", compress), func(t *testing.T) {
			doc, err := Convert(buildPDF(t, stream, compress), "tender.pdf")
			require.NoError(t, err)
			assert.Equal(t, FormatPDF, doc.Format)
			assert.Equal(t, "Tender (Draft)", doc.Title)
			assert.Equal(t, "Request for Proposal\nCarbon accounting services\nDue (2025)", doc.Text)
		})
	}
}

func TestConvertPDFWinAnsiAndHex(t *testing.T) {
	stream := "BT /F1 12 Tf <48656C6C6F> Tj T* (caf\\351 \\226 \\351nergie) Tj ET"
	doc, err := Convert(buildPDF(t, stream, true), "x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Hello\ncafé – énergie", doc.Text)
}

func TestConvertPDFTruncated(t *testing.T) {
	full := buildPDF(t, "BT /F1 12 Tf (Scope) Tj ET", true)
	_, err := Convert(full[:len(full)/2], "cut.pdf")
	assert.Equal(t, apperr.KindExtractionFailed, apperr.KindOf(err))
}

func TestConvertPDFRejectsNonPDF(t *testing.T) {
	_, err := Convert([]byte("hello"), "x.pdf")
	assert.Equal(t, apperr.KindExtractionFailed, apperr.KindOf(err))
}

func TestConvertEmptyText(t *testing.T) {
	_, err := Convert([]byte("   \n\n  "), "blank.txt")
	require.Error(t, err)
	assert.True(t, apperr.KindOf(err) == apperr.KindExtractionFailed)
}

func TestConvertUnsupported(t *testing.T) {
	_, err := Extract([]byte("data"), "slides.pptx")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnsupportedFormat, apperr.KindOf(err))
	assert.Contains(t, err.Error(), ".pptx")
}
