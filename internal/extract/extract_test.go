package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{"who-cholera.pdf", FormatPDF, false},
		{"GUIDELINES.PDF", FormatPDF, false},
		{"report.docx", FormatDOCX, false},
		{"notes.txt", "", true},
		{"archive.zip", "", true},
		{"noextension", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// buildDOCX assembles a minimal DOCX container around the given
// WordprocessingML body.
func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:r><w:t>Cholera is an acute</w:t></w:r><w:r><w:t> diarrhoeal infection.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Treat with oral rehydration salts.</w:t></w:r></w:p>`)

	doc, err := Extract("cholera.docx", data)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "cholera.docx", doc.Name)
	assert.Equal(t, "Cholera is an acute diarrhoeal infection.\nTreat with oral rehydration salts.", doc.Pages[0])
	assert.True(t, doc.HasText())
}

func TestExtractDOCXEmpty(t *testing.T) {
	data := buildDOCX(t, `<w:p></w:p>`)

	doc, err := Extract("empty.docx", data)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.False(t, doc.HasText())
}

func TestExtractDOCXNotAZip(t *testing.T) {
	_, err := Extract("broken.docx", []byte("not a zip archive"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<xml/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Extract("odd.docx", buf.Bytes())
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestExtractPDFGarbage(t *testing.T) {
	_, err := Extract("broken.pdf", []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract("notes.txt", []byte("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractUsesBaseName(t *testing.T) {
	data := buildDOCX(t, `<w:p><w:r><w:t>hi</w:t></w:r></w:p>`)
	doc, err := Extract("/uploads/2024/report.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "report.docx", doc.Name)
}
