package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"AuraPilot/internal/modules/rag/domain/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor()
	text, err := e.Extract([]byte("hello\n\nworld\t再见"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world 再见", text)
}

func TestExtractMarkdown(t *testing.T) {
	e := NewExtractor()
	text, err := e.Extract([]byte("# Title\n\nbody"), "readme.md")
	require.NoError(t, err)
	assert.Equal(t, "# Title body", text)
}

func TestExtractEmptyFile(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(nil, "notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrExtraction)
}

func TestExtractWhitespaceOnly(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte("  \n\t  "), "notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrExtraction)
}

func TestExtractUnsupportedType(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte("binary"), "image.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrExtraction)
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>第一段内容</w:t></w:r></w:p>
    <w:p><w:r><w:t>second paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := NewExtractor()
	text, err := e.Extract(buf.Bytes(), "report.docx")
	require.NoError(t, err)
	assert.Contains(t, text, "第一段内容")
	assert.Contains(t, text, "second paragraph")
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = NewExtractor().Extract(buf.Bytes(), "broken.docx")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrExtraction)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a\n\nb\tc  "))
	assert.Equal(t, "ab", CleanText("a\x00\x1Fb"))
	assert.Equal(t, "", CleanText("\x00\x01"))
}
