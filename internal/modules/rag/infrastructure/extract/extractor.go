package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"AuraPilot/internal/modules/rag/domain/document"

	"github.com/ledongthuc/pdf"
)

// Extractor turns an uploaded file (pdf/txt/md/docx) into a single text sequence.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	controlRe    = regexp.MustCompile("[\x00-\x08\x0B-\x0C\x0E-\x1F\x7F]")
)

// Extract dispatches on the filename extension and returns cleaned plain text.
// Empty output is reported as an extraction error so the caller can fail the document.
func (e *Extractor) Extract(raw []byte, filename string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty file", document.ErrExtraction)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = extractPDF(raw)
	case "docx":
		text, err = extractDOCX(raw)
	case "txt", "md", "text", "markdown", "":
		text = string(raw)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", document.ErrExtraction, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", document.ErrExtraction, err)
	}

	text = CleanText(text)
	if text == "" {
		return "", fmt.Errorf("%w: no extractable content", document.ErrExtraction)
	}
	return text, nil
}

// CleanText collapses whitespace and strips control characters.
func CleanText(text string) string {
	text = controlRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func extractPDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDOCX reads word/document.xml out of the OOXML zip container and
// concatenates the <w:t> runs, inserting a newline per paragraph.
func extractDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}
	defer docXML.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(docXML)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
