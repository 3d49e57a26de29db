// Package extract turns uploaded files into plain text. Each backend maps a
// file path to raw text; unreadable or unsupported files yield an empty
// string so an ingestion batch never fails on a single bad file.
package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Text extracts raw text from the file based on its extension.
// Supported: .txt, .pdf, .docx. Everything else yields "".
func Text(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return plainText(path)
	case ".pdf":
		return pdfText(path)
	case ".docx":
		return docxText(path)
	default:
		return ""
	}
}

func plainText(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func pdfText(path string) string {
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return ""
	}
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return ""
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return ""
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return ""
	}
	return string(out)
}
