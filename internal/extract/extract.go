// Package extract pulls searchable text and embedded dates out of files.
package extract

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for formats without a text extractor.
var ErrUnsupported = errors.New("unsupported format")

// plainTextExtensions are read directly as UTF-8 text.
var plainTextExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".tex": true, ".rtf": true,
	".json": true, ".xml": true, ".yaml": true, ".yml": true, ".html": true, ".css": true,
	".py": true, ".js": true, ".ts": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".cs": true, ".go": true, ".rs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true,
	".sh": true, ".sql": true, ".log": true,
}

// Supported reports whether Text can handle the file's format.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || ext == ".docx" || plainTextExtensions[ext]
}

// Text returns up to maxChars runes of text from the file, whitespace
// collapsed. Unknown formats return ErrUnsupported.
func Text(path string, maxChars int) (text string, err error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".pdf":
		// ledongthuc/pdf panics on some malformed files
		defer func() {
			if r := recover(); r != nil {
				text, err = "", fmt.Errorf("failed to parse PDF: %v", r)
			}
		}()
		text, err = pdfText(path, maxChars)
	case ext == ".docx":
		text, err = docxText(path, maxChars)
	case plainTextExtensions[ext]:
		text, err = plainText(path, maxChars)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}

	return Truncate(collapseSpace(text), maxChars), nil
}

func pdfText(path string, maxChars int) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug("Skipping unreadable PDF page", "path", path, "page", i, "error", err)
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
		if maxChars > 0 && buf.Len() > maxChars*4 {
			break
		}
	}
	return buf.String(), nil
}

func docxText(path string, maxChars int) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()

		limit := int64(8 << 20)
		if maxChars > 0 {
			limit = int64(maxChars) * 64
		}
		content, err := io.ReadAll(io.LimitReader(rc, limit))
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}
		return stripXMLTags(string(content)), nil
	}
	return "", nil
}

func plainText(path string, maxChars int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	limit := int64(8 << 20)
	if maxChars > 0 {
		limit = int64(maxChars) * 4
	}
	content, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), ""))
	}
	return string(content), nil
}

// stripXMLTags drops markup and keeps character data.
func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return result.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes. n <= 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
