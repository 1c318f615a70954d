package fileops

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nickcecere/lfind/internal/store"
)

// Format selects the export layout.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
)

// CSVColumns is the header and column order of CSV exports.
var CSVColumns = []string{
	"file_name", "file_path", "category", "file_size",
	"label", "tags", "caption", "created_date", "modified_date",
}

// now is replaced in tests.
var now = time.Now

// FormatFor picks the format from a file name, CSV unless it ends in .txt.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return FormatTXT
	}
	return FormatCSV
}

// Export writes records to w.
func Export(w io.Writer, records []store.FileRecord, format Format) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, records)
	case FormatTXT:
		return exportTXT(w, records)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportFile writes records to path in the format implied by its extension.
func ExportFile(path string, records []store.FileRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := Export(f, records, FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	log.Info("Exported files", "count", len(records), "path", path)
	return nil
}

func exportCSV(w io.Writer, records []store.FileRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.FileName,
			rec.FilePath,
			rec.Category,
			strconv.FormatInt(rec.FileSize, 10),
			rec.Label,
			rec.Tags.String(),
			rec.Caption,
			formatDate(rec.CreatedDate),
			formatDate(rec.ModifiedDate),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func exportTXT(w io.Writer, records []store.FileRecord) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Exported File List - %s\n", now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat("=", 80))

	for _, rec := range records {
		fmt.Fprintf(bw, "Name: %s\n", orUnknown(rec.FileName))
		fmt.Fprintf(bw, "Path: %s\n", orUnknown(rec.FilePath))
		fmt.Fprintf(bw, "Category: %s\n", orUnknown(rec.Category))
		if len(rec.Tags) > 0 {
			fmt.Fprintf(bw, "Tags: %s\n", rec.Tags.String())
		}
		if rec.Label != "" {
			fmt.Fprintf(bw, "Label: %s\n", rec.Label)
		}
		if rec.Caption != "" {
			fmt.Fprintf(bw, "Caption: %s\n", rec.Caption)
		}
		fmt.Fprintf(bw, "%s\n\n", strings.Repeat("-", 40))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
