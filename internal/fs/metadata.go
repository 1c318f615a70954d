package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"

	"github.com/nickcecere/lfind/internal/extract"
)

// ErrNotReadable is returned when a path cannot be stat'ed or is not a
// regular file.
var ErrNotReadable = errors.New("file not readable")

// Metadata is the filesystem view of one file.
type Metadata struct {
	Path         string
	Name         string
	Extension    string // lowercase, with leading dot; empty when none
	Size         int64
	Category     string
	CreatedDate  time.Time
	ModifiedDate time.Time
	OriginalDate *time.Time // capture/creation date embedded in the file
	Screenshot   bool
}

// ExtractMetadata stats path and derives its category and dates. Embedded
// date lookup failures are not errors.
func ExtractMetadata(path string) (*Metadata, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotReadable, path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotReadable, abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotReadable, abs)
	}

	name := info.Name()
	md := &Metadata{
		Path:         abs,
		Name:         name,
		Extension:    strings.ToLower(filepath.Ext(name)),
		Size:         info.Size(),
		Category:     CategoryFor(name),
		ModifiedDate: info.ModTime(),
		CreatedDate:  info.ModTime(),
		Screenshot:   IsScreenshot(name),
	}

	if ts, err := times.Stat(abs); err == nil && ts.HasBirthTime() {
		md.CreatedDate = ts.BirthTime()
	}

	md.OriginalDate = extract.EmbeddedDate(abs)
	return md, nil
}
