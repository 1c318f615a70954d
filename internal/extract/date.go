package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"
	"github.com/rwcarlsen/goexif/exif"
)

// exifExtensions carry a TIFF/EXIF block goexif can decode.
var exifExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

// EmbeddedDate returns the capture or creation date stored inside the file,
// or nil. Failures are logged at debug level and swallowed.
func EmbeddedDate(path string) *time.Time {
	ext := strings.ToLower(filepath.Ext(path))

	var t time.Time
	var err error
	switch {
	case exifExtensions[ext]:
		t, err = exifDate(path)
	case ext == ".pdf":
		t, err = pdfDate(path)
	default:
		return nil
	}
	if err != nil {
		log.Debug("No embedded date", "path", path, "error", err)
		return nil
	}
	if t.IsZero() || t.Year() < 1900 {
		return nil
	}
	return &t
}

func exifDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	// DateTimeOriginal, falling back to DateTime
	return x.DateTime()
}

func pdfDate(path string) (t time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = time.Time{}, errPDFPanic
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	raw := reader.Trailer().Key("Info").Key("CreationDate").Text()
	return ParsePDFDate(raw)
}

var errPDFPanic = &pdfError{"malformed PDF"}

type pdfError struct{ msg string }

func (e *pdfError) Error() string { return e.msg }

var pdfDatePattern = regexp.MustCompile(`^D?:?(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?([Zz+\-])?(\d{2})?'?(\d{2})?'?`)

// ParsePDFDate parses a PDF date string such as "D:20230102150405+01'00'".
// Missing trailing fields default to their minimum value; no zone means UTC.
func ParsePDFDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	m := pdfDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, &pdfError{"invalid PDF date " + raw}
	}

	num := func(s string, def int) int {
		if s == "" {
			return def
		}
		n := 0
		for _, c := range s {
			n = n*10 + int(c-'0')
		}
		return n
	}

	loc := time.UTC
	if sign := m[7]; sign == "+" || sign == "-" {
		offset := num(m[8], 0)*3600 + num(m[9], 0)*60
		if sign == "-" {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}

	return time.Date(num(m[1], 0), time.Month(num(m[2], 1)), num(m[3], 1),
		num(m[4], 0), num(m[5], 0), num(m[6], 0), 0, loc), nil
}
