package fs

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Category constants assigned from the extension table.
const (
	CategoryImages    = "Images"
	CategoryDocuments = "Documents"
	CategoryPDFs      = "PDFs"
	CategoryVideos    = "Videos"
	CategoryAudio     = "Audio"
	CategoryCode      = "Code"
	CategoryOther     = "Other"
)

// Categories lists every category in display order.
var Categories = []string{
	CategoryImages,
	CategoryDocuments,
	CategoryPDFs,
	CategoryVideos,
	CategoryAudio,
	CategoryCode,
	CategoryOther,
}

// categoryExtensions maps each category to the extensions it owns.
var categoryExtensions = map[string][]string{
	CategoryImages: {
		".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".ico", ".svg",
		".tif", ".tiff", ".heic", ".heif", ".avif", ".raw", ".cr2", ".nef", ".arw",
	},
	CategoryDocuments: {
		".doc", ".docx", ".txt", ".rtf", ".odt", ".md", ".tex",
		".xls", ".xlsx", ".ods", ".csv", ".ppt", ".pptx", ".odp",
		".pages", ".numbers", ".key", ".epub",
	},
	CategoryPDFs: {".pdf"},
	CategoryVideos: {
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v",
	},
	CategoryAudio: {
		".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a",
	},
	CategoryCode: {
		".py", ".js", ".ts", ".html", ".css", ".java", ".cpp", ".c", ".h",
		".cs", ".go", ".rs", ".rb", ".php", ".swift", ".kt",
		".json", ".xml", ".yaml", ".yml", ".sh", ".sql",
	},
}

// extToCategory is the inverse of categoryExtensions.
var extToCategory = func() map[string]string {
	m := make(map[string]string)
	for category, exts := range categoryExtensions {
		for _, ext := range exts {
			m[ext] = category
		}
	}
	return m
}()

// visionExtensions are the image formats sent to a vision model.
var visionExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

var screenshotPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)screen.?shot`),
	regexp.MustCompile(`(?i)screen.?cap`),
	regexp.MustCompile(`(?i)snip`),
	regexp.MustCompile(`(?i)capture`),
	regexp.MustCompile(`(?i)^ss_`),
	regexp.MustCompile(`(?i)^sc_`),
}

// CategoryFor returns the category of a path, CategoryOther when the
// extension is unknown.
func CategoryFor(path string) string {
	if category, ok := extToCategory[strings.ToLower(filepath.Ext(path))]; ok {
		return category
	}
	return CategoryOther
}

// ExtensionsFor returns a copy of the extensions owned by category.
func ExtensionsFor(category string) []string {
	exts := categoryExtensions[category]
	out := make([]string, len(exts))
	copy(out, exts)
	return out
}

// IsImage reports whether the path is in the Images category.
func IsImage(path string) bool {
	return CategoryFor(path) == CategoryImages
}

// SupportsVision reports whether the image format can be sent to a vision model.
func SupportsVision(path string) bool {
	return visionExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsScreenshot reports whether the file name looks like a screen capture.
func IsScreenshot(name string) bool {
	for _, re := range screenshotPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
