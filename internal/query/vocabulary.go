package query

import "regexp"

// Type filter names.
const (
	TypeImages    = "images"
	TypeDocuments = "documents"
	TypePDFs      = "pdfs"
	TypeVideos    = "videos"
	TypeAudio     = "audio"
	TypeCode      = "code"
)

// TypeExtensions maps each type filter to the extensions it selects.
var TypeExtensions = map[string][]string{
	TypeImages:    {".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".ico", ".svg", ".heic", ".heif", ".avif", ".raw", ".cr2", ".nef", ".arw"},
	TypeDocuments: {".doc", ".docx", ".txt", ".rtf", ".odt", ".md", ".tex"},
	TypePDFs:      {".pdf"},
	TypeVideos:    {".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v"},
	TypeAudio:     {".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a"},
	TypeCode:      {".py", ".js", ".ts", ".html", ".css", ".java", ".cpp", ".c", ".h", ".cs", ".go", ".rs", ".rb", ".php", ".swift", ".kt"},
}

// ExtensionsForType returns a copy of the extensions for a type filter, nil
// when the name is unknown.
func ExtensionsForType(name string) []string {
	exts, ok := TypeExtensions[name]
	if !ok {
		return nil
	}
	return append([]string(nil), exts...)
}

type typePattern struct {
	re   *regexp.Regexp
	name string
}

// typePatterns are tried in order; the first that matches wins.
var typePatterns = []typePattern{
	{regexp.MustCompile(`(?i)\bimages?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bphotos?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bpictures?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bscreenshots?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bthumbnails?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bjpe?gs?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bpngs?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bgifs?\b`), TypeImages},
	{regexp.MustCompile(`(?i)\bwebps?\b`), TypeImages},

	{regexp.MustCompile(`(?i)\bdocuments?\b`), TypeDocuments},
	{regexp.MustCompile(`(?i)\bdocs?\b`), TypeDocuments},
	{regexp.MustCompile(`(?i)\bword\b`), TypeDocuments},
	{regexp.MustCompile(`(?i)\bdocx\b`), TypeDocuments},
	{regexp.MustCompile(`(?i)\btexts?\b`), TypeDocuments},
	{regexp.MustCompile(`(?i)\btxt\b`), TypeDocuments},

	{regexp.MustCompile(`(?i)\bpdf\s+files?\b`), TypePDFs},
	{regexp.MustCompile(`(?i)\bpdfs?\b`), TypePDFs},

	{regexp.MustCompile(`(?i)\bvideos?\b`), TypeVideos},
	{regexp.MustCompile(`(?i)\bmovies?\b`), TypeVideos},
	{regexp.MustCompile(`(?i)\bmp4s?\b`), TypeVideos},
	{regexp.MustCompile(`(?i)\bmkvs?\b`), TypeVideos},
	{regexp.MustCompile(`(?i)\bavis?\b`), TypeVideos},

	{regexp.MustCompile(`(?i)\baudios?\b`), TypeAudio},
	{regexp.MustCompile(`(?i)\bmusic\b`), TypeAudio},
	{regexp.MustCompile(`(?i)\bsongs?\b`), TypeAudio},
	{regexp.MustCompile(`(?i)\bmp3s?\b`), TypeAudio},
	{regexp.MustCompile(`(?i)\bwavs?\b`), TypeAudio},

	{regexp.MustCompile(`(?i)\bcode\b`), TypeCode},
	{regexp.MustCompile(`(?i)\bscripts?\b`), TypeCode},
	{regexp.MustCompile(`(?i)\bpython\b`), TypeCode},
	{regexp.MustCompile(`(?i)\bjavascript\b`), TypeCode},
	{regexp.MustCompile(`(?i)\bhtml\b`), TypeCode},
	{regexp.MustCompile(`(?i)\bcss\b`), TypeCode},
}

const (
	monthAlt   = `january|february|march|april|may|june|july|august|september|october|november|december`
	weekdayAlt = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`
	ordinal    = `(?:st|nd|rd|th)?`
)

var monthNumbers = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// weekdayNumbers counts from Monday = 0.
var weekdayNumbers = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// Specific dates.
var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	usDateRe    = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})` + ordinal + `\s+(?:of\s+)?(` + monthAlt + `)(?:\s*,?\s*(\d{4}))?\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\s+(\d{1,2})` + ordinal + `\b(?:\s*,?\s*(\d{4})\b)?`)
	weekdayRe   = regexp.MustCompile(`(?i)\b(last|previous|this|next)\s+(` + weekdayAlt + `)\b`)
	daysAgoRe   = regexp.MustCompile(`(?i)\b(\d+)\s+(day|week|month|year)s?\s+ago\b`)
)

// Months and years.
var (
	monthYearRe = regexp.MustCompile(`(?i)\b(?:(?:in|during|from)\s+)?(` + monthAlt + `)\s*,?\s+(\d{4})\b`)
	relMonthRe  = regexp.MustCompile(`(?i)\b(in|during|from|last|this)\s+(` + monthAlt + `)\b`)
	// "may" alone is too ambiguous to be a month.
	bareMonthRe = regexp.MustCompile(`(?i)\b(january|february|march|april|june|july|august|september|october|november|december)\b`)
	yearRe      = regexp.MustCompile(`(?i)\b(?:in|during|from)\s+((?:19|20)\d{2})\b`)
)

// Relative ranges.
var rangeRe = regexp.MustCompile(`(?i)\b(?:in\s+the\s+)?(?:past|last|previous|within)\s+(\d+)\s+(day|week|month)s?\b`)

type bucketPattern struct {
	re   *regexp.Regexp
	name string
}

// Named buckets.
var bucketPatterns = []bucketPattern{
	{regexp.MustCompile(`(?i)\btoday\b`), FilterToday},
	{regexp.MustCompile(`(?i)\bthis\s+day\b`), FilterToday},
	{regexp.MustCompile(`(?i)\byesterday\b`), FilterYesterday},
	{regexp.MustCompile(`(?i)\bthis\s+week\b`), FilterThisWeek},
	{regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+week\b`), FilterLastWeek},
	{regexp.MustCompile(`(?i)\brecent(?:ly)?\b`), FilterLastWeek},
	{regexp.MustCompile(`(?i)\bthis\s+month\b`), FilterThisMonth},
	{regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+month\b`), FilterLastMonth},
	{regexp.MustCompile(`(?i)\bthis\s+year\b`), FilterThisYear},
	{regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+year\b`), FilterLastYear},
}

// fuzzyKeywords are the words fuzzy correction may snap to.
var fuzzyKeywords = []string{
	"today", "yesterday", "week", "month", "year",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
	"last", "this", "previous", "next", "past", "ago", "days",
	"image", "images", "photo", "photos", "picture", "pictures",
	"screenshot", "screenshots", "thumbnail", "thumbnails",
	"document", "documents", "pdf", "pdfs", "video", "videos",
	"audio", "music", "code",
}
