// Package query turns free-text searches into a residual keyword query plus
// type and date filters.
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures the parser.
type Options struct {
	// FuzzyCorrection snaps near-miss words onto the date and type vocabulary.
	FuzzyCorrection bool
}

// Correction records one fuzzy rewrite.
type Correction struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Parsed is the result of parsing a query.
type Parsed struct {
	Raw         string       `json:"raw"`
	CleanQuery  string       `json:"clean_query"`
	TypeFilter  string       `json:"type_filter,omitempty"`
	Extensions  []string     `json:"extensions,omitempty"`
	DateFilter  string       `json:"date_filter,omitempty"`
	DateRange   *DateRange   `json:"date_range,omitempty"`
	Corrections []Correction `json:"corrections,omitempty"`
}

// HasFilters reports whether a type or date filter was detected.
func (p *Parsed) HasFilters() bool {
	return p.TypeFilter != "" || p.DateFilter != ""
}

// Parser extracts filters from natural language queries.
type Parser struct {
	opts Options

	// Now is the clock used to resolve relative dates. Defaults to time.Now.
	Now func() time.Time
}

// NewParser creates a parser.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts, Now: time.Now}
}

// Parse never fails. The type filter is detected first and its words are
// removed, then at most one date filter in fixed priority order: specific
// date, month or year, relative range, named bucket.
func (p *Parser) Parse(raw string) *Parsed {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	result := &Parsed{Raw: raw}
	work := strings.TrimSpace(raw)
	changed := false

	if p.opts.FuzzyCorrection {
		corrected, corrections := fuzzyCorrect(work)
		if len(corrections) > 0 {
			result.Corrections = corrections
			work = corrected
			changed = true
			log.Debug("Applied query corrections", "from", raw, "to", work)
		}
	}

	for _, tp := range typePatterns {
		if tp.re.MatchString(work) {
			result.TypeFilter = tp.name
			result.Extensions = ExtensionsForType(tp.name)
			work = tp.re.ReplaceAllString(work, " ")
			changed = true
			break
		}
	}

	if filter, span, ok := detectDate(work, now); ok {
		result.DateFilter = filter
		if r, ok := DateRangeFor(filter, now); ok {
			result.DateRange = &r
		}
		work = work[:span[0]] + " " + work[span[1]:]
		changed = true
	}

	if changed {
		result.CleanQuery = strings.Join(strings.Fields(work), " ")
	} else {
		result.CleanQuery = work
	}
	return result
}

// Parse parses raw with default options.
func Parse(raw string) *Parsed {
	return NewParser(Options{}).Parse(raw)
}

// detectDate returns the filter and the byte span of the matched phrase.
func detectDate(s string, now time.Time) (string, []int, bool) {
	detectors := []func(string, time.Time) (string, []int, bool){
		detectSpecificDate,
		detectMonthOrYear,
		detectRelativeRange,
		detectBucket,
	}
	for _, detect := range detectors {
		if filter, span, ok := detect(s, now); ok {
			return filter, span, true
		}
	}
	return "", nil, false
}

func detectSpecificDate(s string, now time.Time) (string, []int, bool) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	if m := isoDateRe.FindStringSubmatchIndex(s); m != nil {
		if d, ok := makeDate(atoi(s, m, 1), atoi(s, m, 2), atoi(s, m, 3), loc); ok {
			return specificDateFilter(d), m[:2], true
		}
	}

	if m := usDateRe.FindStringSubmatchIndex(s); m != nil {
		year := atoi(s, m, 3)
		if year < 100 {
			year += 2000
		}
		if d, ok := makeDate(year, atoi(s, m, 1), atoi(s, m, 2), loc); ok {
			return specificDateFilter(d), m[:2], true
		}
	}

	if m := weekdayRe.FindStringSubmatchIndex(s); m != nil {
		modifier := strings.ToLower(group(s, m, 1))
		target := weekdayNumbers[strings.ToLower(group(s, m, 2))]
		current := (int(now.Weekday()) + 6) % 7

		var offset int
		switch modifier {
		case "last", "previous":
			offset = -(((current-target)%7 + 7) % 7)
			if offset == 0 {
				offset = -7
			}
		case "this":
			offset = target - current
		case "next":
			offset = target - current
			if offset <= 0 {
				offset += 7
			}
		}
		return specificDateFilter(today.AddDate(0, 0, offset)), m[:2], true
	}

	if m := daysAgoRe.FindStringSubmatchIndex(s); m != nil {
		n := atoi(s, m, 1)
		days := n
		switch strings.ToLower(group(s, m, 2)) {
		case "week":
			days = n * 7
		case "month":
			days = n * 30
		case "year":
			days = n * 365
		}
		return specificDateFilter(today.AddDate(0, 0, -days)), m[:2], true
	}

	for _, re := range []struct {
		dayGroup, monthGroup int
		m                    []int
	}{
		{1, 2, dayMonthRe.FindStringSubmatchIndex(s)},
		{2, 1, monthDayRe.FindStringSubmatchIndex(s)},
	} {
		m := re.m
		if m == nil {
			continue
		}
		day := atoi(s, m, re.dayGroup)
		month := monthNumbers[strings.ToLower(group(s, m, re.monthGroup))]
		year := atoi(s, m, 3)
		explicitYear := year != 0
		if !explicitYear {
			year = now.Year()
		}

		d, ok := makeDate(year, month, day, loc)
		if !ok {
			continue
		}
		// a date without a year refers to the most recent occurrence
		if !explicitYear && d.After(today) {
			d = d.AddDate(-1, 0, 0)
		}
		return specificDateFilter(d), m[:2], true
	}

	return "", nil, false
}

func detectMonthOrYear(s string, now time.Time) (string, []int, bool) {
	if m := monthYearRe.FindStringSubmatchIndex(s); m != nil {
		month := time.Month(monthNumbers[strings.ToLower(group(s, m, 1))])
		return monthFilter(atoi(s, m, 2), month), m[:2], true
	}

	if m := relMonthRe.FindStringSubmatchIndex(s); m != nil {
		month := time.Month(monthNumbers[strings.ToLower(group(s, m, 2))])
		year := now.Year()
		switch strings.ToLower(group(s, m, 1)) {
		case "this":
		case "last":
			if month >= now.Month() {
				year--
			}
		default:
			if month > now.Month() {
				year--
			}
		}
		return monthFilter(year, month), m[:2], true
	}

	if m := bareMonthRe.FindStringSubmatchIndex(s); m != nil {
		month := time.Month(monthNumbers[strings.ToLower(group(s, m, 1))])
		year := now.Year()
		if month > now.Month() {
			year--
		}
		return monthFilter(year, month), m[:2], true
	}

	if m := yearRe.FindStringSubmatchIndex(s); m != nil {
		return yearFilter(atoi(s, m, 1)), m[:2], true
	}

	return "", nil, false
}

func detectRelativeRange(s string, _ time.Time) (string, []int, bool) {
	m := rangeRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", nil, false
	}

	n := atoi(s, m, 1)
	if n <= 0 {
		return "", nil, false
	}
	switch strings.ToLower(group(s, m, 2)) {
	case "week":
		n *= 7
	case "month":
		n *= 30
	}
	return rangeFilter(n), m[:2], true
}

func detectBucket(s string, _ time.Time) (string, []int, bool) {
	for _, bp := range bucketPatterns {
		if loc := bp.re.FindStringIndex(s); loc != nil {
			return bp.name, loc, true
		}
	}
	return "", nil, false
}

// makeDate builds a local midnight, rejecting out-of-range components that
// time.Date would otherwise normalise.
func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func group(s string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

func atoi(s string, m []int, i int) int {
	n, _ := strconv.Atoi(group(s, m, i))
	return n
}
