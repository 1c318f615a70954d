package query

import (
	"strconv"
	"strings"
	"time"
)

// Named date filters.
const (
	FilterToday     = "today"
	FilterYesterday = "yesterday"
	FilterThisWeek  = "this_week"
	FilterLastWeek  = "last_week"
	FilterThisMonth = "this_month"
	FilterLastMonth = "last_month"
	FilterThisYear  = "this_year"
	FilterLastYear  = "last_year"
)

// Prefixes of parameterised date filters.
const (
	prefixSpecificDate = "specific_date:"
	prefixMonth        = "month:"
	prefixYear         = "year:"
	prefixRange        = "range:"
)

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// DateRangeFor resolves a date filter against now. Day boundaries are
// midnights in now's location. ok is false for an unknown filter.
func DateRangeFor(filter string, now time.Time) (DateRange, bool) {
	loc := now.Location()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch filter {
	case FilterToday:
		return DateRange{midnight, now}, true
	case FilterYesterday:
		return DateRange{midnight.AddDate(0, 0, -1), midnight}, true
	case FilterThisWeek:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		return DateRange{midnight.AddDate(0, 0, -sinceMonday), now}, true
	case FilterLastWeek:
		return DateRange{midnight.AddDate(0, 0, -7), now}, true
	case FilterThisMonth:
		return DateRange{time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), now}, true
	case FilterLastMonth:
		return DateRange{midnight.AddDate(0, 0, -30), now}, true
	case FilterThisYear:
		return DateRange{time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc), now}, true
	case FilterLastYear:
		return DateRange{midnight.AddDate(0, 0, -365), now}, true
	}

	switch {
	case strings.HasPrefix(filter, prefixSpecificDate):
		day, err := time.ParseInLocation("2006-01-02", strings.TrimPrefix(filter, prefixSpecificDate), loc)
		if err != nil {
			return DateRange{}, false
		}
		return DateRange{day, day.AddDate(0, 0, 1)}, true

	case strings.HasPrefix(filter, prefixMonth):
		first, err := time.ParseInLocation("2006-01", strings.TrimPrefix(filter, prefixMonth), loc)
		if err != nil {
			return DateRange{}, false
		}
		return DateRange{first, first.AddDate(0, 1, 0)}, true

	case strings.HasPrefix(filter, prefixYear):
		first, err := time.ParseInLocation("2006", strings.TrimPrefix(filter, prefixYear), loc)
		if err != nil {
			return DateRange{}, false
		}
		return DateRange{first, first.AddDate(1, 0, 0)}, true

	case strings.HasPrefix(filter, prefixRange):
		days, err := strconv.Atoi(strings.TrimPrefix(filter, prefixRange))
		if err != nil || days <= 0 {
			return DateRange{}, false
		}
		return DateRange{midnight.AddDate(0, 0, -days), now}, true
	}

	return DateRange{}, false
}

// FilterLabel returns a human readable name for a date filter.
func FilterLabel(filter string) string {
	switch filter {
	case FilterToday:
		return "Today"
	case FilterYesterday:
		return "Yesterday"
	case FilterThisWeek:
		return "This Week"
	case FilterLastWeek:
		return "Last 7 Days"
	case FilterThisMonth:
		return "This Month"
	case FilterLastMonth:
		return "Last 30 Days"
	case FilterThisYear:
		return "This Year"
	case FilterLastYear:
		return "Last Year"
	case "":
		return "Any Time"
	}

	switch {
	case strings.HasPrefix(filter, prefixSpecificDate):
		return strings.TrimPrefix(filter, prefixSpecificDate)
	case strings.HasPrefix(filter, prefixMonth):
		if t, err := time.Parse("2006-01", strings.TrimPrefix(filter, prefixMonth)); err == nil {
			return t.Format("January 2006")
		}
	case strings.HasPrefix(filter, prefixYear):
		return strings.TrimPrefix(filter, prefixYear)
	case strings.HasPrefix(filter, prefixRange):
		return "Last " + strings.TrimPrefix(filter, prefixRange) + " Days"
	}
	return filter
}

func specificDateFilter(t time.Time) string {
	return prefixSpecificDate + t.Format("2006-01-02")
}

func monthFilter(year int, month time.Month) string {
	return prefixMonth + time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func yearFilter(year int) string {
	return prefixYear + strconv.Itoa(year)
}

func rangeFilter(days int) string {
	return prefixRange + strconv.Itoa(days)
}
