package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tags is a deduplicated, case-insensitively sorted set of tag strings.
// It is stored as a JSON array.
type Tags []string

// ParseTags coerces any tag representation into the canonical set. It
// accepts string slices, JSON array text, raw JSON values and comma
// separated text; any other non-empty string is a single tag.
func ParseTags(v any) Tags {
	switch t := v.(type) {
	case nil:
		return nil
	case Tags:
		return normalizeTags(t)
	case []string:
		return normalizeTags(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return normalizeTags(out)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err != nil {
			return nil
		}
		return ParseTags(decoded)
	case []byte:
		return parseTagText(string(t))
	case string:
		return parseTagText(t)
	default:
		return nil
	}
}

func parseTagText(s string) Tags {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, "[") {
		var list []any
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return ParseTags(list)
		}
	}

	if strings.Contains(s, ",") {
		return normalizeTags(strings.Split(s, ","))
	}
	return normalizeTags([]string{s})
}

func normalizeTags(in []string) Tags {
	seen := make(map[string]bool, len(in))
	out := make(Tags, 0, len(in))
	for _, tag := range in {
		tag = strings.Join(strings.Fields(tag), " ")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}

	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}

// Merge returns the union of both sets.
func (t Tags) Merge(other Tags) Tags {
	all := make([]string, 0, len(t)+len(other))
	all = append(all, t...)
	all = append(all, other...)
	return normalizeTags(all)
}

// Contains reports whether tag is in the set, ignoring case.
func (t Tags) Contains(tag string) bool {
	for _, existing := range t {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// String joins the tags with ", ".
func (t Tags) String() string {
	return strings.Join(t, ", ")
}

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	norm := normalizeTags(t)
	if norm == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(norm))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	*t = ParseTags(src)
	return nil
}
