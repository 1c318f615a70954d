package store

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// maxCandidates caps how many keyword matches are scored in Go per query.
// Candidates are ordered by candidateOrder first, so the cap drops the
// lowest scoring matches.
const maxCandidates = 5000

// defaultListLimit applies to listings when Query.Limit is unset.
const defaultListLimit = 100

// Field weights used to rank keyword matches, highest first. column is the
// matching files column used to order candidates in SQL.
var fieldWeights = []struct {
	weight float64
	column string
	value  func(*FileRecord) string
}{
	{1.0, "file_name", func(r *FileRecord) string { return r.FileName }},
	{0.9, "label", func(r *FileRecord) string { return r.Label }},
	{0.8, "tags", func(r *FileRecord) string { return strings.Join(r.Tags, " ") }},
	{0.6, "caption", func(r *FileRecord) string { return r.Caption }},
	{0.5, "file_path", func(r *FileRecord) string { return r.FilePath }},
	{0.5, "category", func(r *FileRecord) string { return r.Category }},
	{0.4, "ocr_text", func(r *FileRecord) string { return r.OCRText }},
}

// Search runs a keyword query with structured filters. With terms, FTS
// prefix matching selects candidates (falling back to substring matching
// on name, label and caption) and results are ordered by rank. Without
// terms, it lists filtered records newest first with rank 0.
func (s *SQLiteStore) Search(q Query) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := normalizeTerms(q.Terms)
	where, args := filterClause(q)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	if len(terms) == 0 {
		return s.listMatches(where, args, limit)
	}

	ftsWhere := append([]string{"id IN (SELECT docid FROM files_fts WHERE files_fts MATCH ?)"}, where...)
	ftsArgs := append([]any{ftsExpression(terms)}, args...)
	orderBy, orderArgs := candidateOrder(terms)
	records, err := s.queryRecords(ftsWhere, append(ftsArgs, orderArgs...), orderBy, maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to run full-text search: %w", err)
	}

	if len(records) == 0 {
		likeWhere, likeArgs := likeClause(terms)
		likeArgs = append(append(args, likeArgs...), orderArgs...)
		records, err = s.queryRecords(append(where, likeWhere), likeArgs, orderBy, maxCandidates)
		if err != nil {
			return nil, fmt.Errorf("failed to run substring search: %w", err)
		}
	}

	matches := make([]Match, 0, len(records))
	for i := range records {
		matches = append(matches, Match{Record: records[i], Rank: scoreRecord(&records[i], terms)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rank != matches[j].Rank {
			return matches[i].Rank > matches[j].Rank
		}
		return matches[i].Record.EffectiveDate().After(matches[j].Record.EffectiveDate())
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *SQLiteStore) listMatches(where []string, args []any, limit int) ([]Match, error) {
	query := "SELECT " + recordColumns + " FROM files"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(original_date, modified_date, created_date) DESC, id DESC"
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(records))
	for i := range records {
		matches[i] = Match{Record: records[i]}
	}
	return matches, nil
}

func (s *SQLiteStore) queryRecords(where []string, args []any, orderBy string, limit int) ([]FileRecord, error) {
	query := "SELECT " + recordColumns + " FROM files"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// filterClause turns the structured part of q into SQL conditions.
func filterClause(q Query) ([]string, []any) {
	var where []string
	var args []any

	if q.Label != "" {
		where = append(where, "label LIKE ?")
		args = append(args, "%"+q.Label+"%")
	}
	for _, tag := range q.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"%")
	}
	if q.HasOCR {
		where = append(where, "has_ocr = 1")
	}
	if q.HasVision {
		where = append(where, "(COALESCE(label, '') != '' OR COALESCE(caption, '') != '')")
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if exts := NormalizeExtensions(q.Extensions); len(exts) > 0 {
		where = append(where, "extension IN ("+placeholders(len(exts))+")")
		for _, ext := range exts {
			args = append(args, ext)
		}
	}
	if q.DateFrom != nil || q.DateTo != nil {
		where = append(where, "COALESCE(original_date, modified_date, created_date) IS NOT NULL")
	}
	if q.DateFrom != nil {
		where = append(where, "COALESCE(original_date, modified_date, created_date) >= ?")
		args = append(args, q.DateFrom.UTC().Format(timeLayout))
	}
	if q.DateTo != nil {
		where = append(where, "COALESCE(original_date, modified_date, created_date) < ?")
		args = append(args, q.DateTo.UTC().Format(timeLayout))
	}
	if len(q.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(q.IDs))+")")
		args = append(args, int64Args(q.IDs)...)
	}

	return where, args
}

// likeClause matches any term as a substring of name, label or caption.
func likeClause(terms []string) (string, []any) {
	var parts []string
	var args []any
	for _, term := range terms {
		pattern := "%" + term + "%"
		parts = append(parts, "file_name LIKE ? OR label LIKE ? OR caption LIKE ?")
		args = append(args, pattern, pattern, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// candidateOrder scores rows in SQL the way scoreRecord does, so the best
// candidates survive the maxCandidates cap. Its placeholders follow the
// WHERE placeholders.
func candidateOrder(terms []string) (string, []any) {
	var sums []string
	var args []any
	for _, term := range terms {
		pattern := "%" + term + "%"
		var sb strings.Builder
		sb.WriteString("CASE")
		for _, fw := range fieldWeights {
			fmt.Fprintf(&sb, " WHEN COALESCE(%s, '') LIKE ? THEN %g", fw.column, fw.weight*10)
			args = append(args, pattern)
		}
		sb.WriteString(" ELSE 0 END")
		sums = append(sums, sb.String())
	}
	order := "(" + strings.Join(sums, " + ") + ") DESC, COALESCE(original_date, modified_date, created_date) DESC, id DESC"
	return order, args
}

// ftsExpression ORs prefix queries for each term.
func ftsExpression(terms []string) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		parts[i] = term + "*"
	}
	return strings.Join(parts, " OR ")
}

// normalizeTerms lower-cases terms and strips FTS syntax characters.
func normalizeTerms(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range in {
		for _, word := range strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if !seen[word] {
				seen[word] = true
				out = append(out, word)
			}
		}
	}
	return out
}

// scoreRecord averages, over the terms, the weight of the best field that
// contains each term, scaled to 0..10.
func scoreRecord(rec *FileRecord, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}

	fields := make([]string, len(fieldWeights))
	for i, fw := range fieldWeights {
		fields[i] = strings.ToLower(fw.value(rec))
	}

	var total float64
	for _, term := range terms {
		best := 0.0
		for i, fw := range fieldWeights {
			if fw.weight > best && strings.Contains(fields[i], term) {
				best = fw.weight
			}
		}
		total += best
	}
	return 10 * total / float64(len(terms))
}

// NormalizeExtensions lower-cases extensions and ensures the leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool)
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			out = append(out, ext)
		}
	}
	return out
}
