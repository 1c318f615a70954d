// Package search combines keyword, structured and semantic lookups over the
// file index into ranked results.
package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/embeddings"
	"github.com/nickcecere/lfind/internal/extract"
	"github.com/nickcecere/lfind/internal/llm"
	"github.com/nickcecere/lfind/internal/query"
	"github.com/nickcecere/lfind/internal/store"
)

// previewChars is the length of Result.OCRPreview before the ellipsis.
const previewChars = 200

// Service answers search requests. Embedder and reranker are optional.
type Service struct {
	store    store.Store
	embedder embeddings.Service
	reranker *llm.Reranker
	parser   *query.Parser
	cfg      config.SearchConfig
}

// Request is a structured search. Query may contain operators.
type Request struct {
	Query      string
	Limit      int
	TypeFilter string
	DateStart  *time.Time // inclusive
	DateEnd    *time.Time // exclusive
	Extensions []string
}

// Result is a file record decorated for display.
type Result struct {
	store.FileRecord
	Rank          float64 `json:"rank"`
	Relevance     float64 `json:"relevance"`
	Exists        bool    `json:"exists"`
	SizeFormatted string  `json:"size_formatted"`
	OCRPreview    string  `json:"ocr_preview,omitempty"`
}

// Response is the result of a natural language search.
type Response struct {
	Parsed  *query.Parsed `json:"parsed"`
	Results []Result      `json:"results"`
}

// New creates a search service.
func New(st store.Store, emb embeddings.Service, reranker *llm.Reranker, cfg *config.Config) *Service {
	return &Service{
		store:    st,
		embedder: emb,
		reranker: reranker,
		parser:   query.NewParser(query.Options{FuzzyCorrection: cfg.Query.FuzzyCorrection}),
		cfg:      cfg.Search,
	}
}

// Search parses a natural language query into filters and runs it.
func (s *Service) Search(ctx context.Context, raw string, limit int) (*Response, error) {
	// operators are kept away from the parser so "type:images" is not
	// read as a file type
	ops := parseOperators(raw)
	parsed := s.parser.Parse(ops.text())

	req := Request{
		Query:      strings.TrimSpace(parsed.CleanQuery + " " + strings.Join(ops.tokens, " ")),
		Limit:      limit,
		TypeFilter: parsed.TypeFilter,
		Extensions: parsed.Extensions,
	}
	if parsed.DateRange != nil {
		start, end := parsed.DateRange.Start, parsed.DateRange.End
		req.DateStart, req.DateEnd = &start, &end
	}

	log.Debug("Parsed query",
		"raw", raw,
		"clean", parsed.CleanQuery,
		"type", parsed.TypeFilter,
		"date", parsed.DateFilter,
	)

	results, err := s.SearchFiles(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{Parsed: parsed, Results: results}, nil
}

// SearchFiles runs a keyword search with structured filters, merges in
// semantic hits, optionally re-ranks and returns at most Limit results.
// A query with no words lists the filtered records newest first.
func (s *Service) SearchFiles(ctx context.Context, req Request) ([]Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}

	ops := parseOperators(req.Query)
	filtered := ops.filtered() || req.TypeFilter != "" || len(req.Extensions) > 0 ||
		req.DateStart != nil || req.DateEnd != nil
	terms := keywordTerms(ops.words, filtered)

	exts := req.Extensions
	if len(exts) == 0 && req.TypeFilter != "" {
		exts = query.ExtensionsForType(req.TypeFilter)
	}

	q := store.Query{
		Terms:      terms,
		Label:      ops.label,
		Tags:       ops.tags,
		HasOCR:     ops.hasOCR,
		HasVision:  ops.hasVision,
		Extensions: exts,
		DateFrom:   req.DateStart,
		DateTo:     req.DateEnd,
		Limit:      limit,
	}
	if len(terms) > 0 && filtered {
		q.Limit = limit * 3
	}

	matches, err := s.store.Search(q)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	if len(terms) > 0 {
		semantic := s.semanticMatches(ctx, ops, q)
		matches = merge(matches, semantic)
		matches = s.rerank(ctx, ops.text(), matches)
	}

	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = newResult(m.Record, m.Rank)
	}

	log.Debug("Search complete", "query", req.Query, "results", len(results))
	return results, nil
}

// semanticMatches returns nearest neighbours of the query text restricted
// by the same structured filters, ranked cos*10. Failures degrade to none.
func (s *Service) semanticMatches(ctx context.Context, ops operators, q store.Query) []store.Match {
	if s.embedder == nil {
		return nil
	}

	text := ops.text()
	if ops.label != "" {
		text += " " + ops.label
	}
	if len(ops.tags) > 0 {
		text += " " + strings.Join(ops.tags, " ")
	}

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		log.Debug("Semantic search unavailable", "error", err)
		return nil
	}

	hits, err := s.store.SearchVectors(vec, q.Limit)
	if err != nil {
		log.Debug("Vector search failed", "error", err)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	similarity := make(map[int64]float64, len(hits))
	ids := make([]int64, len(hits))
	for i, h := range hits {
		similarity[h.FileID] = h.Similarity
		ids[i] = h.FileID
	}

	// Same filters, no terms: a listing of the hit ids
	fq := q
	fq.Terms = nil
	fq.IDs = ids
	fq.Limit = len(ids)
	filtered, err := s.store.Search(fq)
	if err != nil {
		log.Debug("Failed to filter semantic hits", "error", err)
		return nil
	}

	for i := range filtered {
		filtered[i].Rank = similarity[filtered[i].Record.ID] * 10
	}
	return filtered
}

// merge unions keyword and semantic matches keeping the higher rank and
// orders them by rank.
func merge(keyword, semantic []store.Match) []store.Match {
	byID := make(map[int64]int, len(keyword)+len(semantic))
	merged := make([]store.Match, 0, len(keyword)+len(semantic))

	for _, m := range append(keyword, semantic...) {
		if i, ok := byID[m.Record.ID]; ok {
			if m.Rank > merged[i].Rank {
				merged[i].Rank = m.Rank
			}
			continue
		}
		byID[m.Record.ID] = len(merged)
		merged = append(merged, m)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Rank > merged[j].Rank
	})
	return merged
}

// rerank reorders the top matches with the LLM. Any failure or timeout
// keeps the merged order.
func (s *Service) rerank(ctx context.Context, text string, matches []store.Match) []store.Match {
	if s.reranker == nil || !s.cfg.Rerank || len(matches) < 2 {
		return matches
	}

	n := s.cfg.RerankTopN
	if n <= 0 || n > len(matches) {
		n = len(matches)
	}

	candidates := make([]llm.Candidate, n)
	byID := make(map[int64]store.Match, n)
	for i, m := range matches[:n] {
		rec := m.Record
		candidates[i] = llm.Candidate{
			ID:       rec.ID,
			Name:     rec.FileName,
			Category: rec.Category,
			Label:    rec.Label,
			Caption:  rec.Caption,
			Tags:     rec.Tags,
			Preview:  extract.Truncate(rec.OCRText, previewChars),
		}
		byID[rec.ID] = m
	}

	if s.cfg.RerankTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RerankTimeout)
		defer cancel()
	}

	order, err := s.reranker.Rerank(ctx, text, candidates)
	if err != nil {
		log.Warn("Re-ranking failed, keeping keyword order", "error", err)
		return matches
	}

	reranked := make([]store.Match, 0, len(matches))
	for _, id := range order {
		reranked = append(reranked, byID[id])
	}
	return append(reranked, matches[n:]...)
}

// FileDetails returns the record for path. Unknown paths return
// store.ErrNotFound.
func (s *Service) FileDetails(path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	rec, err := s.store.GetByPath(abs)
	if err != nil {
		return nil, err
	}
	res := newResult(*rec, 0)
	return &res, nil
}

// Statistics returns index-wide counts.
func (s *Service) Statistics() (*store.Statistics, error) {
	return s.store.Statistics()
}

// SearchByCategory lists the newest records of one category.
func (s *Service) SearchByCategory(category string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}
	matches, err := s.store.Search(store.Query{Category: category, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list category %s: %w", category, err)
	}
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = newResult(m.Record, m.Rank)
	}
	return results, nil
}

func newResult(rec store.FileRecord, rank float64) Result {
	res := Result{
		FileRecord:    rec,
		Rank:          rank,
		SizeFormatted: FormatSize(rec.FileSize),
	}
	if rank > 0 {
		res.Relevance = min(rank/10, 1)
	}
	if _, err := os.Stat(rec.FilePath); err == nil {
		res.Exists = true
	}
	if rec.OCRText != "" {
		res.OCRPreview = extract.Truncate(rec.OCRText, previewChars)
		if len([]rune(rec.OCRText)) > previewChars {
			res.OCRPreview += "..."
		}
	}
	return res
}

// FormatSize renders a byte count as B, KB, MB, GB or TB with one decimal.
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}
