package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/embeddings"
	"github.com/nickcecere/lfind/internal/fs"
	"github.com/nickcecere/lfind/internal/llm"
	"github.com/nickcecere/lfind/internal/store"
)

// mockEmbedder returns a fixed query vector.
type mockEmbedder struct {
	query []float32
	err   error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.query, m.err
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.query, m.err
}

func (m *mockEmbedder) Dimensions() int {
	return len(m.query)
}

func (m *mockEmbedder) Provider() embeddings.Provider {
	return embeddings.ProviderOllama
}

func (m *mockEmbedder) ModelName() string {
	return "test-model"
}

var _ embeddings.Service = (*mockEmbedder)(nil)

// stubLLM answers every completion with reply.
type stubLLM struct {
	reply func() (string, error)
	calls int
}

func (s *stubLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (string, error) {
	s.calls++
	return s.reply()
}

func (s *stubLLM) Provider() llm.Provider {
	return llm.ProviderOllama
}

func (s *stubLLM) ModelName() string {
	return "stub"
}

var _ llm.Service = (*stubLLM)(nil)

type testEnv struct {
	dir   string
	store *store.SQLiteStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &testEnv{dir: t.TempDir(), store: st}
}

// add writes a file on disk and its record, returning the stored record.
func (e *testEnv) add(t *testing.T, name string, modified time.Time, vec []float32, edit func(*store.FileRecord)) *store.FileRecord {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))

	rec := &store.FileRecord{
		FilePath:     path,
		FileName:     name,
		Extension:    strings.ToLower(filepath.Ext(name)),
		Category:     fs.CategoryFor(name),
		FileSize:     int64(len(name)),
		CreatedDate:  modified,
		ModifiedDate: modified,
	}
	if edit != nil {
		edit(rec)
	}
	if vec != nil {
		rec.EmbeddingKey = "test"
	}
	_, err := e.store.Upsert(rec, vec)
	require.NoError(t, err)
	return rec
}

func names(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.FileName
	}
	return out
}

func TestSearchNaturalLanguageDate(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	yesterdayNoon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local).AddDate(0, 0, -1)

	env.add(t, "report.txt", yesterdayNoon, nil, nil)
	env.add(t, "report-old.txt", now.AddDate(0, 0, -10), nil, nil)
	env.add(t, "notes.txt", yesterdayNoon, nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())
	resp, err := svc.Search(context.Background(), "report from yesterday", 10)
	require.NoError(t, err)

	assert.Equal(t, "report from", resp.Parsed.CleanQuery)
	assert.Equal(t, "yesterday", resp.Parsed.DateFilter)
	assert.Equal(t, []string{"report.txt"}, names(resp.Results))
}

func TestSearchTypeFilter(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.add(t, "budget.pdf", now, nil, nil)
	env.add(t, "budget.xlsx", now, nil, nil)
	env.add(t, "budget.txt", now, nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())
	resp, err := svc.Search(context.Background(), "budget pdf", 10)
	require.NoError(t, err)

	assert.Equal(t, "pdfs", resp.Parsed.TypeFilter)
	assert.Equal(t, []string{"budget.pdf"}, names(resp.Results))
	assert.Equal(t, 10.0, resp.Results[0].Rank)
	assert.Equal(t, 1.0, resp.Results[0].Relevance)
}

func TestSearchFilterOnlyListing(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.add(t, "old.jpg", now.Add(-48*time.Hour), nil, nil)
	env.add(t, "new.png", now.Add(-time.Hour), nil, nil)
	env.add(t, "doc.txt", now, nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())
	resp, err := svc.Search(context.Background(), "photos", 10)
	require.NoError(t, err)

	assert.Empty(t, resp.Parsed.CleanQuery)
	assert.Equal(t, []string{"new.png", "old.jpg"}, names(resp.Results))
	for _, r := range resp.Results {
		assert.Zero(t, r.Rank)
		assert.Zero(t, r.Relevance)
	}
}

func TestSearchStopwordsWithFiltersList(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	yesterdayNoon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local).AddDate(0, 0, -1)

	env.add(t, "beach.jpg", yesterdayNoon, nil, nil)
	env.add(t, "old.jpg", now.AddDate(0, 0, -20), nil, nil)
	env.add(t, "notes.txt", yesterdayNoon, nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())

	resp, err := svc.Search(context.Background(), "photos from yesterday", 10)
	require.NoError(t, err)
	assert.Equal(t, "images", resp.Parsed.TypeFilter)
	assert.Equal(t, "yesterday", resp.Parsed.DateFilter)
	assert.Equal(t, []string{"beach.jpg"}, names(resp.Results))

	resp, err = svc.Search(context.Background(), "show me files from yesterday", 10)
	require.NoError(t, err)
	assert.Equal(t, "yesterday", resp.Parsed.DateFilter)
	assert.ElementsMatch(t, []string{"beach.jpg", "notes.txt"}, names(resp.Results))
}

func TestSearchOperators(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.add(t, "beach.jpg", now, nil, func(r *store.FileRecord) {
		r.Label = "landscape"
		r.Tags = store.Tags{"beach", "sunset"}
		r.Caption = "Sunset at the beach"
	})
	env.add(t, "receipt.jpg", now, nil, func(r *store.FileRecord) {
		r.Label = "receipt"
		r.OCRText = "total 12.50"
		r.HasOCR = true
	})
	env.add(t, "plain.jpg", now, nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		query string
		want  []string
	}{
		{"tag:beach", []string{"beach.jpg"}},
		{"label:receipt", []string{"receipt.jpg"}},
		{"type:landscape", []string{"beach.jpg"}},
		{"has:ocr", []string{"receipt.jpg"}},
		{"sunset has:vision", []string{"beach.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := svc.SearchFiles(ctx, Request{Query: tt.query, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(results))
		})
	}

	// operators survive the natural language parser
	resp, err := svc.Search(ctx, "type:landscape photos", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"beach.jpg"}, names(resp.Results))
}

func TestSearchMergesSemanticHits(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	vague := env.add(t, "zzz.txt", now, []float32{1, 0, 0}, nil)
	captioned := env.add(t, "beach.jpg", now, []float32{0, 1, 0}, func(r *store.FileRecord) {
		r.Caption = "a sunset"
	})

	svc := New(env.store, &mockEmbedder{query: []float32{1, 0, 0}}, nil, config.DefaultConfig())
	results, err := svc.SearchFiles(context.Background(), Request{Query: "sunset", Limit: 10})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)

	assert.Equal(t, vague.ID, results[0].ID)
	assert.InDelta(t, 10.0, results[0].Rank, 1e-4)
	assert.Equal(t, captioned.ID, results[1].ID)
	assert.InDelta(t, 6.0, results[1].Rank, 1e-9)

	// semantic hits obey the structured filters
	results, err = svc.SearchFiles(context.Background(), Request{Query: "sunset", Limit: 10, TypeFilter: "images"})
	require.NoError(t, err)
	assert.Equal(t, []string{"beach.jpg"}, names(results))
}

func TestSearchSemanticFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "sunset.jpg", time.Now(), nil, nil)

	svc := New(env.store, &mockEmbedder{err: errors.New("offline")}, nil, config.DefaultConfig())
	results, err := svc.SearchFiles(context.Background(), Request{Query: "sunset"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset.jpg"}, names(results))
}

func TestSearchRerank(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	first := env.add(t, "sunset.jpg", now, nil, nil)
	second := env.add(t, "other.jpg", now, nil, func(r *store.FileRecord) {
		r.Caption = "sunset over hills"
	})

	cfg := config.DefaultConfig()
	cfg.Search.Rerank = true

	stub := &stubLLM{reply: func() (string, error) {
		return fmt.Sprintf("[%d, %d]", second.ID, first.ID), nil
	}}
	svc := New(env.store, nil, llm.NewReranker(stub), cfg)

	results, err := svc.SearchFiles(context.Background(), Request{Query: "sunset", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"other.jpg", "sunset.jpg"}, names(results))
	assert.Equal(t, 1, stub.calls)

	// failure keeps the keyword order
	stub.reply = func() (string, error) { return "", errors.New("boom") }
	results, err = svc.SearchFiles(context.Background(), Request{Query: "sunset", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset.jpg", "other.jpg"}, names(results))

	// listings are never re-ranked
	_, err = svc.SearchFiles(context.Background(), Request{TypeFilter: "images"})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}

func TestSearchLimit(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		env.add(t, fmt.Sprintf("note%d.txt", i), now, nil, nil)
	}

	svc := New(env.store, nil, nil, config.DefaultConfig())
	results, err := svc.SearchFiles(context.Background(), Request{Query: "note", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestResultDecoration(t *testing.T) {
	env := newTestEnv(t)
	long := strings.Repeat("x", 250)
	rec := env.add(t, "scan.txt", time.Now(), nil, func(r *store.FileRecord) {
		r.OCRText = long
		r.HasOCR = true
	})

	res := newResult(*rec, 4)
	assert.True(t, res.Exists)
	assert.InDelta(t, 0.4, res.Relevance, 1e-9)
	assert.Equal(t, strings.Repeat("x", 200)+"...", res.OCRPreview)
	assert.Equal(t, "8.0 B", res.SizeFormatted)

	require.NoError(t, os.Remove(rec.FilePath))
	res = newResult(*rec, 25)
	assert.False(t, res.Exists)
	assert.Equal(t, 1.0, res.Relevance)
}

func TestFileDetails(t *testing.T) {
	env := newTestEnv(t)
	rec := env.add(t, "a.txt", time.Now(), nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())
	got, err := svc.FileDetails(rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, got.Exists)

	_, err = svc.FileDetails(filepath.Join(env.dir, "missing.txt"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchByCategoryAndStatistics(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.add(t, "a.mp3", now, nil, nil)
	env.add(t, "b.wav", now, nil, nil)
	env.add(t, "c.txt", now, nil, nil)

	svc := New(env.store, nil, nil, config.DefaultConfig())
	results, err := svc.SearchByCategory(fs.CategoryAudio, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	stats, err := svc.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.ByCategory[fs.CategoryAudio])
}

func TestParseOperators(t *testing.T) {
	ops := parseOperators("Label:Receipt tag:food tag:2024 has:OCR has:vision lunch  bill")
	assert.Equal(t, "Receipt", ops.label)
	assert.Equal(t, []string{"food", "2024"}, ops.tags)
	assert.True(t, ops.hasOCR)
	assert.True(t, ops.hasVision)
	assert.Equal(t, "lunch bill", ops.text())
	assert.Len(t, ops.tokens, 5)
}

func TestKeywordTerms(t *testing.T) {
	assert.Equal(t, []string{"report"}, keywordTerms([]string{"report", "from"}, false))
	assert.Equal(t, []string{"report"}, keywordTerms([]string{"report", "from"}, true))
	assert.Equal(t, []string{"the"}, keywordTerms([]string{"the"}, false))
	assert.Empty(t, keywordTerms([]string{"from"}, true))
	assert.Empty(t, keywordTerms(nil, false))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512.0 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 << 40, "3.0 TB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.size))
	}
}
