package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/store"
)

type mockIndexer struct {
	st    store.Store
	force bool
	err   error
}

func (m *mockIndexer) IndexSingleFile(ctx context.Context, path string, force bool) (*store.FileRecord, error) {
	m.force = force
	if m.err != nil {
		return nil, m.err
	}
	rec := &store.FileRecord{
		FilePath:     path,
		FileName:     filepath.Base(path),
		Extension:    filepath.Ext(path),
		Category:     "Documents",
		ModifiedDate: time.Now(),
	}
	id, err := m.st.Upsert(rec, nil)
	rec.ID = id
	return rec, err
}

var _ Indexer = (*mockIndexer)(nil)

func newTestServer(t *testing.T) (*Server, *mockIndexer, string) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	dir := t.TempDir()
	path := filepath.Join(dir, "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0644))
	_, err = st.Upsert(&store.FileRecord{
		FilePath:     path,
		FileName:     "invoice.pdf",
		Extension:    ".pdf",
		Category:     "Documents",
		FileSize:     2048,
		ModifiedDate: time.Now(),
		OCRText:      "Invoice total due 42 dollars",
		HasOCR:       true,
		Tags:         store.Tags{"finance"},
	}, nil)
	require.NoError(t, err)

	idx := &mockIndexer{st: st}
	srv := NewServer(search.New(st, nil, nil, config.DefaultConfig()), idx)
	return srv, idx, dir
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	for name, tool := range map[string]mcp.Tool{
		"search_files":     searchFilesTool,
		"get_file_details": getFileDetailsTool,
		"index_statistics": indexStatisticsTool,
		"index_file":       indexFileTool,
	} {
		assert.Equal(t, name, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
}

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.NotNil(t, srv.mcp)
	assert.NotNil(t, srv.searcher)
}

func TestHandleSearchFiles(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	t.Run("match", func(t *testing.T) {
		res, err := srv.handleSearchFiles(ctx, call(map[string]any{"query": "invoice pdf"}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		text := resultText(t, res)
		assert.Contains(t, text, "Found 1 file(s) (type pdfs)")
		assert.Contains(t, text, "invoice.pdf")
		assert.Contains(t, text, "Tags: finance")
	})

	t.Run("operator", func(t *testing.T) {
		res, err := srv.handleSearchFiles(ctx, call(map[string]any{"query": "tag:finance", "limit": 5}))
		require.NoError(t, err)
		assert.Contains(t, resultText(t, res), "invoice.pdf")
	})

	t.Run("no results", func(t *testing.T) {
		res, err := srv.handleSearchFiles(ctx, call(map[string]any{"query": "holiday"}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Contains(t, resultText(t, res), "No files found")
	})

	t.Run("missing query", func(t *testing.T) {
		res, err := srv.handleSearchFiles(ctx, call(map[string]any{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestHandleGetFileDetails(t *testing.T) {
	srv, _, dir := newTestServer(t)
	ctx := context.Background()

	res, err := srv.handleGetFileDetails(ctx, call(map[string]any{"path": filepath.Join(dir, "invoice.pdf")}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Size: 2.0 KB")
	assert.Contains(t, text, "Invoice total due 42 dollars")

	res, err = srv.handleGetFileDetails(ctx, call(map[string]any{"path": filepath.Join(dir, "other.txt")}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "is not indexed")
}

func TestHandleIndexStatistics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, err := srv.handleIndexStatistics(context.Background(), call(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Total files: 1")
	assert.Contains(t, text, "Files with text: 1")
	assert.Contains(t, text, "Documents: 1")
}

func TestHandleIndexFile(t *testing.T) {
	srv, idx, dir := newTestServer(t)
	ctx := context.Background()
	path := filepath.Join(dir, "notes.txt")

	res, err := srv.handleIndexFile(ctx, call(map[string]any{"path": path, "force": true}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Indexed "+path+" (Documents)", resultText(t, res))
	assert.True(t, idx.force)

	idx.err = errors.New("not readable")
	res, err = srv.handleIndexFile(ctx, call(map[string]any{"path": path}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	srv.indexer = nil
	res, err = srv.handleIndexFile(ctx, call(map[string]any{"path": path}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
