package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/store"
)

func (s *Server) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	resp, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No files found. Index a directory with `lfind index <path>` first."), nil
	}

	return mcp.NewToolResultText(formatResults(resp)), nil
}

func (s *Server) handleGetFileDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	res, err := s.searcher.FileDetails(path)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not indexed", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load file: %v", err)), nil
	}

	return mcp.NewToolResultText(formatDetails(res)), nil
}

func (s *Server) handleIndexStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.searcher.Statistics()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get statistics: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total files: %d\n", stats.TotalFiles)
	fmt.Fprintf(&sb, "Files with text: %d\n", stats.FilesWithOCR)
	fmt.Fprintf(&sb, "Analyzed images: %d\n", stats.FilesAnalyzed)
	fmt.Fprintf(&sb, "Total size: %.1f MB\n", stats.TotalSizeMB)
	if stats.LastIndexedAt != nil {
		fmt.Fprintf(&sb, "Last indexed: %s\n", stats.LastIndexedAt.Format("2006-01-02 15:04"))
	}

	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&sb, "  %s: %d\n", c, stats.ByCategory[c])
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	if s.indexer == nil {
		return mcp.NewToolResultError("indexing is not available"), nil
	}

	rec, err := s.indexer.IndexSingleFile(ctx, path, request.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to index %s: %v", path, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Indexed %s (%s)", rec.FilePath, rec.Category)), nil
}

func formatResults(resp *search.Response) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d file(s)", len(resp.Results))
	if resp.Parsed != nil && resp.Parsed.HasFilters() {
		var filters []string
		if resp.Parsed.TypeFilter != "" {
			filters = append(filters, "type "+resp.Parsed.TypeFilter)
		}
		if resp.Parsed.DateFilter != "" {
			filters = append(filters, "date "+resp.Parsed.DateFilter)
		}
		fmt.Fprintf(&sb, " (%s)", strings.Join(filters, ", "))
	}
	sb.WriteString(":\n")

	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, r.FilePath)
		fmt.Fprintf(&sb, "Category: %s, Size: %s, Modified: %s\n",
			r.Category, r.SizeFormatted, r.ModifiedDate.Format("2006-01-02"))
		if r.Rank > 0 {
			fmt.Fprintf(&sb, "Relevance: %.0f%%\n", r.Relevance*100)
		}
		if r.Caption != "" {
			fmt.Fprintf(&sb, "Caption: %s\n", r.Caption)
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", r.Tags.String())
		}
		if r.OCRPreview != "" {
			fmt.Fprintf(&sb, "Text: %s\n", r.OCRPreview)
		}
		if !r.Exists {
			sb.WriteString("(file no longer exists on disk)\n")
		}
	}
	return sb.String()
}

func formatDetails(r *search.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Path: %s\n", r.FilePath)
	fmt.Fprintf(&sb, "Category: %s\n", r.Category)
	fmt.Fprintf(&sb, "Size: %s\n", r.SizeFormatted)
	fmt.Fprintf(&sb, "Created: %s\n", r.CreatedDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Modified: %s\n", r.ModifiedDate.Format("2006-01-02 15:04"))
	if r.OriginalDate != nil {
		fmt.Fprintf(&sb, "Original date: %s\n", r.OriginalDate.Format("2006-01-02 15:04"))
	}
	if r.Label != "" {
		fmt.Fprintf(&sb, "Label: %s\n", r.Label)
	}
	if r.Caption != "" {
		fmt.Fprintf(&sb, "Caption: %s\n", r.Caption)
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", r.Tags.String())
	}
	if r.OCRText != "" {
		fmt.Fprintf(&sb, "\nText:\n%s\n", r.OCRText)
	}
	return sb.String()
}
