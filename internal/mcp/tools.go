package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchFilesTool = mcp.NewTool("search_files",
	mcp.WithDescription("Search indexed local files with natural language. Understands file types (\"pdfs\", \"screenshots\"), dates (\"from last week\", \"in march 2024\") and operators (tag:, label:, has:ocr, has:vision)."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
)

var getFileDetailsTool = mcp.NewTool("get_file_details",
	mcp.WithDescription("Get everything the index knows about one file: dates, extracted text, caption, label and tags."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the file"),
	),
)

var indexStatisticsTool = mcp.NewTool("index_statistics",
	mcp.WithDescription("Get counts for the file index: total files, files with text, analyzed images and files per category."),
)

var indexFileTool = mcp.NewTool("index_file",
	mcp.WithDescription("Add or refresh one file in the index."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path of the file to index"),
	),
	mcp.WithBoolean("force",
		mcp.Description("Re-run image analysis even if the file is already enriched"),
	),
)
