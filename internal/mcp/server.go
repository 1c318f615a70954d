// Package mcp exposes the file index to MCP clients over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/store"
)

// ServerName is the name reported to clients.
const ServerName = "lfind"

// Version is reported to clients; the CLI sets it from the build.
var Version = "dev"

// Indexer indexes one file on request.
type Indexer interface {
	IndexSingleFile(ctx context.Context, path string, force bool) (*store.FileRecord, error)
}

// Server is the MCP server for lfind.
type Server struct {
	searcher *search.Service
	indexer  Indexer
	mcp      *server.MCPServer
}

// NewServer creates a server. indexer may be nil, in which case index_file
// reports an error.
func NewServer(searcher *search.Service, indexer Indexer) *Server {
	s := &Server{
		searcher: searcher,
		indexer:  indexer,
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		Version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchFilesTool, s.handleSearchFiles)
	s.mcp.AddTool(getFileDetailsTool, s.handleGetFileDetails)
	s.mcp.AddTool(indexStatisticsTool, s.handleIndexStatistics)
	s.mcp.AddTool(indexFileTool, s.handleIndexFile)
}

// Serve runs on stdin/stdout until the client disconnects. Logging must go
// to stderr while serving.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
