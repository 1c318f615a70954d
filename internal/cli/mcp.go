package cli

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/indexer"
	"github.com/nickcecere/lfind/internal/mcp"
	"github.com/nickcecere/lfind/internal/watcher"
)

var mcpWatch bool

// mcpCmd represents the MCP server command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server for AI assistants",
	Long: `Start a Model Context Protocol (MCP) server on stdin/stdout.

Tools:
  - search_files:     natural language file search
  - get_file_details: everything indexed for one file
  - index_statistics: index counts
  - index_file:       add or refresh one file

With --watch the directories in watch.paths are kept up to date in the
background while the server runs.`,
	Args: cobra.NoArgs,
	RunE: runMcpCmd,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpWatch, "watch", false, "watch the configured directories while serving")
}

func runMcpCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, err := openServices(serviceOptions{vision: true, rerank: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	idx := svc.newIndexer(indexer.Options{})

	if mcpWatch && len(cfg.Watch.Paths) > 0 {
		w, err := watcher.New(cfg.Watch.Paths, idx, svc.store, cfg)
		if err != nil {
			log.Warn("Failed to start watcher", "error", err)
		} else {
			go func() {
				if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Watcher stopped", "error", err)
				}
			}()
		}
	}

	log.Info("MCP server starting")
	return mcp.NewServer(svc.newSearcher(), idx).Serve()
}
