package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/indexer"
	"github.com/nickcecere/lfind/internal/ui"
	"github.com/nickcecere/lfind/internal/watcher"
)

var (
	watchNoInitial bool
	watchNoVision  bool
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Watch directories and keep the index up to date",
	Long: `Watch directories for file changes and update the index automatically.

Without arguments the directories listed under watch.paths in the config are
watched. New and changed files are indexed once they have been quiet for
watch.debounce; deleted files are removed from the index.

Examples:
  # Watch the configured directories
  lfind watch

  # Watch a specific directory, skipping the initial scan
  lfind watch ~/Downloads --no-initial`,
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoInitial, "no-initial", false, "skip initial index of the watched directories")
	watchCmd.Flags().BoolVar(&watchNoVision, "no-vision", false, "skip image analysis")
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	roots := args
	if len(roots) == 0 {
		roots = cfg.Watch.Paths
	}
	if len(roots) == 0 {
		return fmt.Errorf("no directories to watch: pass paths or set watch.paths in %s", configLocation())
	}

	ctx, cancel := signalContext()
	defer cancel()

	svc, err := openServices(serviceOptions{vision: !watchNoVision})
	if err != nil {
		return err
	}
	defer svc.Close()

	idx := svc.newIndexer(indexer.Options{})

	w, err := watcher.New(roots, idx, svc.store, cfg,
		watcher.WithEventCallback(func(event, path string) {
			switch event {
			case "index":
				fmt.Println(ui.Success.Render("+ ") + path)
			case "delete":
				fmt.Println(ui.Warning.Render("- ") + path)
			}
		}),
	)
	if err != nil {
		return err
	}

	if !watchNoInitial {
		progress := ui.NewProgress("Syncing")
		queue := indexer.NewQueue(ctx, idx, func(job indexer.Job, done, total int, message string) {
			progress.Update(done, total, message)
		})
		for _, root := range w.Roots() {
			queue.Enqueue(root)
		}
		queue.Close()
		progress.Finish()

		for _, job := range queue.Jobs() {
			if job.Status == indexer.JobFailed {
				log.Warn("Initial sync failed", "path", job.Directory, "error", job.Err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	for _, root := range w.Roots() {
		fmt.Println(ui.Header.Render("Watching " + filepath.Clean(root)))
	}
	fmt.Println(ui.Dim.Render("Press Ctrl+C to stop"))

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("\nStopped watching.")
	return nil
}
