package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/fs"
	"github.com/nickcecere/lfind/internal/indexer"
	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/ui"
)

var (
	indexForce      bool
	indexDryRun     bool
	indexNoVision   bool
	indexInclude    []string
	indexExtensions []string
	indexIgnore     []string
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index directories for search",
	Long: `Index the files in one or more directories (default: current directory).

Each file gets a record with its dates, size and category. Text is extracted
from documents and images are described by the vision model when enabled.
Directories are indexed one after another; Ctrl+C stops after the current file.

Examples:
  # Index current directory
  lfind index

  # Index several directories
  lfind index ~/Documents ~/Pictures

  # Only PDFs and images under a folder
  lfind index ~/Downloads --include "**/*.pdf" --include "**/*.{jpg,png}"

  # Re-run image analysis on files that already have it
  lfind index ~/Pictures --force

  # Preview what would be indexed
  lfind index --dry-run`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "re-analyze files that are already enriched")
	indexCmd.Flags().BoolVarP(&indexDryRun, "dry-run", "d", false, "preview without indexing")
	indexCmd.Flags().BoolVar(&indexNoVision, "no-vision", false, "skip image analysis")
	indexCmd.Flags().StringSliceVar(&indexInclude, "include", nil, "only index paths matching these globs (e.g. \"**/*.pdf\")")
	indexCmd.Flags().StringSliceVarP(&indexExtensions, "ext", "e", nil, "file extensions to include (e.g., .pdf, .jpg)")
	indexCmd.Flags().StringSliceVarP(&indexIgnore, "ignore", "i", nil, "additional patterns to ignore")
}

func runIndex(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("path does not exist: %s", abs)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", abs)
		}
		dirs = append(dirs, abs)
	}

	log.Debug("Starting index",
		"paths", dirs,
		"force", indexForce,
		"dry-run", indexDryRun,
		"vision", cfg.Vision.Enabled && !indexNoVision,
	)

	if indexDryRun {
		for _, dir := range dirs {
			if err := runDryRun(dir); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	svc, err := openServices(serviceOptions{vision: !indexNoVision})
	if err != nil {
		return err
	}
	defer svc.Close()

	idx := svc.newIndexer(indexer.Options{
		Force:          indexForce,
		Include:        indexInclude,
		Extensions:     indexExtensions,
		IgnorePatterns: indexIgnore,
	})

	progress := ui.NewProgress("Indexing")
	queue := indexer.NewQueue(ctx, idx, func(job indexer.Job, done, total int, message string) {
		progress.Update(done, total, message)
	})
	for _, dir := range dirs {
		queue.Enqueue(dir)
	}
	queue.Close()
	progress.Finish()

	for _, job := range queue.Jobs() {
		printJob(job)
	}
	return nil
}

func printJob(job indexer.Job) {
	fmt.Println(ui.Header.Render(job.Directory))

	switch job.Status {
	case indexer.JobFailed:
		fmt.Println(ui.Error.Render(fmt.Sprintf("  Failed: %v", job.Err)))
		return
	case indexer.JobCancelled:
		fmt.Println(ui.Warning.Render("  Indexing cancelled"))
	default:
		fmt.Println(ui.Success.Render("  Indexing complete!"))
	}

	if res := job.Result; res != nil {
		fmt.Printf("  Files:    %d\n", res.TotalFiles)
		fmt.Printf("  Indexed:  %d\n", res.IndexedFiles)
		fmt.Printf("  Skipped:  %d\n", res.SkippedFiles)
		fmt.Printf("  Text:     %d\n", res.FilesWithOCR)
		if res.Errors > 0 {
			fmt.Printf("  Errors:   %s\n", ui.Warning.Render(fmt.Sprint(res.Errors)))
		}
		fmt.Printf("  Duration: %s\n", res.Duration.Round(time.Millisecond))
	}
	fmt.Println()
}

// runDryRun shows what would be indexed without actually indexing.
func runDryRun(path string) error {
	fmt.Println(ui.Header.Render("Dry Run - Preview"))
	fmt.Printf("Path: %s\n\n", path)

	walker, err := fs.NewFileWalker(fs.WalkOptions{
		Root:           path,
		MaxFileSize:    cfg.Indexing.MaxFileSize,
		MaxFileCount:   cfg.Indexing.MaxFileCount,
		IgnorePatterns: append(append([]string{}, cfg.Ignore...), indexIgnore...),
		Include:        append(append([]string{}, cfg.Indexing.Include...), indexInclude...),
		UseGitignore:   true,
		Extensions:     indexExtensions,
	})
	if err != nil {
		return fmt.Errorf("failed to create file walker: %w", err)
	}

	var files []fs.FileInfo
	err = walker.Walk(func(fi fs.FileInfo) error {
		files = append(files, fi)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	stats := walker.Stats()

	byCategory := make(map[string]int)
	var totalSize int64
	for _, f := range files {
		byCategory[fs.CategoryFor(f.Path)]++
		totalSize += f.Size
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	fmt.Println("Files to index:")
	for _, c := range categories {
		fmt.Printf("  %-15s %d\n", c+":", byCategory[c])
	}
	fmt.Println()
	fmt.Printf("Total files:   %d\n", len(files))
	fmt.Printf("Total size:    %s\n", search.FormatSize(totalSize))
	fmt.Printf("Skipped:       %d files, %d directories\n", stats.FilesSkipped, stats.DirsSkipped)

	if len(files) > 0 {
		fmt.Println("\nFirst 10 files:")
		for i, f := range files {
			if i >= 10 {
				fmt.Printf("  ... and %d more\n", len(files)-10)
				break
			}
			fmt.Printf("  %s (%s)\n", f.RelPath, search.FormatSize(f.Size))
		}
	}
	fmt.Println()

	return nil
}
