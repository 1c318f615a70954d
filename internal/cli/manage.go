package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/fileops"
	"github.com/nickcecere/lfind/internal/indexer"
	"github.com/nickcecere/lfind/internal/store"
	"github.com/nickcecere/lfind/internal/ui"
)

var (
	exportLimit     int
	clearYes        bool
	reindexNoVision bool
)

// removeCmd removes files from the index, never from disk.
var removeCmd = &cobra.Command{
	Use:   "remove <path|id>...",
	Short: "Remove files from the index",
	Long:  `Remove files from the index. The files on disk are not touched.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <path|id>...",
	Short: "Re-extract and re-analyze indexed files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReindex,
}

var tagCmd = &cobra.Command{
	Use:     "tag <tags> <path|id>...",
	Short:   "Add comma separated tags to indexed files",
	Example: `  lfind tag "taxes, 2024" ~/Documents/return.pdf`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runTag,
}

var exportCmd = &cobra.Command{
	Use:   "export <output.csv|output.txt> [query]",
	Short: "Export search results or the whole index to CSV or text",
	Long: `Export file records. With a query the matching files are exported,
otherwise every indexed file. The format follows the output extension:
.txt writes a readable list, anything else CSV.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record from the index",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "m", 1000, "maximum number of search results to export")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	reindexCmd.Flags().BoolVar(&reindexNoVision, "no-vision", false, "skip image analysis")
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, err := openServices(serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	ids, unknown := resolveIDs(svc.store, args)
	reportUnknown(unknown)

	ops := fileops.New(svc.store, nil)
	for _, p := range ops.Paths(ids) {
		fmt.Println(ui.Dim.Render("  " + p))
	}
	printBatch(ops.Remove(ids))
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, err := openServices(serviceOptions{vision: !reindexNoVision})
	if err != nil {
		return err
	}
	defer svc.Close()

	ids, unknown := resolveIDs(svc.store, args)
	reportUnknown(unknown)

	ops := fileops.New(svc.store, svc.newIndexer(indexer.Options{}))
	printBatch(ops.Reindex(ctx, ids))
	return nil
}

func runTag(cmd *cobra.Command, args []string) error {
	tags := store.ParseTags(args[0])
	if len(tags) == 0 {
		return fmt.Errorf("no tags given")
	}

	svc, err := openServices(serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	ids, unknown := resolveIDs(svc.store, args[1:])
	reportUnknown(unknown)

	printBatch(fileops.New(svc.store, nil).AddTags(ids, tags))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	output := args[0]
	query := strings.Join(args[1:], " ")

	ctx, cancel := signalContext()
	defer cancel()

	svc, err := openServices(serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	var records []store.FileRecord
	if query == "" {
		records, err = svc.store.List(0, 0)
		if err != nil {
			return err
		}
	} else {
		resp, err := svc.newSearcher().Search(ctx, query, exportLimit)
		if err != nil {
			return err
		}
		ids := make([]int64, len(resp.Results))
		for i, r := range resp.Results {
			ids[i] = r.ID
		}
		records, err = fileops.New(svc.store, nil).Records(ids)
		if err != nil {
			return err
		}
	}

	if err := fileops.ExportFile(output, records); err != nil {
		return err
	}
	fmt.Println(ui.Success.Render(fmt.Sprintf("Exported %d file(s) to %s", len(records), output)))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		fmt.Printf("Delete every record from %s? Files on disk are kept. [y/N]: ", cfg.Database.Path)
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	svc, err := openServices(serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	fmt.Println(ui.Success.Render("Index cleared."))
	return nil
}

func reportUnknown(unknown []string) {
	for _, u := range unknown {
		fmt.Println(ui.Warning.Render("Not indexed: " + u))
	}
}

func printBatch(res fileops.BatchResult) {
	var parts []string
	if res.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", res.Updated))
	}
	if res.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", res.Removed))
	}
	if res.NotFound > 0 {
		parts = append(parts, fmt.Sprintf("%d not found", res.NotFound))
	}
	if res.Errors > 0 {
		parts = append(parts, ui.Error.Render(fmt.Sprintf("%d failed", res.Errors)))
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}
	fmt.Println(strings.Join(parts, ", "))
}
