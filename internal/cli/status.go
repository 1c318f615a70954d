package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/store"
	"github.com/nickcecere/lfind/internal/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	Long:  `Show how many files are indexed, per category, and which providers are configured.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := openServices(serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.newSearcher().Statistics()
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	fmt.Println(ui.Header.Render("lfind Status"))
	fmt.Println()
	fmt.Printf("Database:        %s\n", cfg.Database.Path)
	fmt.Printf("Total files:     %d\n", stats.TotalFiles)
	fmt.Printf("Files with text: %d\n", stats.FilesWithOCR)
	fmt.Printf("Analyzed images: %d\n", stats.FilesAnalyzed)
	fmt.Printf("Total size:      %.1f MB\n", stats.TotalSizeMB)
	if stats.LastIndexedAt != nil {
		fmt.Printf("Last indexed:    %s\n", stats.LastIndexedAt.Format("2006-01-02 15:04:05"))
	}

	if len(stats.ByCategory) > 0 {
		fmt.Println(ui.SectionTitle.Render("By category"))
		categories := make([]string, 0, len(stats.ByCategory))
		for c := range stats.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Printf("  %-15s %d\n", c+":", stats.ByCategory[c])
		}
	}

	fmt.Println(ui.SectionTitle.Render("Providers"))
	fmt.Printf("  Embeddings: %s\n", cfg.Embeddings.Provider)
	if cfg.Vision.Enabled {
		fmt.Printf("  Vision:     %s\n", cfg.Vision.Provider)
	} else {
		fmt.Printf("  Vision:     %s\n", ui.Dim.Render("disabled"))
	}
	if cfg.Search.Rerank {
		fmt.Printf("  Re-rank:    %s\n", cfg.LLM.Provider)
	} else {
		fmt.Printf("  Re-rank:    %s\n", ui.Dim.Render("disabled"))
	}

	return nil
}

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show everything indexed for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	svc, err := openServices(serviceOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.newSearcher().FileDetails(args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s is not indexed", args[0])
	}
	if err != nil {
		return err
	}

	rendered, err := renderMarkdown(detailsMarkdown(res))
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

// detailsMarkdown lays out a record as a markdown document.
func detailsMarkdown(r *search.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.FileName)
	fmt.Fprintf(&sb, "`%s`\n\n", r.FilePath)
	if !r.Exists {
		sb.WriteString("> The file no longer exists on disk.\n\n")
	}

	sb.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Category | %s |\n", r.Category)
	fmt.Fprintf(&sb, "| Size | %s |\n", r.SizeFormatted)
	fmt.Fprintf(&sb, "| Created | %s |\n", r.CreatedDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "| Modified | %s |\n", r.ModifiedDate.Format("2006-01-02 15:04"))
	if r.OriginalDate != nil {
		fmt.Fprintf(&sb, "| Original date | %s |\n", r.OriginalDate.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&sb, "| Indexed | %s |\n", r.LastIndexedAt.Format("2006-01-02 15:04"))
	if r.Label != "" {
		fmt.Fprintf(&sb, "| Label | %s |\n", r.Label)
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(&sb, "| Tags | %s |\n", r.Tags.String())
	}
	if r.VisionConfidence != nil {
		fmt.Fprintf(&sb, "| Confidence | %.0f%% |\n", *r.VisionConfidence*100)
	}
	if r.AISource != "" {
		fmt.Fprintf(&sb, "| Analyzed by | %s |\n", r.AISource)
	}
	if r.ContentHash != "" {
		fmt.Fprintf(&sb, "| SHA-256 | `%s` |\n", r.ContentHash)
	}

	if r.Caption != "" {
		fmt.Fprintf(&sb, "\n## Caption\n\n%s\n", r.Caption)
	}
	if r.OCRText != "" {
		fmt.Fprintf(&sb, "\n## Text\n\n```\n%s\n```\n", r.OCRText)
	}
	return sb.String()
}

// renderMarkdown renders markdown content using glamour.
func renderMarkdown(content string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
