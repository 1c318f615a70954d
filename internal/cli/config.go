package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/ui"
)

var configShowPath bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Display current configuration settings and config file locations.

Examples:
  # Show current configuration
  lfind config

  # Show config file paths
  lfind config --path`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "show config file paths")
}

func configLocation() string {
	if p := cfg.FilePath(); p != "" {
		return p
	}
	return config.GlobalConfigPath()
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configShowPath {
		fmt.Println(ui.SectionTitle.Render("Configuration Paths"))
		fmt.Println()
		fmt.Printf("Global config: %s\n", config.GlobalConfigPath())
		fmt.Printf("Local config:  %s (searched from cwd upward)\n", config.RCFileName)
		if p := cfg.FilePath(); p != "" {
			fmt.Printf("Active config: %s\n", p)
		} else {
			fmt.Printf("Active config: %s\n", ui.Dim.Render("none, using defaults"))
		}
		fmt.Printf("Database:      %s\n", cfg.Database.Path)
		return nil
	}

	fmt.Println(ui.SectionTitle.Render("Current Configuration"))
	fmt.Println()

	fmt.Println(ui.Bold.Render("Indexing:"))
	fmt.Printf("  Max File Size: %d bytes\n", cfg.Indexing.MaxFileSize)
	fmt.Printf("  Max File Count: %d\n", cfg.Indexing.MaxFileCount)
	fmt.Printf("  Max Text Chars: %d\n", cfg.Indexing.MaxTextChars)
	if len(cfg.Indexing.Include) > 0 {
		fmt.Printf("  Include: %v\n", cfg.Indexing.Include)
	}
	fmt.Println()

	fmt.Println(ui.Bold.Render("Vision:"))
	fmt.Printf("  Enabled: %t\n", cfg.Vision.Enabled)
	fmt.Printf("  Provider: %s\n", cfg.Vision.Provider)
	fmt.Printf("  Ollama Model: %s\n", cfg.Vision.Ollama.Model)
	fmt.Printf("  OpenAI Model: %s\n", cfg.Vision.OpenAI.Model)
	fmt.Printf("  Anthropic Model: %s\n", cfg.Vision.Anthropic.Model)
	fmt.Printf("  Timeout: %s\n", cfg.Vision.Timeout)
	if cfg.Vision.Limit > 0 {
		fmt.Printf("  Limit: %d images per run\n", cfg.Vision.Limit)
	}
	fmt.Println()

	fmt.Println(ui.Bold.Render("Embeddings:"))
	fmt.Printf("  Provider: %s\n", cfg.Embeddings.Provider)
	fmt.Printf("  Ollama URL: %s\n", cfg.Embeddings.Ollama.URL)
	fmt.Printf("  Ollama Model: %s\n", cfg.Embeddings.Ollama.Model)
	fmt.Printf("  OpenAI Model: %s\n", cfg.Embeddings.OpenAI.Model)
	if cfg.Embeddings.OpenAI.BaseURL != "" {
		fmt.Printf("  OpenAI Base URL: %s\n", cfg.Embeddings.OpenAI.BaseURL)
	}
	fmt.Println()

	fmt.Println(ui.Bold.Render("Search:"))
	fmt.Printf("  Default Limit: %d\n", cfg.Search.DefaultLimit)
	fmt.Printf("  Re-rank: %t (%s, top %d)\n", cfg.Search.Rerank, cfg.LLM.Provider, cfg.Search.RerankTopN)
	fmt.Printf("  Fuzzy Correction: %t\n", cfg.Query.FuzzyCorrection)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Watch:"))
	fmt.Printf("  Paths: %v\n", cfg.Watch.Paths)
	fmt.Printf("  Debounce: %s\n", cfg.Watch.Debounce)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Database:"))
	fmt.Printf("  Path: %s\n", cfg.Database.Path)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Ignore Patterns:"))
	fmt.Printf("  %d patterns configured\n", len(cfg.Ignore))

	return nil
}
