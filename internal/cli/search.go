package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/ui"
)

var (
	searchLimit      int
	searchType       string
	searchExtensions []string
	searchSince      string
	searchUntil      string
	searchJSON       bool
	searchContent    bool
	searchRerank     bool
	searchFuzzy      bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed files with natural language",
	Long: `Search the index with a natural language query.

File types ("pdfs", "screenshots", "spreadsheets") and dates ("yesterday",
"last week", "in march 2024", "between 1/5/2024 and 2/5/2024") in the query
become filters; the remaining words are matched against names, extracted
text, captions and tags.

Operators:
  tag:<tag>      files with this tag
  type:<label>   files whose image label matches
  has:ocr        files with extracted text
  has:vision     files described by the vision model

Explicit --type, --ext, --since or --until filters replace the type and date
detected in the query.

Examples:
  lfind search "screenshots from yesterday"
  lfind search "budget spreadsheet" --since 2024-01-01
  lfind search "tag:receipt" --json
  lfind search "sunset beach" --rerank`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearchCmd,
}

func init() {
	addSearchFlags(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&searchLimit, "limit", "m", 0, "maximum number of results (default from config)")
	cmd.Flags().StringVarP(&searchType, "type", "t", "", "file type filter (e.g. images, pdfs, documents)")
	cmd.Flags().StringSliceVarP(&searchExtensions, "ext", "e", nil, "file extensions to include (e.g., .pdf)")
	cmd.Flags().StringVar(&searchSince, "since", "", "only files dated on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&searchUntil, "until", "", "only files dated on or before YYYY-MM-DD")
	cmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	cmd.Flags().BoolVarP(&searchContent, "content", "c", false, "show extracted text previews")
	cmd.Flags().BoolVar(&searchRerank, "rerank", false, "re-rank top results with the LLM")
	cmd.Flags().BoolVar(&searchFuzzy, "fuzzy", false, "correct misspelled type and date words")
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if searchRerank {
		cfg.Search.Rerank = true
	}
	if searchFuzzy {
		cfg.Query.FuzzyCorrection = true
	}
	if searchJSON {
		ui.SetQuiet()
	}

	req, structured, err := buildRequest(query)
	if err != nil {
		return err
	}

	log.Debug("Starting search", "query", query, "limit", searchLimit, "structured", structured)

	ctx, cancel := signalContext()
	defer cancel()

	svc, err := openServices(serviceOptions{rerank: true})
	if err != nil {
		return err
	}
	defer svc.Close()
	searcher := svc.newSearcher()

	var resp *search.Response
	if structured {
		results, err := searcher.SearchFiles(ctx, req)
		if err != nil {
			return err
		}
		resp = &search.Response{Results: results}
	} else {
		resp, err = searcher.Search(ctx, query, searchLimit)
		if err != nil {
			return err
		}
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	displayResponse(resp, searchContent)
	return nil
}

// buildRequest turns the explicit filter flags into a request. structured is
// false when no filter flag was given.
func buildRequest(query string) (search.Request, bool, error) {
	req := search.Request{
		Query:      query,
		Limit:      searchLimit,
		TypeFilter: searchType,
		Extensions: searchExtensions,
	}

	if searchSince != "" {
		t, err := parseDay(searchSince)
		if err != nil {
			return req, false, fmt.Errorf("invalid --since: %w", err)
		}
		req.DateStart = &t
	}
	if searchUntil != "" {
		t, err := parseDay(searchUntil)
		if err != nil {
			return req, false, fmt.Errorf("invalid --until: %w", err)
		}
		end := t.AddDate(0, 0, 1)
		req.DateEnd = &end
	}

	structured := req.TypeFilter != "" || len(req.Extensions) > 0 || req.DateStart != nil || req.DateEnd != nil
	return req, structured, nil
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func displayResponse(resp *search.Response, showContent bool) {
	if p := resp.Parsed; p != nil {
		for _, c := range p.Corrections {
			fmt.Println(ui.Dim.Render(fmt.Sprintf("Corrected %q to %q", c.From, c.To)))
		}
		if p.HasFilters() {
			var filters []string
			if p.TypeFilter != "" {
				filters = append(filters, "type: "+p.TypeFilter)
			}
			if p.DateFilter != "" {
				filters = append(filters, "date: "+p.DateFilter)
			}
			fmt.Println(ui.Dim.Render("Filters: " + strings.Join(filters, ", ")))
		}
	}

	if len(resp.Results) == 0 {
		fmt.Println("No files found.")
		fmt.Println(ui.Dim.Render("Run 'lfind index [path]' to add files to the index."))
		return
	}

	fmt.Println(ui.ResultHeader.Render(fmt.Sprintf("Found %d file(s)", len(resp.Results))))
	fmt.Println()

	for i, r := range resp.Results {
		line := fmt.Sprintf("%d. %s", i+1, ui.FilePath.Render(r.FilePath))
		if r.Relevance > 0 {
			line += " " + ui.FormatRelevance(r.Relevance)
		}
		if !r.Exists {
			line += " " + ui.Missing()
		}
		fmt.Println(line)

		fmt.Println(ui.Dim.Render(fmt.Sprintf("   %s | %s | %s",
			r.Category, r.SizeFormatted, r.ModifiedDate.Format("2006-01-02 15:04"))))
		if r.Caption != "" {
			fmt.Printf("   %s\n", r.Caption)
		}
		if len(r.Tags) > 0 {
			fmt.Printf("   %s\n", ui.FormatTags(r.Tags))
		}
		if showContent && r.OCRPreview != "" {
			fmt.Println(ui.ResultContent.Render(r.OCRPreview))
		}
	}
}
