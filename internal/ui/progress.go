package ui

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress renders indexing progress. In CI it prints one line per update
// instead of redrawing a bar.
type Progress struct {
	description string
	plain       bool
	bar         *progressbar.ProgressBar
	max         int
}

// NewProgress creates a progress display labelled description.
func NewProgress(description string) *Progress {
	return &Progress{
		description: description,
		plain:       os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "",
	}
}

// Update moves the display to done of total. The bar is created on the
// first update and grows if total changes.
func (p *Progress) Update(done, total int, message string) {
	if p.plain {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, total, message)
		return
	}

	if p.bar == nil {
		p.max = total
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	} else if total != p.max {
		p.max = total
		p.bar.ChangeMax(total)
	}

	if message != "" {
		p.bar.Describe(truncateLeft(message, 50))
	}
	_ = p.bar.Set(done)
}

// Finish clears the bar.
func (p *Progress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

// truncateLeft keeps the end of s, which for paths is the useful part.
func truncateLeft(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return "..." + string(r[len(r)-maxLen+3:])
}
