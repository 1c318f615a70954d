// Package fs walks directories and extracts per-file metadata for indexing.
package fs

import (
	"time"
)

// FileInfo represents a file discovered by the walker.
type FileInfo struct {
	Path    string    // Absolute path to the file
	RelPath string    // Path relative to the root
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// WalkOptions configures the file walker.
type WalkOptions struct {
	// Root is the directory to start walking from.
	Root string

	// MaxFileSize is the maximum file size to process (in bytes).
	MaxFileSize int64

	// MaxFileCount is the maximum number of files to process.
	MaxFileCount int

	// IgnorePatterns are additional patterns to ignore (gitignore syntax).
	IgnorePatterns []string

	// Include limits the walk to relative paths matching any of these
	// doublestar globs, e.g. "**/*.pdf". Empty means everything.
	Include []string

	// IncludeHidden includes hidden files and directories.
	IncludeHidden bool

	// UseGitignore respects a .gitignore at the root.
	UseGitignore bool

	// Extensions limits to specific file extensions (e.g., ".pdf", "jpg").
	Extensions []string
}

// DefaultWalkOptions returns sensible defaults for walking.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		MaxFileSize:  512 * 1024 * 1024, // 512MB
		MaxFileCount: 100000,
		UseGitignore: true,
	}
}

// Walker walks a directory tree and yields files.
type Walker interface {
	// Walk walks the directory tree and calls fn for each file.
	// The walk stops if fn returns an error.
	Walk(fn func(FileInfo) error) error

	// Stats returns statistics about the walk.
	Stats() WalkStats
}

// WalkStats contains statistics from a directory walk.
type WalkStats struct {
	FilesFound   int   // Total files found
	FilesSkipped int   // Files skipped due to size/pattern/etc
	DirsSkipped  int   // Directories skipped
	TotalBytes   int64 // Total bytes of files found
	SkippedBytes int64 // Total bytes of skipped files
}
