package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Ignorer defines the interface for pattern matching.
type Ignorer interface {
	MatchesPath(path string) bool
}

// combinedIgnorer wraps two ignorers.
type combinedIgnorer struct {
	file     *gitignore.GitIgnore
	patterns *gitignore.GitIgnore
}

// MatchesPath returns true if the path matches any ignore pattern.
func (c *combinedIgnorer) MatchesPath(path string) bool {
	return c.file.MatchesPath(path) || c.patterns.MatchesPath(path)
}

// FileWalker implements Walker for traversing a file system.
type FileWalker struct {
	opts    WalkOptions
	ignorer Ignorer
	stats   WalkStats
	extSet  map[string]bool
}

// NewFileWalker creates a new file walker.
func NewFileWalker(opts WalkOptions) (*FileWalker, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	opts.Root = root

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	for _, pattern := range opts.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %q", pattern)
		}
	}

	w := &FileWalker{
		opts: opts,
	}

	w.extSet = extensionSet(opts.Extensions)
	w.initIgnorer()
	return w, nil
}

// extensionSet normalizes extensions to lowercase with a leading dot.
func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[strings.ToLower(ext)] = true
	}
	return set
}

// initIgnorer initializes the gitignore matcher.
func (w *FileWalker) initIgnorer() {
	patterns := append([]string(nil), w.opts.IgnorePatterns...)

	if w.opts.UseGitignore {
		gitignorePath := filepath.Join(w.opts.Root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			gi, err := gitignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				log.Warn("Failed to parse .gitignore", "path", gitignorePath, "error", err)
			} else {
				w.ignorer = &combinedIgnorer{
					file:     gi,
					patterns: gitignore.CompileIgnoreLines(patterns...),
				}
				return
			}
		}
	}

	w.ignorer = gitignore.CompileIgnoreLines(patterns...)
}

// Walk traverses the directory tree. Unreadable entries are logged and
// skipped so one bad file never aborts the walk.
func (w *FileWalker) Walk(fn func(FileInfo) error) error {
	w.stats = WalkStats{}

	return filepath.WalkDir(w.opts.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Debug("Error accessing path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != w.opts.Root {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(w.opts.Root, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path != w.opts.Root && w.shouldSkipDir(d.Name(), relPath) {
				w.stats.DirsSkipped++
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks and devices are not indexed
		if !d.Type().IsRegular() {
			w.stats.FilesSkipped++
			return nil
		}

		if w.opts.MaxFileCount > 0 && w.stats.FilesFound >= w.opts.MaxFileCount {
			log.Warn("Max file count reached", "limit", w.opts.MaxFileCount)
			return filepath.SkipAll
		}

		if w.shouldSkipFile(d.Name(), relPath) {
			w.stats.FilesSkipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.Debug("Failed to get file info", "path", path, "error", err)
			return nil
		}

		if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
			w.stats.FilesSkipped++
			w.stats.SkippedBytes += info.Size()
			return nil
		}

		w.stats.FilesFound++
		w.stats.TotalBytes += info.Size()

		return fn(FileInfo{
			Path:    path,
			RelPath: relPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
}

// Stats returns the walk statistics.
func (w *FileWalker) Stats() WalkStats {
	return w.stats
}

// shouldSkipDir checks if a directory should be skipped.
func (w *FileWalker) shouldSkipDir(name, relPath string) bool {
	if name == ".git" {
		return true
	}

	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}

	if w.ignorer != nil && w.ignorer.MatchesPath(relPath+"/") {
		return true
	}

	return false
}

// shouldSkipFile checks if a file should be skipped.
func (w *FileWalker) shouldSkipFile(name, relPath string) bool {
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}

	if w.ignorer != nil && w.ignorer.MatchesPath(relPath) {
		return true
	}

	if w.extSet != nil && !w.extSet[strings.ToLower(filepath.Ext(name))] {
		return true
	}

	if len(w.opts.Include) > 0 && !w.included(name, relPath) {
		return true
	}

	return false
}

// included reports whether the file matches any include glob. Patterns are
// tried against the relative path and then the bare name.
func (w *FileWalker) included(name, relPath string) bool {
	for _, pattern := range w.opts.Include {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Matcher answers walk filtering questions for single paths without
// walking. The watcher uses it to filter events.
type Matcher struct {
	w *FileWalker
}

// NewMatcher compiles the ignore rules of opts once.
func NewMatcher(opts WalkOptions) *Matcher {
	w := &FileWalker{opts: opts, extSet: extensionSet(opts.Extensions)}
	w.initIgnorer()
	return &Matcher{w: w}
}

// IgnoreFile reports whether a file, relative to root, would be skipped by
// a walk, including because one of its parent directories is pruned.
func (m *Matcher) IgnoreFile(relPath string) bool {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if m.dirsIgnored(parts[:len(parts)-1]) {
		return true
	}
	return m.w.shouldSkipFile(parts[len(parts)-1], strings.Join(parts, "/"))
}

// IgnoreDir reports whether a directory, relative to root, would be pruned.
func (m *Matcher) IgnoreDir(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return false
	}
	return m.dirsIgnored(strings.Split(relPath, "/"))
}

func (m *Matcher) dirsIgnored(parts []string) bool {
	for i := range parts {
		if m.w.shouldSkipDir(parts[i], strings.Join(parts[:i+1], "/")) {
			return true
		}
	}
	return false
}

// ShouldIgnore reports whether a single path, relative to root, would be
// skipped by a walk with these options.
func ShouldIgnore(opts WalkOptions, relPath string) bool {
	return NewMatcher(opts).IgnoreFile(relPath)
}
