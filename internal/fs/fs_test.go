package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCategoryFor tests extension to category mapping.
func TestCategoryFor(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"photo.JPG", CategoryImages},
		{"scan.heic", CategoryImages},
		{"letter.docx", CategoryDocuments},
		{"notes.md", CategoryDocuments},
		{"budget.xlsx", CategoryDocuments},
		{"report.pdf", CategoryPDFs},
		{"clip.mkv", CategoryVideos},
		{"song.flac", CategoryAudio},
		{"main.go", CategoryCode},
		{"config.yaml", CategoryCode},
		{"archive.zip", CategoryOther},
		{"Makefile", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategoryFor(tt.path))
		})
	}
}

func TestExtensionsForReturnsCopy(t *testing.T) {
	exts := ExtensionsFor(CategoryPDFs)
	require.Equal(t, []string{".pdf"}, exts)

	exts[0] = ".changed"
	assert.Equal(t, []string{".pdf"}, ExtensionsFor(CategoryPDFs))
	assert.Empty(t, ExtensionsFor("Nope"))
}

func TestImageHelpers(t *testing.T) {
	assert.True(t, IsImage("a.png"))
	assert.True(t, IsImage("a.svg"))
	assert.False(t, IsImage("a.pdf"))

	assert.True(t, SupportsVision("a.webp"))
	assert.False(t, SupportsVision("a.svg"))
	assert.False(t, SupportsVision("a.heic"))
}

func TestIsScreenshot(t *testing.T) {
	for _, name := range []string{
		"Screenshot 2024-01-02.png",
		"Screen Shot 2020-05-05 at 10.00.00.png",
		"screencap_01.jpg",
		"Snipping.png",
		"window capture.png",
		"ss_001.png",
		"SC_home.png",
	} {
		assert.True(t, IsScreenshot(name), name)
	}

	for _, name := range []string{"holiday.jpg", "class_notes.png", "asset.png"} {
		assert.False(t, IsScreenshot(name), name)
	}
}

// TestHashFile tests streaming SHA-256 hashing.
func TestHashFile(t *testing.T) {
	dir := t.TempDir()

	// larger than one read chunk
	content := []byte(strings.Repeat("0123456789abcdef", (hashChunkSize/16)+100))
	path := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	sum := sha256.Sum256(content)
	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	got, err = HashFile(empty)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

// TestHashContent tests content hashing.
func TestHashContent(t *testing.T) {
	content := []byte("hello world")
	hash1 := HashContent(content)
	hash2 := HashContent(content)
	assert.Equal(t, hash1, hash2)

	hash3 := HashContent([]byte("hello world!"))
	assert.NotEqual(t, hash1, hash3)

	// Hash should be 16 hex characters (64 bits)
	assert.Len(t, hash1, 16)
}

// TestExtractMetadata tests metadata extraction.
func TestExtractMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Screenshot 2024.PNG")
	require.NoError(t, os.WriteFile(path, []byte("fake png"), 0644))

	mtime := time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	md, err := ExtractMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, path, md.Path)
	assert.Equal(t, "Screenshot 2024.PNG", md.Name)
	assert.Equal(t, ".png", md.Extension)
	assert.Equal(t, int64(8), md.Size)
	assert.Equal(t, CategoryImages, md.Category)
	assert.True(t, md.ModifiedDate.Equal(mtime))
	assert.False(t, md.CreatedDate.IsZero())
	assert.Nil(t, md.OriginalDate)
	assert.True(t, md.Screenshot)
}

func TestExtractMetadataErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ExtractMetadata(filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.Is(err, ErrNotReadable))

	_, err = ExtractMetadata(dir)
	assert.True(t, errors.Is(err, ErrNotReadable))
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	tmpDir := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(tmpDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
	}
	return tmpDir
}

func walkPaths(t *testing.T, opts WalkOptions) []string {
	t.Helper()
	walker, err := NewFileWalker(opts)
	require.NoError(t, err)

	var found []string
	err = walker.Walk(func(info FileInfo) error {
		found = append(found, info.RelPath)
		return nil
	})
	require.NoError(t, err)
	return found
}

// TestFileWalker tests directory walking.
func TestFileWalker(t *testing.T) {
	tmpDir := writeTree(t, map[string]string{
		"photos/beach.jpg":      "jpg",
		"docs/report.pdf":       "pdf",
		"docs/draft.tmp":        "tmp",
		"README.md":             "# Test\n",
		"subdir/deep/notes.txt": "notes",
		".hidden":               "hidden file",
		"node_modules/a.js":     "// should be ignored",
	})
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("*.md\n"), 0644))

	ignore := []string{"node_modules/", "*.tmp"}

	t.Run("walks directory and finds files", func(t *testing.T) {
		found := walkPaths(t, WalkOptions{
			Root:           tmpDir,
			UseGitignore:   true,
			IgnorePatterns: ignore,
		})

		assert.ElementsMatch(t, []string{
			"photos/beach.jpg",
			"docs/report.pdf",
			"subdir/deep/notes.txt",
		}, found)
	})

	t.Run("respects extension filter", func(t *testing.T) {
		found := walkPaths(t, WalkOptions{
			Root:       tmpDir,
			Extensions: []string{"PDF", ".jpg"},
		})
		assert.ElementsMatch(t, []string{"photos/beach.jpg", "docs/report.pdf"}, found)
	})

	t.Run("respects include globs", func(t *testing.T) {
		found := walkPaths(t, WalkOptions{
			Root:    tmpDir,
			Include: []string{"docs/**", "*.txt"},
		})
		assert.ElementsMatch(t, []string{"docs/report.pdf", "docs/draft.tmp", "subdir/deep/notes.txt"}, found)
	})

	t.Run("respects max file count", func(t *testing.T) {
		found := walkPaths(t, WalkOptions{Root: tmpDir, MaxFileCount: 2})
		assert.Len(t, found, 2)
	})

	t.Run("respects max file size", func(t *testing.T) {
		found := walkPaths(t, WalkOptions{Root: tmpDir, MaxFileSize: 3, IgnorePatterns: ignore})
		assert.ElementsMatch(t, []string{"photos/beach.jpg", "docs/report.pdf"}, found)
	})

	t.Run("includes hidden files when configured", func(t *testing.T) {
		found := walkPaths(t, WalkOptions{Root: tmpDir, IncludeHidden: true})
		assert.Contains(t, found, ".hidden")
	})

	t.Run("provides accurate stats", func(t *testing.T) {
		walker, err := NewFileWalker(WalkOptions{Root: tmpDir, IgnorePatterns: ignore})
		require.NoError(t, err)
		require.NoError(t, walker.Walk(func(info FileInfo) error { return nil }))

		stats := walker.Stats()
		assert.Equal(t, 4, stats.FilesFound)
		assert.Greater(t, stats.TotalBytes, int64(0))
		assert.Greater(t, stats.FilesSkipped, 0)
	})
}

func TestShouldIgnore(t *testing.T) {
	opts := WalkOptions{IgnorePatterns: []string{"node_modules/", "*.tmp"}}

	assert.True(t, ShouldIgnore(opts, "node_modules/pkg/index.js"))
	assert.True(t, ShouldIgnore(opts, "docs/draft.tmp"))
	assert.True(t, ShouldIgnore(opts, ".cache/file.txt"))
	assert.False(t, ShouldIgnore(opts, "docs/report.pdf"))

	opts.Extensions = []string{".pdf"}
	assert.True(t, ShouldIgnore(opts, "docs/notes.txt"))
}

// TestFileWalkerErrors tests error handling.
func TestFileWalkerErrors(t *testing.T) {
	t.Run("non-existent root", func(t *testing.T) {
		_, err := NewFileWalker(WalkOptions{
			Root: "/nonexistent/path",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("root is file not directory", func(t *testing.T) {
		tmpFile, err := os.CreateTemp("", "test")
		require.NoError(t, err)
		defer os.Remove(tmpFile.Name())
		tmpFile.Close()

		_, err = NewFileWalker(WalkOptions{
			Root: tmpFile.Name(),
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("bad include pattern", func(t *testing.T) {
		_, err := NewFileWalker(WalkOptions{Root: t.TempDir(), Include: []string{"[a-"}})
		assert.Error(t, err)
	})
}

// TestDefaultOptions tests default options.
func TestDefaultOptions(t *testing.T) {
	walkOpts := DefaultWalkOptions()
	assert.Equal(t, int64(512*1024*1024), walkOpts.MaxFileSize)
	assert.Equal(t, 100000, walkOpts.MaxFileCount)
	assert.True(t, walkOpts.UseGitignore)
}
