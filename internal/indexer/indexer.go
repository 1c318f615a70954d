// Package indexer provides the core indexing logic for lfind.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/embeddings"
	"github.com/nickcecere/lfind/internal/extract"
	"github.com/nickcecere/lfind/internal/fs"
	"github.com/nickcecere/lfind/internal/store"
	"github.com/nickcecere/lfind/internal/vision"
)

var (
	// ErrCancelled is returned when work is requested on a cancelled context.
	ErrCancelled = errors.New("indexing cancelled")

	// ErrBusy is returned when a directory run is already in progress.
	ErrBusy = errors.New("indexing already in progress")

	errStorage = errors.New("storage failure")
)

// State is the lifecycle of a directory run.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateIndexing
	StatePaused
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateIndexing:
		return "indexing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProgressFunc is called after each file with the number of files done so far.
type ProgressFunc func(done, total int, message string)

// Result summarises a directory run.
type Result struct {
	Directory    string        `json:"directory"`
	TotalFiles   int           `json:"total_files"`
	IndexedFiles int           `json:"indexed_files"`
	SkippedFiles int           `json:"skipped_files"`
	FilesWithOCR int           `json:"files_with_ocr"`
	Errors       int           `json:"errors"`
	Cancelled    bool          `json:"cancelled"`
	Duration     time.Duration `json:"duration"`
}

// Options configures the indexing process.
type Options struct {
	// Force re-indexes files whose vision fields are already populated.
	Force bool

	// Include limits the walk to paths matching these doublestar globs.
	Include []string

	// Extensions limits to specific file extensions.
	Extensions []string

	// IgnorePatterns are additional patterns to ignore.
	IgnorePatterns []string

	// Entitlement gates vision calls. Nil means unlimited.
	Entitlement vision.Entitlement
}

// Indexer walks directories and writes one record per file into the store.
// Embedder and analyzer are optional.
type Indexer struct {
	store    store.Store
	embedder embeddings.Service
	analyzer vision.Analyzer
	cfg      *config.Config
	opts     Options

	mu        sync.Mutex
	cond      *sync.Cond
	state     State
	running   bool
	paused    bool
	cancelled bool
}

// New creates a new Indexer.
func New(st store.Store, emb embeddings.Service, analyzer vision.Analyzer, cfg *config.Config, opts Options) *Indexer {
	if opts.Entitlement == nil {
		opts.Entitlement = vision.Unlimited{}
	}
	idx := &Indexer{
		store:    st,
		embedder: emb,
		analyzer: analyzer,
		cfg:      cfg,
		opts:     opts,
	}
	idx.cond = sync.NewCond(&idx.mu)
	return idx
}

// State returns the state of the current or last directory run.
func (idx *Indexer) State() State {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.state
}

// Pause stops the running scan at the next file boundary.
func (idx *Indexer) Pause() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.running || idx.cancelled {
		return
	}
	idx.paused = true
	idx.state = StatePaused
	log.Info("Indexing paused")
}

// Resume continues a paused scan from the next unprocessed file.
func (idx *Indexer) Resume() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.paused {
		return
	}
	idx.paused = false
	if idx.state == StatePaused {
		idx.state = StateIndexing
	}
	log.Info("Indexing resumed")
	idx.cond.Broadcast()
}

// Cancel stops the running scan at the next file boundary. Files already
// written stay in the index.
func (idx *Indexer) Cancel() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.running {
		return
	}
	idx.cancelled = true
	idx.paused = false
	idx.cond.Broadcast()
}

// checkpoint blocks while paused and reports whether the run may continue.
func (idx *Indexer) checkpoint(ctx context.Context) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for idx.paused && !idx.cancelled && ctx.Err() == nil {
		idx.state = StatePaused
		idx.cond.Wait()
	}
	if idx.cancelled || ctx.Err() != nil {
		return false
	}
	idx.state = StateIndexing
	return true
}

func (idx *Indexer) setState(s State) {
	idx.mu.Lock()
	idx.state = s
	idx.mu.Unlock()
}

// IndexDirectory indexes every file under path in walk order. Per-file
// failures are counted; a storage failure aborts the run. Cancellation,
// including of ctx, stops at the next file and is reported in the result.
func (idx *Indexer) IndexDirectory(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	idx.mu.Lock()
	if idx.running {
		idx.mu.Unlock()
		return nil, ErrBusy
	}
	idx.running = true
	idx.paused = false
	idx.cancelled = false
	idx.state = StateScanning
	idx.mu.Unlock()

	defer func() {
		idx.mu.Lock()
		idx.running = false
		idx.paused = false
		idx.mu.Unlock()
	}()

	// A paused run must wake up when ctx is cancelled
	stop := context.AfterFunc(ctx, idx.Cancel)
	defer stop()

	start := time.Now()
	files, err := idx.scan(absPath)
	if err != nil {
		idx.setState(StateFailed)
		return nil, err
	}

	log.Info("Found files to index", "path", absPath, "count", len(files))

	result := &Result{Directory: absPath, TotalFiles: len(files)}
	idx.mu.Lock()
	if !idx.paused {
		idx.state = StateIndexing
	}
	idx.mu.Unlock()

	for i, fi := range files {
		if !idx.checkpoint(ctx) {
			result.Cancelled = true
			break
		}

		rec, skipped, err := idx.indexFile(ctx, fi.Path, idx.opts.Force)
		message := "Indexed " + fi.RelPath
		switch {
		case errors.Is(err, errStorage):
			idx.setState(StateFailed)
			result.Duration = time.Since(start)
			return result, err
		case err != nil:
			log.Warn("Failed to index file", "path", fi.RelPath, "error", err)
			result.Errors++
			message = "Failed " + fi.RelPath
		case skipped:
			result.SkippedFiles++
			message = "Skipped " + fi.RelPath
		default:
			result.IndexedFiles++
			if rec.HasOCR {
				result.FilesWithOCR++
			}
		}

		if progress != nil {
			progress(i+1, len(files), message)
		}
	}

	result.Duration = time.Since(start)
	if result.Cancelled {
		idx.setState(StateCancelled)
		log.Info("Indexing cancelled", "indexed", result.IndexedFiles, "total", result.TotalFiles)
	} else {
		idx.setState(StateCompleted)
		log.Info("Indexing complete",
			"indexed", result.IndexedFiles,
			"skipped", result.SkippedFiles,
			"errors", result.Errors,
			"duration", result.Duration.Round(time.Millisecond),
		)
	}
	return result, nil
}

// scan collects the files to index under root.
func (idx *Indexer) scan(root string) ([]fs.FileInfo, error) {
	walker, err := fs.NewFileWalker(fs.WalkOptions{
		Root:           root,
		MaxFileSize:    idx.cfg.Indexing.MaxFileSize,
		MaxFileCount:   idx.cfg.Indexing.MaxFileCount,
		IgnorePatterns: append(append([]string{}, idx.cfg.Ignore...), idx.opts.IgnorePatterns...),
		Include:        append(append([]string{}, idx.cfg.Indexing.Include...), idx.opts.Include...),
		UseGitignore:   true,
		Extensions:     idx.opts.Extensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file walker: %w", err)
	}

	var files []fs.FileInfo
	err = walker.Walk(func(fi fs.FileInfo) error {
		files = append(files, fi)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

// IndexSingleFile runs the per-file pipeline for one path. It does not
// share pause or cancel state with a directory run.
func (idx *Indexer) IndexSingleFile(ctx context.Context, path string, force bool) (*store.FileRecord, error) {
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	rec, _, err := idx.indexFile(ctx, path, force)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// indexFile builds and stores the record for path. skipped is true when an
// already enriched record with the same content hash was left alone.
func (idx *Indexer) indexFile(ctx context.Context, path string, force bool) (rec *store.FileRecord, skipped bool, err error) {
	md, err := fs.ExtractMetadata(path)
	if err != nil {
		return nil, false, err
	}

	existing, err := idx.store.GetByPath(md.Path)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %w", errStorage, err)
	}

	hash, err := fs.HashFile(md.Path)
	if err != nil {
		log.Warn("Failed to hash file", "path", md.Path, "error", err)
	}

	// An enriched record is only kept as is while the content is unchanged.
	if existing != nil && existing.Enriched() && !force &&
		hash != "" && hash == existing.ContentHash {
		log.Debug("File unchanged and already analyzed, skipping", "path", md.Path)
		return existing, true, nil
	}

	rec = &store.FileRecord{
		FilePath:     md.Path,
		FileName:     md.Name,
		Extension:    md.Extension,
		Category:     md.Category,
		FileSize:     md.Size,
		CreatedDate:  md.CreatedDate,
		ModifiedDate: md.ModifiedDate,
		OriginalDate: md.OriginalDate,
		Metadata:     map[string]any{},
	}
	if existing != nil {
		if existing.Metadata != nil {
			rec.Metadata = maps.Clone(existing.Metadata)
		}
		rec.EmbeddingKey = existing.EmbeddingKey
	}
	if md.Screenshot {
		rec.Metadata["screenshot"] = true
	}

	rec.ContentHash = hash

	if extract.Supported(md.Path) {
		text, err := extract.Text(md.Path, idx.cfg.Indexing.MaxTextChars)
		if err != nil {
			log.Debug("Failed to extract text", "path", md.Path, "error", err)
		} else if text != "" {
			rec.OCRText = text
			rec.HasOCR = true
		}
	}

	if res := idx.analyze(ctx, md.Path); res != nil {
		conf := res.Confidence
		rec.Label = res.Label
		rec.Tags = res.Tags
		rec.Caption = res.Caption
		rec.VisionConfidence = &conf
		rec.AISource = idx.analyzer.Source()
		for k, v := range res.Extra {
			rec.Metadata[k] = v
		}
		if detected, ok := res.Extra["detected_text"].(string); ok && detected != "" && !rec.HasOCR {
			rec.OCRText = extract.Truncate(detected, idx.cfg.Indexing.MaxTextChars)
			rec.HasOCR = true
		}
	} else if existing != nil {
		rec.Label = existing.Label
		rec.Tags = existing.Tags
		rec.Caption = existing.Caption
		rec.VisionConfidence = existing.VisionConfidence
		rec.AISource = existing.AISource
	}

	vec := idx.embed(ctx, rec)

	if _, err := idx.store.Upsert(rec, vec); err != nil {
		return nil, false, fmt.Errorf("%w: %w", errStorage, err)
	}

	log.Debug("Indexed file", "path", md.Path, "category", rec.Category, "ocr", rec.HasOCR)
	return rec, false, nil
}

// analyze runs vision for supported images when an analyzer is configured
// and the entitlement allows it.
func (idx *Indexer) analyze(ctx context.Context, path string) *vision.Result {
	if idx.analyzer == nil || !fs.SupportsVision(path) {
		return nil
	}
	if !idx.opts.Entitlement.Allowed(ctx) {
		log.Debug("Vision not permitted, skipping", "path", path)
		return nil
	}
	res := idx.analyzer.Analyze(ctx, path)
	if res != nil {
		idx.opts.Entitlement.Record(ctx)
	}
	return res
}

// embed returns a new vector for rec, or nil when the stored one is still
// current or embedding is unavailable. rec.EmbeddingKey is updated to
// match whatever vector the store will hold.
func (idx *Indexer) embed(ctx context.Context, rec *store.FileRecord) []float32 {
	if idx.embedder == nil {
		return nil
	}

	text := embeddings.DocumentText(rec)
	key := embeddings.Key(idx.embedder, text)
	if rec.EmbeddingKey == key {
		return nil
	}

	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		log.Warn("Failed to embed file", "path", rec.FilePath, "error", err)
		return nil
	}
	rec.EmbeddingKey = key
	return vec
}
