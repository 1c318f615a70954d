// Package fileops implements bulk operations on indexed files and exports
// of result lists. Files on disk are never modified.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/nickcecere/lfind/internal/store"
)

// BatchResult counts the outcome of a bulk operation.
type BatchResult struct {
	Updated  int `json:"updated"`
	Removed  int `json:"removed"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Reindexer re-runs the indexing pipeline for one file.
type Reindexer interface {
	IndexSingleFile(ctx context.Context, path string, force bool) (*store.FileRecord, error)
}

// Operations runs bulk operations against the index.
type Operations struct {
	store     store.Store
	reindexer Reindexer
}

// New creates the bulk operations. reindexer may be nil when Reindex is
// not used.
func New(st store.Store, reindexer Reindexer) *Operations {
	return &Operations{store: st, reindexer: reindexer}
}

// Remove deletes records from the index.
func (o *Operations) Remove(ids []int64) BatchResult {
	if len(ids) == 0 {
		return BatchResult{}
	}
	res := o.store.Delete(ids)
	log.Info("Removed files from index", "removed", res.Removed, "not_found", res.NotFound, "errors", res.Errors)
	return BatchResult{Removed: res.Removed, NotFound: res.NotFound, Errors: res.Errors}
}

// Reindex refreshes each record from its file. A missing record or a file
// gone from disk counts as not found. Stops early when ctx is cancelled.
func (o *Operations) Reindex(ctx context.Context, ids []int64) BatchResult {
	var res BatchResult
	if o.reindexer == nil {
		res.Errors = len(ids)
		return res
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		rec, err := o.store.GetByID(id)
		if errors.Is(err, store.ErrNotFound) {
			res.NotFound++
			continue
		}
		if err != nil {
			log.Warn("Failed to load file for reindex", "id", id, "error", err)
			res.Errors++
			continue
		}

		if _, err := os.Stat(rec.FilePath); err != nil {
			log.Debug("File not found for reindex", "path", rec.FilePath)
			res.NotFound++
			continue
		}

		if _, err := o.reindexer.IndexSingleFile(ctx, rec.FilePath, true); err != nil {
			log.Warn("Failed to reindex file", "path", rec.FilePath, "error", err)
			res.Errors++
			continue
		}
		res.Updated++
	}

	log.Info("Reindex complete", "updated", res.Updated, "not_found", res.NotFound, "errors", res.Errors)
	return res
}

// AddTags merges tags into each record's existing set.
func (o *Operations) AddTags(ids []int64, tags []string) BatchResult {
	var res BatchResult
	add := store.ParseTags(tags)
	if len(ids) == 0 || len(add) == 0 {
		return res
	}

	for _, id := range ids {
		ok, err := o.store.MergeTags(id, add)
		switch {
		case err != nil:
			log.Warn("Failed to add tags", "id", id, "error", err)
			res.Errors++
		case !ok:
			res.NotFound++
		default:
			res.Updated++
		}
	}

	log.Info("Added tags", "updated", res.Updated, "tags", add.String())
	return res
}

// Paths returns the file paths of the records that exist.
func (o *Operations) Paths(ids []int64) []string {
	if len(ids) == 0 {
		return nil
	}
	records, err := o.store.GetByIDs(ids)
	if err != nil {
		log.Error("Failed to get file paths", "error", err)
		return nil
	}
	paths := make([]string, len(records))
	for i, rec := range records {
		paths[i] = rec.FilePath
	}
	return paths
}

// Records loads the records for ids, skipping missing ones.
func (o *Operations) Records(ids []int64) ([]store.FileRecord, error) {
	records, err := o.store.GetByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return records, nil
}
