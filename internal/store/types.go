// Package store persists indexed files in SQLite with a full-text index
// (FTS4) and an embeddings table (sqlite-vec) kept in sync per record.
package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by single-record lookups when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidField is returned by UpdateField for fields that are not editable.
	ErrInvalidField = errors.New("field is not editable")
)

// Editable fields accepted by UpdateField.
const (
	FieldLabel    = "label"
	FieldTags     = "tags"
	FieldCaption  = "caption"
	FieldMetadata = "metadata"
)

// FileRecord represents one indexed file.
type FileRecord struct {
	ID          int64  `json:"id"`
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	Extension   string `json:"extension"`
	Category    string `json:"category"`
	FileSize    int64  `json:"file_size"`
	ContentHash string `json:"content_hash,omitempty"` // hex SHA-256, empty when the file could not be read

	CreatedDate   time.Time  `json:"created_date"`
	ModifiedDate  time.Time  `json:"modified_date"`
	OriginalDate  *time.Time `json:"original_date,omitempty"` // embedded capture or creation date
	LastIndexedAt time.Time  `json:"last_indexed_at"`

	OCRText          string   `json:"ocr_text,omitempty"`
	HasOCR           bool     `json:"has_ocr"`
	Caption          string   `json:"caption,omitempty"`
	Label            string   `json:"label,omitempty"`
	Tags             Tags     `json:"tags"`
	VisionConfidence *float64 `json:"vision_confidence,omitempty"`
	AISource         string   `json:"ai_source,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// EmbeddingKey identifies the text the stored embedding was computed from.
	EmbeddingKey string `json:"-"`
}

// Enriched reports whether vision enrichment already populated the record.
func (r *FileRecord) Enriched() bool {
	return len(r.Tags) > 0 && r.Label != "" && r.Caption != ""
}

// EffectiveDate is the date used for date filtering and listing order.
func (r *FileRecord) EffectiveDate() time.Time {
	switch {
	case r.OriginalDate != nil && !r.OriginalDate.IsZero():
		return *r.OriginalDate
	case !r.ModifiedDate.IsZero():
		return r.ModifiedDate
	default:
		return r.CreatedDate
	}
}

// DeleteResult reports the outcome of a best-effort bulk delete.
type DeleteResult struct {
	Removed  int `json:"removed"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Statistics contains aggregate counts over the structured table.
type Statistics struct {
	TotalFiles    int            `json:"total_files"`
	FilesWithOCR  int            `json:"files_with_ocr"`
	FilesAnalyzed int            `json:"files_analyzed"`
	TotalSizeMB   float64        `json:"total_size_mb"`
	ByCategory    map[string]int `json:"by_category"`
	LastIndexedAt *time.Time     `json:"last_indexed_at,omitempty"`
}

// Query describes a keyword and structured-filter lookup. Zero values
// disable the corresponding filter; no Terms produces a listing ordered by
// effective date, newest first.
type Query struct {
	Terms      []string
	Label      string
	Tags       []string
	HasOCR     bool
	HasVision  bool
	Category   string
	Extensions []string
	DateFrom   *time.Time // inclusive
	DateTo     *time.Time // exclusive
	IDs        []int64
	Limit      int
}

// Filtered reports whether any structured filter is set.
func (q Query) Filtered() bool {
	return q.Label != "" || len(q.Tags) > 0 || q.HasOCR || q.HasVision ||
		q.Category != "" || len(q.Extensions) > 0 || q.DateFrom != nil || q.DateTo != nil
}

// Match is a record returned by Search with its keyword rank (0..10).
type Match struct {
	Record FileRecord `json:"record"`
	Rank   float64    `json:"rank"`
}

// VectorMatch is a nearest-neighbour hit from the embeddings table.
type VectorMatch struct {
	FileID     int64   `json:"file_id"`
	Distance   float64 `json:"distance"`   // cosine distance from sqlite-vec
	Similarity float64 `json:"similarity"` // 1 - distance
}
