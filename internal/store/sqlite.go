package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec extension
	sqlite_vec.Auto()
}

// timeLayout is fixed-width UTC with nanoseconds so stored dates compare
// lexically in SQL without losing sub-second order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = `id, file_path, file_name, extension, category, file_size, content_hash,
	created_date, modified_date, original_date, last_indexed_at,
	ocr_text, has_ocr, caption, label, tags, vision_confidence, ai_source,
	metadata, embedding_key`

// SQLiteStore implements the Store interface using SQLite, FTS4 and sqlite-vec.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	dims int // dimension of file_vectors, 0 until the first embedding
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	dims, err := loadVectorDimensions(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("Opened SQLite store", "path", dbPath, "embedding_dimensions", dims)

	return &SQLiteStore{db: db, dims: dims}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts the record or updates the row with the same path. The
// structured row, the FTS row and (when embedding is non-nil) the vector
// row are written in one transaction. A nil embedding leaves any stored
// vector in place.
func (s *SQLiteStore) Upsert(rec *FileRecord, embedding []float32) (int64, error) {
	if rec == nil || rec.FilePath == "" {
		return 0, fmt.Errorf("record has no file path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if rec.LastIndexedAt.IsZero() {
		rec.LastIndexedAt = time.Now()
	}
	if rec.Category == "" {
		rec.Category = "Other"
	}
	rec.Tags = normalizeTags(rec.Tags)

	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow("SELECT id FROM files WHERE file_path = ?", rec.FilePath).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to check existing file: %w", err)
	}

	args := []any{
		rec.FileName, rec.Extension, rec.Category, rec.FileSize, nullString(rec.ContentHash),
		formatTime(rec.CreatedDate), formatTime(rec.ModifiedDate), formatTimePtr(rec.OriginalDate),
		formatTime(rec.LastIndexedAt),
		nullString(rec.OCRText), rec.HasOCR, nullString(rec.Caption), nullString(rec.Label),
		rec.Tags, rec.VisionConfidence, nullString(rec.AISource), metadata,
		nullString(rec.EmbeddingKey),
	}

	if id > 0 {
		_, err = tx.Exec(`
			UPDATE files SET file_name = ?, extension = ?, category = ?, file_size = ?, content_hash = ?,
				created_date = ?, modified_date = ?, original_date = ?, last_indexed_at = ?,
				ocr_text = ?, has_ocr = ?, caption = ?, label = ?, tags = ?, vision_confidence = ?,
				ai_source = ?, metadata = ?, embedding_key = ?
			WHERE id = ?
		`, append(args, id)...)
		if err != nil {
			return 0, fmt.Errorf("failed to update file: %w", err)
		}
	} else {
		result, err := tx.Exec(`
			INSERT INTO files (file_path, file_name, extension, category, file_size, content_hash,
				created_date, modified_date, original_date, last_indexed_at,
				ocr_text, has_ocr, caption, label, tags, vision_confidence, ai_source,
				metadata, embedding_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, append([]any{rec.FilePath}, args...)...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert file: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get file ID: %w", err)
		}
	}

	if err := writeFTS(tx, id, rec); err != nil {
		return 0, err
	}

	dims := s.dims
	if embedding != nil {
		if len(embedding) == 0 {
			return 0, fmt.Errorf("empty embedding for %s", rec.FilePath)
		}
		if err := ensureVectorTable(tx, s.dims, len(embedding)); err != nil {
			return 0, err
		}
		dims = len(embedding)

		if _, err := tx.Exec("DELETE FROM file_vectors WHERE file_id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete old vector: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO file_vectors (file_id, embedding) VALUES (?, ?)",
			id, serializeEmbedding(embedding)); err != nil {
			return 0, fmt.Errorf("failed to insert vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit file: %w", err)
	}

	s.dims = dims
	rec.ID = id
	return id, nil
}

// writeFTS replaces the full-text row for id.
func writeFTS(tx *sql.Tx, id int64, rec *FileRecord) error {
	if _, err := tx.Exec("DELETE FROM files_fts WHERE docid = ?", id); err != nil {
		return fmt.Errorf("failed to delete FTS row: %w", err)
	}
	_, err := tx.Exec(`
		INSERT INTO files_fts (docid, file_name, file_path, category, ocr_text, caption, tags, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, rec.FileName, rec.FilePath, rec.Category, rec.OCRText, rec.Caption,
		strings.Join(rec.Tags, " "), rec.Label)
	if err != nil {
		return fmt.Errorf("failed to insert FTS row: %w", err)
	}
	return nil
}

// Delete removes each id from all three facets. Every id runs in its own
// transaction so one failure does not abort the batch.
func (s *SQLiteStore) Delete(ids []int64) DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result DeleteResult
	for _, id := range ids {
		removed, err := s.deleteOne(id)
		switch {
		case err != nil:
			log.Warn("Failed to delete file from index", "id", id, "error", err)
			result.Errors++
		case !removed:
			result.NotFound++
		default:
			result.Removed++
		}
	}
	return result
}

func (s *SQLiteStore) deleteOne(id int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.Exec("DELETE FROM files_fts WHERE docid = ?", id); err != nil {
		return false, fmt.Errorf("failed to delete FTS row: %w", err)
	}
	if s.dims > 0 {
		if _, err := tx.Exec("DELETE FROM file_vectors WHERE file_id = ?", id); err != nil {
			return false, fmt.Errorf("failed to delete vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return true, nil
}

// UpdateField changes one editable field and refreshes the FTS row. It
// returns false without error when id does not exist.
func (s *SQLiteStore) UpdateField(id int64, field string, value any) (bool, error) {
	var column string
	var arg any

	switch field {
	case FieldLabel, FieldCaption:
		str, ok := value.(string)
		if !ok && value != nil {
			return false, fmt.Errorf("%s must be a string, got %T", field, value)
		}
		column, arg = field, nullString(strings.TrimSpace(str))
	case FieldTags:
		column, arg = field, ParseTags(value)
	case FieldMetadata:
		meta, err := coerceMetadata(value)
		if err != nil {
			return false, err
		}
		encoded, err := encodeMetadata(meta)
		if err != nil {
			return false, err
		}
		column, arg = field, encoded
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE files SET "+column+" = ? WHERE id = ?", arg, id)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if field != FieldMetadata {
		rec, err := scanRecord(tx.QueryRow("SELECT "+recordColumns+" FROM files WHERE id = ?", id))
		if err != nil {
			return false, fmt.Errorf("failed to reload file: %w", err)
		}
		if err := writeFTS(tx, id, rec); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit update: %w", err)
	}
	return true, nil
}

// MergeTags adds tags to the record's existing set. The read and the write
// share one transaction, so concurrent writers cannot drop tags.
func (s *SQLiteStore) MergeTags(id int64, tags Tags) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRow("SELECT "+recordColumns+" FROM files WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load file: %w", err)
	}

	rec.Tags = rec.Tags.Merge(tags)
	if _, err := tx.Exec("UPDATE files SET tags = ? WHERE id = ?", rec.Tags, id); err != nil {
		return false, fmt.Errorf("failed to update tags: %w", err)
	}
	if err := writeFTS(tx, id, rec); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit update: %w", err)
	}
	return true, nil
}

// Clear empties every facet and resets the id sequence, leaving the
// database in the same state as a fresh install.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		"DELETE FROM files",
		"DELETE FROM files_fts",
		"DROP TABLE IF EXISTS file_vectors",
		"DELETE FROM index_meta",
		"DELETE FROM sqlite_sequence WHERE name = 'files'",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to clear index (%s): %w", stmt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	s.dims = 0
	log.Debug("Cleared index")
	return nil
}

// GetByID retrieves a record by id.
func (s *SQLiteStore) GetByID(id int64) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRecord(s.db.QueryRow("SELECT "+recordColumns+" FROM files WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return rec, nil
}

// GetByPath retrieves a record by absolute path.
func (s *SQLiteStore) GetByPath(path string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRecord(s.db.QueryRow("SELECT "+recordColumns+" FROM files WHERE file_path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file by path: %w", err)
	}
	return rec, nil
}

// GetByIDs returns one record per id that exists; missing ids are skipped.
func (s *SQLiteStore) GetByIDs(ids []int64) ([]FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT "+recordColumns+" FROM files WHERE id IN ("+placeholders(len(ids))+") ORDER BY id",
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}
	return collectRecords(rows)
}

// List returns records ordered by path.
func (s *SQLiteStore) List(offset, limit int) ([]FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + recordColumns + " FROM files ORDER BY file_path"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return collectRecords(rows)
}

// SearchVectors returns the k nearest embeddings by cosine distance.
func (s *SQLiteStore) SearchVectors(embedding []float32, k int) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims == 0 || k <= 0 {
		return nil, nil
	}
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(embedding), s.dims)
	}

	rows, err := s.db.Query(`
		SELECT file_id, distance
		FROM file_vectors
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance ASC
	`, serializeEmbedding(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.FileID, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector match: %w", err)
		}
		m.Similarity = 1 - m.Distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Statistics returns aggregate counts from the structured table.
func (s *SQLiteStore) Statistics() (*Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Statistics{ByCategory: make(map[string]int)}
	var totalBytes int64
	var lastIndexed sql.NullString

	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(has_ocr), 0),
			COALESCE(SUM(CASE WHEN COALESCE(label, '') != '' OR COALESCE(caption, '') != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(file_size), 0),
			MAX(last_indexed_at)
		FROM files
	`).Scan(&stats.TotalFiles, &stats.FilesWithOCR, &stats.FilesAnalyzed, &totalBytes, &lastIndexed)
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}
	stats.TotalSizeMB = math.Round(float64(totalBytes)/(1024*1024)*100) / 100
	stats.LastIndexedAt = parseTimePtr(lastIndexed)

	rows, err := s.db.Query("SELECT category, COUNT(*) FROM files GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to get category stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		stats.ByCategory[category] = count
	}

	return stats, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var hash, created, modified, original, indexed sql.NullString
	var ocr, caption, label, aiSource, metadata, embeddingKey sql.NullString
	var confidence sql.NullFloat64

	if err := row.Scan(
		&rec.ID, &rec.FilePath, &rec.FileName, &rec.Extension, &rec.Category, &rec.FileSize, &hash,
		&created, &modified, &original, &indexed,
		&ocr, &rec.HasOCR, &caption, &label, &rec.Tags, &confidence, &aiSource,
		&metadata, &embeddingKey,
	); err != nil {
		return nil, err
	}

	rec.ContentHash = hash.String
	rec.CreatedDate = parseTime(created)
	rec.ModifiedDate = parseTime(modified)
	rec.OriginalDate = parseTimePtr(original)
	rec.LastIndexedAt = parseTime(indexed)
	rec.OCRText = ocr.String
	rec.Caption = caption.String
	rec.Label = label.String
	rec.AISource = aiSource.String
	rec.EmbeddingKey = embeddingKey.String
	if confidence.Valid {
		c := confidence.Float64
		rec.VisionConfidence = &c
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "{}" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			log.Debug("Ignoring unreadable metadata", "path", rec.FilePath, "error", err)
		}
	}

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]FileRecord, error) {
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func encodeMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func coerceMetadata(value any) (map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("metadata is not a JSON object: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("metadata must be an object, got %T", value)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return formatTime(*t)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s.String)
	}
	return t.Local()
}

func parseTimePtr(s sql.NullString) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// serializeEmbedding converts a float32 slice to bytes for sqlite-vec.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
