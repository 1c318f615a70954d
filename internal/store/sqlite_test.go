package store

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestReopenKeepsRecordsAndDimensions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	id, err := store.Upsert(testRecord("/docs/reopen.txt"), []float32{1, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 4, store.dims)
	matches, err := store.SearchVectors([]float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].FileID)
}

func TestUpsertInsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	rec := testRecord("/photos/beach.jpg")
	rec.Category = "Images"
	rec.Caption = "Two people walking on a beach at sunset"
	rec.Label = "beach"
	rec.Tags = Tags{"sunset", "Beach", "sunset"}
	confidence := 0.87
	rec.VisionConfidence = &confidence
	rec.AISource = "ollama:llava"
	rec.Metadata = map[string]any{"purpose": "vacation photo"}
	original := time.Date(2023, 7, 14, 18, 30, 0, 0, time.UTC)
	rec.OriginalDate = &original

	id, err := store.Upsert(rec, nil)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, rec.ID)

	got, err := store.GetByPath("/photos/beach.jpg")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "beach.jpg", got.FileName)
	assert.Equal(t, "Images", got.Category)
	assert.Equal(t, Tags{"Beach", "sunset"}, got.Tags)
	require.NotNil(t, got.VisionConfidence)
	assert.InDelta(t, 0.87, *got.VisionConfidence, 1e-9)
	assert.Equal(t, "ollama:llava", got.AISource)
	assert.Equal(t, "vacation photo", got.Metadata["purpose"])
	require.NotNil(t, got.OriginalDate)
	assert.True(t, original.Equal(*got.OriginalDate))
	assert.True(t, rec.ModifiedDate.Equal(got.ModifiedDate))
	assert.False(t, got.LastIndexedAt.IsZero())

	byID, err := store.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, got.FilePath, byID.FilePath)
}

func TestUpsertIsIdempotentByPath(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	first, err := store.Upsert(testRecord("/docs/report.txt"), nil)
	require.NoError(t, err)

	updated := testRecord("/docs/report.txt")
	updated.FileSize = 4096
	updated.ContentHash = "changed"
	second, err := store.Upsert(updated, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	stats, err := store.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)

	var ftsRows int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM files_fts").Scan(&ftsRows))
	assert.Equal(t, 1, ftsRows)

	got, err := store.GetByID(first)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), got.FileSize)
	assert.Equal(t, "changed", got.ContentHash)
}

func TestUpsertStructuredAndFullTextAgree(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	id, err := store.Upsert(testRecord("/docs/zebrafish_notes.txt"), nil)
	require.NoError(t, err)

	_, err = store.GetByID(id)
	require.NoError(t, err)

	matches, err := store.Search(Query{Terms: []string{"zebrafish"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Record.ID)
}

func TestUpsertRejectsMissingPath(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	_, err := store.Upsert(&FileRecord{FileName: "x"}, nil)
	assert.Error(t, err)
}

func TestUpsertNilEmbeddingKeepsVector(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	id, err := store.Upsert(testRecord("/docs/vec.txt"), []float32{0, 1, 0, 0})
	require.NoError(t, err)

	_, err = store.Upsert(testRecord("/docs/vec.txt"), nil)
	require.NoError(t, err)

	matches, err := store.SearchVectors([]float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].FileID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
}

func TestUpsertDimensionChangeResetsVectors(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	rec := testRecord("/docs/a.txt")
	rec.EmbeddingKey = "key-a"
	_, err := store.Upsert(rec, []float32{1, 0, 0, 0})
	require.NoError(t, err)

	idB, err := store.Upsert(testRecord("/docs/b.txt"), []float32{1, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 6, store.dims)

	matches, err := store.SearchVectors([]float32{1, 0, 0, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, idB, matches[0].FileID)

	got, err := store.GetByPath("/docs/a.txt")
	require.NoError(t, err)
	assert.Empty(t, got.EmbeddingKey)
}

func TestGetByPathNotFound(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	_, err := store.GetByPath("/nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByID(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByPathStorageError(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.GetByPath("/docs/a.txt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetByIDsSkipsMissing(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	a, err := store.Upsert(testRecord("/docs/a.txt"), nil)
	require.NoError(t, err)
	b, err := store.Upsert(testRecord("/docs/b.txt"), nil)
	require.NoError(t, err)

	records, err := store.GetByIDs([]int64{b, 999, a})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.GetByIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteCascades(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	id, err := store.Upsert(testRecord("/docs/quokka_budget.txt"), []float32{0, 0, 1, 0})
	require.NoError(t, err)
	keep, err := store.Upsert(testRecord("/docs/other.txt"), []float32{0, 1, 0, 0})
	require.NoError(t, err)

	result := store.Delete([]int64{id, 12345})
	assert.Equal(t, DeleteResult{Removed: 1, NotFound: 1}, result)

	records, err := store.GetByIDs([]int64{id})
	require.NoError(t, err)
	assert.Empty(t, records)

	matches, err := store.Search(Query{Terms: []string{"quokka"}})
	require.NoError(t, err)
	assert.Empty(t, matches)

	var ftsRows, vecRows int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM files_fts WHERE docid = ?", id).Scan(&ftsRows))
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM file_vectors WHERE file_id = ?", id).Scan(&vecRows))
	assert.Zero(t, ftsRows)
	assert.Zero(t, vecRows)

	_, err = store.GetByID(keep)
	assert.NoError(t, err)
}

func TestUpdateField(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	id, err := store.Upsert(testRecord("/photos/img_0001.jpg"), nil)
	require.NoError(t, err)

	ok, err := store.UpdateField(id, FieldLabel, "capybara")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateField(id, FieldTags, `["rodent", "Rodent", "river"]`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateField(id, FieldCaption, "A capybara resting by a river")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateField(id, FieldMetadata, map[string]any{"purpose": "wildlife"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, "capybara", got.Label)
	assert.Equal(t, Tags{"river", "rodent"}, got.Tags)
	assert.Equal(t, "A capybara resting by a river", got.Caption)
	assert.Equal(t, "wildlife", got.Metadata["purpose"])

	// FTS row follows the new label
	matches, err := store.Search(Query{Terms: []string{"capybara"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Record.ID)
}

func TestUpdateFieldMissingAndInvalid(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ok, err := store.UpdateField(999, FieldLabel, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := store.Upsert(testRecord("/docs/a.txt"), nil)
	require.NoError(t, err)

	_, err = store.UpdateField(id, "file_path", "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = store.UpdateField(id, FieldLabel, 42)
	assert.Error(t, err)

	_, err = store.UpdateField(id, FieldMetadata, "not json")
	assert.Error(t, err)
}

func TestMergeTags(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	rec := testRecord("/photos/beach.jpg")
	rec.Tags = Tags{"sunset"}
	id, err := store.Upsert(rec, nil)
	require.NoError(t, err)

	ok, err := store.MergeTags(id, Tags{"Beach", "SUNSET"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, Tags{"Beach", "sunset"}, got.Tags)

	matches, err := store.Search(Query{Terms: []string{"beach"}, Tags: []string{"sunset"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	ok, err = store.MergeTags(999, Tags{"x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearRestoresFreshState(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	for i := 0; i < 3; i++ {
		_, err := store.Upsert(testRecord(fmt.Sprintf("/docs/file%d.txt", i)), []float32{1, 0, 0, 0})
		require.NoError(t, err)
	}

	require.NoError(t, store.Clear())

	stats, err := store.Statistics()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
	assert.Zero(t, store.dims)

	var ftsRows, tables int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM files_fts").Scan(&ftsRows))
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'file_vectors'").Scan(&tables))
	assert.Zero(t, ftsRows)
	assert.Zero(t, tables)

	// ids start over and a new embedding size is accepted
	id, err := store.Upsert(testRecord("/docs/again.txt"), []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 2, store.dims)
}

func TestStatistics(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	a := testRecord("/docs/a.pdf")
	a.Category = "PDFs"
	a.FileSize = 1024 * 1024
	a.OCRText = "quarterly numbers"
	a.HasOCR = true
	_, err := store.Upsert(a, nil)
	require.NoError(t, err)

	b := testRecord("/photos/b.jpg")
	b.Category = "Images"
	b.FileSize = 512 * 1024
	b.Label = "cat"
	_, err = store.Upsert(b, nil)
	require.NoError(t, err)

	stats, err := store.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.FilesWithOCR)
	assert.Equal(t, 1, stats.FilesAnalyzed)
	assert.InDelta(t, 1.5, stats.TotalSizeMB, 0.001)
	assert.Equal(t, map[string]int{"PDFs": 1, "Images": 1}, stats.ByCategory)
	assert.NotNil(t, stats.LastIndexedAt)
}

func TestSearchVectorsOrdering(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	near, err := store.Upsert(testRecord("/docs/near.txt"), normalizeVector([]float32{1, 0.1, 0, 0}))
	require.NoError(t, err)
	far, err := store.Upsert(testRecord("/docs/far.txt"), normalizeVector([]float32{0, 0, 1, 1}))
	require.NoError(t, err)

	matches, err := store.SearchVectors(normalizeVector([]float32{1, 0, 0, 0}), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, near, matches[0].FileID)
	assert.Equal(t, far, matches[1].FileID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)

	_, err = store.SearchVectors([]float32{1, 0}, 2)
	assert.Error(t, err)
}

func TestSearchVectorsWithoutTable(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	matches, err := store.SearchVectors([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := store.Upsert(testRecord(fmt.Sprintf("/docs/c%02d.txt", i)), nil)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			matches, err := store.Search(Query{Terms: []string{"c"}})
			assert.NoError(t, err)
			for _, m := range matches {
				assert.NotEmpty(t, m.Record.FileName)
			}
		}
	}()
	wg.Wait()

	stats, err := store.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 50, stats.TotalFiles)
}

// Helper function to create a test store
func setupTestStore(t *testing.T) *SQLiteStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	return store
}

// testRecord returns a minimal record for path.
func testRecord(path string) *FileRecord {
	return &FileRecord{
		FilePath:     path,
		FileName:     filepath.Base(path),
		Extension:    filepath.Ext(path),
		Category:     "Documents",
		FileSize:     100,
		ContentHash:  "abc123",
		CreatedDate:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ModifiedDate: time.Date(2024, 1, 3, 3, 4, 5, 0, time.UTC),
	}
}

// normalizeVector normalizes a vector to unit length (for testing).
func normalizeVector(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	norm := float32(math.Sqrt(float64(sum)))
	result := make([]float32, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}
