package store

// Store defines the file index operations. Every write keeps the structured
// row, the full-text row and the embedding row consistent for its id.
type Store interface {
	// Writes
	Upsert(rec *FileRecord, embedding []float32) (int64, error)
	Delete(ids []int64) DeleteResult
	UpdateField(id int64, field string, value any) (bool, error)
	MergeTags(id int64, tags Tags) (bool, error)
	Clear() error

	// Lookups
	GetByID(id int64) (*FileRecord, error)
	GetByPath(path string) (*FileRecord, error)
	GetByIDs(ids []int64) ([]FileRecord, error)
	List(offset, limit int) ([]FileRecord, error)

	// Search
	Search(q Query) ([]Match, error)
	SearchVectors(embedding []float32, k int) ([]VectorMatch, error)

	// Stats
	Statistics() (*Statistics, error)

	Close() error
}
