package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
)

const currentSchemaVersion = 1

// Schema definitions
const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

const indexMetaTable = `
CREATE TABLE IF NOT EXISTS index_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const filesTable = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT UNIQUE NOT NULL,
	file_name TEXT NOT NULL,
	extension TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT 'Other',
	file_size INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT,
	created_date TEXT,
	modified_date TEXT,
	original_date TEXT,
	last_indexed_at TEXT,
	ocr_text TEXT,
	has_ocr INTEGER NOT NULL DEFAULT 0,
	caption TEXT,
	label TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	vision_confidence REAL,
	ai_source TEXT,
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding_key TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_category ON files(category);
CREATE INDEX IF NOT EXISTS idx_files_extension ON files(extension);
CREATE INDEX IF NOT EXISTS idx_files_effective_date ON files(COALESCE(original_date, modified_date, created_date));
`

// FTS4 ships with the default go-sqlite3 build; FTS5 needs a build tag.
const filesFTSTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts4(
	file_name,
	file_path,
	category,
	ocr_text,
	caption,
	tags,
	label
);
`

const metaEmbeddingDimensions = "embedding_dimensions"

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// createVectorTable creates the sqlite-vec virtual table for the given dimensions.
func createVectorTable(db execer, dimensions int) error {
	query := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS file_vectors USING vec0(
			file_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimensions)

	_, err := db.Exec(query)
	return err
}

// initSchema initializes the database schema.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		version = 0
	} else if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		log.Debug("Schema is up to date", "version", version)
		return nil
	}

	log.Debug("Migrating schema", "from", version, "to", currentSchemaVersion)

	if version < 1 {
		if err := migrateV1(db); err != nil {
			return fmt.Errorf("failed to migrate to v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema. The vector table is created lazily
// once the first embedding fixes its dimension.
func migrateV1(db *sql.DB) error {
	log.Debug("Applying migration v1")

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{indexMetaTable, filesTable, filesFTSTable} {
		if _, err := tx.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return tx.Commit()
}

// loadVectorDimensions returns the recorded embedding dimension, 0 when no
// vector table exists yet.
func loadVectorDimensions(db execer) (int, error) {
	var value string
	err := db.QueryRow("SELECT value FROM index_meta WHERE key = ?", metaEmbeddingDimensions).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding dimensions: %w", err)
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid embedding dimensions %q: %w", value, err)
	}
	return dims, nil
}

// ensureVectorTable makes sure file_vectors exists with the given dimension.
// A dimension change (new embedding model) drops every stored vector and
// invalidates the embedding keys so files are re-embedded on next index.
func ensureVectorTable(tx execer, current, dimensions int) error {
	if current == dimensions {
		return nil
	}

	if current != 0 {
		log.Warn("Embedding dimensions changed, dropping stored vectors", "from", current, "to", dimensions)
		if _, err := tx.Exec("DROP TABLE IF EXISTS file_vectors"); err != nil {
			return fmt.Errorf("failed to drop vector table: %w", err)
		}
		if _, err := tx.Exec("UPDATE files SET embedding_key = NULL"); err != nil {
			return fmt.Errorf("failed to reset embedding keys: %w", err)
		}
	}

	log.Debug("Creating vector table", "dimensions", dimensions)
	if err := createVectorTable(tx, dimensions); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	_, err := tx.Exec("INSERT OR REPLACE INTO index_meta (key, value) VALUES (?, ?)",
		metaEmbeddingDimensions, strconv.Itoa(dimensions))
	if err != nil {
		return fmt.Errorf("failed to record embedding dimensions: %w", err)
	}
	return nil
}
