package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values
const (
	// Vision defaults
	DefaultVisionProvider    = "ollama"
	DefaultOllamaVisionModel = "llava"
	DefaultOpenAIVisionModel = "gpt-4o-mini"
	DefaultVisionTimeout     = 60 * time.Second

	// Embedding defaults; "none" keeps search keyword-only
	DefaultEmbeddingProvider = "none"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "nomic-embed-text"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"

	// LLM defaults
	DefaultLLMProvider    = "ollama"
	DefaultOllamaLLMModel = "llama3"
	DefaultOpenAILLMModel = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	// Indexing defaults
	DefaultMaxFileSize  = 512 << 20 // 512MB, files above this are not hashed or extracted
	DefaultMaxFileCount = 100000
	DefaultMaxTextChars = 5000

	// Search defaults
	DefaultSearchLimit   = 50
	DefaultRerankTopN    = 20
	DefaultRerankTimeout = 15 * time.Second

	// Watch defaults
	DefaultWatchDebounce = 3 * time.Second

	// Database
	DefaultDBFileName = "index.db"

	// RCFileName is the project-local config file searched upward from cwd.
	RCFileName = ".lfindrc.yaml"
)

// DefaultIgnorePatterns returns the default list of gitignore-style patterns
// skipped while walking. Temp and OS bookkeeping files are never indexed.
func DefaultIgnorePatterns() []string {
	return []string{
		// Temp files
		"*.tmp",
		"*.temp",
		"~*",
		"*~",
		"*.swp",
		"*.part",
		"*.crdownload",

		// OS bookkeeping
		".DS_Store",
		"Thumbs.db",
		"thumbs.db",
		"desktop.ini",
		"ntuser.*",
		"$Recycle.Bin/",
		"System Volume Information/",

		// Version control and dependency trees
		".git/",
		".svn/",
		".hg/",
		"node_modules/",
		"__pycache__/",
		".venv/",
		"venv/",

		// Our own database
		"*.db-wal",
		"*.db-shm",
	}
}

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/lfind"
	}
	return filepath.Join(home, ".config", "lfind")
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share/lfind"
	}
	return filepath.Join(home, ".local", "share", "lfind")
}

// DefaultDatabasePath returns the default database file path.
func DefaultDatabasePath() string {
	return filepath.Join(DefaultDataDir(), DefaultDBFileName)
}
