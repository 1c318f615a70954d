package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir so a developer's real config never leaks
// into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	return home
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Vision defaults
	assert.False(t, cfg.Vision.Enabled)
	assert.Equal(t, DefaultVisionProvider, cfg.Vision.Provider)
	assert.Equal(t, DefaultOllamaVisionModel, cfg.Vision.Ollama.Model)
	assert.Equal(t, DefaultVisionTimeout, cfg.Vision.Timeout)

	// Embeddings defaults
	assert.Equal(t, DefaultEmbeddingProvider, cfg.Embeddings.Provider)
	assert.Equal(t, DefaultOllamaURL, cfg.Embeddings.Ollama.URL)
	assert.Equal(t, DefaultOpenAIEmbedModel, cfg.Embeddings.OpenAI.Model)

	// Search defaults
	assert.Equal(t, DefaultSearchLimit, cfg.Search.DefaultLimit)
	assert.Equal(t, DefaultRerankTopN, cfg.Search.RerankTopN)
	assert.False(t, cfg.Search.Rerank)

	// Indexing defaults
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Indexing.MaxFileSize)
	assert.Equal(t, DefaultMaxTextChars, cfg.Indexing.MaxTextChars)

	assert.Equal(t, DefaultWatchDebounce, cfg.Watch.Debounce)
	assert.Contains(t, cfg.Ignore, "*.tmp")
	assert.Contains(t, cfg.Ignore, "desktop.ini")

	require.NoError(t, cfg.Validate())
}

func TestDefaultPaths(t *testing.T) {
	assert.Contains(t, DefaultConfigDir(), "lfind")
	assert.Contains(t, DefaultDataDir(), "lfind")
	assert.Contains(t, DefaultDatabasePath(), "index.db")

	path := GlobalConfigPath()
	assert.Contains(t, path, "lfind")
	assert.Contains(t, path, "config.yaml")
}

func TestLoadWithConfigFile(t *testing.T) {
	isolate(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
database:
  path: /custom/path/index.db
indexing:
  max_file_size: 2097152
  include:
    - "**/*.pdf"
vision:
  enabled: true
  provider: anthropic
  timeout: 5s
  limit: 25
  anthropic:
    model: claude-3-opus-20240229
embeddings:
  provider: openai
  openai:
    model: text-embedding-3-large
search:
  rerank: true
  rerank_timeout: 2s
query:
  fuzzy_correction: true
watch:
  paths:
    - /home/someone/Downloads
  debounce: 500ms
ignore:
  - "custom-ignore/"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, configPath, cfg.FilePath())
	assert.Equal(t, "/custom/path/index.db", cfg.Database.Path)
	assert.Equal(t, int64(2097152), cfg.Indexing.MaxFileSize)
	assert.Equal(t, []string{"**/*.pdf"}, cfg.Indexing.Include)
	assert.Equal(t, DefaultMaxTextChars, cfg.Indexing.MaxTextChars)
	assert.True(t, cfg.Vision.Enabled)
	assert.Equal(t, "anthropic", cfg.Vision.Provider)
	assert.Equal(t, 5*time.Second, cfg.Vision.Timeout)
	assert.Equal(t, 25, cfg.Vision.Limit)
	assert.Equal(t, "claude-3-opus-20240229", cfg.Vision.Anthropic.Model)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embeddings.OpenAI.Model)
	assert.True(t, cfg.Search.Rerank)
	assert.Equal(t, 2*time.Second, cfg.Search.RerankTimeout)
	assert.Equal(t, DefaultRerankTopN, cfg.Search.RerankTopN)
	assert.True(t, cfg.Query.FuzzyCorrection)
	assert.Equal(t, []string{"/home/someone/Downloads"}, cfg.Watch.Paths)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Contains(t, cfg.Ignore, "custom-ignore/")
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	isolate(t)

	t.Setenv("LFIND_EMBEDDINGS_PROVIDER", "openai")
	t.Setenv("LFIND_VISION_PROVIDER", "anthropic")
	t.Setenv("LFIND_SEARCH_RERANK", "true")
	t.Setenv("OPENAI_API_KEY", "test-api-key")
	t.Setenv("ANTHROPIC_API_KEY", "test-anthropic-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "anthropic", cfg.Vision.Provider)
	assert.True(t, cfg.Search.Rerank)
	assert.Equal(t, "test-api-key", cfg.Embeddings.OpenAI.APIKey)
	assert.Equal(t, "test-api-key", cfg.Vision.OpenAI.APIKey)
	assert.Equal(t, "test-api-key", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "test-anthropic-key", cfg.Vision.Anthropic.APIKey)
	assert.Equal(t, "test-anthropic-key", cfg.LLM.Anthropic.APIKey)
}

func TestLoadMissingConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.FilePath())
	assert.Equal(t, DefaultEmbeddingProvider, cfg.Embeddings.Provider)
	assert.Equal(t, DefaultLLMProvider, cfg.LLM.Provider)
	assert.Equal(t, DefaultWatchDebounce, cfg.Watch.Debounce)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	isolate(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("vision:\n  provider: carrier-pigeon\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoadsAreIndependent(t *testing.T) {
	isolate(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("search:\n  default_limit: 7\n"), 0644))

	first, err := Load(configPath)
	require.NoError(t, err)
	second, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, first.Search.DefaultLimit)
	assert.Equal(t, DefaultSearchLimit, second.Search.DefaultLimit)
}
