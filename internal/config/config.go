// Package config handles configuration loading and validation for lfind.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete lfind configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Indexing   IndexingConfig   `mapstructure:"indexing"`
	Vision     VisionConfig     `mapstructure:"vision"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Search     SearchConfig     `mapstructure:"search"`
	Query      QueryConfig      `mapstructure:"query"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Ignore     []string         `mapstructure:"ignore"`

	// file is the config file that was read, empty when running on defaults.
	file string
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// IndexingConfig configures directory scans and per-file extraction.
type IndexingConfig struct {
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	MaxFileCount int      `mapstructure:"max_file_count"`
	MaxTextChars int      `mapstructure:"max_text_chars"`
	Include      []string `mapstructure:"include"`
}

// VisionConfig selects the image analysis backend.
type VisionConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Provider  string            `mapstructure:"provider"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Limit     int               `mapstructure:"limit"`
	Ollama    OllamaModelConfig `mapstructure:"ollama"`
	OpenAI    OpenAIModelConfig `mapstructure:"openai"`
	Anthropic AnthropicConfig   `mapstructure:"anthropic"`
}

// EmbeddingsConfig configures the embedding service used for semantic ranking.
type EmbeddingsConfig struct {
	Provider string            `mapstructure:"provider"`
	Ollama   OllamaModelConfig `mapstructure:"ollama"`
	OpenAI   OpenAIEmbedConfig `mapstructure:"openai"`
}

// OllamaModelConfig points at a local Ollama model.
type OllamaModelConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// OpenAIEmbedConfig configures OpenAI embeddings.
type OpenAIEmbedConfig struct {
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// OpenAIModelConfig configures an OpenAI chat model.
type OpenAIModelConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// AnthropicConfig configures an Anthropic model.
type AnthropicConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// LLMConfig configures the completion model used for re-ranking.
type LLMConfig struct {
	Provider  string            `mapstructure:"provider"`
	Ollama    OllamaModelConfig `mapstructure:"ollama"`
	OpenAI    OpenAIModelConfig `mapstructure:"openai"`
	Anthropic AnthropicConfig   `mapstructure:"anthropic"`
}

// SearchConfig configures ranking behaviour.
type SearchConfig struct {
	DefaultLimit  int           `mapstructure:"default_limit"`
	Rerank        bool          `mapstructure:"rerank"`
	RerankTopN    int           `mapstructure:"rerank_top_n"`
	RerankTimeout time.Duration `mapstructure:"rerank_timeout"`
}

// QueryConfig configures natural language query parsing.
type QueryConfig struct {
	FuzzyCorrection bool `mapstructure:"fuzzy_correction"`
}

// WatchConfig configures the auto-watch background indexer.
type WatchConfig struct {
	Paths    []string      `mapstructure:"paths"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Indexing: IndexingConfig{
			MaxFileSize:  DefaultMaxFileSize,
			MaxFileCount: DefaultMaxFileCount,
			MaxTextChars: DefaultMaxTextChars,
		},
		Vision: VisionConfig{
			Provider: DefaultVisionProvider,
			Timeout:  DefaultVisionTimeout,
			Ollama: OllamaModelConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaVisionModel,
			},
			OpenAI: OpenAIModelConfig{
				Model: DefaultOpenAIVisionModel,
			},
			Anthropic: AnthropicConfig{
				Model: DefaultAnthropicModel,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider: DefaultEmbeddingProvider,
			Ollama: OllamaModelConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaEmbedModel,
			},
			OpenAI: OpenAIEmbedConfig{
				Model: DefaultOpenAIEmbedModel,
			},
		},
		LLM: LLMConfig{
			Provider: DefaultLLMProvider,
			Ollama: OllamaModelConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaLLMModel,
			},
			OpenAI: OpenAIModelConfig{
				Model: DefaultOpenAILLMModel,
			},
			Anthropic: AnthropicConfig{
				Model: DefaultAnthropicModel,
			},
		},
		Search: SearchConfig{
			DefaultLimit:  DefaultSearchLimit,
			RerankTopN:    DefaultRerankTopN,
			RerankTimeout: DefaultRerankTimeout,
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
		Ignore: DefaultIgnorePatterns(),
	}
}

// Load reads configuration from file and environment variables.
// An empty configFile searches the standard locations.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())

		// A project-local .lfindrc.yaml wins over the global file
		if rcPath := findRCFile(); rcPath != "" {
			v.SetConfigFile(rcPath)
		}
	}

	v.SetEnvPrefix("LFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()

	cfg.loadAPIKeysFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects provider names the rest of the program cannot build.
func (c *Config) Validate() error {
	switch c.Vision.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid vision provider %q", c.Vision.Provider)
	}
	switch c.Embeddings.Provider {
	case "none", "", "ollama", "openai":
	default:
		return fmt.Errorf("invalid embeddings provider %q", c.Embeddings.Provider)
	}
	switch c.LLM.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid llm provider %q", c.LLM.Provider)
	}
	if c.Indexing.MaxTextChars <= 0 {
		return fmt.Errorf("indexing.max_text_chars must be positive")
	}
	return nil
}

// FilePath returns the path of the loaded config file, or empty string if none.
func (c *Config) FilePath() string {
	return c.file
}

// setDefaults sets default values in viper.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("indexing.max_file_size", d.Indexing.MaxFileSize)
	v.SetDefault("indexing.max_file_count", d.Indexing.MaxFileCount)
	v.SetDefault("indexing.max_text_chars", d.Indexing.MaxTextChars)
	v.SetDefault("indexing.include", []string{})

	v.SetDefault("vision.enabled", d.Vision.Enabled)
	v.SetDefault("vision.provider", d.Vision.Provider)
	v.SetDefault("vision.timeout", d.Vision.Timeout)
	v.SetDefault("vision.limit", d.Vision.Limit)
	v.SetDefault("vision.ollama.url", d.Vision.Ollama.URL)
	v.SetDefault("vision.ollama.model", d.Vision.Ollama.Model)
	v.SetDefault("vision.openai.model", d.Vision.OpenAI.Model)
	v.SetDefault("vision.openai.base_url", "")
	v.SetDefault("vision.openai.api_key", "")
	v.SetDefault("vision.anthropic.model", d.Vision.Anthropic.Model)
	v.SetDefault("vision.anthropic.api_key", "")

	v.SetDefault("embeddings.provider", d.Embeddings.Provider)
	v.SetDefault("embeddings.ollama.url", d.Embeddings.Ollama.URL)
	v.SetDefault("embeddings.ollama.model", d.Embeddings.Ollama.Model)
	v.SetDefault("embeddings.openai.model", d.Embeddings.OpenAI.Model)
	v.SetDefault("embeddings.openai.base_url", "")
	v.SetDefault("embeddings.openai.api_key", "")
	v.SetDefault("embeddings.openai.dimensions", 0)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.ollama.url", d.LLM.Ollama.URL)
	v.SetDefault("llm.ollama.model", d.LLM.Ollama.Model)
	v.SetDefault("llm.openai.model", d.LLM.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.anthropic.model", d.LLM.Anthropic.Model)
	v.SetDefault("llm.anthropic.api_key", "")

	v.SetDefault("search.default_limit", d.Search.DefaultLimit)
	v.SetDefault("search.rerank", d.Search.Rerank)
	v.SetDefault("search.rerank_top_n", d.Search.RerankTopN)
	v.SetDefault("search.rerank_timeout", d.Search.RerankTimeout)

	v.SetDefault("query.fuzzy_correction", d.Query.FuzzyCorrection)

	v.SetDefault("watch.paths", []string{})
	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("ignore", d.Ignore)
}

// findRCFile searches for .lfindrc.yaml starting from current directory.
func findRCFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		rcPath := filepath.Join(dir, RCFileName)
		if _, err := os.Stat(rcPath); err == nil {
			return rcPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// loadAPIKeysFromEnv fills API keys from the providers' own environment
// variables when the config leaves them empty.
func (c *Config) loadAPIKeysFromEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Embeddings.OpenAI.APIKey == "" {
			c.Embeddings.OpenAI.APIKey = key
		}
		if c.Vision.OpenAI.APIKey == "" {
			c.Vision.OpenAI.APIKey = key
		}
		if c.LLM.OpenAI.APIKey == "" {
			c.LLM.OpenAI.APIKey = key
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c.Vision.Anthropic.APIKey == "" {
			c.Vision.Anthropic.APIKey = key
		}
		if c.LLM.Anthropic.APIKey == "" {
			c.LLM.Anthropic.APIKey = key
		}
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
