// Package embeddings provides text embedding services for semantic ranking.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/extract"
	"github.com/nickcecere/lfind/internal/fs"
	"github.com/nickcecere/lfind/internal/store"
)

// Provider represents an embedding provider type.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// ErrDisabled is returned by NewService when no provider is configured.
var ErrDisabled = errors.New("embeddings disabled")

// maxDocumentChars caps the text embedded per file.
const maxDocumentChars = 5000

// Service defines the interface for embedding services.
type Service interface {
	// Embed generates an embedding for document text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a query (may use a different task prefix).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimensions for this model.
	Dimensions() int

	// Provider returns the provider name.
	Provider() Provider

	// ModelName returns the model name.
	ModelName() string
}

// Known model dimensions
var modelDimensions = map[string]int{
	// Ollama models
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,

	// OpenAI models
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// GetModelDimensions returns the known dimensions for a model, or 0 if unknown.
func GetModelDimensions(model string) int {
	return modelDimensions[model]
}

// NewService creates an embedding service based on the configuration.
// Provider "none" or empty yields ErrDisabled.
func NewService(cfg *config.Config) (Service, error) {
	switch cfg.Embeddings.Provider {
	case "", "none":
		return nil, ErrDisabled
	case "ollama":
		return NewOllamaService(
			cfg.Embeddings.Ollama.URL,
			cfg.Embeddings.Ollama.Model,
		)
	case "openai":
		return NewOpenAIService(
			cfg.Embeddings.OpenAI.APIKey,
			cfg.Embeddings.OpenAI.Model,
			cfg.Embeddings.OpenAI.BaseURL,
			cfg.Embeddings.OpenAI.Dimensions,
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embeddings.Provider)
	}
}

// DocumentText builds the text embedded for a record: name, label, tags,
// caption and extracted text, capped at 5000 characters.
func DocumentText(rec *store.FileRecord) string {
	parts := []string{rec.FileName}
	for _, s := range []string{rec.Label, rec.Tags.String(), rec.Caption, rec.OCRText} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return extract.Truncate(strings.Join(parts, "\n"), maxDocumentChars)
}

// Key identifies the embedded text together with the model that embedded
// it, so a model change forces a re-embed.
func Key(svc Service, text string) string {
	return string(svc.Provider()) + ":" + svc.ModelName() + ":" + fs.HashContent([]byte(text))
}
