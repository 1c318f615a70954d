// Package llm provides chat completion services used for re-ranking search
// results and for describing images.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/nickcecere/lfind/internal/config"
)

// Provider represents an LLM provider type.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Image is an inline image attached to a message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Message represents a chat message.
type Message struct {
	Role    string  `json:"role"` // "system", "user", or "assistant"
	Content string  `json:"content"`
	Images  []Image `json:"-"`
}

// CompletionOptions configures the completion request.
type CompletionOptions struct {
	// Temperature controls randomness (0-1).
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// DefaultCompletionOptions returns sensible defaults.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

// Service defines the interface for LLM services.
type Service interface {
	// Complete generates a completion for the given messages.
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)

	// Provider returns the provider name.
	Provider() Provider

	// ModelName returns the model name.
	ModelName() string
}

// NewService creates the completion service used for re-ranking.
func NewService(cfg *config.Config) (Service, error) {
	return newService(cfg.LLM.Provider, cfg.LLM.Ollama, cfg.LLM.OpenAI, cfg.LLM.Anthropic)
}

// NewVisionService creates the multimodal service used for image analysis.
func NewVisionService(cfg *config.Config) (Service, error) {
	return newService(cfg.Vision.Provider, cfg.Vision.Ollama, cfg.Vision.OpenAI, cfg.Vision.Anthropic)
}

func newService(provider string, ollama config.OllamaModelConfig, openai config.OpenAIModelConfig, anthropic config.AnthropicConfig) (Service, error) {
	switch provider {
	case "ollama":
		return NewOllamaService(ollama.URL, ollama.Model)
	case "openai":
		return NewOpenAIService(openai.APIKey, openai.Model, openai.BaseURL)
	case "anthropic":
		return NewAnthropicService(anthropic.APIKey, anthropic.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// Source formats the provider and model as stored in ai_source.
func Source(s Service) string {
	return string(s.Provider()) + ":" + s.ModelName()
}
