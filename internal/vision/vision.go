// Package vision describes images with a multimodal model.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/llm"
	"github.com/nickcecere/lfind/internal/store"
)

// maxImageBytes caps what is read into memory and sent to a model.
const maxImageBytes = 20 << 20

// Result is a model's description of one image.
type Result struct {
	Label      string
	Tags       store.Tags
	Caption    string
	Confidence float64
	Extra      map[string]any // purpose, suggested_filename, detected_text
}

// Analyzer describes images. Analyze returns nil on any failure.
type Analyzer interface {
	Analyze(ctx context.Context, imagePath string) *Result

	// Source identifies the backend, stored as ai_source.
	Source() string
}

// LLMAnalyzer implements Analyzer on top of a multimodal completion service.
type LLMAnalyzer struct {
	svc     llm.Service
	timeout time.Duration
}

// NewLLMAnalyzer creates an analyzer. A zero timeout means no per-image limit.
func NewLLMAnalyzer(svc llm.Service, timeout time.Duration) *LLMAnalyzer {
	return &LLMAnalyzer{svc: svc, timeout: timeout}
}

// NewAnalyzer builds the analyzer selected by cfg.Vision.Provider.
func NewAnalyzer(cfg *config.Config) (*LLMAnalyzer, error) {
	svc, err := llm.NewVisionService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision service: %w", err)
	}
	return NewLLMAnalyzer(svc, cfg.Vision.Timeout), nil
}

// Source returns provider:model.
func (a *LLMAnalyzer) Source() string {
	return llm.Source(a.svc)
}

const analyzePrompt = `Analyze this image for a personal file search index.
Respond with a single JSON object with these keys:
"label": a short category such as "receipt", "screenshot", "landscape", "diagram",
"tags": an array of up to 10 lowercase keywords,
"caption": one sentence describing the image,
"confidence": a number between 0 and 1,
"purpose": what the image is likely used for,
"suggested_filename": a descriptive file name without extension,
"detected_text": any legible text in the image, or "".`

// Analyze sends the image to the model and parses its JSON answer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, imagePath string) *Result {
	img, err := loadImage(imagePath)
	if err != nil {
		log.Debug("Skipping vision analysis", "path", imagePath, "error", err)
		return nil
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	opts := llm.DefaultCompletionOptions()
	opts.JSON = true
	opts.MaxTokens = 800

	response, err := a.svc.Complete(ctx, []llm.Message{{
		Role:    "user",
		Content: analyzePrompt,
		Images:  []llm.Image{*img},
	}}, opts)
	if err != nil {
		log.Warn("Vision analysis failed", "path", imagePath, "source", a.Source(), "error", err)
		return nil
	}

	result, err := ParseResponse(response)
	if err != nil {
		log.Warn("Unusable vision response", "path", imagePath, "error", err)
		return nil
	}
	return result
}

func loadImage(path string) (*llm.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &llm.Image{MIMEType: mimeType(path, data), Data: data}, nil
}

func mimeType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

// response is the JSON shape requested from the model.
type response struct {
	Label             string          `json:"label"`
	Tags              json.RawMessage `json:"tags"`
	Caption           string          `json:"caption"`
	Confidence        *float64        `json:"confidence"`
	Purpose           string          `json:"purpose"`
	SuggestedFilename string          `json:"suggested_filename"`
	DetectedText      string          `json:"detected_text"`
}

// ParseResponse decodes a model answer into a Result. Prose or code fences
// around the JSON object are tolerated. An answer with no label, tags or
// caption is an error.
func ParseResponse(raw string) (*Result, error) {
	var resp response
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw, '{', '}')), &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	result := &Result{
		Label:      strings.TrimSpace(resp.Label),
		Tags:       store.ParseTags(resp.Tags),
		Caption:    strings.TrimSpace(resp.Caption),
		Confidence: 0.5,
		Extra:      map[string]any{},
	}
	if resp.Confidence != nil {
		result.Confidence = clamp(*resp.Confidence)
	}
	if resp.Purpose != "" {
		result.Extra["purpose"] = resp.Purpose
	}
	if resp.SuggestedFilename != "" {
		result.Extra["suggested_filename"] = resp.SuggestedFilename
	}
	if resp.DetectedText != "" {
		result.Extra["detected_text"] = resp.DetectedText
	}

	if result.Label == "" && len(result.Tags) == 0 && result.Caption == "" {
		return nil, fmt.Errorf("response has no label, tags or caption")
	}
	return result, nil
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
