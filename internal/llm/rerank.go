package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Candidate is one search hit offered to the model for re-ranking.
type Candidate struct {
	ID       int64
	Name     string
	Category string
	Label    string
	Caption  string
	Tags     []string
	Preview  string
}

// Reranker asks a completion model to order search hits by relevance.
type Reranker struct {
	llm  Service
	opts CompletionOptions
}

// NewReranker creates a reranker on top of svc.
func NewReranker(svc Service) *Reranker {
	return &Reranker{
		llm: svc,
		opts: CompletionOptions{
			Temperature: 0,
			MaxTokens:   512,
			JSON:        false,
		},
	}
}

const rerankSystemPrompt = `You rank files by how well they match a search query.
Reply with only a JSON array of file ids, most relevant first, for example [4, 1, 7].
Include every id you were given exactly once.`

// Rerank returns candidate ids in the model's order. Ids the model invents are
// dropped and ids it forgets are appended in their original order, so the
// result is always a permutation of the input.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]int64, error) {
	if len(candidates) <= 1 {
		ids := make([]int64, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		return ids, nil
	}

	messages := []Message{
		{Role: "system", Content: rerankSystemPrompt},
		{Role: "user", Content: buildRerankPrompt(query, candidates)},
	}

	log.Debug("Re-ranking results", "query", query, "candidates", len(candidates), "model", r.llm.ModelName())

	response, err := r.llm.Complete(ctx, messages, r.opts)
	if err != nil {
		return nil, fmt.Errorf("rerank completion failed: %w", err)
	}

	var order []int64
	if err := json.Unmarshal([]byte(ExtractJSON(response, '[', ']')), &order); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	return completeOrder(order, candidates), nil
}

func buildRerankPrompt(query string, candidates []Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nFiles:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- id %d: %s [%s]", c.ID, c.Name, c.Category)
		if c.Label != "" {
			fmt.Fprintf(&sb, " label=%q", c.Label)
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(&sb, " tags=%q", strings.Join(c.Tags, ", "))
		}
		if c.Caption != "" {
			fmt.Fprintf(&sb, " caption=%q", c.Caption)
		}
		if c.Preview != "" {
			fmt.Fprintf(&sb, " text=%q", c.Preview)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func completeOrder(order []int64, candidates []Candidate) []int64 {
	known := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}

	seen := make(map[int64]bool, len(candidates))
	result := make([]int64, 0, len(candidates))
	for _, id := range order {
		if known[id] && !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	for _, c := range candidates {
		if !seen[c.ID] {
			result = append(result, c.ID)
		}
	}
	return result
}

// ExtractJSON returns the outermost span of s delimited by open and close,
// which strips prose or code fences around a model's JSON answer. It returns
// s unchanged when no such span exists.
func ExtractJSON(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
