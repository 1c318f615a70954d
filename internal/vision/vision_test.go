package vision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/lfind/internal/llm"
	"github.com/nickcecere/lfind/internal/store"
)

type stubService struct {
	response string
	err      error
	delay    time.Duration
	got      []llm.Message
	opts     llm.CompletionOptions
}

func (s *stubService) Complete(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (string, error) {
	s.got = messages
	s.opts = opts
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.response, s.err
}
func (s *stubService) Provider() llm.Provider { return llm.ProviderOllama }
func (s *stubService) ModelName() string      { return "llava" }

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0644))
	return path
}

func TestAnalyze(t *testing.T) {
	svc := &stubService{response: `{"label":"Receipt","tags":["Shopping"," food "],"caption":"A grocery receipt.","confidence":0.9,"detected_text":"TOTAL 12.50"}`}
	a := NewLLMAnalyzer(svc, time.Second)

	result := a.Analyze(context.Background(), writeImage(t, "r.png"))
	require.NotNil(t, result)

	assert.Equal(t, "Receipt", result.Label)
	assert.Equal(t, store.Tags{"food", "Shopping"}, result.Tags)
	assert.Equal(t, "A grocery receipt.", result.Caption)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Equal(t, "TOTAL 12.50", result.Extra["detected_text"])
	assert.Equal(t, "ollama:llava", a.Source())

	require.Len(t, svc.got, 1)
	require.Len(t, svc.got[0].Images, 1)
	assert.Equal(t, "image/png", svc.got[0].Images[0].MIMEType)
	assert.True(t, svc.opts.JSON)
}

func TestAnalyzeFailuresReturnNil(t *testing.T) {
	img := writeImage(t, "a.png")

	t.Run("service error", func(t *testing.T) {
		a := NewLLMAnalyzer(&stubService{err: errors.New("down")}, 0)
		assert.Nil(t, a.Analyze(context.Background(), img))
	})

	t.Run("garbage response", func(t *testing.T) {
		a := NewLLMAnalyzer(&stubService{response: "no idea"}, 0)
		assert.Nil(t, a.Analyze(context.Background(), img))
	})

	t.Run("timeout", func(t *testing.T) {
		a := NewLLMAnalyzer(&stubService{response: `{"label":"x"}`, delay: time.Second}, 20*time.Millisecond)
		assert.Nil(t, a.Analyze(context.Background(), img))
	})

	t.Run("missing file", func(t *testing.T) {
		a := NewLLMAnalyzer(&stubService{response: `{"label":"x"}`}, 0)
		assert.Nil(t, a.Analyze(context.Background(), filepath.Join(t.TempDir(), "gone.png")))
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("fenced JSON with string tags", func(t *testing.T) {
		r, err := ParseResponse("```json\n{\"label\":\"cat\",\"tags\":\"Pet, animal,\",\"confidence\":7}\n```")
		require.NoError(t, err)
		assert.Equal(t, "cat", r.Label)
		assert.Equal(t, store.Tags{"animal", "Pet"}, r.Tags)
		assert.Equal(t, 1.0, r.Confidence)
	})

	t.Run("duplicate and null tags", func(t *testing.T) {
		r, err := ParseResponse(`{"label":"dog","tags":["Dog","dog "," "]}`)
		require.NoError(t, err)
		assert.Equal(t, store.Tags{"Dog"}, r.Tags)

		r, err = ParseResponse(`{"label":"dog","tags":null}`)
		require.NoError(t, err)
		assert.Nil(t, r.Tags)
	})

	t.Run("default confidence", func(t *testing.T) {
		r, err := ParseResponse(`{"caption":"sunset"}`)
		require.NoError(t, err)
		assert.Equal(t, 0.5, r.Confidence)
		assert.Empty(t, r.Extra)
	})

	t.Run("empty answer", func(t *testing.T) {
		_, err := ParseResponse(`{"label":"  ","tags":[]}`)
		assert.Error(t, err)
	})
}

func TestQuota(t *testing.T) {
	ctx := context.Background()

	q := NewQuota(2)
	assert.True(t, q.Allowed(ctx))
	q.Record(ctx)
	assert.True(t, q.Allowed(ctx))
	q.Record(ctx)
	assert.False(t, q.Allowed(ctx))
	assert.Equal(t, 0, q.(*Quota).Remaining())

	unlimited := NewQuota(0)
	for i := 0; i < 100; i++ {
		unlimited.Record(ctx)
	}
	assert.True(t, unlimited.Allowed(ctx))
}
