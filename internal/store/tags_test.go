package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Tags
	}{
		{"nil", nil, nil},
		{"empty string", "  ", nil},
		{"string slice", []string{"b", "a", "B"}, Tags{"a", "b"}},
		{"any slice", []any{"dog", " cat ", 3}, Tags{"3", "cat", "dog"}},
		{"json array", `["receipt", "tax", "receipt"]`, Tags{"receipt", "tax"}},
		{"json bytes", []byte(`["x"]`), Tags{"x"}},
		{"raw json array", json.RawMessage(`["Pet", "pet", "animal"]`), Tags{"animal", "Pet"}},
		{"raw json string", json.RawMessage(`"beach, sunset"`), Tags{"beach", "sunset"}},
		{"raw json null", json.RawMessage(`null`), nil},
		{"comma separated", "beach, sunset,  family ", Tags{"beach", "family", "sunset"}},
		{"single bare tag", "landscape", Tags{"landscape"}},
		{"broken json falls back", `[not json`, Tags{"[not json"}},
		{"inner whitespace collapsed", []string{"new   york"}, Tags{"new york"}},
		{"unsupported type", 12, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.input))
		})
	}
}

func TestTagsValueAndScan(t *testing.T) {
	v, err := Tags{"b", "a"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	v, err = Tags(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var tags Tags
	require.NoError(t, tags.Scan(`["x","y"]`))
	assert.Equal(t, Tags{"x", "y"}, tags)

	require.NoError(t, tags.Scan(nil))
	assert.Nil(t, tags)
}

func TestTagsMergeContainsString(t *testing.T) {
	merged := Tags{"work", "pdf"}.Merge(Tags{"Work", "invoice"})
	assert.Equal(t, Tags{"invoice", "pdf", "work"}, merged)
	assert.True(t, merged.Contains("INVOICE"))
	assert.False(t, merged.Contains("holiday"))
	assert.Equal(t, "invoice, pdf, work", merged.String())
}
