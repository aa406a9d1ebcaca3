package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose around", "Sure! Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`},
		{"braces in strings", `x {"s":"a } b { c","n":1} y`, `{"s":"a } b { c","n":1}`},
		{"escaped quote", `{"s":"say \"}\" now"}`, `{"s":"say \"}\" now"}`},
		{"fenced", "```json\n{\"k\":true}\n```", `{"k":true}`},
		{"unbalanced then balanced", `{ oops {"ok":1}`, `{"ok":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject_None(t *testing.T) {
	_, err := ExtractJSONObject("no json here")
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = ExtractJSONObject(`{"never":"closed"`)
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("text\n```json\n{\"a\":1}\n```\nmore"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1}  "))
}

func TestDecodeHelpers(t *testing.T) {
	var v struct {
		Summary string `json:"batch_summary"`
	}
	require.NoError(t, DecodeFenced("```json\n{\"batch_summary\":\"ok\"}\n```", &v))
	assert.Equal(t, "ok", v.Summary)

	v.Summary = ""
	require.NoError(t, DecodeObject("prefix {\"batch_summary\":\"again\"} suffix", &v))
	assert.Equal(t, "again", v.Summary)

	assert.Error(t, DecodeFenced("not json", &v))
}
