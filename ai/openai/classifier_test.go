package openai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/poiesic/masterdb/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid untouched", `{"index":1,"mid":"기타"}`, `{"index":1,"mid":"기타"}`},
		{"missing quote after comma", `{"index":1, mid":"기타"}`, `{"index":1, "mid":"기타"}`},
		{"missing quote after brace", `{index":1}`, `{"index":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`Here you go: {"a":1} hope this helps`))
	assert.Equal(t, "no json", extractJSON("no json"))
}

func TestFill(t *testing.T) {
	raw := `{"results":[{"index":2,"mid":"리더십","sub":"신뢰"},{"index":9,"mid":"기타","sub":"안전"},{"index":1,"mid":"없음","sub":"x"}]}`
	var resp batchResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	got := fill(resp.Results, 3)
	require.Len(t, got, 3)
	assert.Equal(t, ai.Classification{Mid: ai.Unclassified, Sub: ai.Unclassified}, got[0])
	assert.Equal(t, ai.Classification{Mid: "리더십", Sub: "신뢰"}, got[1])
	assert.Equal(t, ai.Classification{Mid: ai.Unclassified, Sub: ai.Unclassified}, got[2])
}

func TestPrompts(t *testing.T) {
	system := buildSystemPrompt()
	for _, g := range ai.LegacyScheme {
		assert.Contains(t, system, g.Mid)
	}
	assert.Contains(t, system, ai.Unclassified)

	batch := buildBatchPrompt([]string{"첫 번째\n문항", "두 번째 문항"})
	assert.Contains(t, batch, "1. 첫 번째 문항\n")
	assert.Contains(t, batch, "2. 두 번째 문항\n")
	assert.Equal(t, 2, strings.Count(batch, "문항\n"))
}
