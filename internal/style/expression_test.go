package style

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	props := map[string]any{
		"kind":   "poi",
		"rank":   3,
		"closed": false,
	}

	tests := []struct {
		name string
		expr any
		want any
	}{
		{name: "constant", expr: 4.5, want: 4.5},
		{name: "get", expr: Get("kind"), want: "poi"},
		{name: "get missing", expr: Get("nope"), want: nil},
		{name: "has", expr: Expression{"has", "rank"}, want: true},
		{name: "not has", expr: Expression{"!", Expression{"has", "nope"}}, want: true},
		{name: "eq", expr: Eq("kind", "poi"), want: true},
		{name: "eq number types", expr: Eq("rank", 3.0), want: true},
		{name: "ne", expr: Expression{"!=", Get("kind"), "road"}, want: true},
		{name: "lt", expr: Expression{"<", Get("rank"), 5}, want: true},
		{name: "ge", expr: Expression{">=", Get("rank"), 5}, want: false},
		{name: "all", expr: All(Eq("kind", "poi"), Expression{">", Get("rank"), 1}), want: true},
		{name: "any", expr: Expression{"any", Eq("kind", "road"), Get("closed")}, want: false},
		{name: "in", expr: Expression{"in", Get("kind"), Literal([]any{"road", "poi"})}, want: true},
		{name: "literal", expr: Literal([]any{1, 2}), want: []any{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.expr, props))
		})
	}
}

func TestMatches_DecodedJSON(t *testing.T) {
	var filter []any
	require.NoError(t, json.Unmarshal([]byte(`["all", ["==", ["get", "kind"], "poi"], ["has", "rank"]]`), &filter))

	assert.True(t, Matches(Expression(filter), map[string]any{"kind": "poi", "rank": 1}))
	assert.False(t, Matches(Expression(filter), map[string]any{"kind": "poi"}))
	assert.True(t, Matches(nil, nil))
}

func TestIsGet(t *testing.T) {
	name, ok := IsGet(Get("line-width"))
	assert.True(t, ok)
	assert.Equal(t, "line-width", name)

	_, ok = IsGet(4.0)
	assert.False(t, ok)
	_, ok = IsGet(Eq("a", 1))
	assert.False(t, ok)
}
