package expr

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "soulbound/pkg/domain"
)

func holderOf(classes ...string) Predicate {
	held := make(map[id.ClassID]bool, len(classes))
	for _, c := range classes {
		held[id.ClassID(c)] = true
	}
	return func(_ context.Context, classID id.ClassID) (bool, error) {
		return held[classID], nil
	}
}

func mustParse(t *testing.T, raw string) *Expr {
	t.Helper()
	e, err := Parse([]byte(raw))
	require.NoError(t, err)
	return e
}

func TestEval(t *testing.T) {
	ctx := context.Background()
	pred := holderOf("a", "b")

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"atom held", `{"class":"a"}`, true},
		{"atom not held", `{"class":"c"}`, false},
		{"and all held", `{"and":[{"class":"a"},{"class":"b"}]}`, true},
		{"and one missing", `{"and":[{"class":"a"},{"class":"c"}]}`, false},
		{"or first held", `{"or":[{"class":"a"},{"class":"c"}]}`, true},
		{"or none held", `{"or":[{"class":"c"},{"class":"d"}]}`, false},
		{"not held", `{"not":{"class":"c"}}`, true},
		{"nested", `{"and":[{"class":"a"},{"or":[{"class":"b"},{"class":"c"}]}]}`, true},
		{"double negation", `{"not":{"not":{"class":"a"}}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustParse(t, tt.raw).Eval(ctx, pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalShortCircuits(t *testing.T) {
	ctx := context.Background()
	var calls []id.ClassID
	pred := func(_ context.Context, classID id.ClassID) (bool, error) {
		calls = append(calls, classID)
		return classID == id.ClassID("a"), nil
	}

	t.Run("or stops at the first hit", func(t *testing.T) {
		calls = nil
		got, err := mustParse(t, `{"or":[{"class":"a"},{"class":"b"}]}`).Eval(ctx, pred)
		require.NoError(t, err)
		assert.True(t, got)
		assert.Equal(t, []id.ClassID{"a"}, calls)
	})

	t.Run("and stops at the first miss", func(t *testing.T) {
		calls = nil
		got, err := mustParse(t, `{"and":[{"class":"b"},{"class":"a"}]}`).Eval(ctx, pred)
		require.NoError(t, err)
		assert.False(t, got)
		assert.Equal(t, []id.ClassID{"b"}, calls)
	})
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"two operators", `{"class":"a","not":{"class":"b"}}`},
		{"empty and", `{"and":[]}`},
		{"empty or", `{"or":[]}`},
		{"bad class id", `{"class":"Not Valid"}`},
		{"not json", `nope`},
		{"empty child", `{"and":[{}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	raw := `{"class":"a"}`
	for i := 0; i < 40; i++ {
		raw = `{"not":` + raw + `}`
	}
	_, err := Parse([]byte(raw))
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	raw := `{"and":[{"class":"a"},{"or":[{"class":"b"},{"not":{"class":"c"}}]}]}`
	parsed := mustParse(t, raw)

	encoded, err := json.Marshal(parsed)
	require.NoError(t, err)

	again, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, parsed, again)
}
