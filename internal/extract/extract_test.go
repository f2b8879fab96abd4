package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestParseResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Result
	}{
		{
			name: "plain json",
			in:   `{"ingredients":"Chicken, Rice","net_weight":"10 lb","nutrition_facts":{"protein":"30%"}}`,
			want: Result{Ingredients: "Chicken, Rice", NetWeight: "10 lb", NutritionFacts: map[string]any{"protein": "30%"}},
		},
		{
			name: "fenced",
			in:   "```json\n{\"net_weight\": \"4 oz\"}\n```",
			want: Result{NetWeight: "4 oz"},
		},
		{
			name: "trailing comma repaired",
			in:   `{"ingredients": "Oats", "net_weight": "2 lb",}`,
			want: Result{Ingredients: "Oats", NetWeight: "2 lb"},
		},
		{
			name: "ingredient list joined",
			in:   `{"ingredients":["Chicken","Rice"," "],"net_weight":null}`,
			want: Result{Ingredients: "Chicken, Rice"},
		},
		{
			name: "alternate keys",
			in:   `{"Ingredients":"Corn","Net Weight":"1 kg","Nutrition Facts":"High fiber"}`,
			want: Result{Ingredients: "Corn", NetWeight: "1 kg", NutritionFacts: "High fiber"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResult_Empty(t *testing.T) {
	t.Parallel()

	_, err := ParseResult("   ")
	require.Error(t, err)
}

func TestResult_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, Result{}.Empty())
	assert.True(t, Result{NutritionFacts: map[string]any{}}.Empty())
	assert.False(t, Result{NetWeight: "1 lb"}.Empty())
	assert.False(t, Result{NutritionFacts: "fiber"}.Empty())
}
