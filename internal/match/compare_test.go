package match

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestCompare_NameLevels(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	tests := []struct {
		a, b  string
		level model.Level
	}{
		{"acana dog food", "acana dog food", model.LevelStrong},
		{"acana dog food 10 lbs", "acana dog food 10lb", model.LevelStrong},
		{"acana dog food", "acana dog foods!!", model.LevelWeak},
		{"acana dog food", "kong squeaky toy", model.LevelMismatch},
		{"", "kong", model.LevelNull},
	}
	for _, tt := range tests {
		c := w.compareName(tt.a, tt.b)
		assert.Equal(t, tt.level, c.Level, "%q vs %q", tt.a, tt.b)
	}
}

func TestCompare_PriceBands(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	tests := []struct {
		a, b  *float64
		level model.Level
	}{
		{nil, nil, model.LevelNull},
		{ptr(10), nil, model.LevelNull},
		{ptr(10), ptr(10), model.LevelExact},
		{ptr(24.99), ptr(25), model.LevelMatch},
		{ptr(10), ptr(11), model.LevelMatch},
		{ptr(10), ptr(14.5), model.LevelWeak},
		{ptr(10), ptr(30), model.LevelMismatch},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, w.comparePrice(tt.a, tt.b).Level)
	}
}

func TestCompare_NullsAreNeutral(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	e := w.Compare(model.NormalizedRecord{ID: "x"}, model.NormalizedRecord{ID: "y"})

	assert.Equal(t, w.Prior, e.MatchWeight)
	for _, c := range e.Breakdown {
		assert.Equal(t, model.LevelNull, c.Level, c.Field)
		assert.Zero(t, c.Weight, c.Field)
	}
}

func TestCompare_SameProductAboveThreshold(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	a := model.NormalizedRecord{ID: "1_A", Name: "acana dog food 10 lbs", Brand: "acana", Price: ptr(24.99)}
	b := model.NormalizedRecord{ID: "1_B", Name: "acana dog food 10lb", Brand: "acana", Price: ptr(25.00)}

	e := w.Compare(b, a)
	assert.Equal(t, "1_A", e.A)
	assert.Equal(t, "1_B", e.B)
	assert.InDelta(t, 9.0, e.MatchWeight, 1e-9)
	assert.Greater(t, e.Probability, 0.99)

	c, ok := e.Comparison(FieldPrice)
	require.True(t, ok)
	assert.Equal(t, model.LevelMatch, c.Level)
}

func TestCompare_BrandMismatchStaysBelowThreshold(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	a := model.NormalizedRecord{ID: "a", Name: "dog food", Brand: "acana", Price: ptr(10)}
	b := model.NormalizedRecord{ID: "b", Name: "dog food", Brand: "orijen", Price: ptr(10)}

	assert.Less(t, w.Compare(a, b).Probability, 0.9)
}

func TestCompare_MonotoneInPrice(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	base := model.NormalizedRecord{ID: "a", Name: "dog food", Brand: "acana", Price: ptr(10)}
	var last float64
	for i, other := range []float64{40, 13, 10.5, 10} {
		e := w.Compare(base, model.NormalizedRecord{ID: "b", Name: "dog food", Brand: "acana", Price: ptr(other)})
		if i > 0 {
			assert.GreaterOrEqual(t, e.Probability, last)
		}
		last = e.Probability
	}
}

func TestProbability(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, Probability(0), 1e-12)
	assert.InDelta(t, 0.8, Probability(2), 1e-12)
	assert.Less(t, Probability(-5), 0.05)
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.PriceClose = 10
	err := w.Validate()
	require.Error(t, err)
	var ce *model.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "matching.weights.price_exact", ce.Key)

	w = DefaultWeights()
	w.NameStrongDistance = 9
	assert.Error(t, w.Validate())
}

func TestLoadWeights(t *testing.T) {
	t.Parallel()

	w, err := LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)

	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prior: -6\nbrand_match: 4\n"), 0o600))

	w, err = LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, -6.0, w.Prior)
	assert.Equal(t, 4.0, w.BrandMatch)
	assert.Equal(t, DefaultWeights().NameStrong, w.NameStrong)
}

func TestLoadWeights_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := LoadWeights(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("brand_match: -20\n"), 0o600))
	_, err = LoadWeights(bad)
	assert.Error(t, err)
}
