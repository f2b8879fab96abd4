package match

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Weights are the log2 Bayes factors each comparison level contributes to a
// pair's match weight, plus the level boundaries.
type Weights struct {
	Prior float64 `yaml:"prior"`

	NameStrongDistance int     `yaml:"name_strong_distance"`
	NameWeakDistance   int     `yaml:"name_weak_distance"`
	NameStrong         float64 `yaml:"name_strong"`
	NameWeak           float64 `yaml:"name_weak"`
	NameMismatch       float64 `yaml:"name_mismatch"`

	BrandMatch    float64 `yaml:"brand_match"`
	BrandMismatch float64 `yaml:"brand_mismatch"`

	WeightMatch    float64 `yaml:"weight_match"`
	WeightMismatch float64 `yaml:"weight_mismatch"`

	PriceCloseDelta float64 `yaml:"price_close_delta"`
	PriceNearDelta  float64 `yaml:"price_near_delta"`
	PriceExact      float64 `yaml:"price_exact"`
	PriceClose      float64 `yaml:"price_close"`
	PriceNear       float64 `yaml:"price_near"`
	PriceFar        float64 `yaml:"price_far"`
}

// DefaultWeights returns the built-in scoring model.
func DefaultWeights() Weights {
	return Weights{
		Prior: -5,

		NameStrongDistance: 2,
		NameWeakDistance:   5,
		NameStrong:         8,
		NameWeak:           3,
		NameMismatch:       -4,

		BrandMatch:    3,
		BrandMismatch: -8,

		WeightMatch:    4,
		WeightMismatch: -3,

		PriceCloseDelta: 1.0,
		PriceNearDelta:  5.0,
		PriceExact:      4,
		PriceClose:      3,
		PriceNear:       1,
		PriceFar:        -3,
	}
}

// Validate checks that a stronger level never weighs less than a weaker one,
// which keeps the match probability monotone in every field.
func (w Weights) Validate() error {
	checks := []struct {
		ok     bool
		key    string
		reason string
	}{
		{w.NameStrongDistance >= 0 && w.NameStrongDistance <= w.NameWeakDistance,
			"name_strong_distance", "must be between 0 and name_weak_distance"},
		{w.NameStrong >= w.NameWeak && w.NameWeak >= w.NameMismatch,
			"name_strong", "name weights must satisfy strong >= weak >= mismatch"},
		{w.BrandMatch >= w.BrandMismatch,
			"brand_match", "must be >= brand_mismatch"},
		{w.WeightMatch >= w.WeightMismatch,
			"weight_match", "must be >= weight_mismatch"},
		{w.PriceCloseDelta >= 0 && w.PriceCloseDelta <= w.PriceNearDelta,
			"price_close_delta", "must be between 0 and price_near_delta"},
		{w.PriceExact >= w.PriceClose && w.PriceClose >= w.PriceNear && w.PriceNear >= w.PriceFar,
			"price_exact", "price weights must satisfy exact >= close >= near >= far"},
	}
	for _, c := range checks {
		if !c.ok {
			return &model.ConfigError{Key: "matching.weights." + c.key, Reason: c.reason}
		}
	}
	return nil
}

// LoadWeights reads a YAML weights file. Keys missing from the file keep
// their default values. An empty path returns the defaults.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "match: read weights %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrapf(err, "match: parse weights %s", path)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}
