package match

import (
	"fmt"
	"math"

	"github.com/agext/levenshtein"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Field names used in comparison breakdowns.
const (
	FieldName   = "name"
	FieldBrand  = "brand"
	FieldWeight = "weight"
	FieldPrice  = "price"
)

// priceEpsilon absorbs float noise when testing prices for equality.
const priceEpsilon = 1e-9

func null(field string) model.FieldComparison {
	return model.FieldComparison{Field: field, Level: model.LevelNull}
}

func (w Weights) compareName(a, b string) model.FieldComparison {
	if a == "" || b == "" {
		return null(FieldName)
	}

	d := levenshtein.Distance(a, b, nil)
	c := model.FieldComparison{Field: FieldName, Detail: fmt.Sprintf("distance=%d", d)}
	switch {
	case d <= w.NameStrongDistance:
		c.Level, c.Weight = model.LevelStrong, w.NameStrong
	case d <= w.NameWeakDistance:
		c.Level, c.Weight = model.LevelWeak, w.NameWeak
	default:
		c.Level, c.Weight = model.LevelMismatch, w.NameMismatch
	}
	return c
}

func (w Weights) compareBrand(a, b string) model.FieldComparison {
	if a == "" || b == "" {
		return null(FieldBrand)
	}
	if a == b {
		return model.FieldComparison{Field: FieldBrand, Level: model.LevelExact, Weight: w.BrandMatch}
	}
	return model.FieldComparison{Field: FieldBrand, Level: model.LevelMismatch, Weight: w.BrandMismatch}
}

func (w Weights) compareWeight(a, b string) model.FieldComparison {
	if a == "" || b == "" {
		return null(FieldWeight)
	}
	if a == b {
		return model.FieldComparison{Field: FieldWeight, Level: model.LevelExact, Weight: w.WeightMatch}
	}
	return model.FieldComparison{Field: FieldWeight, Level: model.LevelMismatch, Weight: w.WeightMismatch}
}

func (w Weights) comparePrice(a, b *float64) model.FieldComparison {
	if a == nil || b == nil {
		return null(FieldPrice)
	}

	d := math.Abs(*a - *b)
	c := model.FieldComparison{Field: FieldPrice, Detail: fmt.Sprintf("delta=%.2f", d)}
	switch {
	case d <= priceEpsilon:
		c.Level, c.Weight = model.LevelExact, w.PriceExact
	case d <= w.PriceCloseDelta+priceEpsilon:
		c.Level, c.Weight = model.LevelMatch, w.PriceClose
	case d <= w.PriceNearDelta+priceEpsilon:
		c.Level, c.Weight = model.LevelWeak, w.PriceNear
	default:
		c.Level, c.Weight = model.LevelMismatch, w.PriceFar
	}
	return c
}

// Probability converts a log2 match weight into a probability.
func Probability(matchWeight float64) float64 {
	return 1 / (1 + math.Exp2(-matchWeight))
}

// Compare scores one pair of records.
func (w Weights) Compare(a, b model.NormalizedRecord) model.SimilarityEdge {
	e := model.NewSimilarityEdge(a.ID, b.ID)
	e.Breakdown = []model.FieldComparison{
		w.compareName(a.Name, b.Name),
		w.compareBrand(a.Brand, b.Brand),
		w.compareWeight(a.Weight, b.Weight),
		w.comparePrice(a.Price, b.Price),
	}

	e.MatchWeight = w.Prior
	for _, c := range e.Breakdown {
		e.MatchWeight += c.Weight
	}
	e.Probability = Probability(e.MatchWeight)
	return e
}
