package normalize

import "github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"

// Record canonicalizes the matching fields of a raw record. The name is the
// matching form (NormalizeText of the title), not the display form.
func Record(r model.RawSourceRecord) model.NormalizedRecord {
	out := model.NormalizedRecord{
		ID:          r.ID,
		SourceID:    r.SourceID,
		SKUHint:     r.SKUHint,
		Name:        NormalizeText(r.Title),
		Brand:       NormalizeText(r.Brand),
		Category:    NormalizeText(r.Category),
		ProductType: NormalizeText(r.ProductType),
	}
	if p, ok := NormalizePrice(r.Price); ok {
		out.Price = &p
	}
	if w, ok := NormalizeWeight(r.Weight); ok {
		out.Weight = w
	}
	return out
}
