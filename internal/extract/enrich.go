package extract

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Extra keys written by the Enricher.
const (
	ExtraIngredients    = "ingredients"
	ExtraNutritionFacts = "nutrition_facts"
)

// Enricher fills gaps in raw records from their first image.
type Enricher struct {
	extractor   Extractor
	concurrency int
}

// NewEnricher creates an Enricher running at most concurrency extractions
// at once.
func NewEnricher(extractor Extractor, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{extractor: extractor, concurrency: concurrency}
}

// Enrich returns a copy of recs where records with an image have their
// weight, ingredients and nutrition facts filled when absent. Existing
// values are never replaced and extraction failures leave a record as is.
func (e *Enricher) Enrich(ctx context.Context, recs []model.RawSourceRecord) []model.RawSourceRecord {
	out := make([]model.RawSourceRecord, len(recs))
	copy(out, recs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	enriched := make([]bool, len(out))
	for i := range out {
		if len(out[i].Images) == 0 || !needsEnrichment(out[i]) {
			continue
		}
		g.Go(func() error {
			res := e.extractor.Extract(gctx, out[i].Images[0])
			if res.Empty() {
				return nil
			}
			out[i] = apply(out[i], res)
			enriched[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range enriched {
		if ok {
			n++
		}
	}
	zap.L().Debug("enrichment complete",
		zap.String("component", "extract"),
		zap.Int("records", len(out)),
		zap.Int("enriched", n),
	)
	return out
}

func needsEnrichment(r model.RawSourceRecord) bool {
	if r.Weight == "" {
		return true
	}
	_, hasIngredients := r.Extra[ExtraIngredients]
	_, hasNutrition := r.Extra[ExtraNutritionFacts]
	return !hasIngredients || !hasNutrition
}

// apply fills the gaps in r from res and tags every filled field with the
// OCR provenance.
func apply(r model.RawSourceRecord, res Result) model.RawSourceRecord {
	sources := make(map[string]string, len(r.FieldSources)+3)
	for k, v := range r.FieldSources {
		sources[k] = v
	}

	if r.Weight == "" && res.NetWeight != "" {
		r.Weight = res.NetWeight
		sources["weight"] = model.SourceOCR
	}

	extra := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		extra[k] = v
	}
	if _, ok := extra[ExtraIngredients]; !ok && res.Ingredients != "" {
		extra[ExtraIngredients] = res.Ingredients
		sources[ExtraIngredients] = model.SourceOCR
	}
	if _, ok := extra[ExtraNutritionFacts]; !ok && !isBlank(res.NutritionFacts) {
		extra[ExtraNutritionFacts] = res.NutritionFacts
		sources[ExtraNutritionFacts] = model.SourceOCR
	}
	if len(extra) > 0 {
		r.Extra = extra
	}
	if len(sources) > 0 {
		r.FieldSources = sources
	}
	return r
}
