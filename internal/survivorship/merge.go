// Package survivorship reduces one cluster of raw records to a golden record.
//
// The policy is last-wins: records are visited in ingestion order and every
// present field overwrites the accumulated value. An authoritative override
// price replaces the merged price regardless of order. Required fields still
// missing afterwards are defaulted and carry no provenance.
package survivorship

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/normalize"
)

// Confidence attached to every value taken from a record or override.
const Confidence = 1.0

// Options carry the per-cluster inputs to Merge.
type Options struct {
	ClusterID string
	// ExcelPrice, when set, is the authoritative price for the cluster.
	ExcelPrice *float64
	// Now stamps the metadata. Zero means time.Now.
	Now time.Time
}

// Merge folds records, in the given order, into one golden record.
func Merge(records []model.RawSourceRecord, opts Options) model.GoldenRecord {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	g := model.GoldenRecord{
		ClusterID:             opts.ClusterID,
		Images:                []string{},
		ConsolidationMetadata: make(map[string]model.FieldMetadata),
	}
	set := func(field string, value any, source string) {
		g.ConsolidationMetadata[field] = model.FieldMetadata{
			Value:      value,
			Source:     source,
			Confidence: Confidence,
			Timestamp:  now,
		}
	}
	var hasPrice bool

	for _, r := range records {
		g.SourceRecordIDs = append(g.SourceRecordIDs, r.ID)

		if s := strings.TrimSpace(r.SKUHint); s != "" {
			g.SKU = s
			set("sku", s, r.FieldSource("sku"))
		}
		if name := normalize.NormalizeProductName(r.Title); name != "" {
			g.Name = name
			set("name", name, r.FieldSource("name"))
		}
		if d := strings.TrimSpace(r.Description); d != "" {
			g.Description = d
			set("description", d, r.FieldSource("description"))
		}
		if p, ok := normalize.NormalizePrice(r.Price); ok {
			g.Price = p
			hasPrice = true
			set("price", p, r.FieldSource("price"))
		}
		if b := strings.TrimSpace(r.Brand); b != "" {
			g.Brand = b
			set("brand", b, r.FieldSource("brand"))
		}
		if c := strings.TrimSpace(r.Category); c != "" {
			g.Category = c
			set("category", c, r.FieldSource("category"))
		}
		if pt := strings.TrimSpace(r.ProductType); pt != "" {
			g.ProductType = pt
			set("product_type", pt, r.FieldSource("product_type"))
		}
		if w, ok := mergeWeight(r.Weight); ok {
			g.Weight = w
			set("weight", w, r.FieldSource("weight"))
		}
		if len(r.Images) > 0 {
			g.Images = append([]string(nil), r.Images...)
			set("images", g.Images, r.FieldSource("images"))
		}
		for k, v := range r.Extra {
			if v == nil {
				continue
			}
			if g.Extra == nil {
				g.Extra = make(map[string]any)
			}
			g.Extra[k] = v
			set(k, v, r.FieldSource(k))
		}
	}

	if opts.ExcelPrice != nil {
		p := *opts.ExcelPrice
		g.Price = p
		g.ExcelPrice = &p
		hasPrice = true
		set("price", p, model.SourceExcel)
		set("excel_price", p, model.SourceExcel)
	}

	if g.SKU == "" {
		g.SKU = model.DefaultSKU
	}
	if g.Name == "" {
		g.Name = model.DefaultName
	}
	if !hasPrice {
		g.Price = model.DefaultPrice
	}
	return g
}

// mergeWeight prefers the canonical "<value> <unit>" form. A bare number has
// no unit to canonicalize, so it is kept with a trailing ".0" trimmed.
func mergeWeight(raw string) (string, bool) {
	if w, ok := normalize.NormalizeWeight(raw); ok {
		return w, true
	}
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	return normalize.TrimBareNumber(raw), true
}
