package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RawSourceRecord is one source's view of a product as scraped, before any
// canonicalization. Records are immutable once ingested.
type RawSourceRecord struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	SKUHint     string         `json:"sku_hint"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Price       any            `json:"price,omitempty"` // raw string or number
	Brand       string         `json:"brand,omitempty"`
	Category    string         `json:"category,omitempty"`
	ProductType string         `json:"product_type,omitempty"`
	Weight      string         `json:"weight,omitempty"`
	Images      []string       `json:"images,omitempty"`
	ScrapedAt   time.Time      `json:"scraped_at"`
	Extra       map[string]any `json:"extra,omitempty"` // unrecognized payload keys, verbatim

	// FieldSources overrides SourceID as the provenance of individual
	// fields, keyed by golden-record field name.
	FieldSources map[string]string `json:"field_sources,omitempty"`
}

// FieldSource returns the provenance tag for one field of the record.
func (r RawSourceRecord) FieldSource(field string) string {
	if src, ok := r.FieldSources[field]; ok {
		return src
	}
	return r.SourceID
}

// RecordID builds the composite key of a source record.
func RecordID(skuHint, sourceID string) string {
	return skuHint + "_" + sourceID
}

// NormalizedRecord is a RawSourceRecord with every matching field in canonical
// form. An empty string or nil pointer means the field is absent.
type NormalizedRecord struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"source_id"`
	SKUHint     string   `json:"sku_hint"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Weight      string   `json:"weight,omitempty"` // "<value> lb" or "<value> oz"
}

// PendingProduct is one row of the upstream ingestion table: a SKU and the
// raw payload each scraper produced for it.
type PendingProduct struct {
	SKU            string                    `json:"sku"`
	JobID          string                    `json:"job_id,omitempty"`
	PipelineStatus string                    `json:"pipeline_status"`
	Sources        map[string]map[string]any `json:"sources"`
}

// Flatten turns a pending product into one RawSourceRecord per source.
// Sources are emitted in source-name order so the ingestion order of a
// batch is reproducible.
func (p PendingProduct) Flatten() []RawSourceRecord {
	if len(p.Sources) == 0 {
		return nil
	}

	names := make([]string, 0, len(p.Sources))
	for name := range p.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]RawSourceRecord, 0, len(names))
	for _, name := range names {
		out = append(out, RecordFromPayload(p.SKU, name, p.Sources[name]))
	}
	return out
}

// RecordFromPayload maps a scraper payload onto a RawSourceRecord. Keys the
// record does not model are preserved in Extra.
func RecordFromPayload(sku, source string, payload map[string]any) RawSourceRecord {
	rec := RawSourceRecord{
		ID:       RecordID(sku, source),
		SourceID: source,
		SKUHint:  sku,
	}

	for key, val := range payload {
		if val == nil {
			continue
		}
		switch key {
		case "title":
			rec.Title = asString(val)
		case "name":
			if rec.Title == "" {
				rec.Title = asString(val)
			}
		case "description":
			rec.Description = asString(val)
		case "price":
			rec.Price = val
		case "brand":
			rec.Brand = asString(val)
		case "category":
			rec.Category = asString(val)
		case "product_type":
			rec.ProductType = asString(val)
		case "weight":
			rec.Weight = asString(val)
		case "images":
			rec.Images = asStrings(val)
		case "scraped_at":
			rec.ScrapedAt = asTime(val)
		case "sku", "scraper_name", "unique_id":
			// Derived from the row itself.
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]any)
			}
			rec.Extra[key] = val
		}
	}

	// "title" wins over "name" regardless of map iteration order.
	if t, ok := payload["title"]; ok && t != nil {
		rec.Title = asString(t)
	}

	return rec
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
