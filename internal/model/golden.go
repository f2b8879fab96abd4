package model

import "time"

// Defaults applied to required golden-record fields that no record supplied.
const (
	DefaultSKU   = "UNKNOWN"
	DefaultName  = "Unknown Product"
	DefaultPrice = 0.0
)

// Provenance tags that are not scraper identifiers.
const (
	SourceExcel = "excel"
	SourceOCR   = "ocr"
)

// FieldMetadata records where one golden-record value came from.
type FieldMetadata struct {
	Value      any       `json:"value"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// GoldenRecord is the canonical merged representation of one product.
// SKU, Name and Price are always populated.
type GoldenRecord struct {
	ClusterID   string   `json:"cluster_id,omitempty"`
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Weight      string   `json:"weight,omitempty"`
	Images      []string `json:"images"`

	// ExcelPrice is the authoritative override, when one exists.
	ExcelPrice *float64 `json:"excel_price,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`

	// ConsolidationMetadata maps field name to the provenance of its value.
	ConsolidationMetadata map[string]FieldMetadata `json:"consolidation_metadata"`

	// SourceRecordIDs lists the raw records merged into this one, in merge order.
	SourceRecordIDs []string `json:"source_record_ids,omitempty"`
}

// Provenance returns the metadata for a field and whether it was sourced.
func (g *GoldenRecord) Provenance(field string) (FieldMetadata, bool) {
	md, ok := g.ConsolidationMetadata[field]
	return md, ok
}
