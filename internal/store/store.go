// Package store persists the consolidator's inputs and outputs: the upstream
// ingestion table, golden records, the category taxonomy and job status.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the consolidation pipeline.
type Store interface {
	// Ingestion
	FetchPending(ctx context.Context, limit int) ([]model.PendingProduct, error)
	UpdateStatus(ctx context.Context, skus []string, status string) (int64, error)

	// Golden records
	SaveGoldenRecords(ctx context.Context, records []model.GoldenRecord) (int64, error)

	// Taxonomy
	ListCategories(ctx context.Context) ([]string, error)
	ListProductTypes(ctx context.Context) ([]string, error)

	// Jobs
	CreateJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Options name the upstream ingestion table and its pending status.
type Options struct {
	IngestionTable string `yaml:"table" mapstructure:"table"`
	PendingStatus  string `yaml:"pending_status" mapstructure:"pending_status"`
}

// Defaults for Options.
const (
	DefaultIngestionTable = "products_ingestion"
	DefaultPendingStatus  = "scraped"
)

func (o Options) withDefaults() Options {
	if o.IngestionTable == "" {
		o.IngestionTable = DefaultIngestionTable
	}
	if o.PendingStatus == "" {
		o.PendingStatus = DefaultPendingStatus
	}
	return o
}

const goldenTable = "golden_records"

var goldenColumns = []string{
	"sku", "cluster_id", "name", "description", "price", "brand", "category",
	"product_type", "weight", "images", "excel_price", "extra",
	"consolidation_metadata", "source_record_ids",
}

// goldenRows encodes records for the golden_records table. Records with the
// default SKU are skipped and duplicate SKUs collapse to the last record.
func goldenRows(records []model.GoldenRecord) ([][]any, error) {
	pos := make(map[string]int, len(records))
	var rows [][]any
	for i := range records {
		g := &records[i]
		if g.SKU == "" || g.SKU == model.DefaultSKU {
			continue
		}

		images, err := json.Marshal(g.Images)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal images for %s", g.SKU)
		}
		extra, err := json.Marshal(g.Extra)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal extra for %s", g.SKU)
		}
		meta, err := json.Marshal(g.ConsolidationMetadata)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal metadata for %s", g.SKU)
		}
		ids, err := json.Marshal(g.SourceRecordIDs)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal source ids for %s", g.SKU)
		}

		row := []any{
			g.SKU, g.ClusterID, g.Name, g.Description, g.Price, g.Brand, g.Category,
			g.ProductType, g.Weight, string(images), g.ExcelPrice, string(extra),
			string(meta), string(ids),
		}
		if j, ok := pos[g.SKU]; ok {
			rows[j] = row
			continue
		}
		pos[g.SKU] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeSources(sku string, raw []byte) (map[string]map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var sources map[string]map[string]any
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, eris.Wrapf(err, "store: decode sources for %s", sku)
	}
	return sources, nil
}
