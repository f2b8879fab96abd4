// Package pipeline runs one consolidation batch end to end: fetch pending
// products, flatten them to source records, enrich, consolidate, validate
// against the taxonomy and write the results back.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/extract"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/resilience"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/store"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/taxonomy"
)

// DefaultLimit bounds a batch when neither the run nor the pipeline sets one.
const DefaultLimit = 100

// Options control what a run writes back.
type Options struct {
	Limit              int
	PersistGolden      bool
	MarkConsolidated   bool
	ConsolidatedStatus string
	Retry              resilience.Policy
}

// Deps are the collaborators of a Pipeline. Enricher and Taxonomy are
// optional.
type Deps struct {
	Store        store.Store
	Consolidator *Consolidator
	Enricher     *extract.Enricher
	Taxonomy     *taxonomy.Cache
}

// Pipeline orchestrates a consolidation run.
type Pipeline struct {
	deps Deps
	opts Options
}

// New validates deps and returns a Pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, &model.ConfigError{Key: "store", Reason: "store is required"}
	}
	if deps.Consolidator == nil {
		return nil, &model.ConfigError{Key: "matching", Reason: "consolidator is required"}
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.ConsolidatedStatus == "" {
		opts.ConsolidatedStatus = "consolidated"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetries("store", "consolidate")
	}
	return &Pipeline{deps: deps, opts: opts}, nil
}

// RunOptions are per-run settings.
type RunOptions struct {
	// Limit overrides Options.Limit when positive.
	Limit int
	JobID string
}

// Run consolidates one batch. An empty batch is not an error: the result
// reports zero fetched rows. A failing store aborts the run with an
// *model.ExternalServiceError.
func (p *Pipeline) Run(ctx context.Context, ro RunOptions) (*model.RunResult, error) {
	start := time.Now()
	limit := p.opts.Limit
	if ro.Limit > 0 {
		limit = ro.Limit
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("job_id", ro.JobID))
	result := &model.RunResult{JobID: ro.JobID}

	products, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) ([]model.PendingProduct, error) {
		return p.deps.Store.FetchPending(ctx, limit)
	})
	if err != nil {
		return nil, p.fail(log, "fetch pending", err)
	}
	result.Fetched = len(products)
	if len(products) == 0 {
		log.Info("pipeline: no pending products")
		result.Duration = time.Since(start)
		return result, nil
	}

	raws, skus := flatten(products)
	if skipped := len(products) - countWithSources(products); skipped > 0 {
		log.Info("pipeline: skipped products without sources", zap.Int("skipped", skipped))
	}

	if p.deps.Enricher != nil {
		raws = p.deps.Enricher.Enrich(ctx, raws)
	}

	outcome, err := p.deps.Consolidator.Consolidate(ctx, raws)
	if err != nil {
		return nil, coreErr(ctx, err)
	}
	result.Records = outcome.Records
	result.Edges = len(outcome.Edges)
	result.EdgesAboveThreshold = outcome.EdgesAboveThreshold
	result.Clusters = len(outcome.Clusters)
	result.DuplicateClusters = outcome.DuplicateClusters()
	result.Golden = outcome.Golden

	p.applyTaxonomy(ctx, log, result.Golden)

	if p.opts.PersistGolden {
		n, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) (int64, error) {
			return p.deps.Store.SaveGoldenRecords(ctx, result.Golden)
		})
		if err != nil {
			return nil, p.fail(log, "save golden records", err)
		}
		result.Persisted = n
	}

	if p.opts.MarkConsolidated {
		err := resilience.Do(ctx, p.opts.Retry, func(ctx context.Context) error {
			_, err := p.deps.Store.UpdateStatus(ctx, skus, p.opts.ConsolidatedStatus)
			return err
		})
		if err != nil {
			return nil, p.fail(log, "update status", err)
		}
	}

	result.Duration = time.Since(start)
	log.Info("pipeline: run complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("records", result.Records),
		zap.Int("edges", result.Edges),
		zap.Int("edges_above_threshold", result.EdgesAboveThreshold),
		zap.Int("clusters", result.Clusters),
		zap.Int("duplicate_clusters", result.DuplicateClusters),
		zap.Int("golden", len(result.Golden)),
		zap.Int64("persisted", result.Persisted),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (p *Pipeline) fail(log *zap.Logger, op string, err error) error {
	log.Error("pipeline: store failed", zap.String("op", op), zap.Error(err))
	return &model.ExternalServiceError{Service: "store", Op: op, Err: err}
}

// coreErr surfaces cancellation as the context's own error.
func coreErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// applyTaxonomy snaps golden categories and product types onto the known
// lists. A taxonomy that cannot be loaded leaves the values untouched.
func (p *Pipeline) applyTaxonomy(ctx context.Context, log *zap.Logger, golden []model.GoldenRecord) {
	if p.deps.Taxonomy == nil {
		return
	}
	categories, err := p.deps.Taxonomy.Categories(ctx)
	if err != nil {
		log.Warn("pipeline: taxonomy unavailable", zap.Error(err))
		return
	}
	productTypes, err := p.deps.Taxonomy.ProductTypes(ctx)
	if err != nil {
		log.Warn("pipeline: taxonomy unavailable", zap.Error(err))
		return
	}

	for i := range golden {
		g := &golden[i]
		if g.Category != "" {
			g.Category = snap(g, "category", g.Category, categories)
		}
		if g.ProductType != "" {
			g.ProductType = snap(g, "product_type", g.ProductType, productTypes)
		}
	}
}

func snap(g *model.GoldenRecord, field, value string, options []string) string {
	v := taxonomy.Validate(value, options)
	if v == value {
		return value
	}
	if md, ok := g.ConsolidationMetadata[field]; ok {
		md.Value = v
		g.ConsolidationMetadata[field] = md
	}
	return v
}

// flatten returns the batch's source records in ingestion order and the SKU
// of every fetched product.
func flatten(products []model.PendingProduct) ([]model.RawSourceRecord, []string) {
	var raws []model.RawSourceRecord
	skus := make([]string, 0, len(products))
	for _, p := range products {
		skus = append(skus, p.SKU)
		raws = append(raws, p.Flatten()...)
	}
	return raws, skus
}

func countWithSources(products []model.PendingProduct) int {
	n := 0
	for _, p := range products {
		if len(p.Sources) > 0 {
			n++
		}
	}
	return n
}
