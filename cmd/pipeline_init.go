package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/cluster"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/config"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/extract"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/match"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/override"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/pipeline"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/resilience"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/store"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/taxonomy"
	anthropicpkg "github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/pkg/anthropic"
)

// pipelineEnv holds the store and the pipeline built on it for the
// consolidate and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config, opens and migrates the store and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p, err := buildPipeline(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	opts := store.Options{
		IngestionTable: c.Ingestion.Table,
		PendingStatus:  c.Ingestion.PendingStatus,
	}
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.SQLitePath(), opts)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		}, opts)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// buildPipeline wires the consolidation stages and optional collaborators
// from config.
func buildPipeline(c *config.Config, st store.Store) (*pipeline.Pipeline, error) {
	weights := match.DefaultWeights()
	if c.Matching.WeightsFile != "" {
		w, err := match.LoadWeights(c.Matching.WeightsFile)
		if err != nil {
			return nil, err
		}
		weights = w
	}

	scorer, err := match.NewScorer(weights, c.Batch.Workers, c.Matching.BlockingFallback)
	if err != nil {
		return nil, err
	}
	clusterer, err := cluster.New(c.Matching.Threshold)
	if err != nil {
		return nil, err
	}

	prices, err := override.Load(override.Options{
		Path:        c.Overrides.ExcelPath,
		SheetName:   c.Overrides.SheetName,
		SKUColumn:   c.Overrides.SKUColumn,
		PriceColumn: c.Overrides.PriceColumn,
	})
	if err != nil {
		return nil, err
	}

	consolidator, err := pipeline.NewConsolidator(scorer, clusterer, prices, c.Batch.Workers)
	if err != nil {
		return nil, err
	}

	retry := resilience.NewPolicy(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	deps := pipeline.Deps{Store: st, Consolidator: consolidator}

	if c.Taxonomy.Enabled {
		deps.Taxonomy = taxonomy.NewCache(st, time.Duration(c.Taxonomy.TTLMinutes)*time.Minute)
	}

	if c.Extract.Enabled {
		client := anthropicpkg.NewClient(c.Anthropic.Key)
		vision := extract.NewVisionExtractor(client, extract.VisionConfig{
			Model:      c.Extract.Model,
			MaxTokens:  c.Extract.MaxTokens,
			RatePerSec: c.Extract.RatePerSec,
			Retry:      retry,
		})
		deps.Enricher = extract.NewEnricher(vision, c.Extract.Concurrency)
	}

	zap.L().Debug("pipeline configured",
		zap.Float64("threshold", clusterer.Threshold()),
		zap.Int("overrides", len(prices)),
		zap.Bool("taxonomy", deps.Taxonomy != nil),
		zap.Bool("extract", deps.Enricher != nil),
	)

	return pipeline.New(deps, pipeline.Options{
		Limit:              c.Batch.Limit,
		PersistGolden:      c.Ingestion.PersistGolden,
		MarkConsolidated:   c.Ingestion.MarkConsolidated,
		ConsolidatedStatus: c.Ingestion.ConsolidatedStatus,
		Retry:              retry,
	})
}
