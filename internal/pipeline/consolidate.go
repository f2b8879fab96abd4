package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/cluster"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/match"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/normalize"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/override"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/survivorship"
)

// Consolidator runs the in-memory core over one batch of raw records:
// normalize, score, cluster and merge. It does no I/O.
type Consolidator struct {
	scorer    *match.Scorer
	clusterer *cluster.Clusterer
	overrides override.Prices
	workers   int
	now       func() time.Time
}

// NewConsolidator wires the core stages. overrides may be nil.
func NewConsolidator(scorer *match.Scorer, clusterer *cluster.Clusterer, overrides override.Prices, workers int) (*Consolidator, error) {
	if scorer == nil {
		return nil, &model.ConfigError{Key: "matching", Reason: "scorer is required"}
	}
	if clusterer == nil {
		return nil, &model.ConfigError{Key: "matching.threshold", Reason: "clusterer is required"}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Consolidator{
		scorer:    scorer,
		clusterer: clusterer,
		overrides: overrides,
		workers:   workers,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Outcome is the result of consolidating one batch.
type Outcome struct {
	Records             int
	Edges               []model.SimilarityEdge
	EdgesAboveThreshold int
	Clusters            []model.Cluster
	Golden              []model.GoldenRecord
}

// DuplicateClusters counts clusters that merged more than one record.
func (o *Outcome) DuplicateClusters() int {
	n := 0
	for _, c := range o.Clusters {
		if c.Size() > 1 {
			n++
		}
	}
	return n
}

// Consolidate reduces raws, in ingestion order, to one golden record per
// cluster. Golden records follow cluster order.
func (c *Consolidator) Consolidate(ctx context.Context, raws []model.RawSourceRecord) (*Outcome, error) {
	out := &Outcome{Records: len(raws)}
	if len(raws) == 0 {
		return out, nil
	}

	normalized, err := c.normalize(ctx, raws)
	if err != nil {
		return nil, err
	}

	edges, err := c.scorer.Score(ctx, normalized)
	if err != nil {
		return nil, err
	}
	out.Edges = edges
	out.EdgesAboveThreshold = c.clusterer.AboveThreshold(edges)

	ids := make([]string, len(raws))
	byID := make(map[string]int, len(raws))
	for i, r := range raws {
		ids[i] = r.ID
		if _, dup := byID[r.ID]; dup {
			zap.L().Warn("pipeline: duplicate record id, keeping first", zap.String("record_id", r.ID))
			continue
		}
		byID[r.ID] = i
	}
	out.Clusters = c.clusterer.Cluster(ids, edges)

	out.Golden, err = c.merge(ctx, raws, byID, out.Clusters)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Consolidator) normalize(ctx context.Context, raws []model.RawSourceRecord) ([]model.NormalizedRecord, error) {
	out := make([]model.NormalizedRecord, len(raws))
	chunk := (len(raws) + c.workers - 1) / c.workers

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for start := 0; start < len(raws); start += chunk {
		end := min(start+chunk, len(raws))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				out[i] = normalize.Record(raws[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: normalize")
	}
	return out, nil
}

func (c *Consolidator) merge(ctx context.Context, raws []model.RawSourceRecord, byID map[string]int, clusters []model.Cluster) ([]model.GoldenRecord, error) {
	golden := make([]model.GoldenRecord, len(clusters))
	now := c.now()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, cl := range clusters {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			members := make([]model.RawSourceRecord, 0, cl.Size())
			skus := make([]string, 0, cl.Size())
			for _, id := range cl.RecordIDs {
				r := raws[byID[id]]
				members = append(members, r)
				skus = append(skus, r.SKUHint)
			}
			golden[i] = survivorship.Merge(members, survivorship.Options{
				ClusterID:  cl.ID,
				ExcelPrice: c.overrides.ForCluster(skus),
				Now:        now,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: merge")
	}
	return golden, nil
}
