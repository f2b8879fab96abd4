package match

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Scorer blocks a batch of normalized records and scores every candidate
// pair. Edges below the match threshold are returned too so callers can
// audit why a pair did not merge.
type Scorer struct {
	weights  Weights
	workers  int
	fallback bool
}

// NewScorer validates w and returns a Scorer. workers <= 0 uses GOMAXPROCS.
func NewScorer(w Weights, workers int, blockingFallback bool) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scorer{weights: w, workers: workers, fallback: blockingFallback}, nil
}

// Weights returns the scoring model in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Score returns one edge per candidate pair in (I, J) pair order.
func (s *Scorer) Score(ctx context.Context, recs []model.NormalizedRecord) ([]model.SimilarityEdge, error) {
	pairs := Block(recs, s.fallback)
	edges := make([]model.SimilarityEdge, len(pairs))
	if len(pairs) == 0 {
		return edges, nil
	}

	chunk := (len(pairs) + s.workers - 1) / s.workers
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(pairs); start += chunk {
		end := min(start+chunk, len(pairs))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				p := pairs[i]
				edges[i] = s.weights.Compare(recs[p.I], recs[p.J])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "match: score pairs")
	}

	zap.L().Debug("match: scored candidate pairs",
		zap.Int("records", len(recs)),
		zap.Int("pairs", len(pairs)),
	)
	return edges, nil
}
