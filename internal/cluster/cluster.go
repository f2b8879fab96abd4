// Package cluster partitions records into connected components of the
// thresholded similarity graph.
//
// Membership is transitive: if A-B and B-C clear the threshold, A, B and C
// share a cluster even when A-C scored low or was never compared.
package cluster

import (
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// DefaultThreshold is the minimum edge probability that joins two records.
const DefaultThreshold = 0.9

// Clusterer groups records by union-find over edges at or above a threshold.
type Clusterer struct {
	threshold float64
}

// New returns a Clusterer. threshold must be in (0, 1].
func New(threshold float64) (*Clusterer, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, &model.ConfigError{Key: "matching.threshold", Reason: "must be in (0, 1]"}
	}
	return &Clusterer{threshold: threshold}, nil
}

// Threshold returns the configured probability threshold.
func (c *Clusterer) Threshold() float64 { return c.threshold }

// Cluster partitions ids, given in ingestion order, into clusters. Every id
// lands in exactly one cluster. Clusters are ordered by their first member
// and each cluster's id is that member. Edges naming unknown ids are ignored.
func (c *Clusterer) Cluster(ids []string, edges []model.SimilarityEdge) []model.Cluster {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}

	uf := newUnionFind(len(ids))
	skipped := 0
	for _, e := range edges {
		if e.Probability < c.threshold {
			continue
		}
		a, okA := index[e.A]
		b, okB := index[e.B]
		if !okA || !okB {
			skipped++
			continue
		}
		uf.union(a, b)
	}
	if skipped > 0 {
		zap.L().Debug("cluster: ignored edges with unknown records", zap.Int("edges", skipped))
	}

	byRoot := make(map[int]int)
	var out []model.Cluster
	for i, id := range ids {
		if index[id] != i {
			continue
		}
		root := uf.find(i)
		pos, ok := byRoot[root]
		if !ok {
			pos = len(out)
			byRoot[root] = pos
			out = append(out, model.Cluster{ID: id})
		}
		out[pos].RecordIDs = append(out[pos].RecordIDs, id)
	}
	return out
}

// AboveThreshold counts the edges that join records.
func (c *Clusterer) AboveThreshold(edges []model.SimilarityEdge) int {
	n := 0
	for _, e := range edges {
		if e.Probability >= c.threshold {
			n++
		}
	}
	return n
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
