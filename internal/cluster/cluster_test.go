package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func edge(a, b string, p float64) model.SimilarityEdge {
	e := model.NewSimilarityEdge(a, b)
	e.Probability = p
	return e
}

func TestCluster_Transitive(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	got := c.Cluster([]string{"A", "B", "C"}, []model.SimilarityEdge{
		edge("A", "B", 0.95),
		edge("B", "C", 0.92),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, []string{"A", "B", "C"}, got[0].RecordIDs)
}

func TestCluster_TransitiveDespiteLowDirectEdge(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	got := c.Cluster([]string{"A", "B", "C"}, []model.SimilarityEdge{
		edge("A", "B", 0.95),
		edge("B", "C", 0.92),
		edge("A", "C", 0.1),
	})
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Size())
}

func TestCluster_BelowThresholdStaysApart(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	got := c.Cluster([]string{"A", "B", "C"}, []model.SimilarityEdge{edge("A", "B", 0.5)})

	assert.Equal(t, []model.Cluster{
		{ID: "A", RecordIDs: []string{"A"}},
		{ID: "B", RecordIDs: []string{"B"}},
		{ID: "C", RecordIDs: []string{"C"}},
	}, got)
}

func TestCluster_ThresholdInclusive(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	got := c.Cluster([]string{"A", "B"}, []model.SimilarityEdge{edge("A", "B", 0.9)})
	require.Len(t, got, 1)
}

func TestCluster_IngestionOrder(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	got := c.Cluster([]string{"D", "C", "B", "A"}, []model.SimilarityEdge{
		edge("A", "C", 0.99),
		edge("B", "D", 0.99),
	})

	require.Len(t, got, 2)
	assert.Equal(t, model.Cluster{ID: "D", RecordIDs: []string{"D", "B"}}, got[0])
	assert.Equal(t, model.Cluster{ID: "C", RecordIDs: []string{"C", "A"}}, got[1])
}

func TestCluster_UnknownIDsAndEmpty(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	got := c.Cluster([]string{"A"}, []model.SimilarityEdge{edge("A", "Z", 0.99)})
	assert.Equal(t, []model.Cluster{{ID: "A", RecordIDs: []string{"A"}}}, got)

	assert.Empty(t, c.Cluster(nil, nil))
}

func TestCluster_EveryRecordExactlyOnce(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)

	ids := []string{"a", "b", "c", "d", "e", "f"}
	edges := []model.SimilarityEdge{
		edge("a", "c", 0.95), edge("c", "e", 0.91), edge("b", "f", 0.99), edge("d", "f", 0.2),
	}

	seen := map[string]int{}
	for _, cl := range c.Cluster(ids, edges) {
		for _, id := range cl.RecordIDs {
			seen[id]++
		}
	}
	for _, id := range ids {
		assert.Equal(t, 1, seen[id], id)
	}
}

func TestAboveThreshold(t *testing.T) {
	t.Parallel()

	c, err := New(0.9)
	require.NoError(t, err)
	assert.Equal(t, 2, c.AboveThreshold([]model.SimilarityEdge{
		edge("a", "b", 0.9), edge("a", "c", 0.95), edge("b", "c", 0.3),
	}))
}

func TestNew_InvalidThreshold(t *testing.T) {
	t.Parallel()

	for _, th := range []float64{0, -0.1, 1.5} {
		_, err := New(th)
		var ce *model.ConfigError
		assert.ErrorAs(t, err, &ce, "threshold %v", th)
	}
}
