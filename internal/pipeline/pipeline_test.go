package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/extract"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/resilience"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/store"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/taxonomy"
)

func pendingBatch() []model.PendingProduct {
	return []model.PendingProduct{
		{SKU: "123", PipelineStatus: "scraped", Sources: map[string]map[string]any{
			"B": {"title": "Acana Dog Food 10lb", "price": 25.0, "brand": "Acana", "category": "dog food"},
			"A": {"title": "ACANA dog food 10 LBS", "price": "$24.99", "brand": "ACANA", "category": "Dog Food"},
		}},
		{SKU: "456", PipelineStatus: "scraped", Sources: map[string]map[string]any{
			"C": {"title": "Kong Classic Chew Toy", "price": 12.5, "brand": "Kong", "category": "toys"},
		}},
		{SKU: "789", PipelineStatus: "scraped"},
	}
}

func fastRetry() resilience.Policy {
	return resilience.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func newTestPipeline(t *testing.T, st store.Store, opts Options, tax *taxonomy.Cache) *Pipeline {
	t.Helper()
	p, err := New(Deps{Store: st, Consolidator: newTestConsolidator(t, nil), Taxonomy: tax}, opts)
	require.NoError(t, err)
	return p
}

func TestRun_ReadOnly(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(pendingBatch(), nil).Once()

	p := newTestPipeline(t, st, Options{Retry: fastRetry()}, nil)
	res, err := p.Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err)

	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 1, res.Edges)
	assert.Equal(t, 1, res.EdgesAboveThreshold)
	assert.Equal(t, 2, res.Clusters)
	assert.Equal(t, 1, res.DuplicateClusters)
	require.Len(t, res.Golden, 2)
	assert.Equal(t, 25.0, res.Golden[0].Price)
	assert.Zero(t, res.Persisted)

	st.AssertExpectations(t)
	st.AssertNotCalled(t, "SaveGoldenRecords", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_PersistAndMark(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 5).Return(pendingBatch(), nil).Once()
	st.On("SaveGoldenRecords", mock.Anything, mock.MatchedBy(func(g []model.GoldenRecord) bool {
		return len(g) == 2
	})).Return(int64(2), nil).Once()
	st.On("UpdateStatus", mock.Anything, []string{"123", "456", "789"}, "consolidated").Return(int64(3), nil).Once()

	p := newTestPipeline(t, st, Options{Limit: 50, PersistGolden: true, MarkConsolidated: true, Retry: fastRetry()}, nil)
	res, err := p.Run(context.Background(), RunOptions{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Persisted)
	st.AssertExpectations(t)
}

func TestRun_EmptyBatch(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(nil, nil).Once()

	p := newTestPipeline(t, st, Options{PersistGolden: true, MarkConsolidated: true}, nil)
	res, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Golden)
	st.AssertExpectations(t)
}

func TestRun_FetchFailure(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(nil, errors.New("relation does not exist")).Once()

	p := newTestPipeline(t, st, Options{Retry: fastRetry()}, nil)
	_, err := p.Run(context.Background(), RunOptions{})

	var extErr *model.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "store", extErr.Service)
	assert.Equal(t, "fetch pending", extErr.Op)
	st.AssertExpectations(t)
}

func TestRun_FetchRetriesTransient(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).
		Return(nil, resilience.NewTransientError(errors.New("reset"), 0)).Once()
	st.On("FetchPending", mock.Anything, 100).Return(pendingBatch(), nil).Once()

	p := newTestPipeline(t, st, Options{Retry: fastRetry()}, nil)
	res, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	st.AssertNumberOfCalls(t, "FetchPending", 2)
}

func TestRun_SaveFailureSkipsStatus(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(pendingBatch(), nil).Once()
	st.On("SaveGoldenRecords", mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full")).Once()

	p := newTestPipeline(t, st, Options{PersistGolden: true, MarkConsolidated: true, Retry: fastRetry()}, nil)
	_, err := p.Run(context.Background(), RunOptions{})

	var extErr *model.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "save golden records", extErr.Op)
	st.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_Taxonomy(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(pendingBatch(), nil).Once()
	st.On("ListCategories", mock.Anything).Return([]string{"Dog Food", "Toys"}, nil)
	st.On("ListProductTypes", mock.Anything).Return([]string{}, nil)

	p := newTestPipeline(t, st, Options{Retry: fastRetry()}, taxonomy.NewCache(st, time.Hour))
	res, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	require.Len(t, res.Golden, 2)
	assert.Equal(t, "Dog Food", res.Golden[0].Category)
	assert.Equal(t, "Toys", res.Golden[1].Category)
	md, ok := res.Golden[1].Provenance("category")
	require.True(t, ok)
	assert.Equal(t, "Toys", md.Value)
}

func TestRun_TaxonomyUnavailable(t *testing.T) {
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(pendingBatch(), nil).Once()
	st.On("ListCategories", mock.Anything).Return(nil, errors.New("down"))
	st.On("ListProductTypes", mock.Anything).Return(nil, errors.New("down"))

	p := newTestPipeline(t, st, Options{Retry: fastRetry()}, taxonomy.NewCache(st, time.Hour))
	res, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dog food", res.Golden[0].Category)
}

type staticExtractor map[string]extract.Result

func (s staticExtractor) Extract(_ context.Context, imageURL string) extract.Result {
	return s[imageURL]
}

func TestRun_Enrichment(t *testing.T) {
	batch := []model.PendingProduct{{SKU: "1", Sources: map[string]map[string]any{
		"A": {"title": "Oat Treats", "images": []any{"img-1"}},
	}}}
	st := &mockStore{}
	st.On("FetchPending", mock.Anything, 100).Return(batch, nil).Once()

	ex := staticExtractor{"img-1": {NetWeight: "8 oz", Ingredients: "Oats"}}
	p, err := New(Deps{
		Store:        st,
		Consolidator: newTestConsolidator(t, nil),
		Enricher:     extract.NewEnricher(ex, 1),
	}, Options{})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Golden, 1)
	assert.Equal(t, "8.0 oz", res.Golden[0].Weight)
	assert.Equal(t, "Oats", res.Golden[0].Extra["ingredients"])
	assert.Equal(t, model.SourceOCR, res.Golden[0].ConsolidationMetadata["weight"].Source)
	assert.Equal(t, model.SourceOCR, res.Golden[0].ConsolidationMetadata["ingredients"].Source)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "store", cfgErr.Key)
}

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "consolidator.db")
	st, err := store.NewSQLite(path, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	for _, row := range [][2]string{
		{"123", `{"A":{"title":"ACANA dog food 10 LBS","price":"$24.99","brand":"ACANA"},"B":{"title":"Acana Dog Food 10lb","price":25.0,"brand":"Acana"}}`},
		{"456", `{"C":{"title":"Kong Classic Chew Toy","price":12.5,"brand":"Kong"}}`},
	} {
		_, err := raw.Exec(`INSERT INTO products_ingestion (sku, sources, pipeline_status) VALUES (?, ?, 'scraped')`, row[0], row[1])
		require.NoError(t, err)
	}

	p := newTestPipeline(t, st, Options{PersistGolden: true, MarkConsolidated: true}, nil)
	res, err := p.Run(ctx, RunOptions{JobID: "e2e"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Clusters)
	assert.Equal(t, int64(2), res.Persisted)

	var name string
	var price float64
	require.NoError(t, raw.QueryRow(`SELECT name, price FROM golden_records WHERE sku = '123'`).Scan(&name, &price))
	assert.Equal(t, "Acana Dog Food 10 lb", name)
	assert.Equal(t, 25.0, price)

	again, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.True(t, again.Empty())
}
