package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchPending(ctx context.Context, limit int) ([]model.PendingProduct, error) {
	args := m.Called(ctx, limit)
	products, _ := args.Get(0).([]model.PendingProduct)
	return products, args.Error(1)
}

func (m *mockStore) UpdateStatus(ctx context.Context, skus []string, status string) (int64, error) {
	args := m.Called(ctx, skus, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) SaveGoldenRecords(ctx context.Context, records []model.GoldenRecord) (int64, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *mockStore) ListProductTypes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *mockStore) CreateJob(ctx context.Context, jobID string) (*model.Job, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*model.Job)
	return job, args.Error(1)
}

func (m *mockStore) UpdateJob(ctx context.Context, job *model.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*model.Job)
	return job, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
