package runs

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ashita-ai/runsearch/internal/model"
)

// MockRunService is a testify mock of the tracking service.
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) SearchRuns(ctx context.Context, q model.SearchQuery) (*model.SearchRunsResponse, error) {
	args := m.Called(ctx, q)
	resp, _ := args.Get(0).(*model.SearchRunsResponse)
	return resp, args.Error(1)
}

func (m *MockRunService) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*model.Run)
	return run, args.Error(1)
}

func isPinnedQuery(q model.SearchQuery) bool {
	return q.RunViewType == model.ViewAll && len(q.Filter) > 9 && q.Filter[:9] == "run_id IN"
}

func pinnedQuery() any {
	return mock.MatchedBy(isPinnedQuery)
}

func primaryQuery() any {
	return mock.MatchedBy(func(q model.SearchQuery) bool { return !isPinnedQuery(q) })
}

func runPtr(r model.Run) *model.Run { return &r }
