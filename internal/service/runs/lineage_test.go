package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/runsearch/internal/model"
	"github.com/ashita-ai/runsearch/internal/testutil"
)

func TestParentRunIDsToFetch(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		assert.Empty(t, ParentRunIDsToFetch(nil))
		assert.Empty(t, ParentRunIDsToFetch([]model.Run{}))
	})

	t.Run("absent parents only", func(t *testing.T) {
		runs := []model.Run{
			testutil.NewRun("a", testutil.WithParent("aParent")),
			testutil.NewRun("b", testutil.WithParent("bParent")),
			testutil.NewRun("c", testutil.WithParent("a")),
			testutil.NewRun("d", testutil.WithTag("mlflow.user", "alice")),
		}
		assert.Equal(t, []string{"aParent", "bParent"}, ParentRunIDsToFetch(runs))
	})

	t.Run("shared parent listed once", func(t *testing.T) {
		runs := []model.Run{
			testutil.NewRun("a", testutil.WithParent("p")),
			testutil.NewRun("b", testutil.WithParent("p")),
			testutil.NewRun("c", testutil.WithParent("q"), testutil.WithParent("p")),
		}
		assert.Equal(t, []string{"p", "q"}, ParentRunIDsToFetch(runs))
	})

	t.Run("parent present later in collection", func(t *testing.T) {
		runs := []model.Run{
			testutil.NewRun("child", testutil.WithParent("parent")),
			testutil.NewRun("parent"),
		}
		assert.Empty(t, ParentRunIDsToFetch(runs))
	})
}

func TestFetchMissingParents_EmptyInputShortCircuits(t *testing.T) {
	svc := new(MockRunService)
	r := NewResolver(svc, testutil.TestLogger())
	ctx := context.Background()

	for name, in := range map[string]*model.SearchResult{
		"nil runs":   {NextPageToken: "tok"},
		"empty runs": {Runs: []model.Run{}, RunsMatchingFilter: []model.Run{}},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := r.FetchMissingParents(ctx, in)
			require.NoError(t, err)
			assert.Same(t, in, out)
		})
	}

	out, err := r.FetchMissingParents(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	svc.AssertNotCalled(t, "GetRun", mock.Anything, mock.Anything)
}

func TestFetchMissingParents_NothingMissingIsNoop(t *testing.T) {
	svc := new(MockRunService)
	r := NewResolver(svc, testutil.TestLogger())

	in := &model.SearchResult{Runs: []model.Run{
		testutil.NewRun("a", testutil.WithParent("p")),
		testutil.NewRun("p"),
	}}
	out, err := r.FetchMissingParents(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
	svc.AssertNotCalled(t, "GetRun", mock.Anything, mock.Anything)
}

func scenarioRuns() []model.Run {
	return []model.Run{
		testutil.NewRun("a", testutil.WithParent("aParent")),
		testutil.NewRun("b", testutil.WithParent("bParent")),
	}
}

func TestFetchMissingParents_ResolvesParents(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "aParent").Return(runPtr(testutil.NewRun("aParent")), nil).Once()
	svc.On("GetRun", mock.Anything, "bParent").Return(runPtr(testutil.NewRun("bParent")), nil).Once()
	r := NewResolver(svc, testutil.TestLogger())

	in := &model.SearchResult{
		Runs:               scenarioRuns(),
		RunsMatchingFilter: scenarioRuns()[:1],
		NextPageToken:      "tok",
	}
	out, err := r.FetchMissingParents(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "aParent", "bParent"}, testutil.RunIDs(out.Runs))
	assert.Equal(t, []string{"a", "aParent", "bParent"}, testutil.RunIDs(out.RunsMatchingFilter))
	assert.Equal(t, "tok", out.NextPageToken)

	// The input is left as it was.
	assert.Len(t, in.Runs, 2)
	assert.Len(t, in.RunsMatchingFilter, 1)
	svc.AssertExpectations(t)
}

func TestFetchMissingParents_AbsentSubsetStaysAbsent(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "aParent").Return(runPtr(testutil.NewRun("aParent")), nil)
	svc.On("GetRun", mock.Anything, "bParent").Return(runPtr(testutil.NewRun("bParent")), nil)
	r := NewResolver(svc, testutil.TestLogger())

	out, err := r.FetchMissingParents(context.Background(), &model.SearchResult{Runs: scenarioRuns()})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "aParent", "bParent"}, testutil.RunIDs(out.Runs))
	assert.Nil(t, out.RunsMatchingFilter)
}

func TestFetchMissingParents_DeletedParentIsSkipped(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "aParent").Return(runPtr(testutil.NewRun("aParent")), nil)
	svc.On("GetRun", mock.Anything, "bParent").Return(nil, &model.Error{
		Kind:       model.KindNotFound,
		StatusCode: 404,
		Code:       model.ErrorCodeResourceDoesNotExist,
		Message:    "Run 'bParent' not found",
	})
	r := NewResolver(svc, testutil.TestLogger())

	out, err := r.FetchMissingParents(context.Background(), &model.SearchResult{
		Runs:               scenarioRuns(),
		RunsMatchingFilter: []model.Run{},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "aParent"}, testutil.RunIDs(out.Runs))
	assert.Equal(t, []string{"aParent"}, testutil.RunIDs(out.RunsMatchingFilter))
}

func TestFetchMissingParents_AllParentsDeleted(t *testing.T) {
	notFound := &model.Error{Kind: model.KindNotFound, Code: model.ErrorCodeResourceDoesNotExist}
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, mock.Anything).Return(nil, notFound)
	r := NewResolver(svc, testutil.TestLogger())

	in := &model.SearchResult{Runs: scenarioRuns()}
	out, err := r.FetchMissingParents(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, testutil.RunIDs(out.Runs))
}

func TestFetchMissingParents_UnexpectedErrorFailsResolution(t *testing.T) {
	for name, boom := range map[string]error{
		"unclassified": errors.New("unexpected"),
		"unknown kind": &model.Error{Kind: model.KindUnknown, Err: errors.New("dial tcp: connection refused")},
		"service":      &model.Error{Kind: model.KindService, StatusCode: 403, Code: "PERMISSION_DENIED"},
	} {
		t.Run(name, func(t *testing.T) {
			svc := new(MockRunService)
			svc.On("GetRun", mock.Anything, "aParent").Return(runPtr(testutil.NewRun("aParent")), nil)
			svc.On("GetRun", mock.Anything, "bParent").Return(nil, boom)
			r := NewResolver(svc, testutil.TestLogger())

			out, err := r.FetchMissingParents(context.Background(), &model.SearchResult{
				Runs:               scenarioRuns(),
				RunsMatchingFilter: []model.Run{},
			})
			assert.Nil(t, out, "no partial result may be returned")
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestFetchMissingParents_FansOutWithoutCap(t *testing.T) {
	const n = 32

	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	runs := make([]model.Run, 0, n)
	svc := new(MockRunService)
	for i := range n {
		parentID := fmt.Sprintf("parent-%02d", i)
		runs = append(runs, testutil.NewRun(fmt.Sprintf("child-%02d", i), testutil.WithParent(parentID)))
		svc.On("GetRun", mock.Anything, parentID).
			Run(func(mock.Arguments) {
				started.Done()
				select {
				case <-allStarted:
				case <-time.After(5 * time.Second):
					t.Error("parent fetches were not all in flight together")
				}
			}).
			Return(runPtr(testutil.NewRun(parentID)), nil).Once()
	}

	r := NewResolver(svc, testutil.TestLogger())
	out, err := r.FetchMissingParents(context.Background(), &model.SearchResult{Runs: runs})
	require.NoError(t, err)
	require.Len(t, out.Runs, 2*n)
	// Parents are appended in order of first reference.
	assert.Equal(t, "parent-00", out.Runs[n].ID())
	assert.Equal(t, fmt.Sprintf("parent-%02d", n-1), out.Runs[2*n-1].ID())
	svc.AssertExpectations(t)
}

func TestFetchMissingParents_SharedParentFetchedOnce(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "p").Return(runPtr(testutil.NewRun("p")), nil).Once()
	r := NewResolver(svc, testutil.TestLogger())

	out, err := r.FetchMissingParents(context.Background(), &model.SearchResult{Runs: []model.Run{
		testutil.NewRun("a", testutil.WithParent("p")),
		testutil.NewRun("b", testutil.WithParent("p")),
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "p"}, testutil.RunIDs(out.Runs))
	svc.AssertNumberOfCalls(t, "GetRun", 1)
}

func TestFetchMissingParents_SingleLevelOnly(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "parent").
		Return(runPtr(testutil.NewRun("parent", testutil.WithParent("grandparent"))), nil)
	r := NewResolver(svc, testutil.TestLogger())

	out, err := r.FetchMissingParents(context.Background(), &model.SearchResult{Runs: []model.Run{
		testutil.NewRun("child", testutil.WithParent("parent")),
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"child", "parent"}, testutil.RunIDs(out.Runs))
	svc.AssertNotCalled(t, "GetRun", mock.Anything, "grandparent")
}

func TestFetchMissingParents_Idempotent(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "aParent").Return(runPtr(testutil.NewRun("aParent")), nil).Once()
	svc.On("GetRun", mock.Anything, "bParent").Return(runPtr(testutil.NewRun("bParent")), nil).Once()
	r := NewResolver(svc, testutil.TestLogger())
	ctx := context.Background()

	first, err := r.FetchMissingParents(ctx, &model.SearchResult{Runs: scenarioRuns()})
	require.NoError(t, err)

	second, err := r.FetchMissingParents(ctx, first)
	require.NoError(t, err)
	assert.Same(t, first, second)
	svc.AssertNumberOfCalls(t, "GetRun", 2)
}

func TestFetchMissingParentRuns(t *testing.T) {
	svc := new(MockRunService)
	svc.On("GetRun", mock.Anything, "aParent").Return(runPtr(testutil.NewRun("aParent")), nil)
	svc.On("GetRun", mock.Anything, "bParent").Return(runPtr(testutil.NewRun("bParent")), nil)
	r := NewResolver(svc, testutil.TestLogger())

	runs, err := r.FetchMissingParentRuns(context.Background(), scenarioRuns())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "aParent", "bParent"}, testutil.RunIDs(runs))

	empty, err := r.FetchMissingParentRuns(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
