package runs

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/runsearch/internal/ctxutil"
	"github.com/ashita-ai/runsearch/internal/model"
)

// Merger executes a QueryPlan and merges the responses.
type Merger struct {
	runs    RunService
	logger  *slog.Logger
	metrics *instruments
}

// NewMerger creates a Merger. A nil logger means slog.Default().
func NewMerger(runs RunService, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{runs: runs, logger: logger, metrics: newInstruments()}
}

// Execute launches the primary and (if planned) pinned queries together and
// waits for both. A failure of either query fails the merge with that
// query's error, unwrapped; the other response is discarded.
func (m *Merger) Execute(ctx context.Context, plan QueryPlan) (*model.SearchResult, error) {
	var base, pinned *model.SearchRunsResponse

	var g errgroup.Group
	g.Go(func() error {
		resp, err := m.runs.SearchRuns(ctx, plan.Primary)
		m.metrics.recordQuery(ctx, "primary", err)
		if err != nil {
			return err
		}
		base = resp
		return nil
	})
	if plan.Pinned != nil {
		g.Go(func() error {
			resp, err := m.runs.SearchRuns(ctx, *plan.Pinned)
			m.metrics.recordQuery(ctx, "pinned", err)
			if err != nil {
				return err
			}
			pinned = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := MergeResults(base, pinned)
	ctxutil.Logger(ctx, m.logger).Debug("runs merged",
		"matching_filter", len(res.RunsMatchingFilter),
		"total", len(res.Runs),
		"pinned_query", plan.Pinned != nil,
	)
	return res, nil
}

// MergeResults combines the primary and pinned responses. Either may be nil.
//
// RunsMatchingFilter is a copy of the primary runs and is never nil. Pinned
// runs are appended to Runs without de-duplication; consumers key by run id.
// The primary's page token is carried forward unchanged.
func MergeResults(base, pinned *model.SearchRunsResponse) *model.SearchResult {
	var baseRuns, pinnedRuns []model.Run
	res := &model.SearchResult{}
	if base != nil {
		baseRuns = base.Runs
		res.NextPageToken = base.NextPageToken
	}
	if pinned != nil {
		pinnedRuns = pinned.Runs
	}

	res.RunsMatchingFilter = append(make([]model.Run, 0, len(baseRuns)), baseRuns...)

	res.Runs = make([]model.Run, 0, len(baseRuns)+len(pinnedRuns))
	res.Runs = append(res.Runs, baseRuns...)
	res.Runs = append(res.Runs, pinnedRuns...)
	return res
}
