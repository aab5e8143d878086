package runs

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/runsearch/internal/ctxutil"
	"github.com/ashita-ai/runsearch/internal/model"
)

// Resolver backfills parent runs referenced by lineage tags.
type Resolver struct {
	runs    RunService
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *instruments
}

// NewResolver creates a Resolver. A nil logger means slog.Default().
func NewResolver(runs RunService, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{runs: runs, logger: logger, tracer: tracer(), metrics: newInstruments()}
}

// ParentRunIDsToFetch returns the parent ids referenced by lineage tags in
// runs that are not themselves in runs. Each id appears once, in order of
// first reference.
func ParentRunIDsToFetch(runs []model.Run) []string {
	known := make(map[string]struct{}, len(runs))
	for _, r := range runs {
		known[r.ID()] = struct{}{}
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, r := range runs {
		for _, tag := range r.Data.Tags {
			if tag.Key != model.ParentRunTagKey {
				continue
			}
			if _, ok := known[tag.Value]; ok {
				continue
			}
			if _, ok := seen[tag.Value]; ok {
				continue
			}
			seen[tag.Value] = struct{}{}
			ids = append(ids, tag.Value)
		}
	}
	return ids
}

// FetchMissingParents fetches every parent referenced by res but absent from
// it, all at once, and returns a new result with the parents appended to Runs
// and, when present, to RunsMatchingFilter. Backfilled parents always count
// as matching.
//
// res itself is returned, with no remote calls, when it is nil, holds no
// runs, or references no missing parent.
//
// A parent that no longer exists is skipped. Any other failure fails the
// whole call with that error and no partial result.
//
// Only one level is resolved: parents of fetched parents are not followed.
func (r *Resolver) FetchMissingParents(ctx context.Context, res *model.SearchResult) (*model.SearchResult, error) {
	if res == nil || len(res.Runs) == 0 {
		return res, nil
	}
	ids := ParentRunIDsToFetch(res.Runs)
	if len(ids) == 0 {
		return res, nil
	}

	ctx, span := r.tracer.Start(ctx, "runs.fetch_missing_parents",
		trace.WithAttributes(attribute.Int("runsearch.parents.requested", len(ids))),
	)
	defer span.End()

	parents, err := r.fetchAll(ctx, ids)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("runsearch.parents.resolved", len(parents)))
	if len(parents) == 0 {
		return res, nil
	}

	out := *res
	out.Runs = append(slices.Clip(res.Runs), parents...)
	if res.RunsMatchingFilter != nil {
		out.RunsMatchingFilter = append(slices.Clip(res.RunsMatchingFilter), parents...)
	}
	return &out, nil
}

// FetchMissingParentRuns is FetchMissingParents for a bare run collection.
func (r *Resolver) FetchMissingParentRuns(ctx context.Context, runs []model.Run) ([]model.Run, error) {
	res, err := r.FetchMissingParents(ctx, &model.SearchResult{Runs: runs})
	if err != nil {
		return nil, err
	}
	return res.Runs, nil
}

// fetchAll issues one get-by-id per id concurrently, without a cap, and
// returns the resolved runs in the order of ids.
func (r *Resolver) fetchAll(ctx context.Context, ids []string) ([]model.Run, error) {
	logger := ctxutil.Logger(ctx, r.logger)
	fetched := make([]*model.Run, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			run, err := r.runs.GetRun(ctx, id)
			if err == nil {
				r.metrics.recordParent(ctx, "resolved")
				fetched[i] = run
				return nil
			}

			switch kind := model.KindOf(err); kind {
			case model.KindNotFound:
				// Parent was deleted.
				r.metrics.recordParent(ctx, "missing")
				logger.Info("parent run no longer exists, skipping", "parent_run_id", id)
				return nil
			case model.KindService, model.KindUnknown:
				r.metrics.recordParent(ctx, "failed")
				logger.Warn("parent run fetch failed", "parent_run_id", id, "kind", kind.String(), "error", err)
				return err
			default:
				r.metrics.recordParent(ctx, "failed")
				logger.Error("parent run fetch failed with unclassified kind", "parent_run_id", id, "kind", int(kind), "error", err)
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parents := make([]model.Run, 0, len(ids))
	for _, run := range fetched {
		if run != nil {
			parents = append(parents, *run)
		}
	}
	return parents, nil
}
