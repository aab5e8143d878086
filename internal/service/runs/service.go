// Package runs orchestrates run searches against the tracking service.
//
// One search is a fixed pipeline: PlanQueries builds the primary query and,
// when runs are pinned, a membership query; Merger runs both concurrently and
// merges them; Resolver optionally backfills parent runs named by lineage
// tags. Nothing is cached between calls.
package runs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/runsearch/internal/ctxutil"
	"github.com/ashita-ai/runsearch/internal/model"
)

// RunService is the remote tracking service. Implementations must be safe for
// concurrent use and should return *model.Error so failures can be classified.
type RunService interface {
	SearchRuns(ctx context.Context, q model.SearchQuery) (*model.SearchRunsResponse, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
}

const (
	opSearchRuns   = "search_runs"
	opLoadMoreRuns = "load_more_runs"
)

// Options configures a Service.
type Options struct {
	// DefaultMaxResults applies when a request leaves MaxResults at zero.
	// Zero means DefaultMaxResults.
	DefaultMaxResults int

	// NewID generates request ids. Defaults to random UUIDs.
	NewID func() string

	Logger *slog.Logger
}

// Service runs the search pipeline.
type Service struct {
	merger            *Merger
	resolver          *Resolver
	defaultMaxResults int
	newID             func() string
	logger            *slog.Logger
	tracer            trace.Tracer
	metrics           *instruments
}

// New creates a Service over the given tracking service.
func New(runs RunService, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	maxResults := opts.DefaultMaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Service{
		merger:            NewMerger(runs, logger),
		resolver:          NewResolver(runs, logger),
		defaultMaxResults: maxResults,
		newID:             newID,
		logger:            logger,
		tracer:            tracer(),
		metrics:           newInstruments(),
	}
}

// Plan returns the queries SearchRuns would issue for req.
func (s *Service) Plan(req model.SearchRequest) QueryPlan {
	return PlanQueries(req, s.defaultMaxResults)
}

// SearchRuns runs the full pipeline for req.
func (s *Service) SearchRuns(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	return s.search(ctx, opSearchRuns, req)
}

// LoadMoreRuns fetches the next page for req. req.PageToken should hold the
// NextPageToken of the previous result; otherwise it behaves like SearchRuns.
func (s *Service) LoadMoreRuns(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	return s.search(ctx, opLoadMoreRuns, req)
}

// FetchMissingParents backfills lineage parents of an existing result.
// See Resolver.FetchMissingParents.
func (s *Service) FetchMissingParents(ctx context.Context, res *model.SearchResult) (*model.SearchResult, error) {
	return s.resolver.FetchMissingParents(ctx, res)
}

func (s *Service) search(ctx context.Context, op string, req model.SearchRequest) (res *model.SearchResult, err error) {
	id := req.ID
	if id == "" {
		id = s.newID()
	}
	ctx = ctxutil.WithOperation(ctxutil.WithRequestID(ctx, id), op)
	logger := ctxutil.Logger(ctx, s.logger)

	ctx, span := s.tracer.Start(ctx, "runs."+op, trace.WithAttributes(
		attribute.String("runsearch.request_id", id),
		attribute.Int("runsearch.experiments", len(req.ExperimentIDs)),
		attribute.Int("runsearch.pinned", len(req.PinnedRunIDs)),
		attribute.Bool("runsearch.fetch_parents", req.ShouldFetchParents),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.recordSearch(ctx, op, float64(time.Since(start).Milliseconds()), err)
		if err != nil {
			recordSpanError(span, err)
			logger.Warn("run search failed", "error", err)
		}
	}()

	plan := s.Plan(req)
	logger.Debug("run search planned",
		"experiments", req.ExperimentIDs,
		"max_results", plan.Primary.MaxResults,
		"pinned", len(req.PinnedRunIDs),
	)

	res, err = s.merger.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	if req.ShouldFetchParents {
		res, err = s.resolver.FetchMissingParents(ctx, res)
		if err != nil {
			return nil, err
		}
	}
	res.RequestID = id

	span.SetAttributes(attribute.Int("runsearch.runs", len(res.Runs)))
	return res, nil
}
