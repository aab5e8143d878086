// Package runsearch searches runs on an experiment-tracking server, merges
// in explicitly pinned runs, and backfills parent runs named by lineage tags.
//
//	client, err := runsearch.New(
//	    runsearch.WithTrackingURI("http://localhost:5000"),
//	    runsearch.WithLogger(logger),
//	)
//	if err != nil { ... }
//	res, err := client.SearchRuns(ctx, runsearch.SearchRequest{
//	    ExperimentIDs:      []string{"1"},
//	    Filter:             "metrics.rmse < 0.8",
//	    PinnedRunIDs:       []string{"4f0c..."},
//	    ShouldFetchParents: true,
//	})
//
// Every call is independent: there is no cache, retry or backoff, and no
// limit on how many parent fetches run at once.
package runsearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashita-ai/runsearch/internal/model"
	"github.com/ashita-ai/runsearch/internal/service/runs"
	"github.com/ashita-ai/runsearch/internal/tracking"
)

// RunService is the remote tracking service. The default implementation
// talks HTTP to the server given by WithTrackingURI. Custom implementations
// should return *Error values so that deleted parents can be told apart
// from real failures.
type RunService = runs.RunService

// Client is the public entry point. All methods are safe for concurrent use.
type Client struct {
	svc          *runs.Service
	fetchParents bool
	logger       *slog.Logger
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	if o.maxResults < 0 {
		return nil, fmt.Errorf("runsearch: max results must not be negative, got %d", o.maxResults)
	}

	svc := o.runService
	if svc == nil {
		client, err := tracking.NewClient(tracking.Config{
			TrackingURI: o.trackingURI,
			Token:       o.token,
			Username:    o.username,
			Password:    o.password,
			HTTPClient:  o.httpClient,
			Timeout:     o.timeout,
			UserAgent:   o.userAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("runsearch: %w", err)
		}
		svc = client
	}

	return &Client{
		svc: runs.New(svc, runs.Options{
			DefaultMaxResults: o.maxResults,
			NewID:             o.newID,
			Logger:            logger,
		}),
		fetchParents: o.fetchParents,
		logger:       logger,
	}, nil
}

// SearchRuns searches runs matching req, merges in req.PinnedRunIDs and, when
// requested, backfills missing parents. Any failure fails the whole search.
func (c *Client) SearchRuns(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	return c.svc.SearchRuns(ctx, c.withDefaults(req))
}

// LoadMoreRuns fetches the page after a previous result. Set req.PageToken to
// that result's NextPageToken.
func (c *Client) LoadMoreRuns(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	return c.svc.LoadMoreRuns(ctx, c.withDefaults(req))
}

// FetchMissingParents backfills parents of runs in res that are referenced by
// lineage tags but absent from res. Deleted parents are skipped; any other
// failure fails the call. res is returned as is when nothing is missing.
// Only direct parents are fetched.
func (c *Client) FetchMissingParents(ctx context.Context, res *SearchResult) (*SearchResult, error) {
	return c.svc.FetchMissingParents(ctx, res)
}

// ParentRunIDsToFetch lists, without duplicates, the parent run ids referenced
// in runs that are not present in runs.
func ParentRunIDsToFetch(runList []Run) []string {
	return runs.ParentRunIDsToFetch(runList)
}

// PinnedRunsExpression returns the filter that selects exactly runIDs.
func PinnedRunsExpression(runIDs []string) string {
	return runs.PinnedRunsExpression(runIDs)
}

// ParseViewType parses "active", "deleted", "all" or a wire name.
func ParseViewType(s string) (ViewType, error) {
	return model.ParseViewType(s)
}

func (c *Client) withDefaults(req SearchRequest) SearchRequest {
	if c.fetchParents {
		req.ShouldFetchParents = true
	}
	return req
}
