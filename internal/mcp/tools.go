package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/runsearch/internal/model"
)

func (s *Server) registerTools() {
	// runs_search: filtered search with pinned runs and optional parents.
	s.mcpServer.AddTool(
		mcplib.NewTool("runs_search",
			mcplib.WithDescription(`Search runs in one or more experiments.

The filter is passed to the tracking server unchanged, for example
"metrics.rmse < 0.8 and params.model = 'xgb'". Runs listed in
pinned_run_ids are always returned, even when they do not match the
filter or have been deleted.

WHAT YOU GET BACK:
- runs: filtered runs first, then pinned runs, then backfilled parents
- runs_matching_filter: the runs that matched the filter, plus parents
- next_page_token: pass it back as page_token to load the next page`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithArray("experiment_ids",
				mcplib.Description("Experiments to search"),
				mcplib.WithStringItems(),
				mcplib.Required(),
			),
			mcplib.WithString("filter",
				mcplib.Description("Search expression over metrics, params, tags and attributes"),
			),
			mcplib.WithString("view",
				mcplib.Description("Lifecycle stages to include"),
				mcplib.Enum("active", "deleted", "all"),
				mcplib.DefaultString("active"),
			),
			mcplib.WithNumber("max_results",
				mcplib.Description("Page size of the filtered query. Pinned runs are not counted."),
				mcplib.Min(1),
			),
			mcplib.WithArray("order_by",
				mcplib.Description(`Sort clauses, e.g. "metrics.rmse ASC"`),
				mcplib.WithStringItems(),
			),
			mcplib.WithString("page_token",
				mcplib.Description("next_page_token from a previous call"),
			),
			mcplib.WithArray("pinned_run_ids",
				mcplib.Description("Runs to include regardless of the filter"),
				mcplib.WithStringItems(),
			),
			mcplib.WithBoolean("fetch_parents",
				mcplib.Description("Also return parent runs named by lineage tags that are not in the page"),
			),
		),
		s.handleSearch,
	)

	// runs_fetch_parents: backfill parents of an existing result.
	s.mcpServer.AddTool(
		mcplib.NewTool("runs_fetch_parents",
			mcplib.WithDescription(`Add missing parent runs to a result returned by runs_search.

Parents already present are not fetched again. Deleted parents are
skipped. Only direct parents are added.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithObject("result",
				mcplib.Description("A result object as returned by runs_search"),
				mcplib.Required(),
			),
		),
		s.handleFetchParents,
	)
}

func (s *Server) handleSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req, err := s.searchRequest(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	search := s.searcher.SearchRuns
	if req.PageToken != "" {
		search = s.searcher.LoadMoreRuns
	}
	res, err := search(ctx, req)
	if err != nil {
		s.logger.Warn("mcp: runs_search failed", "error", err)
		return errorResult(fmt.Sprintf("search failed (%s): %v", model.KindOf(err), err)), nil
	}
	return jsonResult(res)
}

func (s *Server) searchRequest(request mcplib.CallToolRequest) (model.SearchRequest, error) {
	experiments := request.GetStringSlice("experiment_ids", nil)
	if len(experiments) == 0 {
		return model.SearchRequest{}, fmt.Errorf("experiment_ids is required")
	}
	view, err := model.ParseViewType(request.GetString("view", ""))
	if err != nil {
		return model.SearchRequest{}, fmt.Errorf("invalid view: %w", err)
	}
	maxResults := request.GetInt("max_results", 0)
	if maxResults < 0 {
		return model.SearchRequest{}, fmt.Errorf("max_results must be positive")
	}

	return model.SearchRequest{
		ExperimentIDs:      experiments,
		Filter:             request.GetString("filter", ""),
		RunViewType:        view,
		MaxResults:         maxResults,
		OrderBy:            request.GetStringSlice("order_by", nil),
		PageToken:          request.GetString("page_token", ""),
		PinnedRunIDs:       request.GetStringSlice("pinned_run_ids", nil),
		ShouldFetchParents: request.GetBool("fetch_parents", s.fetchParents),
	}, nil
}

func (s *Server) handleFetchParents(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw, ok := request.GetArguments()["result"]
	if !ok || raw == nil {
		return errorResult("result is required"), nil
	}
	// Arguments arrive as generic JSON values; round-trip them into the typed result.
	data, err := json.Marshal(raw)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid result: %v", err)), nil
	}
	var in model.SearchResult
	if err := json.Unmarshal(data, &in); err != nil {
		return errorResult(fmt.Sprintf("invalid result: %v", err)), nil
	}

	out, err := s.searcher.FetchMissingParents(ctx, &in)
	if err != nil {
		s.logger.Warn("mcp: runs_fetch_parents failed", "error", err)
		return errorResult(fmt.Sprintf("fetching parents failed (%s): %v", model.KindOf(err), err)), nil
	}
	return jsonResult(out)
}
