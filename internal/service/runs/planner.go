package runs

import (
	"strings"

	"github.com/ashita-ai/runsearch/internal/model"
)

// DefaultMaxResults is the page size used when neither the request nor the
// service options set one.
const DefaultMaxResults = 100

// QueryPlan holds the remote queries for one logical search. Pinned is nil
// unless the request pinned at least one run.
type QueryPlan struct {
	Primary model.SearchQuery
	Pinned  *model.SearchQuery
}

// PlanQueries builds the query plan for req. It performs no I/O.
//
// The pinned query ignores the caller's filter, ordering and paging, and uses
// ViewAll so pinned runs show up even when deleted or outside the requested
// view.
func PlanQueries(req model.SearchRequest, defaultMaxResults int) QueryPlan {
	if defaultMaxResults <= 0 {
		defaultMaxResults = DefaultMaxResults
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	plan := QueryPlan{
		Primary: model.SearchQuery{
			ExperimentIDs: req.ExperimentIDs,
			Filter:        req.Filter,
			RunViewType:   req.RunViewType,
			MaxResults:    maxResults,
			OrderBy:       req.OrderBy,
			PageToken:     req.PageToken,
		},
	}

	if expr := PinnedRunsExpression(req.PinnedRunIDs); expr != "" {
		plan.Pinned = &model.SearchQuery{
			ExperimentIDs: req.ExperimentIDs,
			Filter:        expr,
			RunViewType:   model.ViewAll,
		}
	}
	return plan
}

// PinnedRunsExpression returns the membership filter selecting runIDs, e.g.
// run_id IN ('r1','r2'). A quote inside an id is doubled so the id stays one
// string literal. It returns "" for an empty list.
func PinnedRunsExpression(runIDs []string) string {
	if len(runIDs) == 0 {
		return ""
	}
	quoted := make([]string, len(runIDs))
	for i, id := range runIDs {
		quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
	}
	return "run_id IN (" + strings.Join(quoted, ",") + ")"
}
