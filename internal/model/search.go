package model

import "fmt"

// ViewType selects runs by lifecycle stage.
type ViewType string

const (
	ViewActiveOnly  ViewType = "ACTIVE_ONLY"
	ViewDeletedOnly ViewType = "DELETED_ONLY"
	ViewAll         ViewType = "ALL"
)

// ParseViewType accepts the wire names plus the short forms used on the
// command line ("active", "deleted", "all"). Empty input yields ViewActiveOnly.
func ParseViewType(s string) (ViewType, error) {
	switch s {
	case "", "active", "ACTIVE", string(ViewActiveOnly):
		return ViewActiveOnly, nil
	case "deleted", "DELETED", string(ViewDeletedOnly):
		return ViewDeletedOnly, nil
	case "all", string(ViewAll):
		return ViewAll, nil
	default:
		return "", fmt.Errorf("model: unknown view type %q", s)
	}
}

// SearchRequest is one logical search over runs.
type SearchRequest struct {
	// ID correlates the request in logs and on the result. Generated when empty.
	ID string `json:"id,omitempty"`

	ExperimentIDs []string `json:"experiment_ids"`

	// Filter is an SQL-like expression passed through to the service.
	Filter      string   `json:"filter,omitempty"`
	RunViewType ViewType `json:"run_view_type,omitempty"`

	// MaxResults bounds the filtered query only; pinned runs are not counted.
	// Zero means the configured default.
	MaxResults int      `json:"max_results,omitempty"`
	OrderBy    []string `json:"order_by,omitempty"`
	PageToken  string   `json:"page_token,omitempty"`

	// ShouldFetchParents backfills parents referenced by lineage tags.
	ShouldFetchParents bool `json:"should_fetch_parents,omitempty"`

	// PinnedRunIDs are fetched with a second query regardless of Filter.
	PinnedRunIDs []string `json:"pinned_run_ids,omitempty"`
}

// SearchQuery is the wire body of a single remote search call.
type SearchQuery struct {
	ExperimentIDs []string `json:"experiment_ids"`
	Filter        string   `json:"filter,omitempty"`
	RunViewType   ViewType `json:"run_view_type,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
	OrderBy       []string `json:"order_by,omitempty"`
	PageToken     string   `json:"page_token,omitempty"`
}

// SearchRunsResponse is the wire response of a single remote search call.
type SearchRunsResponse struct {
	Runs          []Run  `json:"runs,omitempty"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// GetRunResponse is the wire response of a get-by-id call.
type GetRunResponse struct {
	Run *Run `json:"run"`
}

// SearchResult is the merged outcome of a search.
//
// RunsMatchingFilter holds the runs that satisfied the original filter, plus
// any parents backfilled by lineage resolution. A nil RunsMatchingFilter means
// the subset is absent (a bare run collection); the merger always sets it to
// a non-nil slice. The field is always encoded, so an empty subset ([]) and
// an absent one (null) survive a JSON round trip.
type SearchResult struct {
	RequestID          string `json:"request_id,omitempty"`
	Runs               []Run  `json:"runs"`
	RunsMatchingFilter []Run  `json:"runs_matching_filter"`
	NextPageToken      string `json:"next_page_token,omitempty"`
}
