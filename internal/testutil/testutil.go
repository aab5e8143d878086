// Package testutil provides shared test infrastructure: an in-process fake of
// the tracking service's run endpoints and run builders.
//
// Usage:
//
//	fake := testutil.NewFakeTracking(t)
//	fake.AddRun(testutil.NewRun("a", testutil.WithParent("p")))
//	fake.SearchFunc = func(q model.SearchQuery) model.SearchRunsResponse { ... }
//	client, _ := tracking.NewClient(tracking.Config{TrackingURI: fake.URL()})
package testutil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/ashita-ai/runsearch/internal/model"
)

// FakeTracking mimics the search and get-by-id endpoints of a tracking server.
// Runs added with AddRun are served by get-by-id and by "run_id IN (...)"
// searches; every other search is answered by SearchFunc.
type FakeTracking struct {
	srv *httptest.Server

	// SearchFunc answers searches that are not membership queries.
	// Defaults to returning no runs.
	SearchFunc func(q model.SearchQuery) model.SearchRunsResponse

	mu        sync.Mutex
	runs      map[string]model.Run
	getErrors map[string]fakeError
	searchErr *fakeError
	queries   []model.SearchQuery
	gets      []string
	headers   []http.Header
}

type fakeError struct {
	status int
	code   string
	body   string
}

// NewFakeTracking starts a fake server that is closed when the test ends.
func NewFakeTracking(t testing.TB) *FakeTracking {
	t.Helper()
	f := &FakeTracking{
		runs:      make(map[string]model.Run),
		getErrors: make(map[string]fakeError),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/2.0/mlflow/runs/search", f.handleSearch)
	mux.HandleFunc("GET /api/2.0/mlflow/runs/get", f.handleGet)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the base URL of the fake server.
func (f *FakeTracking) URL() string {
	return f.srv.URL
}

// AddRun stores runs for get-by-id and membership searches.
func (f *FakeTracking) AddRun(runs ...model.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range runs {
		f.runs[r.ID()] = r
	}
}

// FailGet makes get-by-id for runID fail with a structured service error.
func (f *FakeTracking) FailGet(runID string, status int, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrors[runID] = fakeError{status: status, code: code}
}

// FailGetRaw makes get-by-id for runID fail with an unstructured body.
func (f *FakeTracking) FailGetRaw(runID string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrors[runID] = fakeError{status: status, body: body}
}

// FailSearch makes every search fail with a structured service error.
func (f *FakeTracking) FailSearch(status int, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchErr = &fakeError{status: status, code: code}
}

// Queries returns the search bodies received so far.
func (f *FakeTracking) Queries() []model.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SearchQuery(nil), f.queries...)
}

// Gets returns the run ids requested by get-by-id so far.
func (f *FakeTracking) Gets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

// Headers returns the request headers received so far.
func (f *FakeTracking) Headers() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.headers...)
}

var membershipRe = regexp.MustCompile(`^run_id IN \((.*)\)$`)

func (f *FakeTracking) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q model.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, fakeError{status: http.StatusBadRequest, code: "MALFORMED_REQUEST"}, err.Error())
		return
	}

	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.headers = append(f.headers, r.Header.Clone())
	searchErr := f.searchErr
	var pinned []model.Run
	m := membershipRe.FindStringSubmatch(q.Filter)
	if m != nil {
		for _, id := range strings.Split(m[1], ",") {
			if run, ok := f.runs[strings.Trim(id, "'")]; ok {
				pinned = append(pinned, run)
			}
		}
	}
	f.mu.Unlock()

	if searchErr != nil {
		writeError(w, *searchErr, "search failed")
		return
	}
	if m != nil {
		writeJSON(w, http.StatusOK, model.SearchRunsResponse{Runs: pinned})
		return
	}
	var resp model.SearchRunsResponse
	if f.SearchFunc != nil {
		resp = f.SearchFunc(q)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeTracking) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("run_id")

	f.mu.Lock()
	f.gets = append(f.gets, id)
	f.headers = append(f.headers, r.Header.Clone())
	fe, failing := f.getErrors[id]
	run, ok := f.runs[id]
	f.mu.Unlock()

	switch {
	case failing:
		writeError(w, fe, "get run failed")
	case !ok:
		writeError(w, fakeError{status: http.StatusNotFound, code: model.ErrorCodeResourceDoesNotExist},
			"Run '"+id+"' not found.")
	default:
		writeJSON(w, http.StatusOK, model.GetRunResponse{Run: &run})
	}
}

func writeError(w http.ResponseWriter, fe fakeError, msg string) {
	if fe.code == "" {
		w.WriteHeader(fe.status)
		_, _ = w.Write([]byte(fe.body))
		return
	}
	writeJSON(w, fe.status, map[string]string{"error_code": fe.code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RunOption customizes a run built by NewRun.
type RunOption func(*model.Run)

// NewRun builds an active run with the given id.
func NewRun(id string, opts ...RunOption) model.Run {
	r := model.Run{Info: model.RunInfo{
		RunID:          id,
		ExperimentID:   "0",
		Status:         model.RunStatusFinished,
		LifecycleStage: model.LifecycleActive,
	}}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithParent adds a lineage tag pointing at parentID.
func WithParent(parentID string) RunOption {
	return WithTag(model.ParentRunTagKey, parentID)
}

// WithTag adds a tag.
func WithTag(key, value string) RunOption {
	return func(r *model.Run) {
		r.Data.Tags = append(r.Data.Tags, model.RunTag{Key: key, Value: value})
	}
}

// Deleted moves the run to the deleted lifecycle stage.
func Deleted() RunOption {
	return func(r *model.Run) { r.Info.LifecycleStage = model.LifecycleDeleted }
}

// RunIDs returns the ids of runs in order.
func RunIDs(runs []model.Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID()
	}
	return ids
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
