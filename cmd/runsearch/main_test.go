package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/runsearch/internal/model"
	"github.com/ashita-ai/runsearch/internal/testutil"
)

// execute runs the CLI against fake with the given arguments and returns stdout.
func execute(t *testing.T, fake *testutil.FakeTracking, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MLFLOW_TRACKING_URI", fake.URL())
	t.Setenv("RUNSEARCH_LOG_LEVEL", "warn")
	t.Setenv("RUNSEARCH_FETCH_PARENTS", "false")

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func lineageFake(t *testing.T) *testutil.FakeTracking {
	t.Helper()
	fake := testutil.NewFakeTracking(t)
	fake.AddRun(testutil.NewRun("p"), testutil.NewRun("pin", testutil.Deleted()))
	fake.SearchFunc = func(q model.SearchQuery) model.SearchRunsResponse {
		if q.PageToken == "page-2" {
			return model.SearchRunsResponse{Runs: []model.Run{testutil.NewRun("last")}}
		}
		return model.SearchRunsResponse{
			Runs:          []model.Run{testutil.NewRun("a", testutil.WithParent("p"))},
			NextPageToken: "page-2",
		}
	}
	return fake
}

func TestSearchCommand(t *testing.T) {
	fake := lineageFake(t)

	out, err := execute(t, fake, "",
		"search", "-e", "1", "-e", "2",
		"--filter", "metrics.rmse < 1",
		"--view", "all",
		"--max-results", "5",
		"--order-by", "metrics.rmse ASC",
		"--pinned", "pin",
		"--fetch-parents",
	)
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"a", "pin", "p"}, testutil.RunIDs(res.Runs))
	assert.Equal(t, []string{"a", "p"}, testutil.RunIDs(res.RunsMatchingFilter))
	assert.Equal(t, "page-2", res.NextPageToken)

	var primary model.SearchQuery
	for _, q := range fake.Queries() {
		if q.Filter == "metrics.rmse < 1" {
			primary = q
		}
	}
	assert.Equal(t, []string{"1", "2"}, primary.ExperimentIDs)
	assert.Equal(t, model.ViewAll, primary.RunViewType)
	assert.Equal(t, 5, primary.MaxResults)
	assert.Equal(t, []string{"metrics.rmse ASC"}, primary.OrderBy)
}

func TestSearchCommandUsesConfiguredDefaults(t *testing.T) {
	fake := lineageFake(t)

	out, err := execute(t, fake, "", "search", "-e", "1")
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"a"}, testutil.RunIDs(res.Runs), "parents are not fetched when disabled")
	require.Len(t, fake.Queries(), 1)
	assert.Equal(t, 100, fake.Queries()[0].MaxResults)
}

func TestSearchCommandPageToken(t *testing.T) {
	fake := lineageFake(t)

	out, err := execute(t, fake, "", "search", "-e", "1", "--page-token", "page-2")
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"last"}, testutil.RunIDs(res.Runs))
	assert.Empty(t, res.NextPageToken)
}

func TestSearchCommandYAMLOutput(t *testing.T) {
	fake := lineageFake(t)

	out, err := execute(t, fake, "", "-o", "yaml", "search", "-e", "1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "request_id: "), out)
	assert.Contains(t, out, "next_page_token: page-2")
	assert.Contains(t, out, `experiment_id: "0"`)

	var generic map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &generic))
	assert.Len(t, generic["runs"], 1)
}

func TestSearchCommandErrors(t *testing.T) {
	fake := lineageFake(t)

	_, err := execute(t, fake, "", "search")
	assert.ErrorContains(t, err, "--experiment")

	_, err = execute(t, fake, "", "search", "-e", "1", "--view", "archived")
	assert.ErrorContains(t, err, "unknown view type")

	_, err = execute(t, fake, "", "-o", "xml", "search", "-e", "1")
	assert.ErrorContains(t, err, "invalid output")

	fake.FailSearch(400, "INVALID_PARAMETER_VALUE")
	_, err = execute(t, fake, "", "search", "-e", "1")
	assert.Equal(t, model.KindService, model.KindOf(err))
}

func TestSearchCommandRequiresTrackingURI(t *testing.T) {
	fake := lineageFake(t)
	cmd := newRootCommand()
	t.Setenv("MLFLOW_TRACKING_URI", "")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "search", "-e", "1"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "MLFLOW_TRACKING_URI is required")
	assert.Empty(t, fake.Queries())
}

func TestParentsCommand(t *testing.T) {
	fake := lineageFake(t)
	input := `{"runs":[{"info":{"run_id":"a"},"data":{"tags":[{"key":"mlflow.parentRunId","value":"p"}]}}],"runs_matching_filter":[]}`

	out, err := execute(t, fake, input, "parents")
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"a", "p"}, testutil.RunIDs(res.Runs))
	assert.Equal(t, []string{"p"}, testutil.RunIDs(res.RunsMatchingFilter))
}

func TestParentsCommandFromYAMLFile(t *testing.T) {
	fake := lineageFake(t)
	path := filepath.Join(t.TempDir(), "page.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`runs:
  - info:
      run_id: a
    data:
      tags:
        - key: mlflow.parentRunId
          value: p
`), 0o600))

	out, err := execute(t, fake, "", "parents", "-i", path)
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"a", "p"}, testutil.RunIDs(res.Runs))
	assert.Nil(t, res.RunsMatchingFilter)
}

func TestParentsCommandEmptyInput(t *testing.T) {
	fake := lineageFake(t)
	_, err := execute(t, fake, "", "parents")
	assert.ErrorContains(t, err, "input is empty")
}

func TestSearchOutputFeedsParents(t *testing.T) {
	for _, format := range validOutputs {
		t.Run(format, func(t *testing.T) {
			fake := testutil.NewFakeTracking(t)
			fake.AddRun(testutil.NewRun("pin", testutil.WithParent("p")), testutil.NewRun("p"))

			// Nothing matches the filter, so the page holds only the pinned run.
			page, err := execute(t, fake, "", "-o", format, "search", "-e", "1", "--pinned", "pin")
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "page."+format)
			require.NoError(t, os.WriteFile(path, []byte(page), 0o600))

			out, err := execute(t, fake, "", "parents", "-i", path)
			require.NoError(t, err)

			var res model.SearchResult
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, []string{"pin", "p"}, testutil.RunIDs(res.Runs))
			assert.Equal(t, []string{"p"}, testutil.RunIDs(res.RunsMatchingFilter))
		})
	}
}
