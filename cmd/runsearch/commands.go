package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/runsearch"
	"github.com/ashita-ai/runsearch/internal/mcp"
)

type searchFlags struct {
	experiments  []string
	filter       string
	view         string
	maxResults   int
	orderBy      []string
	pageToken    string
	pinned       []string
	fetchParents bool
}

func newSearchCommand(a *app) *cobra.Command {
	f := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search runs, merging in pinned runs",
		Example: `  runsearch search -e 1 --filter "metrics.rmse < 0.8" --pinned 4f0c1d --fetch-parents
  runsearch search -e 1 --page-token "$TOKEN" -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := runsearch.ParseViewType(f.view)
			if err != nil {
				return err
			}
			if len(f.experiments) == 0 {
				return fmt.Errorf("at least one --experiment is required")
			}
			fetchParents := a.cfg.FetchParents
			if cmd.Flags().Changed("fetch-parents") {
				fetchParents = f.fetchParents
			}

			req := runsearch.SearchRequest{
				ExperimentIDs:      f.experiments,
				Filter:             f.filter,
				RunViewType:        view,
				MaxResults:         f.maxResults,
				OrderBy:            f.orderBy,
				PageToken:          f.pageToken,
				PinnedRunIDs:       f.pinned,
				ShouldFetchParents: fetchParents,
			}
			search := a.client.SearchRuns
			if req.PageToken != "" {
				search = a.client.LoadMoreRuns
			}
			res, err := search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), a.output, res)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&f.experiments, "experiment", "e", nil, "experiment id to search (repeatable)")
	flags.StringVarP(&f.filter, "filter", "f", "", "search expression")
	flags.StringVar(&f.view, "view", "active", "lifecycle stages to include (active|deleted|all)")
	flags.IntVarP(&f.maxResults, "max-results", "n", 0, "page size of the filtered query (default from RUNSEARCH_MAX_RESULTS)")
	flags.StringSliceVar(&f.orderBy, "order-by", nil, `sort clause, e.g. "metrics.rmse ASC" (repeatable)`)
	flags.StringVar(&f.pageToken, "page-token", "", "next_page_token of a previous search")
	flags.StringSliceVar(&f.pinned, "pinned", nil, "run id to include regardless of the filter (repeatable)")
	flags.BoolVar(&f.fetchParents, "fetch-parents", false, "backfill parent runs named by lineage tags (default from RUNSEARCH_FETCH_PARENTS)")
	return cmd
}

func newParentsCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "parents",
		Short: "Backfill missing parent runs of a saved search result",
		Long: `Read a search result (JSON or YAML) and add the parent runs that its
runs reference through lineage tags but that it does not contain.`,
		Example: `  runsearch search -e 1 > page.json && runsearch parents -i page.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				file, err := os.Open(input)
				if err != nil {
					return err
				}
				defer file.Close()
				r = file
			}

			in, err := readResult(r)
			if err != nil {
				return err
			}
			out, err := a.client.FetchMissingParents(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), a.output, out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", `file holding the result, "-" for stdin`)
	return cmd
}

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.logger.Info("mcp server starting", "version", version)
			return mcp.New(a.client, a.cfg.FetchParents, a.logger, version).ServeStdio()
		},
	}
}

// readResult decodes a search result written as JSON or YAML.
func readResult(r io.Reader) (*runsearch.SearchResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	// JSON is valid YAML, so decode generically and map field names through JSON tags.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if generic == nil {
		return nil, fmt.Errorf("decode result: input is empty")
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	var res runsearch.SearchResult
	if err := json.Unmarshal(normalized, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// writeResult prints v in the requested format. YAML output keeps the JSON
// field names and order.
func writeResult(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if format != "yaml" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	blockStyle(&doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles a JSON source leaves on nodes.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
