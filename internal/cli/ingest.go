package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch, normalize and publish rows from the configured connectors",
		Long: `Run every configured connector end to end: discover collections, fetch
rows, normalize them through the field mapping store and schema registry,
and publish the resulting canonical events in batches.

Example:
  strata ingest --config strata.yaml
  strata ingest --config strata.yaml --connector crm-prod --connector files`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, only, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&only, "connector", nil, "limit the run to these connector ids")

	return cmd
}

func runIngest(opts *RootOptions, only []string, cmd *cobra.Command) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	connectors, err := a.cfg.BuildConnectors()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build connectors", err)
	}
	if len(only) > 0 {
		connectors = filterConnectors(connectors, only)
	}
	if len(connectors) == 0 {
		return WrapExitError(ExitCommandError, "no connectors to run", nil)
	}

	results := a.pipeline().Run(cmd.Context(), connectors)

	out := opts.formatter(cmd)
	failed := false
	for _, r := range results {
		if len(r.Errors) > 0 {
			failed = true
		}
	}

	if opts.Format == "json" {
		if err := out.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			line := fmt.Sprintf("%s: fetched %d, skipped %d, published %d in %d batches",
				r.ConnectorID, r.RowsFetched, r.RowsSkipped, r.EventsPublished, r.BatchesPublished)
			if len(r.Errors) > 0 {
				line += "; errors: " + strings.Join(r.Errors, "; ")
			}
			if err := out.Success(line); err != nil {
				return err
			}
		}
	}

	if failed {
		return WrapExitError(ExitFailure, "ingest completed with errors", nil)
	}
	return nil
}

func filterConnectors[T interface{ ID() string }](connectors []T, only []string) []T {
	want := make(map[string]bool, len(only))
	for _, id := range only {
		want[id] = true
	}
	var out []T
	for _, c := range connectors {
		if want[c.ID()] {
			out = append(out, c)
		}
	}
	return out
}
