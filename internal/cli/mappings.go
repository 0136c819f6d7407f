package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/mapping"
)

// NewMappingsCommand creates the mappings command group.
func NewMappingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and register field mappings",
	}

	cmd.AddCommand(newMappingsListCommand(rootOpts))
	cmd.AddCommand(newMappingsPutCommand(rootOpts))

	return cmd
}

func newMappingsListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tenant    string
		connector string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List a connector's field mappings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			total, mappings, err := a.mappings.List(cmd.Context(), tenant, connector, limit, offset)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list mappings", err)
			}

			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(map[string]any{"total": total, "mappings": mappings})
			}
			if err := out.Successf("%d mappings", total); err != nil {
				return err
			}
			for _, m := range mappings {
				line := fmt.Sprintf("%s.%s -> %s.%s  v%d  %s  confidence=%.2f",
					m.SourceTable, m.SourceField, m.CanonicalEntity, m.CanonicalField,
					m.Version, m.Status, m.Confidence)
				if m.TransformRule != "" {
					line += "  transform=" + m.TransformRule
				}
				if err := out.Success(line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant (required)")
	cmd.Flags().StringVar(&connector, "connector", "", "connector id (required)")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("connector")

	return cmd
}

func newMappingsPutCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tenant     string
		connector  string
		table      string
		source     string
		entity     string
		target     string
		confidence float64
		transform  string
		deprecate  bool
	)

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Register or update a field mapping",
		Long: `Write one field mapping. An existing active mapping for the same
(tenant, connector, table, source field) key is updated in place with its
version bumped; the cache is evicted before the command returns.

Example:
  strata mappings put --db strata.db --tenant acme --connector crm-prod \
    --table opportunities --source deal_value --entity opportunity --target amount`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			m := mapping.FieldMapping{
				TenantID:        tenant,
				ConnectorID:     connector,
				SourceTable:     table,
				SourceField:     source,
				CanonicalEntity: canonical.Kind(entity),
				CanonicalField:  target,
				Confidence:      confidence,
				MappingType:     mapping.TypeDirect,
				Status:          mapping.StatusActive,
			}
			if transform != "" {
				m.MappingType = mapping.TypeTransform
				m.TransformRule = transform
			}
			if deprecate {
				m.Status = mapping.StatusDeprecated
			}

			actor := mapping.Actor{ID: currentUser(), Admin: true}
			written, created, err := a.mappings.Write(cmd.Context(), actor, m)
			if err != nil {
				return WrapExitError(ExitFailure, "mapping write rejected", err)
			}

			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(written)
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			return out.Successf("%s mapping %s.%s -> %s.%s (v%d)",
				verb, written.SourceTable, written.SourceField,
				written.CanonicalEntity, written.CanonicalField, written.Version)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant (required)")
	cmd.Flags().StringVar(&connector, "connector", "", "connector id (required)")
	cmd.Flags().StringVar(&table, "table", "", "source table (required)")
	cmd.Flags().StringVar(&source, "source", "", "source field (required)")
	cmd.Flags().StringVar(&entity, "entity", "", "canonical entity kind (required)")
	cmd.Flags().StringVar(&target, "target", "", "canonical field (required)")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "mapping confidence [0,1]")
	cmd.Flags().StringVar(&transform, "transform", "", "transform rule (lower|upper|trim|prefix:<p>|strip_prefix:<p>)")
	cmd.Flags().BoolVar(&deprecate, "deprecate", false, "write the mapping as deprecated")
	for _, flag := range []string{"tenant", "connector", "table", "source", "entity", "target"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}
