package cli

import (
	"github.com/spf13/cobra"
)

// NewUnifyCommand creates the unify command.
func NewUnifyCommand(rootOpts *RootOptions) *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Merge a tenant's contacts into unified identities by email",
		Long: `Group the tenant's materialized contacts by normalized email and
find-or-create one unified contact per group, linking every source record
to it. Idempotent: a second run over unchanged input creates nothing.

Example:
  strata unify --db strata.db --tenant acme`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnify(rootOpts, tenant, cmd)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant to unify (required)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runUnify(opts *RootOptions, tenant string, cmd *cobra.Command) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.unifier().Unify(cmd.Context(), tenant)
	if err != nil {
		return WrapExitError(ExitCommandError, "unification failed", err)
	}

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		return out.Success(result)
	}
	return out.Successf("created %d unified contacts and %d links",
		result.UnifiedContactsCreated, result.LinksCreated)
}
