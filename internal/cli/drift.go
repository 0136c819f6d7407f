package cli

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/drift"
)

// NewDriftCommand creates the drift command group.
func NewDriftCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Inspect and decide schema drift events",
	}

	cmd.AddCommand(newDriftListCommand(rootOpts))
	cmd.AddCommand(newDriftApproveCommand(rootOpts))
	cmd.AddCommand(newDriftRejectCommand(rootOpts))
	cmd.AddCommand(newDriftSweepCommand(rootOpts))

	return cmd
}

func newDriftListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tenant string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's drift events",
		Long: `List drift events, newest first, optionally filtered by status
(detected, auto_repaired, requires_approval, rejected_low_confidence,
rejected_manual).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.store.ListDriftEvents(cmd.Context(), tenant, drift.EventStatus(status), limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list drift events", err)
			}

			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(events)
			}
			if len(events) == 0 {
				return out.Success("no drift events")
			}
			for _, ev := range events {
				line := fmt.Sprintf("%s  %s  %s  confidence=%.2f  proposal=%s",
					ev.CreatedAt.Format("2006-01-02 15:04"), ev.EventType, ev.Status,
					ev.Confidence, ev.RepairProposalID)
				if err := out.Success(line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant to list (required)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to list")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func newDriftApproveCommand(rootOpts *RootOptions) *cobra.Command {
	return newDriftDecideCommand(rootOpts, "approve", true,
		"Approve a pending drift proposal and apply its mapping")
}

func newDriftRejectCommand(rootOpts *RootOptions) *cobra.Command {
	return newDriftDecideCommand(rootOpts, "reject", false,
		"Reject a pending drift proposal")
}

func newDriftDecideCommand(rootOpts *RootOptions, use string, approve bool, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use + " <workflow-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.router.Decide(cmd.Context(), args[0], approve, currentUser()); err != nil {
				return WrapExitError(ExitFailure, "decision failed", err)
			}
			return rootOpts.formatter(cmd).Successf("workflow %s %sd", args[0], use)
		},
	}
	return cmd
}

func newDriftSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sweep",
		Short:         "Fail-safe reject every review workflow past its expiry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			closed, err := a.router.Sweep(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "sweep failed", err)
			}
			return rootOpts.formatter(cmd).Successf("rejected %d expired workflows", closed)
		},
	}
	return cmd
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
