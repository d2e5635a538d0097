package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"stockcore/internal/archive"
	"stockcore/internal/core"
	"stockcore/pkg/domain"
)

func newExplainCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <item|product> <id>",
		Short: "Resolve a recipe cost line by line",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return outcome{}, err
			}
			breakdown, err := a.svc.ExplainCost(ctx, a.tenant, kind, args[1])
			return outcome{data: breakdown}, err
		}),
	}
}

func newPropagateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "propagate <item-id>",
		Short: "Recompute every dependent of an item",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			report, res, err := a.svc.Propagate(ctx, a.tenant, args[0])
			return outcome{data: report, result: res}, err
		}),
	}
}

func newRecomputeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every recipe cost of the tenant",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			report, res, err := a.svc.RecomputeAll(ctx, a.tenant)
			return outcome{data: report, result: res}, err
		}),
	}
}

func newHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check stored costs and stock against recipes and the ledger",
		Long: `Re-resolves every recipe cost and compares each item's stock with its
last ledger entry. Exits 1 when anything disagrees.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report core.HealthReport
			err := opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
				var err error
				report, err = a.svc.HealthCheck(ctx, a.tenant)
				return outcome{data: report}, err
			})(cmd, args)
			if err != nil {
				return err
			}
			if !report.Healthy {
				return NewExitError(ExitFailure, "tenant is unhealthy")
			}
			return nil
		},
	}
}

func newExportLedgerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-ledger",
		Short: "Archive the tenant ledger as JSON lines",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			store, err := archive.Open(ctx, a.cfg.Archive)
			if err != nil {
				return outcome{}, WrapExitError(ExitCommandError, "open archive", err)
			}
			info, err := a.svc.ExportLedger(ctx, a.tenant, store)
			return outcome{data: info}, err
		}),
	}
}

func newPurchasePlanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase-plan <item-id>...",
		Short: "Group items by the supplier with the best recent price",
		Args:  cobra.MinimumNArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			plan, err := a.svc.SupplierPricePlan(ctx, a.tenant, args)
			return outcome{data: plan}, err
		}),
	}
}

func newWasteReportCommand(opts *RootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "waste-report",
		Short: "Value waste by type, item and day",
		Long: `Values waste ledger entries at current unit cost. --from and --to are
inclusive calendar days (YYYY-MM-DD, UTC); with both set the report also
compares against the preceding period of the same length.`,
		Args: cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			start, err := parseDay("from", from)
			if err != nil {
				return outcome{}, err
			}
			end, err := parseDay("to", to)
			if err != nil {
				return outcome{}, err
			}
			if !end.IsZero() {
				end = end.AddDate(0, 0, 1)
			}
			report, err := a.svc.WasteReport(ctx, a.tenant, start, end)
			return outcome{data: report}, err
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first day of the period")
	cmd.Flags().StringVar(&to, "to", "", "last day of the period")
	return cmd
}

// parseDay reads a YYYY-MM-DD day in UTC. An empty value is the zero time.
func parseDay(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: field, Reason: "must be a YYYY-MM-DD day"}
	}
	return day, nil
}
