package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"stockcore/internal/core"
)

func newRegisterCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Operate cash register sessions",
	}

	open := &cobra.Command{
		Use:   "open <employee-id> <starting-cash>",
		Short: "Open a register session",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			cash, err := parseDecimal("starting-cash", args[1])
			if err != nil {
				return outcome{}, err
			}
			session, res, err := a.svc.OpenRegister(ctx, a.tenant, args[0], cash)
			return outcome{data: session, result: res}, err
		}),
	}

	var description string
	post := &cobra.Command{
		Use:   "post [flags] <session-id> <SALE|DEPOSIT|EXPENSE|WITHDRAWAL|PURCHASE> <amount>",
		Short: "Post a signed movement; outflows are negative",
		Long: `Post a signed movement to an open session. Outflows take a negative
amount. Flags go before the positional arguments so that a negative amount
such as -10 is not read as a flag.`,
		Example: "  stockcore register post --description rent s-1 EXPENSE -10",
		Args:  cobra.ExactArgs(3),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			amount, err := parseDecimal("amount", args[2])
			if err != nil {
				return outcome{}, err
			}
			out, res, err := a.svc.PostTransaction(ctx, a.tenant, core.TransactionInput{
				SessionID:   args[0],
				Type:        core.CashTransactionType(strings.ToUpper(args[1])),
				Amount:      amount,
				Description: description,
			})
			return outcome{data: out, result: res}, err
		}),
	}
	post.Flags().StringVar(&description, "description", "", "movement description")
	post.Flags().SetInterspersed(false)

	var card, transfer, notes string
	closeCmd := &cobra.Command{
		Use:   "close <session-id> <declared-cash>",
		Short: "Close a session and record the drawer difference",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			in := core.CloseInput{SessionID: args[0], Notes: notes}
			var err error
			if in.DeclaredCash, err = parseDecimal("declared-cash", args[1]); err != nil {
				return outcome{}, err
			}
			if in.DeclaredCard, err = optionalDecimal("card", card); err != nil {
				return outcome{}, err
			}
			if in.DeclaredTransfer, err = optionalDecimal("transfer", transfer); err != nil {
				return outcome{}, err
			}
			session, res, err := a.svc.CloseRegister(ctx, a.tenant, in)
			return outcome{data: session, result: res}, err
		}),
	}
	closeCmd.Flags().StringVar(&card, "card", "", "declared card total")
	closeCmd.Flags().StringVar(&transfer, "transfer", "", "declared transfer total")
	closeCmd.Flags().StringVar(&notes, "notes", "", "closing notes")

	audit := &cobra.Command{
		Use:   "audit <session-id>",
		Short: "Show expected and declared cash for a session",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			report, err := a.svc.RegisterAudit(ctx, a.tenant, args[0])
			return outcome{data: report}, err
		}),
	}

	cmd.AddCommand(open, post, closeCmd, audit)
	return cmd
}
