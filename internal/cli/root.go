// Package cli implements the stockcore operator command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Tenant     string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stockcore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockcore",
		Short: "Inventory valuation and recipe cost propagation",
		Long: `stockcore keeps weighted average stock costs, resolves recipe costs
through composite items and cascades every cost change to the products
that depend on it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Tenant == "" {
				return NewExitError(ExitCommandError, "--tenant must not be empty")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.Tenant, "tenant", "t", "default", "tenant id")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newItemsCommand(opts))
	cmd.AddCommand(newProductsCommand(opts))
	cmd.AddCommand(newRecipeCommand(opts))
	cmd.AddCommand(newPurchaseCommand(opts))
	cmd.AddCommand(newExplainCommand(opts))
	cmd.AddCommand(newPropagateCommand(opts))
	cmd.AddCommand(newRecomputeCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))
	cmd.AddCommand(newPurchasePlanCommand(opts))
	cmd.AddCommand(newWasteReportCommand(opts))
	cmd.AddCommand(newProduceCommand(opts))
	cmd.AddCommand(newCountCommand(opts))
	cmd.AddCommand(newWasteCommand(opts))
	cmd.AddCommand(newSalesCommand(opts))
	cmd.AddCommand(newRegisterCommand(opts))
	cmd.AddCommand(newExportLedgerCommand(opts))

	return cmd
}
