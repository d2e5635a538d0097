package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockcore/internal/core"
	"stockcore/pkg/domain"
)

type itemFlags struct {
	name, category, unit string
	cost, stock          string
	correction, yieldPct string
	yieldQty, yieldUnit  string
	minLevel             string
}

func newItemsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Show the stock valuation report",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			report, err := a.svc.ValuationReport(ctx, a.tenant)
			return outcome{data: report}, err
		}),
	}
	cmd.AddCommand(newItemAddCommand(opts))
	return cmd
}

func newItemAddCommand(opts *RootOptions) *cobra.Command {
	f := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a stock item",
		Example: `  stockcore items add --name Flour --unit kg --cost 1.50 --stock 30
  stockcore items add --name Dough --unit kg --yield-qty 5 --yield-unit kg`,
		Args: cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			in, err := f.input()
			if err != nil {
				return outcome{}, err
			}
			item, res, err := a.svc.CreateItem(ctx, a.tenant, in)
			return outcome{data: item, result: res}, err
		}),
	}
	cmd.Flags().StringVar(&f.name, "name", "", "item name (required)")
	cmd.Flags().StringVar(&f.unit, "unit", "", "stock unit (required)")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.cost, "cost", "", "unit cost")
	cmd.Flags().StringVar(&f.stock, "stock", "", "opening stock")
	cmd.Flags().StringVar(&f.correction, "correction", "", "recipe units per stock unit")
	cmd.Flags().StringVar(&f.yieldPct, "yield-pct", "", "usable fraction in (0,1]")
	cmd.Flags().StringVar(&f.yieldQty, "yield-qty", "", "quantity one recipe run produces")
	cmd.Flags().StringVar(&f.yieldUnit, "yield-unit", "", "unit of the recipe yield")
	cmd.Flags().StringVar(&f.minLevel, "min", "", "minimum stock level")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func (f *itemFlags) input() (core.ItemInput, error) {
	in := core.ItemInput{Name: f.name, Category: f.category, Unit: f.unit, YieldUnit: f.yieldUnit}
	var err error
	if in.UnitCost, err = optionalDecimal("cost", f.cost); err != nil {
		return in, err
	}
	if in.OpeningStock, err = optionalDecimal("stock", f.stock); err != nil {
		return in, err
	}
	if in.StockCorrectionFactor, err = optionalDecimal("correction", f.correction); err != nil {
		return in, err
	}
	if in.YieldPercentage, err = optionalDecimal("yield-pct", f.yieldPct); err != nil {
		return in, err
	}
	if in.YieldQuantity, err = optionalDecimal("yield-qty", f.yieldQty); err != nil {
		return in, err
	}
	if f.minLevel != "" {
		level, err := parseDecimal("min", f.minLevel)
		if err != nil {
			return in, err
		}
		in.MinLevel = &level
	}
	return in, nil
}

func newProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products with their recipe cost",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			products, err := a.svc.ListProducts(ctx, a.tenant)
			return outcome{data: products}, err
		}),
	}

	var sku, name, price string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a sellable product",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, a *app, _ []string) (outcome, error) {
			p, err := optionalDecimal("price", price)
			if err != nil {
				return outcome{}, err
			}
			product, res, err := a.svc.CreateProduct(ctx, a.tenant, core.ProductInput{SKU: sku, Name: name, Price: p})
			return outcome{data: product, result: res}, err
		}),
	}
	add.Flags().StringVar(&sku, "sku", "", "unique SKU")
	add.Flags().StringVar(&name, "name", "", "product name (required)")
	add.Flags().StringVar(&price, "price", "", "sale price")
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)
	return cmd
}

func newRecipeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage recipes",
	}
	set := &cobra.Command{
		Use:   "set <item|product> <parent-id> <component-id>=<qty>[:unit]...",
		Short: "Replace a recipe and cascade the new cost",
		Example: `  stockcore recipe set item <dough-id> <flour-id>=3
  stockcore recipe set product <burger-id> <meat-id>=200:g <bun-id>=1`,
		Args: cobra.MinimumNArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return outcome{}, err
			}
			lines, err := parseRecipeLines(args[2:])
			if err != nil {
				return outcome{}, err
			}
			out, res, err := a.svc.SetRecipe(ctx, a.tenant, kind, args[1], lines)
			return outcome{data: out, result: res}, err
		}),
	}
	cmd.AddCommand(set)
	return cmd
}

func parseKind(value string) (core.ParentKind, error) {
	switch kind := core.ParentKind(strings.ToLower(value)); kind {
	case core.ParentItem, core.ParentProduct:
		return kind, nil
	default:
		return "", domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("must be item or product, got %q", value)}
	}
}

func parseRecipeLines(args []string) ([]core.RecipeLineInput, error) {
	lines := make([]core.RecipeLineInput, 0, len(args))
	for _, arg := range args {
		id, rest, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, domain.ValidationError{Field: "line", Reason: fmt.Sprintf("%q must be <component-id>=<qty>[:unit]", arg)}
		}
		qty, unit, _ := strings.Cut(rest, ":")
		q, err := parseDecimal("quantity", qty)
		if err != nil {
			return nil, err
		}
		lines = append(lines, core.RecipeLineInput{ComponentID: id, Quantity: q, Unit: unit})
	}
	return lines, nil
}
