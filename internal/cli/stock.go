package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stockcore/internal/core"
	"stockcore/pkg/domain"
)

func newPurchaseCommand(opts *RootOptions) *cobra.Command {
	var supplier, payment, by string
	cmd := &cobra.Command{
		Use:   "purchase <item-id> <qty> <unit-cost>",
		Short: "Receive stock at a unit cost and cascade the new average",
		Args:  cobra.ExactArgs(3),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			qty, err := parseDecimal("qty", args[1])
			if err != nil {
				return outcome{}, err
			}
			cost, err := parseDecimal("unit-cost", args[2])
			if err != nil {
				return outcome{}, err
			}
			out, res, err := a.svc.ConfirmPurchase(ctx, a.tenant, core.PurchaseInput{
				SupplierID:    supplier,
				PaymentMethod: core.PaymentMethod(payment),
				RegisteredBy:  by,
				Lines:         []core.ReceiptLine{{ItemID: args[0], Quantity: qty, UnitCost: cost}},
			})
			return outcome{data: out, result: res}, err
		}),
	}
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier id")
	cmd.Flags().StringVar(&payment, "payment", "", "payment method (cash|transfer|credit)")
	cmd.Flags().StringVar(&by, "by", "", "employee registering the purchase; cash purchases post to their open register")
	return cmd
}

func newProduceCommand(opts *RootOptions) *cobra.Command {
	var unit, note string
	cmd := &cobra.Command{
		Use:   "produce <batch-id> <qty>",
		Short: "Run production of a composite batch item",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			qty, err := parseDecimal("qty", args[1])
			if err != nil {
				return outcome{}, err
			}
			out, res, err := a.svc.ExecuteProduction(ctx, a.tenant, core.ProductionInput{BatchItemID: args[0], Quantity: qty, Unit: unit, Note: note})
			return outcome{data: out, result: res}, err
		}),
	}
	cmd.Flags().StringVar(&unit, "unit", "", "unit of qty; must match the batch yield unit")
	cmd.Flags().StringVar(&note, "note", "", "ledger note")
	return cmd
}

func newCountCommand(opts *RootOptions) *cobra.Command {
	in := core.CountInput{}
	cmd := &cobra.Command{
		Use:   "count <item-id> <qty>",
		Short: "Record a physical count and reconcile stock",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			qty, err := parseDecimal("qty", args[1])
			if err != nil {
				return outcome{}, err
			}
			count := in
			count.ItemID, count.CountedQty = args[0], qty
			out, res, err := a.svc.SubmitCount(ctx, a.tenant, count)
			return outcome{data: out, result: res}, err
		}),
	}
	cmd.Flags().StringVar(&in.CounterID, "counter", "", "counter employee id (required)")
	cmd.Flags().StringVar(&in.CounterName, "counter-name", "", "counter display name")
	cmd.Flags().StringVar(&in.Shift, "shift", "", "shift label")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("counter")
	return cmd
}

func newWasteCommand(opts *RootOptions) *cobra.Command {
	var wasteType, note string
	cmd := &cobra.Command{
		Use:   "waste <item-id> <qty>",
		Short: "Report wasted stock",
		Args:  cobra.ExactArgs(2),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			qty, err := parseDecimal("qty", args[1])
			if err != nil {
				return outcome{}, err
			}
			out, res, err := a.svc.ReportWaste(ctx, a.tenant, core.WasteInput{ItemID: args[0], WasteType: wasteType, Quantity: qty, Note: note})
			return outcome{data: out, result: res}, err
		}),
	}
	cmd.Flags().StringVar(&wasteType, "type", "", "waste type, e.g. spoilage (required)")
	cmd.Flags().StringVar(&note, "note", "", "ledger note")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newSalesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Import point-of-sale exports",
	}
	var commitOnly bool
	imp := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Commit a CSV sale export and deduct recipe components",
		Long: `Reads a CSV with a header row naming any of the columns
sku, product_name, quantity, price and sold_at (RFC 3339). Each row
must identify a product by sku or product_name.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			events, err := readSaleEvents(args[0])
			if err != nil {
				return outcome{}, err
			}
			batch, res, err := a.svc.CommitSaleBatch(ctx, a.tenant, filepath.Base(args[0]), events)
			if err != nil || commitOnly {
				return outcome{data: batch, result: res}, err
			}
			report, res, err := a.svc.ProcessSaleBatch(ctx, a.tenant, batch.ID)
			return outcome{data: report, result: res}, err
		}),
	}
	imp.Flags().BoolVar(&commitOnly, "commit-only", false, "store the batch without processing it")

	process := &cobra.Command{
		Use:   "process <batch-id>",
		Short: "Process a pending sale batch",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, a *app, args []string) (outcome, error) {
			report, res, err := a.svc.ProcessSaleBatch(ctx, a.tenant, args[0])
			return outcome{data: report, result: res}, err
		}),
	}
	cmd.AddCommand(imp, process)
	return cmd
}

func readSaleEvents(path string) ([]core.SaleEventInput, error) {
	f, err := os.Open(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open sales file", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read sales header", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["quantity"]; !ok {
		return nil, domain.ValidationError{Field: "header", Reason: "quantity column is required"}
	}
	cell := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var events []core.SaleEventInput
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read sales file", err)
		}
		ev := core.SaleEventInput{SKU: cell(row, "sku"), ProductName: cell(row, "product_name")}
		if ev.Quantity, err = parseDecimal(fmt.Sprintf("line %d quantity", line), cell(row, "quantity")); err != nil {
			return nil, err
		}
		if ev.Price, err = optionalDecimal(fmt.Sprintf("line %d price", line), cell(row, "price")); err != nil {
			return nil, err
		}
		if raw := cell(row, "sold_at"); raw != "" {
			if ev.SoldAt, err = time.Parse(time.RFC3339, raw); err != nil {
				return nil, domain.ValidationError{Field: fmt.Sprintf("line %d sold_at", line), Reason: "must be RFC 3339"}
			}
		}
		events = append(events, ev)
	}
	return events, nil
}
