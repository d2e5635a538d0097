package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"stockcore/internal/archive"
	"stockcore/internal/core"
)

// renderText writes a human readable view of a command result.
func renderText(w io.Writer, data any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch v := data.(type) {
	case core.ValuationReport:
		fmt.Fprintln(tw, "ID\tNAME\tUNIT\tSTOCK\tUNIT COST\tVALUE\t")
		for _, row := range v.Rows {
			flag := ""
			if row.BelowMin {
				flag = "below min"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", row.ItemID, row.Name, row.Unit, row.Stock, money(row.UnitCost), money(row.Value), flag)
		}
		fmt.Fprintf(tw, "\t\t\t\tTOTAL\t%s\t\n", money(v.Total))
	case []core.Product:
		fmt.Fprintln(tw, "ID\tSKU\tNAME\tPRICE\tCOST\t")
		for _, p := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.ID, p.SKU, p.Name, money(p.Price), money(p.Cost))
		}
	case core.Item:
		renderItem(tw, v)
	case core.Product:
		fmt.Fprintf(tw, "product\t%s\t%s\n", v.ID, v.Name)
		fmt.Fprintf(tw, "price\t%s\ncost\t%s\n", money(v.Price), money(v.Cost))
	case core.RecipeResult:
		renderBreakdown(tw, v.Cost)
		renderPropagation(tw, v.Propagation)
	case core.CostBreakdown:
		renderBreakdown(tw, v)
	case core.PropagationReport:
		renderPropagation(tw, v)
	case core.HealthReport:
		renderHealth(tw, v)
	case core.ProductionResult:
		fmt.Fprintf(tw, "run\t%s\nbatch\t%s\nscale\t%s\n", v.RunID, v.Batch.Name, v.Scale)
		renderMovements(tw, append(slices.Clone(v.Consumed), v.Produced))
		renderPropagation(tw, v.Propagation)
	case core.CountResult:
		fmt.Fprintf(tw, "count\t%s\nvariance\t%s\ncost variance\t%s\nadjusted\t%t\nstock\t%s\n",
			v.Record.ID, v.Record.Variance, money(v.Record.CostVariance), v.Adjusted, v.NewStock)
	case core.WasteResult:
		fmt.Fprintf(tw, "reason\t%s\ncost impact\t%s\n", v.Reason, money(v.CostImpact))
		renderMovements(tw, []core.StockMovement{v.Movement})
	case core.PurchaseResult:
		fmt.Fprintf(tw, "order\t%s\ntotal\t%s\n", v.Order.ID, money(v.Order.TotalAmount))
		for _, item := range v.Items {
			fmt.Fprintf(tw, "%s\tstock %s\taverage %s\n", item.Name, item.StockQuantity, money(item.AverageCost))
		}
		if v.CashPosting != nil {
			fmt.Fprintf(tw, "register\t%s\t%s\n", v.CashPosting.SessionID, money(v.CashPosting.Amount))
		}
		renderPropagation(tw, v.Propagation)
	case core.SaleBatch:
		fmt.Fprintf(tw, "batch\t%s\nstatus\t%s\nevents\t%d\n", v.ID, v.Status, v.EventCount)
	case core.SaleBatchReport:
		fmt.Fprintf(tw, "batch\t%s\nevents\t%d\nitems\t%d\n", v.BatchID, v.ProcessedEvents, v.DeductedItemCount)
		renderMovements(tw, v.Deductions)
		if len(v.UnmatchedProducts) > 0 {
			fmt.Fprintf(tw, "unmatched\t%s\n", strings.Join(v.UnmatchedProducts, ", "))
		}
		if len(v.MissingRecipeProducts) > 0 {
			fmt.Fprintf(tw, "no recipe\t%s\n", strings.Join(v.MissingRecipeProducts, ", "))
		}
	case core.RegisterSession:
		renderSession(tw, v)
	case core.PostedTransaction:
		t := v.Transaction
		fmt.Fprintf(tw, "transaction\t%s\ntype\t%s\namount\t%s\n", t.ID, t.Type, money(t.Amount))
		if v.Item != nil {
			fmt.Fprintf(tw, "%s\tstock %s\taverage %s\n", v.Item.Name, v.Item.StockQuantity, money(v.Item.AverageCost))
		}
		if v.Propagation != nil {
			renderPropagation(tw, *v.Propagation)
		}
	case core.RegisterAuditReport:
		renderSession(tw, v.Session)
		types := make([]string, 0, len(v.ByType))
		for typ := range v.ByType {
			types = append(types, string(typ))
		}
		slices.Sort(types)
		for _, typ := range types {
			fmt.Fprintf(tw, "%s\t%s\n", typ, money(v.ByType[core.CashTransactionType(typ)]))
		}
		fmt.Fprintf(tw, "transactions\t%d\n", v.TransactionCount)
	case core.PurchasePlan:
		fmt.Fprintln(tw, "SUPPLIER\tITEM\tUNIT COST\tLAST BOUGHT\t")
		for _, group := range v.Suppliers {
			name := group.SupplierName
			if group.SupplierID == "" {
				name = "(no history)"
			}
			for _, item := range group.Items {
				last := "-"
				if item.LastPurchasedAt != nil {
					last = item.LastPurchasedAt.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", name, item.Name, money(item.UnitCost), last)
			}
			fmt.Fprintf(tw, "%s\tTOTAL\t%s\t\t\n", name, money(group.EstimatedTotal))
		}
		if len(v.Unknown) > 0 {
			fmt.Fprintf(tw, "unknown\t%s\n", strings.Join(v.Unknown, ", "))
		}
	case core.WasteReport:
		renderWaste(tw, v)
	case archive.Info:
		fmt.Fprintf(tw, "key\t%s\nsize\t%d\n", v.Key, v.Size)
		if n, ok := v.Metadata["entries"]; ok {
			fmt.Fprintf(tw, "entries\t%s\n", n)
		}
	default:
		fmt.Fprintln(tw, data)
	}
	return tw.Flush()
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func renderWaste(tw io.Writer, r core.WasteReport) {
	fmt.Fprintf(tw, "events\t%d\nquantity\t%s\ncost\t%s\n", r.Events, r.TotalQuantity, money(r.TotalCost))
	if r.PreviousCost != nil {
		fmt.Fprintf(tw, "previous period\t%s\n", money(*r.PreviousCost))
	}
	if r.TrendPct != nil {
		fmt.Fprintf(tw, "trend\t%s%%\n", r.TrendPct.StringFixed(2))
	}
	fmt.Fprintln(tw, "TYPE\tEVENTS\tSHARE\tCOST\t")
	for _, t := range r.ByType {
		fmt.Fprintf(tw, "%s\t%d\t%s%%\t%s\t\n", t.Type, t.Events, t.Share.StringFixed(2), money(t.Cost))
	}
	fmt.Fprintln(tw, "ITEM\tEVENTS\tQTY\tCOST\t")
	for _, it := range r.ByItem {
		fmt.Fprintf(tw, "%s\t%d\t%s %s\t%s\t\n", it.Name, it.Events, it.Quantity, it.Unit, money(it.Cost))
	}
}

func renderItem(tw io.Writer, it core.Item) {
	fmt.Fprintf(tw, "item\t%s\t%s\n", it.ID, it.Name)
	fmt.Fprintf(tw, "stock\t%s %s\n", it.StockQuantity, it.Unit)
	fmt.Fprintf(tw, "unit cost\t%s\n", money(it.UnitCost()))
	if it.IsComposite {
		fmt.Fprintf(tw, "batch cost\t%s\nyield\t%s %s\n", money(it.BatchCost), it.YieldQuantity, it.YieldUnit)
	}
}

func renderBreakdown(tw io.Writer, b core.CostBreakdown) {
	fmt.Fprintf(tw, "%s %s\t%s\n", b.ParentKind, b.ParentID, b.Name)
	fmt.Fprintln(tw, "COMPONENT\tQTY\tGROSS\tUNIT COST\tCOST\t")
	for _, l := range b.Lines {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t\n", l.ComponentName, l.Quantity, l.Unit, l.GrossQuantity, l.UnitCost.StringFixed(4), l.Cost.StringFixed(4))
	}
	fmt.Fprintf(tw, "\t\t\tTOTAL\t%s\t\n", b.Total.StringFixed(4))
}

func renderPropagation(tw io.Writer, r core.PropagationReport) {
	fmt.Fprintf(tw, "propagation\tvisited %d\tupdated %d\n", r.Visited, len(r.Updated))
	for _, c := range r.Updated {
		fmt.Fprintf(tw, "  %s %s\t%s\t%s -> %s\n", c.Kind, c.ID, c.Name, c.OldCost.StringFixed(4), c.NewCost.StringFixed(4))
	}
}

func renderMovements(tw io.Writer, moves []core.StockMovement) {
	fmt.Fprintln(tw, "ITEM\tDELTA\tBEFORE\tAFTER\t")
	for _, m := range moves {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", m.Name, m.Quantity, m.PreviousStock, m.NewStock)
	}
}

func renderHealth(tw io.Writer, h core.HealthReport) {
	fmt.Fprintf(tw, "healthy\t%t\n", h.Healthy)
	for _, d := range h.CostDrift {
		fmt.Fprintf(tw, "drift\t%s %s\t%s\tstored %s\tresolved %s\n", d.Kind, d.ID, d.Name, d.Stored.StringFixed(4), d.Resolved.StringFixed(4))
	}
	for _, c := range h.Cycles {
		fmt.Fprintf(tw, "cycle\t%s\n", strings.Join(c, " -> "))
	}
	for _, m := range h.StockMismatches {
		fmt.Fprintf(tw, "stock\t%s\t%s\tstock %s\tledger %s\n", m.ItemID, m.Name, m.Stock, m.LedgerStock)
	}
}

func renderSession(tw io.Writer, s core.RegisterSession) {
	fmt.Fprintf(tw, "session\t%s\nemployee\t%s\nstatus\t%s\nstarting cash\t%s\n", s.ID, s.EmployeeID, s.Status, money(s.StartingCash))
	if s.ExpectedCash != nil {
		fmt.Fprintf(tw, "expected cash\t%s\n", money(*s.ExpectedCash))
	}
	if s.DeclaredCash != nil {
		fmt.Fprintf(tw, "declared cash\t%s\n", money(*s.DeclaredCash))
	}
	if s.Difference != nil {
		fmt.Fprintf(tw, "difference\t%s\n", money(*s.Difference))
	}
}
