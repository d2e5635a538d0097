package core

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// driftThreshold is the smallest stored-versus-resolved cost gap reported.
var driftThreshold = decimal.RequireFromString("0.001")

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, tenantID, itemID string) (Item, error) {
	var item Item
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		var ok bool
		if item, ok = v.FindItem(itemID); !ok {
			return domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
		}
		return nil
	})
	return item, err
}

// ListItems returns every item of the tenant.
func (s *Service) ListItems(ctx context.Context, tenantID string) ([]Item, error) {
	var items []Item
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		items = v.ListItems()
		return nil
	})
	return items, err
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, tenantID, productID string) (Product, error) {
	var product Product
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		var ok bool
		if product, ok = v.FindProduct(productID); !ok {
			return domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
		}
		return nil
	})
	return product, err
}

// ListProducts returns every product of the tenant.
func (s *Service) ListProducts(ctx context.Context, tenantID string) ([]Product, error) {
	var products []Product
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		products = v.ListProducts()
		return nil
	})
	return products, err
}

// ItemLedger returns the ledger of one item, oldest first.
func (s *Service) ItemLedger(ctx context.Context, tenantID, itemID string) ([]InventoryLogEntry, error) {
	var entries []InventoryLogEntry
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		if _, ok := v.FindItem(itemID); !ok {
			return domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
		}
		entries = v.LedgerForItem(itemID)
		return nil
	})
	return entries, err
}

// ExplainCost resolves a parent's cost recursively and returns the per-line
// breakdown.
func (s *Service) ExplainCost(ctx context.Context, tenantID string, kind ParentKind, parentID string) (CostBreakdown, error) {
	var out CostBreakdown
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		var err error
		out, err = ResolveCost(v, kind, parentID)
		return err
	})
	return out, err
}

// ValuationRow is the stock value of one item.
type ValuationRow struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Composite bool            `json:"composite"`
	Stock     decimal.Decimal `json:"stock"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Value     decimal.Decimal `json:"value"`
	BelowMin  bool            `json:"below_min,omitempty"`
}

// ValuationReport lists stock value per item and in total.
type ValuationReport struct {
	TenantID string          `json:"tenant_id"`
	Rows     []ValuationRow  `json:"rows"`
	Total    decimal.Decimal `json:"total"`
}

// ValuationReport values on-hand stock at unit cost.
func (s *Service) ValuationReport(ctx context.Context, tenantID string) (ValuationReport, error) {
	report := ValuationReport{TenantID: tenantID, Total: decimal.Zero}
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		for _, item := range v.ListItems() {
			unitCost := item.UnitCost()
			row := ValuationRow{
				ItemID:    item.ID,
				Name:      item.Name,
				Unit:      item.Unit,
				Composite: item.IsComposite,
				Stock:     item.StockQuantity,
				UnitCost:  unitCost,
				Value:     item.StockQuantity.Mul(unitCost),
			}
			if item.MinLevel != nil && item.StockQuantity.LessThan(*item.MinLevel) {
				row.BelowMin = true
			}
			report.Rows = append(report.Rows, row)
			report.Total = report.Total.Add(row.Value)
		}
		return nil
	})
	return report, err
}

// CostDrift is a parent whose stored cost disagrees with its resolved cost.
type CostDrift struct {
	Kind     ParentKind      `json:"kind"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Stored   decimal.Decimal `json:"stored"`
	Resolved decimal.Decimal `json:"resolved"`
}

// StockMismatch is an item whose stock disagrees with its last ledger entry.
type StockMismatch struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Stock       decimal.Decimal `json:"stock"`
	LedgerStock decimal.Decimal `json:"ledger_stock"`
}

// HealthReport is the result of HealthCheck.
type HealthReport struct {
	Healthy         bool            `json:"healthy"`
	CostDrift       []CostDrift     `json:"cost_drift,omitempty"`
	Cycles          [][]string      `json:"cycles,omitempty"`
	StockMismatches []StockMismatch `json:"stock_mismatches,omitempty"`
}

// HealthCheck re-resolves every recipe parent and compares stock with the
// ledger.
func (s *Service) HealthCheck(ctx context.Context, tenantID string) (HealthReport, error) {
	var report HealthReport
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		seen := make(map[string]struct{})
		for _, line := range v.ListRecipeLines() {
			ref := ParentRef{Kind: line.ParentKind, ID: line.ParentID}
			if _, ok := seen[ref.key()]; ok {
				continue
			}
			seen[ref.key()] = struct{}{}
			resolved, err := ResolveCost(v, ref.Kind, ref.ID)
			var cycle domain.CycleDetectedError
			if errors.As(err, &cycle) {
				report.Cycles = append(report.Cycles, cycle.Path)
				continue
			}
			if err != nil {
				return err
			}
			var stored decimal.Decimal
			if ref.Kind == ParentItem {
				item, _ := v.FindItem(ref.ID)
				stored = item.BatchCost
			} else {
				product, _ := v.FindProduct(ref.ID)
				stored = product.Cost
			}
			if stored.Sub(resolved.Total).Abs().GreaterThan(driftThreshold) {
				report.CostDrift = append(report.CostDrift, CostDrift{Kind: ref.Kind, ID: ref.ID, Name: resolved.Name, Stored: stored, Resolved: resolved.Total})
			}
		}
		for _, item := range v.ListItems() {
			entries := v.LedgerForItem(item.ID)
			ledgerStock := decimal.Zero
			if len(entries) > 0 {
				ledgerStock = entries[len(entries)-1].NewStock
			}
			if !ledgerStock.Equal(item.StockQuantity) {
				report.StockMismatches = append(report.StockMismatches, StockMismatch{ItemID: item.ID, Name: item.Name, Stock: item.StockQuantity, LedgerStock: ledgerStock})
			}
		}
		return nil
	})
	report.Healthy = err == nil && len(report.CostDrift) == 0 && len(report.Cycles) == 0 && len(report.StockMismatches) == 0
	return report, err
}

// priceLookback bounds how many recent purchase lines of an item are compared.
const priceLookback = 20

// PlannedItem is one item in a purchase plan with its best recent price.
type PlannedItem struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	AverageCost decimal.Decimal `json:"average_cost"`
	CurrentCost decimal.Decimal `json:"current_cost"`
	// LastPurchasedAt is the date of the chosen price. It is nil when no
	// supplier sold the item and the plan falls back to the current cost.
	LastPurchasedAt *time.Time `json:"last_purchased_at,omitempty"`
}

// SupplierPlan groups the items best bought from one supplier. An empty
// SupplierID collects items with no purchase history.
type SupplierPlan struct {
	SupplierID     string          `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name"`
	Items          []PlannedItem   `json:"items"`
	EstimatedTotal decimal.Decimal `json:"estimated_total"`
}

// PurchasePlan is the result of SupplierPricePlan.
type PurchasePlan struct {
	Suppliers []SupplierPlan `json:"suppliers"`
	// Unknown lists requested ids that match no item.
	Unknown []string `json:"unknown,omitempty"`
}

type supplierQuote struct {
	supplier Supplier
	price    decimal.Decimal
	at       time.Time
}

// SupplierPricePlan assigns each item to the supplier whose latest price for
// it, among the item's recent confirmed purchases, is the lowest.
func (s *Service) SupplierPricePlan(ctx context.Context, tenantID string, itemIDs []string) (PurchasePlan, error) {
	var plan PurchasePlan
	if len(itemIDs) == 0 {
		return plan, domain.ValidationError{Field: "item_ids", Reason: "must not be empty"}
	}
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		orders := confirmedOrdersNewestFirst(v.ListPurchaseOrders())
		bySupplier := make(map[string]*SupplierPlan)
		var keys []string
		for _, itemID := range itemIDs {
			item, ok := v.FindItem(itemID)
			if !ok {
				plan.Unknown = append(plan.Unknown, itemID)
				continue
			}
			planned := PlannedItem{
				ItemID:      item.ID,
				Name:        item.Name,
				Unit:        item.Unit,
				UnitCost:    item.CurrentCost,
				AverageCost: item.AverageCost,
				CurrentCost: item.CurrentCost,
			}
			var supplier Supplier
			if best, ok := bestQuote(v, orders, item.ID); ok {
				supplier = best.supplier
				planned.UnitCost = best.price
				at := best.at
				planned.LastPurchasedAt = &at
			}
			group, ok := bySupplier[supplier.ID]
			if !ok {
				group = &SupplierPlan{SupplierID: supplier.ID, SupplierName: supplier.Name, EstimatedTotal: decimal.Zero}
				bySupplier[supplier.ID] = group
				keys = append(keys, supplier.ID)
			}
			group.Items = append(group.Items, planned)
			group.EstimatedTotal = group.EstimatedTotal.Add(planned.UnitCost)
		}
		for _, key := range keys {
			plan.Suppliers = append(plan.Suppliers, *bySupplier[key])
		}
		return nil
	})
	return plan, err
}

func confirmedOrdersNewestFirst(orders []PurchaseOrder) []PurchaseOrder {
	out := make([]PurchaseOrder, 0, len(orders))
	for _, order := range orders {
		if order.Status == domain.PurchaseConfirmed && order.ConfirmedAt != nil {
			out = append(out, order)
		}
	}
	slices.SortStableFunc(out, func(a, b PurchaseOrder) int { return b.ConfirmedAt.Compare(*a.ConfirmedAt) })
	return out
}

// bestQuote keeps the latest price per supplier within the lookback window
// and returns the cheapest. Ties go to the more recent purchase.
func bestQuote(v TransactionView, orders []PurchaseOrder, itemID string) (supplierQuote, bool) {
	latest := make(map[string]supplierQuote)
	var order []string
	seen := 0
scan:
	for _, po := range orders {
		for _, pl := range po.Lines {
			if pl.ItemID != itemID {
				continue
			}
			if seen++; seen > priceLookback {
				break scan
			}
			if _, ok := latest[po.SupplierID]; ok || po.SupplierID == "" {
				continue
			}
			supplier, ok := v.FindSupplier(po.SupplierID)
			if !ok {
				continue
			}
			latest[po.SupplierID] = supplierQuote{supplier: supplier, price: pl.UnitCost, at: *po.ConfirmedAt}
			order = append(order, po.SupplierID)
		}
	}
	var best supplierQuote
	found := false
	for _, id := range order {
		q := latest[id]
		if !found || q.price.LessThan(best.price) {
			best, found = q, true
		}
	}
	return best, found
}

// WasteTypeTotal aggregates waste of one type.
type WasteTypeTotal struct {
	Type   string          `json:"type"`
	Events int             `json:"events"`
	Cost   decimal.Decimal `json:"cost"`
	// Share is the percentage of waste events of this type.
	Share decimal.Decimal `json:"share"`
}

// WasteItemTotal aggregates waste of one item.
type WasteItemTotal struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Events   int             `json:"events"`
	Quantity decimal.Decimal `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
}

// WasteDay aggregates waste of one UTC calendar day.
type WasteDay struct {
	Date   string          `json:"date"`
	Events int             `json:"events"`
	Cost   decimal.Decimal `json:"cost"`
}

// WasteReport is the result of WasteReport.
type WasteReport struct {
	From          *time.Time       `json:"from,omitempty"`
	To            *time.Time       `json:"to,omitempty"`
	Events        int              `json:"events"`
	TotalQuantity decimal.Decimal  `json:"total_quantity"`
	TotalCost     decimal.Decimal  `json:"total_cost"`
	ByType        []WasteTypeTotal `json:"by_type"`
	ByItem        []WasteItemTotal `json:"by_item"`
	Timeline      []WasteDay       `json:"timeline"`
	// PreviousCost and TrendPct compare with the period of equal length
	// ending at From. Both need a bounded period.
	PreviousCost *decimal.Decimal `json:"previous_cost,omitempty"`
	TrendPct     *decimal.Decimal `json:"trend_pct,omitempty"`
}

// WasteReport values waste ledger entries in [from, to) at current unit
// cost. A zero bound leaves that side of the period open.
func (s *Service) WasteReport(ctx context.Context, tenantID string, from, to time.Time) (WasteReport, error) {
	report := WasteReport{TotalQuantity: decimal.Zero, TotalCost: decimal.Zero}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return report, domain.ValidationError{Field: "to", Reason: "must be after from"}
	}
	if !from.IsZero() {
		report.From = &from
	}
	if !to.IsZero() {
		report.To = &to
	}
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		byType := make(map[string]*WasteTypeTotal)
		byItem := make(map[string]*WasteItemTotal)
		byDay := make(map[string]*WasteDay)
		previous := decimal.Zero
		var prevFrom time.Time
		if report.From != nil && report.To != nil {
			prevFrom = from.Add(-to.Sub(from))
		}
		for _, entry := range v.ListLedger() {
			wasteType, ok := strings.CutPrefix(string(entry.Reason), string(domain.ReasonWastePrefix))
			if !ok {
				continue
			}
			qty := entry.ChangeAmount.Neg()
			item, _ := v.FindItem(entry.ItemID)
			cost := qty.Mul(item.UnitCost())
			if !prevFrom.IsZero() && !entry.CreatedAt.Before(prevFrom) && entry.CreatedAt.Before(from) {
				previous = previous.Add(cost)
			}
			if (!from.IsZero() && entry.CreatedAt.Before(from)) || (!to.IsZero() && !entry.CreatedAt.Before(to)) {
				continue
			}
			report.Events++
			report.TotalQuantity = report.TotalQuantity.Add(qty)
			report.TotalCost = report.TotalCost.Add(cost)

			t, ok := byType[wasteType]
			if !ok {
				t = &WasteTypeTotal{Type: wasteType, Cost: decimal.Zero}
				byType[wasteType] = t
			}
			t.Events++
			t.Cost = t.Cost.Add(cost)

			it, ok := byItem[entry.ItemID]
			if !ok {
				it = &WasteItemTotal{ItemID: entry.ItemID, Name: item.Name, Unit: item.Unit, Quantity: decimal.Zero, Cost: decimal.Zero}
				byItem[entry.ItemID] = it
			}
			it.Events++
			it.Quantity = it.Quantity.Add(qty)
			it.Cost = it.Cost.Add(cost)

			day := entry.CreatedAt.UTC().Format(time.DateOnly)
			dd, ok := byDay[day]
			if !ok {
				dd = &WasteDay{Date: day, Cost: decimal.Zero}
				byDay[day] = dd
			}
			dd.Events++
			dd.Cost = dd.Cost.Add(cost)
		}
		for _, t := range byType {
			t.Share = decimal.NewFromInt(int64(t.Events * 100)).Div(decimal.NewFromInt(int64(report.Events))).Round(2)
			report.ByType = append(report.ByType, *t)
		}
		slices.SortFunc(report.ByType, func(a, b WasteTypeTotal) int {
			return cmp.Or(b.Cost.Cmp(a.Cost), cmp.Compare(a.Type, b.Type))
		})
		for _, it := range byItem {
			report.ByItem = append(report.ByItem, *it)
		}
		slices.SortFunc(report.ByItem, func(a, b WasteItemTotal) int {
			return cmp.Or(b.Cost.Cmp(a.Cost), cmp.Compare(a.Name, b.Name), cmp.Compare(a.ItemID, b.ItemID))
		})
		for _, dd := range byDay {
			report.Timeline = append(report.Timeline, *dd)
		}
		slices.SortFunc(report.Timeline, func(a, b WasteDay) int { return cmp.Compare(a.Date, b.Date) })
		if !prevFrom.IsZero() {
			report.PreviousCost = &previous
			if previous.IsPositive() {
				trend := report.TotalCost.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
				report.TrendPct = &trend
			}
		}
		return nil
	})
	return report, err
}
