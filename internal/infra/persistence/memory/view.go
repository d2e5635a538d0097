package memory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

type transactionView struct {
	tenant string
	state  *tenantState
}

func newTransactionView(tenant string, state *tenantState) TransactionView {
	return transactionView{tenant: tenant, state: state}
}

func (v transactionView) TenantID() string { return v.tenant }

func (v transactionView) FindItem(id string) (Item, bool) {
	item, ok := v.state.items[id]
	if !ok {
		return Item{}, false
	}
	return cloneItem(item), true
}

func (v transactionView) ListItems() []Item {
	out := make([]Item, 0, len(v.state.items))
	for _, item := range v.state.items {
		out = append(out, cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return baseLess(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) FindProduct(id string) (Product, bool) {
	p, ok := v.state.products[id]
	return p, ok
}

func (v transactionView) ListProducts() []Product {
	out := make([]Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return baseLess(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) FindSupplier(id string) (Supplier, bool) {
	s, ok := v.state.suppliers[id]
	return s, ok
}

func (v transactionView) ListSuppliers() []Supplier {
	out := make([]Supplier, 0, len(v.state.suppliers))
	for _, s := range v.state.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return baseLess(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) RecipeLinesForParent(kind domain.ParentKind, parentID string) []RecipeLine {
	return v.filterRecipes(func(l RecipeLine) bool {
		return l.ParentKind == kind && l.ParentID == parentID
	})
}

func (v transactionView) RecipeLinesForComponent(componentID string) []RecipeLine {
	return v.filterRecipes(func(l RecipeLine) bool { return l.ComponentID == componentID })
}

func (v transactionView) ListRecipeLines() []RecipeLine {
	return v.filterRecipes(func(RecipeLine) bool { return true })
}

func (v transactionView) filterRecipes(keep func(RecipeLine) bool) []RecipeLine {
	var out []RecipeLine
	for _, l := range v.state.recipes {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return baseLess(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) FindPurchaseOrder(id string) (PurchaseOrder, bool) {
	p, ok := v.state.purchases[id]
	if !ok {
		return PurchaseOrder{}, false
	}
	return clonePurchaseOrder(p), true
}

func (v transactionView) ListPurchaseOrders() []PurchaseOrder {
	out := make([]PurchaseOrder, 0, len(v.state.purchases))
	for _, p := range v.state.purchases {
		out = append(out, clonePurchaseOrder(p))
	}
	sort.Slice(out, func(i, j int) bool { return baseLess(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) FindSaleBatch(id string) (SaleBatch, bool) {
	b, ok := v.state.batches[id]
	if !ok {
		return SaleBatch{}, false
	}
	return cloneSaleBatch(b), true
}

func (v transactionView) SaleEventsForBatch(batchID string) []SaleEvent {
	var out []SaleEvent
	for _, e := range v.state.events {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SoldAt.Equal(out[j].SoldAt) {
			return out[i].SoldAt.Before(out[j].SoldAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindRegisterSession(id string) (RegisterSession, bool) {
	s, ok := v.state.sessions[id]
	if !ok {
		return RegisterSession{}, false
	}
	return cloneSession(s), true
}

func (v transactionView) ListRegisterSessions() []RegisterSession {
	out := make([]RegisterSession, 0, len(v.state.sessions))
	for _, s := range v.state.sessions {
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return baseLess(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) CashTransactionsForSession(sessionID string) []CashTransaction {
	var out []CashTransaction
	for _, c := range v.state.cash {
		if c.SessionID == sessionID {
			out = append(out, cloneCashTransaction(c))
		}
	}
	return out
}

func (v transactionView) LedgerForItem(itemID string) []InventoryLogEntry {
	var out []InventoryLogEntry
	for _, e := range v.state.ledger {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out
}

func (v transactionView) ListLedger() []InventoryLogEntry {
	return append([]InventoryLogEntry(nil), v.state.ledger...)
}

func (v transactionView) CountRecordsForItem(itemID string) []CountRecord {
	var out []CountRecord
	for _, c := range v.state.counts {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out
}

func (v transactionView) ListPriceHistory() []PriceHistory {
	return append([]PriceHistory(nil), v.state.prices...)
}

func (v transactionView) ListProductCostHistory() []ProductCostHistory {
	return append([]ProductCostHistory(nil), v.state.productCosts...)
}

func baseLess(a, b domain.Base) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func cloneCashTransaction(c CashTransaction) CashTransaction {
	cp := c
	cp.Quantity = cloneDecimalPtr(c.Quantity)
	cp.UnitCost = cloneDecimalPtr(c.UnitCost)
	return cp
}

func cloneDecimalPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
