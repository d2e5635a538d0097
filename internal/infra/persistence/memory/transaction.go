package memory

import (
	"fmt"
	"time"

	"stockcore/pkg/domain"
)

type transaction struct {
	store   *Store
	tenant  string
	state   tenantState
	changes []Change
	now     time.Time
}

// Compile-time check that the transaction satisfies the domain contract.
var _ domain.Transaction = (*transaction)(nil)

func (tx *transaction) view() transactionView {
	return transactionView{tenant: tx.tenant, state: &tx.state}
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	b.TenantID = tx.tenant
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

func (tx *transaction) Snapshot() TransactionView {
	cloned := tx.state.clone()
	return newTransactionView(tx.tenant, &cloned)
}

func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) TenantID() string { return tx.tenant }

func (tx *transaction) FindItem(id string) (Item, bool) { return tx.view().FindItem(id) }

func (tx *transaction) ListItems() []Item { return tx.view().ListItems() }

func (tx *transaction) FindProduct(id string) (Product, bool) { return tx.view().FindProduct(id) }

func (tx *transaction) ListProducts() []Product { return tx.view().ListProducts() }

func (tx *transaction) FindSupplier(id string) (Supplier, bool) { return tx.view().FindSupplier(id) }

func (tx *transaction) ListSuppliers() []Supplier { return tx.view().ListSuppliers() }

func (tx *transaction) RecipeLinesForParent(kind domain.ParentKind, parentID string) []RecipeLine {
	return tx.view().RecipeLinesForParent(kind, parentID)
}

func (tx *transaction) RecipeLinesForComponent(componentID string) []RecipeLine {
	return tx.view().RecipeLinesForComponent(componentID)
}

func (tx *transaction) ListRecipeLines() []RecipeLine { return tx.view().ListRecipeLines() }

func (tx *transaction) FindPurchaseOrder(id string) (PurchaseOrder, bool) {
	return tx.view().FindPurchaseOrder(id)
}

func (tx *transaction) ListPurchaseOrders() []PurchaseOrder { return tx.view().ListPurchaseOrders() }

func (tx *transaction) FindSaleBatch(id string) (SaleBatch, bool) { return tx.view().FindSaleBatch(id) }

func (tx *transaction) SaleEventsForBatch(batchID string) []SaleEvent {
	return tx.view().SaleEventsForBatch(batchID)
}

func (tx *transaction) FindRegisterSession(id string) (RegisterSession, bool) {
	return tx.view().FindRegisterSession(id)
}

func (tx *transaction) ListRegisterSessions() []RegisterSession {
	return tx.view().ListRegisterSessions()
}

func (tx *transaction) CashTransactionsForSession(sessionID string) []CashTransaction {
	return tx.view().CashTransactionsForSession(sessionID)
}

func (tx *transaction) LedgerForItem(itemID string) []InventoryLogEntry {
	return tx.view().LedgerForItem(itemID)
}

func (tx *transaction) ListLedger() []InventoryLogEntry { return tx.view().ListLedger() }

func (tx *transaction) CountRecordsForItem(itemID string) []CountRecord {
	return tx.view().CountRecordsForItem(itemID)
}

func (tx *transaction) ListPriceHistory() []PriceHistory { return tx.view().ListPriceHistory() }

func (tx *transaction) ListProductCostHistory() []ProductCostHistory {
	return tx.view().ListProductCostHistory()
}

func (tx *transaction) CreateSupplier(s Supplier) (Supplier, error) {
	tx.stamp(&s.Base)
	if _, exists := tx.state.suppliers[s.ID]; exists {
		return Supplier{}, fmt.Errorf("supplier %q already exists", s.ID)
	}
	tx.state.suppliers[s.ID] = s
	tx.recordChange(Change{Entity: domain.EntitySupplier, Action: domain.ActionCreate, After: s})
	return s, nil
}

func (tx *transaction) CreateItem(item Item) (Item, error) {
	tx.stamp(&item.Base)
	if _, exists := tx.state.items[item.ID]; exists {
		return Item{}, fmt.Errorf("item %q already exists", item.ID)
	}
	tx.state.items[item.ID] = cloneItem(item)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionCreate, After: cloneItem(item)})
	return cloneItem(item), nil
}

func (tx *transaction) UpdateItem(id string, mutator func(*Item) error) (Item, error) {
	current, ok := tx.state.items[id]
	if !ok {
		return Item{}, domain.NotFoundError{Entity: domain.EntityItem, ID: id}
	}
	before := cloneItem(current)
	next := cloneItem(current)
	if err := mutator(&next); err != nil {
		return Item{}, err
	}
	next.ID = before.ID
	next.TenantID = before.TenantID
	next.CreatedAt = before.CreatedAt
	next.UpdatedAt = tx.now
	tx.state.items[id] = cloneItem(next)
	tx.recordChange(Change{Entity: domain.EntityItem, Action: domain.ActionUpdate, Before: before, After: cloneItem(next)})
	return next, nil
}

func (tx *transaction) CreateProduct(p Product) (Product, error) {
	tx.stamp(&p.Base)
	if _, exists := tx.state.products[p.ID]; exists {
		return Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	tx.state.products[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: p})
	return p, nil
}

func (tx *transaction) UpdateProduct(id string, mutator func(*Product) error) (Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return Product{}, domain.NotFoundError{Entity: domain.EntityProduct, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Product{}, err
	}
	current.Base = domain.Base{ID: before.ID, TenantID: before.TenantID, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.products[id] = current
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// ReplaceRecipeLines syncs the parent's lines to the given set keyed by
// component: matching lines are updated in place, new components are added
// and components no longer listed are removed.
func (tx *transaction) ReplaceRecipeLines(kind domain.ParentKind, parentID string, lines []RecipeLine) ([]RecipeLine, error) {
	existing := make(map[string]RecipeLine)
	for _, l := range tx.view().RecipeLinesForParent(kind, parentID) {
		existing[l.ComponentID] = l
	}
	seen := make(map[string]struct{}, len(lines))
	out := make([]RecipeLine, 0, len(lines))
	for _, line := range lines {
		if _, dup := seen[line.ComponentID]; dup {
			return nil, domain.ValidationError{Field: "recipe", Reason: fmt.Sprintf("component %s listed twice", line.ComponentID)}
		}
		seen[line.ComponentID] = struct{}{}
		if prior, ok := existing[line.ComponentID]; ok {
			next := prior
			next.Quantity = line.Quantity
			next.Unit = line.Unit
			if !next.Quantity.Equal(prior.Quantity) || next.Unit != prior.Unit {
				next.UpdatedAt = tx.now
				tx.state.recipes[next.ID] = next
				tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionUpdate, Before: prior, After: next})
			}
			out = append(out, next)
			continue
		}
		created := RecipeLine{
			ParentKind:  kind,
			ParentID:    parentID,
			ComponentID: line.ComponentID,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
		}
		tx.stamp(&created.Base)
		tx.state.recipes[created.ID] = created
		tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionCreate, After: created})
		out = append(out, created)
	}
	for component, prior := range existing {
		if _, keep := seen[component]; keep {
			continue
		}
		delete(tx.state.recipes, prior.ID)
		tx.recordChange(Change{Entity: domain.EntityRecipeLine, Action: domain.ActionDelete, Before: prior})
	}
	return out, nil
}

func (tx *transaction) CreatePurchaseOrder(order PurchaseOrder) (PurchaseOrder, error) {
	tx.stamp(&order.Base)
	if _, exists := tx.state.purchases[order.ID]; exists {
		return PurchaseOrder{}, fmt.Errorf("purchase order %q already exists", order.ID)
	}
	tx.state.purchases[order.ID] = clonePurchaseOrder(order)
	tx.recordChange(Change{Entity: domain.EntityPurchaseOrder, Action: domain.ActionCreate, After: clonePurchaseOrder(order)})
	return order, nil
}

func (tx *transaction) UpdatePurchaseOrder(id string, mutator func(*PurchaseOrder) error) (PurchaseOrder, error) {
	current, ok := tx.state.purchases[id]
	if !ok {
		return PurchaseOrder{}, domain.NotFoundError{Entity: domain.EntityPurchaseOrder, ID: id}
	}
	before := clonePurchaseOrder(current)
	next := clonePurchaseOrder(current)
	if err := mutator(&next); err != nil {
		return PurchaseOrder{}, err
	}
	next.Base = domain.Base{ID: before.ID, TenantID: before.TenantID, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.purchases[id] = clonePurchaseOrder(next)
	tx.recordChange(Change{Entity: domain.EntityPurchaseOrder, Action: domain.ActionUpdate, Before: before, After: clonePurchaseOrder(next)})
	return next, nil
}

func (tx *transaction) AppendLedgerEntry(entry InventoryLogEntry) (InventoryLogEntry, error) {
	if entry.ItemID == "" {
		return InventoryLogEntry{}, domain.ValidationError{Field: "ledger.item_id", Reason: "is required"}
	}
	if entry.ID == "" {
		entry.ID = tx.store.newID()
	}
	entry.TenantID = tx.tenant
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = tx.now
	}
	tx.state.ledger = append(tx.state.ledger, entry)
	tx.recordChange(Change{Entity: domain.EntityLedgerEntry, Action: domain.ActionAppend, After: entry})
	return entry, nil
}

func (tx *transaction) AppendCountRecord(record CountRecord) (CountRecord, error) {
	if record.ID == "" {
		record.ID = tx.store.newID()
	}
	record.TenantID = tx.tenant
	if record.CreatedAt.IsZero() {
		record.CreatedAt = tx.now
	}
	tx.state.counts = append(tx.state.counts, record)
	tx.recordChange(Change{Entity: domain.EntityCountRecord, Action: domain.ActionAppend, After: record})
	return record, nil
}

func (tx *transaction) AppendPriceHistory(entry PriceHistory) (PriceHistory, error) {
	if entry.ID == "" {
		entry.ID = tx.store.newID()
	}
	entry.TenantID = tx.tenant
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = tx.now
	}
	tx.state.prices = append(tx.state.prices, entry)
	tx.recordChange(Change{Entity: domain.EntityPriceHistory, Action: domain.ActionAppend, After: entry})
	return entry, nil
}

func (tx *transaction) AppendProductCostHistory(entry ProductCostHistory) (ProductCostHistory, error) {
	if entry.ID == "" {
		entry.ID = tx.store.newID()
	}
	entry.TenantID = tx.tenant
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = tx.now
	}
	tx.state.productCosts = append(tx.state.productCosts, entry)
	tx.recordChange(Change{Entity: domain.EntityProductCostHistory, Action: domain.ActionAppend, After: entry})
	return entry, nil
}

func (tx *transaction) CreateSaleBatch(batch SaleBatch, events []SaleEvent) (SaleBatch, []SaleEvent, error) {
	tx.stamp(&batch.Base)
	if _, exists := tx.state.batches[batch.ID]; exists {
		return SaleBatch{}, nil, fmt.Errorf("sale batch %q already exists", batch.ID)
	}
	batch.Status = domain.SaleBatchPending
	batch.EventCount = len(events)
	batch.ProcessedAt = nil
	tx.state.batches[batch.ID] = batch
	tx.recordChange(Change{Entity: domain.EntitySaleBatch, Action: domain.ActionCreate, After: batch})

	stored := make([]SaleEvent, 0, len(events))
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = tx.store.newID()
		}
		ev.TenantID = tx.tenant
		ev.BatchID = batch.ID
		ev.Status = domain.SaleEventPending
		if ev.SoldAt.IsZero() {
			ev.SoldAt = tx.now
		}
		tx.state.events[ev.ID] = ev
		tx.recordChange(Change{Entity: domain.EntitySaleEvent, Action: domain.ActionCreate, After: ev})
		stored = append(stored, ev)
	}
	return batch, stored, nil
}

func (tx *transaction) UpdateSaleBatch(id string, mutator func(*SaleBatch) error) (SaleBatch, error) {
	current, ok := tx.state.batches[id]
	if !ok {
		return SaleBatch{}, domain.NotFoundError{Entity: domain.EntitySaleBatch, ID: id}
	}
	before := cloneSaleBatch(current)
	next := cloneSaleBatch(current)
	if err := mutator(&next); err != nil {
		return SaleBatch{}, err
	}
	next.Base = domain.Base{ID: before.ID, TenantID: before.TenantID, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.batches[id] = next
	tx.recordChange(Change{Entity: domain.EntitySaleBatch, Action: domain.ActionUpdate, Before: before, After: cloneSaleBatch(next)})
	return next, nil
}

// MarkSaleEventsProcessed flips every pending event of the batch to processed
// and returns how many changed.
func (tx *transaction) MarkSaleEventsProcessed(batchID string) (int, error) {
	if _, ok := tx.state.batches[batchID]; !ok {
		return 0, domain.NotFoundError{Entity: domain.EntitySaleBatch, ID: batchID}
	}
	changed := 0
	for id, ev := range tx.state.events {
		if ev.BatchID != batchID || ev.Status != domain.SaleEventPending {
			continue
		}
		before := ev
		ev.Status = domain.SaleEventProcessed
		tx.state.events[id] = ev
		tx.recordChange(Change{Entity: domain.EntitySaleEvent, Action: domain.ActionUpdate, Before: before, After: ev})
		changed++
	}
	return changed, nil
}

func (tx *transaction) CreateRegisterSession(session RegisterSession) (RegisterSession, error) {
	tx.stamp(&session.Base)
	if _, exists := tx.state.sessions[session.ID]; exists {
		return RegisterSession{}, fmt.Errorf("register session %q already exists", session.ID)
	}
	if session.OpenedAt.IsZero() {
		session.OpenedAt = tx.now
	}
	tx.state.sessions[session.ID] = cloneSession(session)
	tx.recordChange(Change{Entity: domain.EntityRegisterSession, Action: domain.ActionCreate, After: cloneSession(session)})
	return session, nil
}

func (tx *transaction) UpdateRegisterSession(id string, mutator func(*RegisterSession) error) (RegisterSession, error) {
	current, ok := tx.state.sessions[id]
	if !ok {
		return RegisterSession{}, domain.NotFoundError{Entity: domain.EntityRegisterSession, ID: id}
	}
	before := cloneSession(current)
	next := cloneSession(current)
	if err := mutator(&next); err != nil {
		return RegisterSession{}, err
	}
	next.Base = domain.Base{ID: before.ID, TenantID: before.TenantID, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.sessions[id] = cloneSession(next)
	tx.recordChange(Change{Entity: domain.EntityRegisterSession, Action: domain.ActionUpdate, Before: before, After: cloneSession(next)})
	return next, nil
}

func (tx *transaction) AppendCashTransaction(entry CashTransaction) (CashTransaction, error) {
	if _, ok := tx.state.sessions[entry.SessionID]; !ok {
		return CashTransaction{}, domain.NotFoundError{Entity: domain.EntityRegisterSession, ID: entry.SessionID}
	}
	if entry.ID == "" {
		entry.ID = tx.store.newID()
	}
	entry.TenantID = tx.tenant
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = tx.now
	}
	tx.state.cash = append(tx.state.cash, cloneCashTransaction(entry))
	tx.recordChange(Change{Entity: domain.EntityCashTransaction, Action: domain.ActionAppend, After: cloneCashTransaction(entry)})
	return entry, nil
}
