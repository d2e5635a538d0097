package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to one tenant's partition.
type TransactionView interface {
	TenantID() string
	FindItem(id string) (Item, bool)
	ListItems() []Item
	FindProduct(id string) (Product, bool)
	ListProducts() []Product
	FindSupplier(id string) (Supplier, bool)
	ListSuppliers() []Supplier
	RecipeLinesForParent(kind ParentKind, parentID string) []RecipeLine
	RecipeLinesForComponent(componentID string) []RecipeLine
	ListRecipeLines() []RecipeLine
	FindPurchaseOrder(id string) (PurchaseOrder, bool)
	ListPurchaseOrders() []PurchaseOrder
	FindSaleBatch(id string) (SaleBatch, bool)
	SaleEventsForBatch(batchID string) []SaleEvent
	FindRegisterSession(id string) (RegisterSession, bool)
	ListRegisterSessions() []RegisterSession
	CashTransactionsForSession(sessionID string) []CashTransaction
	LedgerForItem(itemID string) []InventoryLogEntry
	ListLedger() []InventoryLogEntry
	CountRecordsForItem(itemID string) []CountRecord
	ListPriceHistory() []PriceHistory
	ListProductCostHistory() []ProductCostHistory
}

// Transaction is the mutable unit of work scoped to one tenant. Append-only
// records expose no update or delete methods.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	Now() time.Time

	CreateSupplier(Supplier) (Supplier, error)
	CreateItem(Item) (Item, error)
	UpdateItem(id string, mutator func(*Item) error) (Item, error)
	CreateProduct(Product) (Product, error)
	UpdateProduct(id string, mutator func(*Product) error) (Product, error)
	ReplaceRecipeLines(kind ParentKind, parentID string, lines []RecipeLine) ([]RecipeLine, error)

	CreatePurchaseOrder(PurchaseOrder) (PurchaseOrder, error)
	UpdatePurchaseOrder(id string, mutator func(*PurchaseOrder) error) (PurchaseOrder, error)

	AppendLedgerEntry(InventoryLogEntry) (InventoryLogEntry, error)
	AppendCountRecord(CountRecord) (CountRecord, error)
	AppendPriceHistory(PriceHistory) (PriceHistory, error)
	AppendProductCostHistory(ProductCostHistory) (ProductCostHistory, error)

	CreateSaleBatch(SaleBatch, []SaleEvent) (SaleBatch, []SaleEvent, error)
	UpdateSaleBatch(id string, mutator func(*SaleBatch) error) (SaleBatch, error)
	MarkSaleEventsProcessed(batchID string) (int, error)

	CreateRegisterSession(RegisterSession) (RegisterSession, error)
	UpdateRegisterSession(id string, mutator func(*RegisterSession) error) (RegisterSession, error)
	AppendCashTransaction(CashTransaction) (CashTransaction, error)
}

// PersistentStore is the abstraction over durable backends injected into the
// engine. Every call is scoped to exactly one tenant.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, tenantID string, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, tenantID string, fn func(TransactionView) error) error
	Tenants() []string
}
