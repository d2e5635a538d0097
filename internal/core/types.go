// Package core implements the stockcore engine: weighted average valuation,
// recipe cost resolution and propagation, production, sales consumption,
// count reconciliation and the register ledger. Every operation runs as one
// tenant-scoped transaction against a domain.PersistentStore.
package core

import "stockcore/pkg/domain"

type (
	Item                = domain.Item
	Product             = domain.Product
	Supplier            = domain.Supplier
	RecipeLine          = domain.RecipeLine
	ParentKind          = domain.ParentKind
	PurchaseOrder       = domain.PurchaseOrder
	PurchaseLine        = domain.PurchaseLine
	PaymentMethod       = domain.PaymentMethod
	InventoryLogEntry   = domain.InventoryLogEntry
	LedgerReason        = domain.LedgerReason
	CountRecord         = domain.CountRecord
	SaleBatch           = domain.SaleBatch
	SaleEvent           = domain.SaleEvent
	RegisterSession     = domain.RegisterSession
	CashTransaction     = domain.CashTransaction
	CashTransactionType = domain.CashTransactionType
	PriceHistory        = domain.PriceHistory
	ProductCostHistory  = domain.ProductCostHistory

	EntityType  = domain.EntityType
	Action      = domain.Action
	Change      = domain.Change
	Result      = domain.Result
	Violation   = domain.Violation
	Severity    = domain.Severity
	Rule        = domain.Rule
	RulesEngine = domain.RulesEngine

	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// Recipe parent kinds re-exported for callers.
const (
	ParentItem    = domain.ParentItem
	ParentProduct = domain.ParentProduct
)

// NewRulesEngine returns an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
