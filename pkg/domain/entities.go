// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by stockcore.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityItem identifies a leaf ingredient or composite production batch.
	EntityItem EntityType = "item"
	// EntityProduct identifies a sellable product.
	EntityProduct EntityType = "product"
	// EntityRecipeLine identifies a bill-of-materials edge.
	EntityRecipeLine EntityType = "recipe_line"
	// EntitySupplier identifies a supplier record.
	EntitySupplier EntityType = "supplier"
	// EntityPurchaseOrder identifies a purchase order record.
	EntityPurchaseOrder EntityType = "purchase_order"
	// EntityLedgerEntry identifies an inventory ledger entry.
	EntityLedgerEntry EntityType = "inventory_log"
	// EntityCountRecord identifies a physical count record.
	EntityCountRecord EntityType = "count_record"
	// EntitySaleBatch identifies an imported sale batch.
	EntitySaleBatch EntityType = "sale_batch"
	// EntitySaleEvent identifies a single raw sale line.
	EntitySaleEvent EntityType = "sale_event"
	// EntityRegisterSession identifies a cash register session.
	EntityRegisterSession EntityType = "register_session"
	// EntityCashTransaction identifies a signed cash register transaction.
	EntityCashTransaction EntityType = "cash_transaction"
	// EntityPriceHistory identifies a purchase price change record.
	EntityPriceHistory EntityType = "price_history"
	// EntityProductCostHistory identifies a product cost change record.
	EntityProductCostHistory EntityType = "product_cost_history"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a stock-tracked ingredient. Composite items are production batches
// made from other items through their recipe lines.
type Item struct {
	Base
	Name                  string           `json:"name"`
	Category              string           `json:"category,omitempty"`
	Unit                  string           `json:"unit"`
	CurrentCost           decimal.Decimal  `json:"current_cost"`
	AverageCost           decimal.Decimal  `json:"average_cost"`
	StockQuantity         decimal.Decimal  `json:"stock_quantity"`
	IsComposite           bool             `json:"is_composite"`
	YieldQuantity         decimal.Decimal  `json:"yield_quantity"`
	YieldUnit             string           `json:"yield_unit,omitempty"`
	BatchCost             decimal.Decimal  `json:"batch_cost"`
	StockCorrectionFactor decimal.Decimal  `json:"stock_correction_factor"`
	YieldPercentage       decimal.Decimal  `json:"yield_percentage"`
	ParLevel              *decimal.Decimal `json:"par_level,omitempty"`
	MinLevel              *decimal.Decimal `json:"min_level,omitempty"`
	MaxLevel              *decimal.Decimal `json:"max_level,omitempty"`
	LastPurchaseAt        *time.Time       `json:"last_purchase_at,omitempty"`
	LastCountedAt         *time.Time       `json:"last_counted_at,omitempty"`
	LastCountedQty        *decimal.Decimal `json:"last_counted_qty,omitempty"`
}

// UnitCost returns the cost of one stocking unit as consumed by recipes.
// Leaf items use the weighted average, falling back to the last paid price
// while no average exists yet. Composite items divide the batch cost by the
// batch yield.
func (i Item) UnitCost() decimal.Decimal {
	if i.IsComposite {
		yield := i.YieldQuantity
		if !yield.IsPositive() {
			yield = decimal.NewFromInt(1)
		}
		return i.BatchCost.Div(yield)
	}
	if !i.AverageCost.IsZero() {
		return i.AverageCost
	}
	return i.CurrentCost
}

// ParentKind distinguishes the two kinds of recipe owners.
type ParentKind string

// Recipe parents are composite items (production batches) or products.
const (
	ParentItem    ParentKind = "item"
	ParentProduct ParentKind = "product"
)

// RecipeLine is an edge from a parent to the component item it consumes.
type RecipeLine struct {
	Base
	ParentKind  ParentKind      `json:"parent_kind"`
	ParentID    string          `json:"parent_id"`
	ComponentID string          `json:"component_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

// Product is a sellable entity whose cost derives from its recipe.
type Product struct {
	Base
	SKU   string          `json:"sku,omitempty"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Cost  decimal.Decimal `json:"cost"`
}

// Supplier provides purchased items.
type Supplier struct {
	Base
	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`
	Category       string `json:"category,omitempty"`
}

// PurchaseStatus tracks whether an order has affected stock.
type PurchaseStatus string

// Purchase order states.
const (
	PurchaseDraft     PurchaseStatus = "draft"
	PurchaseConfirmed PurchaseStatus = "confirmed"
)

// PaymentMethod records how a purchase was paid.
type PaymentMethod string

// Supported payment methods. Only cash purchases touch the register.
const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCredit   PaymentMethod = "credit"
)

// PurchaseLine is a single received item on a purchase order.
type PurchaseLine struct {
	ItemID    string          `json:"item_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// PurchaseOrder groups purchase lines from one supplier.
type PurchaseOrder struct {
	Base
	SupplierID    string          `json:"supplier_id"`
	Status        PurchaseStatus  `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	RegisteredBy  string          `json:"registered_by,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []PurchaseLine  `json:"lines"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// LedgerReason classifies stock-affecting events.
type LedgerReason string

// Ledger reason codes. Waste reasons are suffixed with the waste type.
const (
	ReasonPurchase              LedgerReason = "purchase"
	ReasonProductionConsumption LedgerReason = "production_consumption"
	ReasonProductionYield       LedgerReason = "production_yield"
	ReasonOpeningStock          LedgerReason = "opening_stock"
	ReasonSale                  LedgerReason = "sale"
	ReasonAudit                 LedgerReason = "audit"
	ReasonRegisterPurchase      LedgerReason = "register_purchase"
	ReasonWastePrefix           LedgerReason = "waste_"
)

// InventoryLogEntry is an immutable stock ledger record.
type InventoryLogEntry struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	ItemID        string          `json:"item_id"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	NewStock      decimal.Decimal `json:"new_stock"`
	ChangeAmount  decimal.Decimal `json:"change_amount"`
	Reason        LedgerReason    `json:"reason"`
	Note          string          `json:"note,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CountRecord captures one physical count against system stock.
type CountRecord struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	ItemID         string          `json:"item_id"`
	SystemQty      decimal.Decimal `json:"system_qty"`
	CountedQty     decimal.Decimal `json:"counted_qty"`
	Variance       decimal.Decimal `json:"variance"`
	UnitCostAtTime decimal.Decimal `json:"unit_cost_at_time"`
	CostVariance   decimal.Decimal `json:"cost_variance"`
	CounterID      string          `json:"counter_id"`
	CounterName    string          `json:"counter_name,omitempty"`
	Shift          string          `json:"shift,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SaleBatchStatus gates consumption processing.
type SaleBatchStatus string

// Sale batch lifecycle states.
const (
	SaleBatchPending   SaleBatchStatus = "pending"
	SaleBatchCompleted SaleBatchStatus = "completed"
)

// SaleEventStatus records whether an event has been consumed.
type SaleEventStatus string

// Sale event lifecycle states.
const (
	SaleEventPending   SaleEventStatus = "pending"
	SaleEventProcessed SaleEventStatus = "processed"
)

// SaleBatch is an imported set of raw sale lines.
type SaleBatch struct {
	Base
	FileName    string          `json:"file_name,omitempty"`
	Status      SaleBatchStatus `json:"status"`
	EventCount  int             `json:"event_count"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// SaleEvent is a single raw point-of-sale line.
type SaleEvent struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	BatchID     string          `json:"batch_id"`
	SKU         string          `json:"sku,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	SoldAt      time.Time       `json:"sold_at"`
	Status      SaleEventStatus `json:"status"`
}

// SessionStatus is the register session state machine.
type SessionStatus string

// Register sessions move from open to closed exactly once.
const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// RegisterSession tracks one employee's cash drawer between open and close.
type RegisterSession struct {
	Base
	EmployeeID       string           `json:"employee_id"`
	StartingCash     decimal.Decimal  `json:"starting_cash"`
	Status           SessionStatus    `json:"status"`
	DeclaredCash     *decimal.Decimal `json:"declared_cash,omitempty"`
	DeclaredCard     *decimal.Decimal `json:"declared_card,omitempty"`
	DeclaredTransfer *decimal.Decimal `json:"declared_transfer,omitempty"`
	ExpectedCash     *decimal.Decimal `json:"expected_cash,omitempty"`
	Difference       *decimal.Decimal `json:"difference,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	OpenedAt         time.Time        `json:"opened_at"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
}

// CashTransactionType classifies register movements.
type CashTransactionType string

// Register movement types. Inflows are positive and outflows negative.
const (
	CashSale       CashTransactionType = "SALE"
	CashDeposit    CashTransactionType = "DEPOSIT"
	CashExpense    CashTransactionType = "EXPENSE"
	CashWithdrawal CashTransactionType = "WITHDRAWAL"
	CashPurchase   CashTransactionType = "PURCHASE"
)

// Inflow reports whether amounts of this type must be positive.
func (t CashTransactionType) Inflow() bool {
	return t == CashSale || t == CashDeposit
}

// Valid reports whether t is a known transaction type.
func (t CashTransactionType) Valid() bool {
	switch t {
	case CashSale, CashDeposit, CashExpense, CashWithdrawal, CashPurchase:
		return true
	}
	return false
}

// CashTransaction is an immutable signed register movement.
type CashTransaction struct {
	ID          string              `json:"id"`
	TenantID    string              `json:"tenant_id"`
	SessionID   string              `json:"session_id"`
	Type        CashTransactionType `json:"type"`
	Amount      decimal.Decimal     `json:"amount"`
	Description string              `json:"description"`
	ItemID      string              `json:"item_id,omitempty"`
	Quantity    *decimal.Decimal    `json:"quantity,omitempty"`
	UnitCost    *decimal.Decimal    `json:"unit_cost,omitempty"`
	ReferenceID string              `json:"reference_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// PriceHistory records a change in an item's last paid price.
type PriceHistory struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	ItemID      string          `json:"item_id"`
	SupplierID  string          `json:"supplier_id,omitempty"`
	OldCost     decimal.Decimal `json:"old_cost"`
	NewCost     decimal.Decimal `json:"new_cost"`
	ReferenceID string          `json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductCostHistory records a cascaded product cost change.
type ProductCostHistory struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	ProductID string          `json:"product_id"`
	OldCost   decimal.Decimal `json:"old_cost"`
	NewCost   decimal.Decimal `json:"new_cost"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported modifications captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionDelete indicates an entity was deleted.
	ActionDelete Action = "delete"
	// ActionAppend indicates an immutable record was appended.
	ActionAppend Action = "append"
)

// Violation reports a rule failure.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}
