// Package memory provides an in-memory implementation of the stockcore
// persistence store used for tests, ephemeral environments and as the
// transactional core of the snapshotting SQL backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Item aliases domain.Item for in-memory persistence operations.
	Item = domain.Item
	// Product aliases domain.Product.
	Product = domain.Product
	// Supplier aliases domain.Supplier.
	Supplier = domain.Supplier
	// RecipeLine aliases domain.RecipeLine.
	RecipeLine = domain.RecipeLine
	// PurchaseOrder aliases domain.PurchaseOrder.
	PurchaseOrder = domain.PurchaseOrder
	// SaleBatch aliases domain.SaleBatch.
	SaleBatch = domain.SaleBatch
	// SaleEvent aliases domain.SaleEvent.
	SaleEvent = domain.SaleEvent
	// RegisterSession aliases domain.RegisterSession.
	RegisterSession = domain.RegisterSession
	// InventoryLogEntry aliases domain.InventoryLogEntry.
	InventoryLogEntry = domain.InventoryLogEntry
	// CountRecord aliases domain.CountRecord.
	CountRecord = domain.CountRecord
	// CashTransaction aliases domain.CashTransaction.
	CashTransaction = domain.CashTransaction
	// PriceHistory aliases domain.PriceHistory.
	PriceHistory = domain.PriceHistory
	// ProductCostHistory aliases domain.ProductCostHistory.
	ProductCostHistory = domain.ProductCostHistory
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook runs after rules pass and before the tenant partition is
// swapped in. Returning an error aborts the commit.
type CommitHook func(ctx context.Context, tenantID string, snapshot TenantSnapshot) error

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithCommitHook installs a hook that durable backends use to persist the
// tenant partition inside the commit.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) {
		s.hook = hook
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

type tenantState struct {
	items        map[string]Item
	products     map[string]Product
	suppliers    map[string]Supplier
	recipes      map[string]RecipeLine
	purchases    map[string]PurchaseOrder
	batches      map[string]SaleBatch
	events       map[string]SaleEvent
	sessions     map[string]RegisterSession
	ledger       []InventoryLogEntry
	counts       []CountRecord
	cash         []CashTransaction
	prices       []PriceHistory
	productCosts []ProductCostHistory
}

// TenantSnapshot captures a point-in-time clone of one tenant partition.
type TenantSnapshot struct {
	Items        map[string]Item            `json:"items"`
	Products     map[string]Product         `json:"products"`
	Suppliers    map[string]Supplier        `json:"suppliers"`
	Recipes      map[string]RecipeLine      `json:"recipes"`
	Purchases    map[string]PurchaseOrder   `json:"purchases"`
	Batches      map[string]SaleBatch       `json:"batches"`
	Events       map[string]SaleEvent       `json:"events"`
	Sessions     map[string]RegisterSession `json:"sessions"`
	Ledger       []InventoryLogEntry        `json:"ledger"`
	Counts       []CountRecord              `json:"counts"`
	Cash         []CashTransaction          `json:"cash"`
	Prices       []PriceHistory             `json:"prices"`
	ProductCosts []ProductCostHistory       `json:"product_costs"`
}

func newTenantState() tenantState {
	return tenantState{
		items:     make(map[string]Item),
		products:  make(map[string]Product),
		suppliers: make(map[string]Supplier),
		recipes:   make(map[string]RecipeLine),
		purchases: make(map[string]PurchaseOrder),
		batches:   make(map[string]SaleBatch),
		events:    make(map[string]SaleEvent),
		sessions:  make(map[string]RegisterSession),
	}
}

// clone copies every map. Append-only slices are re-sliced with cap == len
// so any append inside a transaction reallocates instead of writing into
// the committed backing array.
func (s tenantState) clone() tenantState {
	cloned := newTenantState()
	for k, v := range s.items {
		cloned.items[k] = cloneItem(v)
	}
	for k, v := range s.products {
		cloned.products[k] = v
	}
	for k, v := range s.suppliers {
		cloned.suppliers[k] = v
	}
	for k, v := range s.recipes {
		cloned.recipes[k] = v
	}
	for k, v := range s.purchases {
		cloned.purchases[k] = clonePurchaseOrder(v)
	}
	for k, v := range s.batches {
		cloned.batches[k] = cloneSaleBatch(v)
	}
	for k, v := range s.events {
		cloned.events[k] = v
	}
	for k, v := range s.sessions {
		cloned.sessions[k] = cloneSession(v)
	}
	cloned.ledger = s.ledger[:len(s.ledger):len(s.ledger)]
	cloned.counts = s.counts[:len(s.counts):len(s.counts)]
	cloned.cash = s.cash[:len(s.cash):len(s.cash)]
	cloned.prices = s.prices[:len(s.prices):len(s.prices)]
	cloned.productCosts = s.productCosts[:len(s.productCosts):len(s.productCosts)]
	return cloned
}

func snapshotFromTenantState(state tenantState) TenantSnapshot {
	c := state.clone()
	return TenantSnapshot{
		Items:        c.items,
		Products:     c.products,
		Suppliers:    c.suppliers,
		Recipes:      c.recipes,
		Purchases:    c.purchases,
		Batches:      c.batches,
		Events:       c.events,
		Sessions:     c.sessions,
		Ledger:       append([]InventoryLogEntry(nil), c.ledger...),
		Counts:       append([]CountRecord(nil), c.counts...),
		Cash:         append([]CashTransaction(nil), c.cash...),
		Prices:       append([]PriceHistory(nil), c.prices...),
		ProductCosts: append([]ProductCostHistory(nil), c.productCosts...),
	}
}

func tenantStateFromSnapshot(s TenantSnapshot) tenantState {
	state := tenantState{
		items:        s.Items,
		products:     s.Products,
		suppliers:    s.Suppliers,
		recipes:      s.Recipes,
		purchases:    s.Purchases,
		batches:      s.Batches,
		events:       s.Events,
		sessions:     s.Sessions,
		ledger:       s.Ledger,
		counts:       s.Counts,
		cash:         s.Cash,
		prices:       s.Prices,
		productCosts: s.ProductCosts,
	}
	empty := newTenantState()
	if state.items == nil {
		state.items = empty.items
	}
	if state.products == nil {
		state.products = empty.products
	}
	if state.suppliers == nil {
		state.suppliers = empty.suppliers
	}
	if state.recipes == nil {
		state.recipes = empty.recipes
	}
	if state.purchases == nil {
		state.purchases = empty.purchases
	}
	if state.batches == nil {
		state.batches = empty.batches
	}
	if state.events == nil {
		state.events = empty.events
	}
	if state.sessions == nil {
		state.sessions = empty.sessions
	}
	return state.clone()
}

func cloneItem(i Item) Item {
	cp := i
	cp.ParLevel = cloneDecimalPtr(i.ParLevel)
	cp.MinLevel = cloneDecimalPtr(i.MinLevel)
	cp.MaxLevel = cloneDecimalPtr(i.MaxLevel)
	cp.LastCountedQty = cloneDecimalPtr(i.LastCountedQty)
	cp.LastPurchaseAt = cloneTimePtr(i.LastPurchaseAt)
	cp.LastCountedAt = cloneTimePtr(i.LastCountedAt)
	return cp
}

func clonePurchaseOrder(p PurchaseOrder) PurchaseOrder {
	cp := p
	if p.Lines != nil {
		cp.Lines = append([]domain.PurchaseLine(nil), p.Lines...)
	}
	cp.ConfirmedAt = cloneTimePtr(p.ConfirmedAt)
	return cp
}

func cloneSaleBatch(b SaleBatch) SaleBatch {
	cp := b
	cp.ProcessedAt = cloneTimePtr(b.ProcessedAt)
	return cp
}

func cloneSession(s RegisterSession) RegisterSession {
	cp := s
	cp.DeclaredCash = cloneDecimalPtr(s.DeclaredCash)
	cp.DeclaredCard = cloneDecimalPtr(s.DeclaredCard)
	cp.DeclaredTransfer = cloneDecimalPtr(s.DeclaredTransfer)
	cp.ExpectedCash = cloneDecimalPtr(s.ExpectedCash)
	cp.Difference = cloneDecimalPtr(s.Difference)
	cp.ClosedAt = cloneTimePtr(s.ClosedAt)
	return cp
}

// Store provides an in-memory transactional store partitioned by tenant.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]tenantState
	engine  *RulesEngine
	nowFn   func() time.Time
	newID   func() string
	hook    CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		tenants: make(map[string]tenantState),
		engine:  engine,
		nowFn:   func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Tenants lists every tenant that has committed state, sorted.
func (s *Store) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExportTenant clones one tenant partition for external persistence.
func (s *Store) ExportTenant(tenantID string) TenantSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.tenants[tenantID]
	if !ok {
		state = newTenantState()
	}
	return snapshotFromTenantState(state)
}

// ImportTenant replaces one tenant partition with the provided snapshot.
func (s *Store) ImportTenant(tenantID string, snapshot TenantSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenantID] = tenantStateFromSnapshot(snapshot)
}

// RunInTransaction executes fn within a transactional copy of the tenant
// partition. Rules run over the recorded changes; the commit hook runs last.
// Any error leaves committed state untouched.
func (s *Store) RunInTransaction(ctx context.Context, tenantID string, fn func(tx Transaction) error) (Result, error) {
	if tenantID == "" {
		return Result{}, domain.ValidationError{Field: "tenant", Reason: "is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tenants[tenantID]
	if !ok {
		current = newTenantState()
	}
	tx := &transaction{
		store:  s,
		tenant: tenantID,
		state:  current.clone(),
		now:    s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(tenantID, &tx.state), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("commit %s: %w", tenantID, err)
	}
	if s.hook != nil {
		if err := s.hook(ctx, tenantID, snapshotFromTenantState(tx.state)); err != nil {
			return Result{}, fmt.Errorf("persist %s: %w", tenantID, err)
		}
	}

	s.tenants[tenantID] = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the tenant partition.
func (s *Store) View(_ context.Context, tenantID string, fn func(TransactionView) error) error {
	s.mu.RLock()
	state, ok := s.tenants[tenantID]
	if !ok {
		state = newTenantState()
	}
	snapshot := state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(tenantID, &snapshot))
}
