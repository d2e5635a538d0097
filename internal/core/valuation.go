package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// priceChangeThreshold is the smallest paid price change kept in history.
var priceChangeThreshold = decimal.RequireFromString("0.01")

// WeightedAverage returns the average unit cost after receiving q units at
// unit cost c into q0 units valued at c0. A negative q0 is a shortfall
// valued at c0. When the receipt leaves no positive stock the average resets
// to c.
func WeightedAverage(q0, c0, q, c decimal.Decimal) decimal.Decimal {
	newStock := q0.Add(q)
	if !newStock.IsPositive() {
		return c
	}
	return q0.Mul(c0).Add(q.Mul(c)).Div(newStock)
}

// ReceiptLine is one received quantity of a leaf item.
type ReceiptLine struct {
	ItemID   string
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

// PurchaseInput describes a supplier purchase.
type PurchaseInput struct {
	SupplierID    string
	PaymentMethod PaymentMethod
	// RegisteredBy is the employee recording the purchase. Cash purchases
	// post to this employee's open register session.
	RegisteredBy string
	Lines        []ReceiptLine
}

func (in PurchaseInput) validate() error {
	if len(in.Lines) == 0 {
		return domain.ValidationError{Field: "lines", Reason: "must not be empty"}
	}
	switch in.PaymentMethod {
	case "", domain.PaymentCash, domain.PaymentTransfer, domain.PaymentCredit:
	default:
		return domain.ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown method %q", in.PaymentMethod)}
	}
	for i, line := range in.Lines {
		if err := line.validate(fmt.Sprintf("lines[%d].", i)); err != nil {
			return err
		}
	}
	return nil
}

func (l ReceiptLine) validate(prefix string) error {
	if strings.TrimSpace(l.ItemID) == "" {
		return domain.ValidationError{Field: prefix + "item_id", Reason: "is required"}
	}
	if l.Quantity.IsNegative() {
		return domain.ValidationError{Field: prefix + "quantity", Reason: "must not be negative"}
	}
	if !l.UnitCost.IsPositive() {
		return domain.ValidationError{Field: prefix + "unit_cost", Reason: "must be positive"}
	}
	return nil
}

type receipt struct {
	reason      LedgerReason
	supplierID  string
	referenceID string
	note        string
}

// receiveStock applies one receipt to a leaf item: weighted average, stock,
// ledger entry and price history.
func receiveStock(tx Transaction, line ReceiptLine, meta receipt) (Item, error) {
	current, ok := tx.FindItem(line.ItemID)
	if !ok {
		return Item{}, domain.NotFoundError{Entity: domain.EntityItem, ID: line.ItemID}
	}
	if current.IsComposite {
		return Item{}, domain.InvariantError{Entity: domain.EntityItem, EntityID: current.ID, Reason: "composite item cost is derived from its recipe"}
	}
	now := tx.Now()
	updated, err := tx.UpdateItem(current.ID, func(it *Item) error {
		it.AverageCost = WeightedAverage(it.StockQuantity, it.AverageCost, line.Quantity, line.UnitCost)
		it.CurrentCost = line.UnitCost
		it.StockQuantity = it.StockQuantity.Add(line.Quantity)
		it.LastPurchaseAt = &now
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	if _, err := tx.AppendLedgerEntry(domain.InventoryLogEntry{
		ItemID:        current.ID,
		PreviousStock: current.StockQuantity,
		NewStock:      updated.StockQuantity,
		ChangeAmount:  line.Quantity,
		Reason:        meta.reason,
		Note:          meta.note,
		ReferenceID:   meta.referenceID,
	}); err != nil {
		return Item{}, err
	}
	if line.UnitCost.Sub(current.CurrentCost).Abs().GreaterThan(priceChangeThreshold) {
		if _, err := tx.AppendPriceHistory(domain.PriceHistory{
			ItemID:      current.ID,
			SupplierID:  meta.supplierID,
			OldCost:     current.CurrentCost,
			NewCost:     line.UnitCost,
			ReferenceID: meta.referenceID,
		}); err != nil {
			return Item{}, err
		}
	}
	return updated, nil
}

// PurchaseResult reports a confirmed purchase.
type PurchaseResult struct {
	Order       PurchaseOrder     `json:"order"`
	Items       []Item            `json:"items"`
	CashPosting *CashTransaction  `json:"cash_posting,omitempty"`
	Propagation PropagationReport `json:"propagation"`
}

func purchaseLines(in PurchaseInput) ([]PurchaseLine, decimal.Decimal) {
	lines := make([]PurchaseLine, 0, len(in.Lines))
	total := decimal.Zero
	for _, l := range in.Lines {
		lineTotal := l.Quantity.Mul(l.UnitCost)
		lines = append(lines, PurchaseLine{ItemID: l.ItemID, Quantity: l.Quantity, UnitCost: l.UnitCost, TotalCost: lineTotal})
		total = total.Add(lineTotal)
	}
	return lines, total
}

func checkPurchaseRefs(view TransactionView, in PurchaseInput) error {
	if in.SupplierID != "" {
		if _, ok := view.FindSupplier(in.SupplierID); !ok {
			return domain.NotFoundError{Entity: domain.EntitySupplier, ID: in.SupplierID}
		}
	}
	for _, l := range in.Lines {
		if _, ok := view.FindItem(l.ItemID); !ok {
			return domain.NotFoundError{Entity: domain.EntityItem, ID: l.ItemID}
		}
	}
	return nil
}

// ConfirmPurchase records a confirmed supplier purchase in one transaction:
// order, receipts, cost propagation and, for cash orders, the register
// posting.
func (s *Service) ConfirmPurchase(ctx context.Context, tenantID string, in PurchaseInput) (PurchaseResult, Result, error) {
	var out PurchaseResult
	if err := in.validate(); err != nil {
		return out, Result{}, err
	}
	res, err := s.run(ctx, "confirm_purchase", tenantID, func(tx Transaction) (string, error) {
		if err := checkPurchaseRefs(tx, in); err != nil {
			return "", err
		}
		lines, total := purchaseLines(in)
		order, err := tx.CreatePurchaseOrder(PurchaseOrder{
			SupplierID:    in.SupplierID,
			Status:        domain.PurchaseDraft,
			PaymentMethod: in.PaymentMethod,
			RegisteredBy:  in.RegisteredBy,
			TotalAmount:   total,
			Lines:         lines,
		})
		if err != nil {
			return "", err
		}
		out, err = s.confirmOrder(tx, order)
		return order.ID, err
	})
	return out, res, err
}

// CreatePurchaseOrder stores a draft order without touching stock.
func (s *Service) CreatePurchaseOrder(ctx context.Context, tenantID string, in PurchaseInput) (PurchaseOrder, Result, error) {
	var order PurchaseOrder
	if err := in.validate(); err != nil {
		return order, Result{}, err
	}
	res, err := s.run(ctx, "create_purchase_order", tenantID, func(tx Transaction) (string, error) {
		if err := checkPurchaseRefs(tx, in); err != nil {
			return "", err
		}
		lines, total := purchaseLines(in)
		var err error
		order, err = tx.CreatePurchaseOrder(PurchaseOrder{
			SupplierID:    in.SupplierID,
			Status:        domain.PurchaseDraft,
			PaymentMethod: in.PaymentMethod,
			RegisteredBy:  in.RegisteredBy,
			TotalAmount:   total,
			Lines:         lines,
		})
		return order.ID, err
	})
	return order, res, err
}

// ConfirmPurchaseOrder receives a draft order. Confirmed orders are rejected.
func (s *Service) ConfirmPurchaseOrder(ctx context.Context, tenantID, orderID string) (PurchaseResult, Result, error) {
	var out PurchaseResult
	res, err := s.run(ctx, "confirm_purchase_order", tenantID, func(tx Transaction) (string, error) {
		order, ok := tx.FindPurchaseOrder(orderID)
		if !ok {
			return orderID, domain.NotFoundError{Entity: domain.EntityPurchaseOrder, ID: orderID}
		}
		var err error
		out, err = s.confirmOrder(tx, order)
		return orderID, err
	})
	return out, res, err
}

func (s *Service) confirmOrder(tx Transaction, order PurchaseOrder) (PurchaseResult, error) {
	var out PurchaseResult
	if order.Status != domain.PurchaseDraft {
		return out, domain.InvariantError{Entity: domain.EntityPurchaseOrder, EntityID: order.ID, Reason: "already confirmed"}
	}
	sources := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		item, err := receiveStock(tx, ReceiptLine{ItemID: line.ItemID, Quantity: line.Quantity, UnitCost: line.UnitCost}, receipt{
			reason:      domain.ReasonPurchase,
			supplierID:  order.SupplierID,
			referenceID: order.ID,
		})
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, item)
		sources = append(sources, item.ID)
	}
	report, err := propagateAll(tx, sources, "purchase "+order.ID)
	if err != nil {
		return out, err
	}
	out.Propagation = report

	now := tx.Now()
	confirmed, err := tx.UpdatePurchaseOrder(order.ID, func(o *PurchaseOrder) error {
		o.Status = domain.PurchaseConfirmed
		o.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		return out, err
	}
	out.Order = confirmed

	if order.PaymentMethod == domain.PaymentCash && order.RegisteredBy != "" && order.TotalAmount.IsPositive() {
		session, ok := openSessionFor(tx, order.RegisteredBy)
		if ok {
			amount := order.TotalAmount.Neg()
			if err := s.checkTransactionCeiling(amount); err != nil {
				return out, err
			}
			posted, err := tx.AppendCashTransaction(domain.CashTransaction{
				SessionID:   session.ID,
				Type:        domain.CashPurchase,
				Amount:      amount,
				Description: "purchase order " + order.ID,
				ReferenceID: order.ID,
			})
			if err != nil {
				return out, err
			}
			out.CashPosting = &posted
		}
	}
	return out, nil
}

// RevalueItem sets the cost of a leaf item and propagates the change.
func (s *Service) RevalueItem(ctx context.Context, tenantID, itemID string, unitCost decimal.Decimal) (Item, PropagationReport, Result, error) {
	var (
		item   Item
		report PropagationReport
	)
	if !unitCost.IsPositive() {
		return item, report, Result{}, domain.ValidationError{Field: "unit_cost", Reason: "must be positive"}
	}
	res, err := s.run(ctx, "revalue_item", tenantID, func(tx Transaction) (string, error) {
		current, ok := tx.FindItem(itemID)
		if !ok {
			return itemID, domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
		}
		if current.IsComposite {
			return itemID, domain.InvariantError{Entity: domain.EntityItem, EntityID: itemID, Reason: "composite item cost is derived from its recipe"}
		}
		var err error
		item, err = tx.UpdateItem(itemID, func(it *Item) error {
			it.CurrentCost = unitCost
			it.AverageCost = unitCost
			return nil
		})
		if err != nil {
			return itemID, err
		}
		if !unitCost.Equal(current.CurrentCost) {
			if _, err := tx.AppendPriceHistory(domain.PriceHistory{ItemID: itemID, OldCost: current.CurrentCost, NewCost: unitCost}); err != nil {
				return itemID, err
			}
		}
		report, err = propagate(tx, itemID, "revaluation of "+current.Name)
		return itemID, err
	})
	return item, report, res, err
}
