package core

import (
	"context"
	"fmt"

	"stockcore/pkg/domain"
)

const negativeStockRuleName = "negative_stock"

// NewNegativeStockRule flags items left below zero by a deduction in the
// transaction. Under NegativeStockReject the violation blocks the commit.
func NewNegativeStockRule(policy NegativeStockPolicy) domain.Rule {
	severity := domain.SeverityWarn
	if policy == NegativeStockReject {
		severity = domain.SeverityBlock
	}
	return negativeStockRule{severity: severity}
}

type negativeStockRule struct {
	severity domain.Severity
}

func (r negativeStockRule) Name() string { return negativeStockRuleName }

func (r negativeStockRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, delta := range stockDeltas(changes) {
		item, ok := view.FindItem(delta.itemID)
		if !ok {
			continue
		}
		// Receipts into already negative stock are not flagged.
		if !item.StockQuantity.IsNegative() || !item.StockQuantity.LessThan(delta.initial) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: r.severity,
			Message:  fmt.Sprintf("item %s stock would be %s %s", item.Name, item.StockQuantity.String(), item.Unit),
			Entity:   domain.EntityItem,
			EntityID: item.ID,
		})
	}
	return res, nil
}
