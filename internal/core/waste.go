package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// WasteInput reports spoiled or discarded stock.
type WasteInput struct {
	ItemID string
	// WasteType becomes the ledger reason suffix, e.g. "spoilage".
	WasteType string
	Quantity  decimal.Decimal
	Note      string
}

// WasteResult reports the stock and cost effect of a waste report.
type WasteResult struct {
	Movement   StockMovement   `json:"movement"`
	Reason     LedgerReason    `json:"reason"`
	CostImpact decimal.Decimal `json:"cost_impact"`
}

// ReportWaste deducts wasted stock with a waste_<type> ledger reason.
func (s *Service) ReportWaste(ctx context.Context, tenantID string, in WasteInput) (WasteResult, Result, error) {
	var out WasteResult
	wasteType := strings.ToLower(strings.Join(strings.Fields(in.WasteType), "_"))
	if wasteType == "" {
		return out, Result{}, domain.ValidationError{Field: "waste_type", Reason: "is required"}
	}
	if !in.Quantity.IsPositive() {
		return out, Result{}, domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	res, err := s.run(ctx, "report_waste", tenantID, func(tx Transaction) (string, error) {
		item, ok := tx.FindItem(in.ItemID)
		if !ok {
			return in.ItemID, domain.NotFoundError{Entity: domain.EntityItem, ID: in.ItemID}
		}
		out.Reason = domain.ReasonWastePrefix + LedgerReason(wasteType)
		moved, err := adjustStock(tx, item.ID, in.Quantity.Neg(), out.Reason, "", in.Note)
		if err != nil {
			return item.ID, err
		}
		out.Movement = moved
		out.CostImpact = in.Quantity.Mul(item.UnitCost())
		return item.ID, nil
	})
	return out, res, err
}
