package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// countThreshold is the smallest variance that adjusts stock.
var countThreshold = decimal.RequireFromString("0.001")

// CountInput is one physical count submission.
type CountInput struct {
	ItemID      string
	CountedQty  decimal.Decimal
	CounterID   string
	CounterName string
	Shift       string
	Notes       string
}

// CountResult reports a reconciled count.
type CountResult struct {
	Record   CountRecord     `json:"record"`
	Adjusted bool            `json:"adjusted"`
	NewStock decimal.Decimal `json:"new_stock"`
}

// SubmitCount records a physical count and, when the variance reaches the
// threshold, sets stock to the counted quantity.
func (s *Service) SubmitCount(ctx context.Context, tenantID string, in CountInput) (CountResult, Result, error) {
	var out CountResult
	if strings.TrimSpace(in.ItemID) == "" {
		return out, Result{}, domain.ValidationError{Field: "item_id", Reason: "is required"}
	}
	if strings.TrimSpace(in.CounterID) == "" {
		return out, Result{}, domain.ValidationError{Field: "counter_id", Reason: "is required"}
	}
	if in.CountedQty.IsNegative() {
		return out, Result{}, domain.ValidationError{Field: "counted_qty", Reason: "must not be negative"}
	}
	res, err := s.run(ctx, "submit_count", tenantID, func(tx Transaction) (string, error) {
		item, ok := tx.FindItem(in.ItemID)
		if !ok {
			return in.ItemID, domain.NotFoundError{Entity: domain.EntityItem, ID: in.ItemID}
		}
		variance := in.CountedQty.Sub(item.StockQuantity)
		unitCost := item.UnitCost()
		record, err := tx.AppendCountRecord(domain.CountRecord{
			ItemID:         item.ID,
			SystemQty:      item.StockQuantity,
			CountedQty:     in.CountedQty,
			Variance:       variance,
			UnitCostAtTime: unitCost,
			CostVariance:   variance.Abs().Mul(unitCost),
			CounterID:      in.CounterID,
			CounterName:    in.CounterName,
			Shift:          in.Shift,
			Notes:          in.Notes,
		})
		if err != nil {
			return item.ID, err
		}
		out.Record = record
		out.Adjusted = !variance.Abs().LessThan(countThreshold)

		now := tx.Now()
		counted := in.CountedQty
		updated, err := tx.UpdateItem(item.ID, func(it *Item) error {
			it.LastCountedAt = &now
			it.LastCountedQty = &counted
			if out.Adjusted {
				it.StockQuantity = counted
			}
			return nil
		})
		if err != nil {
			return item.ID, err
		}
		out.NewStock = updated.StockQuantity
		if !out.Adjusted {
			return item.ID, nil
		}
		note := "physical count"
		if in.CounterName != "" {
			note = "physical count by " + in.CounterName
		}
		_, err = tx.AppendLedgerEntry(domain.InventoryLogEntry{
			ItemID:        item.ID,
			PreviousStock: item.StockQuantity,
			NewStock:      counted,
			ChangeAmount:  variance,
			Reason:        domain.ReasonAudit,
			Note:          note,
			ReferenceID:   record.ID,
		})
		return item.ID, err
	})
	return out, res, err
}
