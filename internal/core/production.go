package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// StockMovement reports one item's stock change.
type StockMovement struct {
	ItemID        string          `json:"item_id"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	NewStock      decimal.Decimal `json:"new_stock"`
}

// adjustStock moves an item's stock by delta and appends the ledger entry.
func adjustStock(tx Transaction, itemID string, delta decimal.Decimal, reason LedgerReason, referenceID, note string) (StockMovement, error) {
	current, ok := tx.FindItem(itemID)
	if !ok {
		return StockMovement{}, domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
	}
	updated, err := tx.UpdateItem(itemID, func(it *Item) error {
		it.StockQuantity = it.StockQuantity.Add(delta)
		return nil
	})
	if err != nil {
		return StockMovement{}, err
	}
	if _, err := tx.AppendLedgerEntry(domain.InventoryLogEntry{
		ItemID:        itemID,
		PreviousStock: current.StockQuantity,
		NewStock:      updated.StockQuantity,
		ChangeAmount:  delta,
		Reason:        reason,
		Note:          note,
		ReferenceID:   referenceID,
	}); err != nil {
		return StockMovement{}, err
	}
	return StockMovement{
		ItemID:        itemID,
		Name:          current.Name,
		Quantity:      delta,
		PreviousStock: current.StockQuantity,
		NewStock:      updated.StockQuantity,
	}, nil
}

// ProductionInput requests a production run of a composite batch item.
type ProductionInput struct {
	BatchItemID string
	Quantity    decimal.Decimal
	// Unit must match the batch yield unit when set.
	Unit string
	Note string
}

// ProductionResult reports a completed production run.
type ProductionResult struct {
	RunID       string            `json:"run_id"`
	Batch       Item              `json:"batch"`
	Scale       decimal.Decimal   `json:"scale"`
	Consumed    []StockMovement   `json:"consumed"`
	Produced    StockMovement     `json:"produced"`
	Propagation PropagationReport `json:"propagation"`
}

// ExecuteProduction consumes the scaled recipe of a batch item and adds the
// produced quantity to its stock.
func (s *Service) ExecuteProduction(ctx context.Context, tenantID string, in ProductionInput) (ProductionResult, Result, error) {
	var out ProductionResult
	if !in.Quantity.IsPositive() {
		return out, Result{}, domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	res, err := s.run(ctx, "execute_production", tenantID, func(tx Transaction) (string, error) {
		batch, ok := tx.FindItem(in.BatchItemID)
		if !ok {
			return in.BatchItemID, domain.NotFoundError{Entity: domain.EntityItem, ID: in.BatchItemID}
		}
		lines := tx.RecipeLinesForParent(ParentItem, batch.ID)
		if !batch.IsComposite || len(lines) == 0 {
			return batch.ID, domain.ValidationError{Field: "batch_item_id", Reason: fmt.Sprintf("%s has no recipe to produce", batch.Name)}
		}
		if in.Unit != "" && batch.YieldUnit != "" && !strings.EqualFold(in.Unit, batch.YieldUnit) {
			return batch.ID, domain.ValidationError{Field: "unit", Reason: fmt.Sprintf("must be %s", batch.YieldUnit)}
		}
		scale := in.Quantity.Div(positiveOr(batch.YieldQuantity, one))
		runID := uuid.NewString()
		note := in.Note
		if note == "" {
			note = "production of " + batch.Name
		}
		out = ProductionResult{RunID: runID, Scale: scale}
		for _, line := range lines {
			moved, err := adjustStock(tx, line.ComponentID, line.Quantity.Mul(scale).Neg(), domain.ReasonProductionConsumption, runID, note)
			if err != nil {
				return batch.ID, err
			}
			out.Consumed = append(out.Consumed, moved)
		}
		produced, err := adjustStock(tx, batch.ID, in.Quantity, domain.ReasonProductionYield, runID, note)
		if err != nil {
			return batch.ID, err
		}
		out.Produced = produced
		if _, _, err := recomputeParent(tx, ParentItem, batch.ID, "production "+runID); err != nil {
			return batch.ID, err
		}
		if out.Propagation, err = propagate(tx, batch.ID, "production "+runID); err != nil {
			return batch.ID, err
		}
		out.Batch, _ = tx.FindItem(batch.ID)
		return batch.ID, nil
	})
	return out, res, err
}
