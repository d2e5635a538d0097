package core

import (
	"context"
	"fmt"

	"stockcore/pkg/domain"
)

const ledgerCoverageRuleName = "ledger_coverage"

// NewLedgerCoverageRule blocks any transaction that moves an item's stock
// without appending a ledger entry ending at the final stock.
func NewLedgerCoverageRule() domain.Rule {
	return ledgerCoverageRule{}
}

type ledgerCoverageRule struct{}

func (ledgerCoverageRule) Name() string { return ledgerCoverageRuleName }

func (r ledgerCoverageRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	last := make(map[string]domain.InventoryLogEntry)
	for _, change := range changes {
		if change.Entity != domain.EntityLedgerEntry || change.Action != domain.ActionAppend {
			continue
		}
		if entry, ok := change.After.(domain.InventoryLogEntry); ok {
			last[entry.ItemID] = entry
		}
	}
	res := domain.Result{}
	for _, delta := range stockDeltas(changes) {
		item, ok := view.FindItem(delta.itemID)
		if !ok || item.StockQuantity.Equal(delta.initial) {
			continue
		}
		entry, ok := last[item.ID]
		if ok && entry.NewStock.Equal(item.StockQuantity) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("stock of %s moved from %s to %s without a matching ledger entry", item.Name, delta.initial.String(), item.StockQuantity.String()),
			Entity:   domain.EntityItem,
			EntityID: item.ID,
		})
	}
	return res, nil
}
