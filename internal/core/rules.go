package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// NegativeStockPolicy decides whether a deduction may drive stock below zero.
type NegativeStockPolicy string

// Supported negative stock policies.
const (
	// NegativeStockAllow commits and reports a warning.
	NegativeStockAllow NegativeStockPolicy = "allow"
	// NegativeStockReject blocks the transaction.
	NegativeStockReject NegativeStockPolicy = "reject"
)

// ParseNegativeStockPolicy maps a configuration value to a policy. The empty
// string selects NegativeStockAllow.
func ParseNegativeStockPolicy(value string) (NegativeStockPolicy, error) {
	switch NegativeStockPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", NegativeStockAllow:
		return NegativeStockAllow, nil
	case NegativeStockReject:
		return NegativeStockReject, nil
	default:
		return "", fmt.Errorf("unknown negative stock policy %q", value)
	}
}

// NewDefaultRulesEngine builds a rules engine with the built-in rule set.
func NewDefaultRulesEngine(policy NegativeStockPolicy) *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewNegativeStockRule(policy))
	engine.Register(NewLedgerCoverageRule())
	return engine
}

// stockDelta tracks one item whose stock moved within a transaction.
type stockDelta struct {
	itemID  string
	initial decimal.Decimal
}

// stockDeltas returns the items touched by changes with their stock before
// the transaction, in first-touched order. Created items start at zero.
func stockDeltas(changes []Change) []stockDelta {
	seen := make(map[string]struct{})
	var out []stockDelta
	for _, change := range changes {
		if change.Entity != domain.EntityItem {
			continue
		}
		var (
			id      string
			initial decimal.Decimal
		)
		switch change.Action {
		case domain.ActionCreate:
			item, ok := change.After.(domain.Item)
			if !ok {
				continue
			}
			id = item.ID
		case domain.ActionUpdate:
			item, ok := change.Before.(domain.Item)
			if !ok {
				continue
			}
			id, initial = item.ID, item.StockQuantity
		default:
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, stockDelta{itemID: id, initial: initial})
	}
	return out
}
