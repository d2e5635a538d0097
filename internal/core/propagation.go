package core

import (
	"context"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// productCostThreshold is the smallest product cost change recorded in history.
var productCostThreshold = decimal.RequireFromString("0.001")

// CostChange reports one parent whose stored cost moved.
type CostChange struct {
	Kind    ParentKind      `json:"kind"`
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	OldCost decimal.Decimal `json:"old_cost"`
	NewCost decimal.Decimal `json:"new_cost"`
}

// PropagationReport lists the parents recomputed after a cost change.
type PropagationReport struct {
	Sources []string     `json:"sources"`
	Visited int          `json:"visited"`
	Updated []CostChange `json:"updated,omitempty"`
}

func (r *PropagationReport) merge(other PropagationReport) {
	r.Sources = append(r.Sources, other.Sources...)
	r.Visited += other.Visited
	r.Updated = append(r.Updated, other.Updated...)
}

// recomputeParent rewrites the stored cost of one parent from its direct
// recipe. It reports whether anything changed.
func recomputeParent(tx Transaction, kind ParentKind, parentID, reason string) (CostChange, bool, error) {
	breakdown, err := DirectCost(tx, kind, parentID)
	if err != nil {
		return CostChange{}, false, err
	}
	total := breakdown.Total
	switch kind {
	case ParentItem:
		item, _ := tx.FindItem(parentID)
		unit := total.Div(positiveOr(item.YieldQuantity, one))
		if item.BatchCost.Equal(total) && item.CurrentCost.Equal(unit) && item.AverageCost.Equal(unit) {
			return CostChange{}, false, nil
		}
		if _, err := tx.UpdateItem(parentID, func(it *Item) error {
			it.BatchCost = total
			it.CurrentCost = unit
			it.AverageCost = unit
			return nil
		}); err != nil {
			return CostChange{}, false, err
		}
		return CostChange{Kind: kind, ID: parentID, Name: item.Name, OldCost: item.BatchCost, NewCost: total}, true, nil
	default:
		product, _ := tx.FindProduct(parentID)
		if product.Cost.Equal(total) {
			return CostChange{}, false, nil
		}
		if _, err := tx.UpdateProduct(parentID, func(p *Product) error {
			p.Cost = total
			return nil
		}); err != nil {
			return CostChange{}, false, err
		}
		if total.Sub(product.Cost).Abs().GreaterThan(productCostThreshold) {
			if _, err := tx.AppendProductCostHistory(domain.ProductCostHistory{
				ProductID: parentID,
				OldCost:   product.Cost,
				NewCost:   total,
				Reason:    reason,
			}); err != nil {
				return CostChange{}, false, err
			}
		}
		return CostChange{Kind: kind, ID: parentID, Name: product.Name, OldCost: product.Cost, NewCost: total}, true, nil
	}
}

// propagate recomputes every transitive dependent of itemID in topological
// order inside tx.
func propagate(tx Transaction, itemID, reason string) (PropagationReport, error) {
	report := PropagationReport{Sources: []string{itemID}}

	// Upward walk collecting the dependent subgraph.
	nodes := make(map[string]ParentRef)
	var order []string
	via := make(map[string]string)
	queue := []string{itemID}
	expanded := map[string]bool{itemID: true}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, parent := range Dependents(tx, current) {
			if parent.Kind == ParentItem && parent.ID == itemID {
				return report, domain.CycleDetectedError{Path: cyclePath(via, itemID, current)}
			}
			key := parent.key()
			if _, ok := nodes[key]; ok {
				continue
			}
			nodes[key] = parent
			order = append(order, key)
			if parent.Kind == ParentItem && !expanded[parent.ID] {
				expanded[parent.ID] = true
				via[parent.ID] = current
				queue = append(queue, parent.ID)
			}
		}
	}
	if len(nodes) == 0 {
		return report, nil
	}

	// Kahn ordering: a parent waits for every component inside the subgraph.
	indegree := make(map[string]int, len(nodes))
	for _, key := range order {
		parent := nodes[key]
		for _, line := range tx.RecipeLinesForParent(parent.Kind, parent.ID) {
			if _, ok := nodes[ParentRef{Kind: ParentItem, ID: line.ComponentID}.key()]; ok {
				indegree[key]++
			}
		}
	}
	var ready []string
	for _, key := range order {
		if indegree[key] == 0 {
			ready = append(ready, key)
		}
	}
	processed := 0
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		parent := nodes[key]
		processed++
		change, changed, err := recomputeParent(tx, parent.Kind, parent.ID, reason)
		if err != nil {
			return report, err
		}
		if changed {
			report.Updated = append(report.Updated, change)
		}
		if parent.Kind != ParentItem {
			continue
		}
		for _, line := range tx.RecipeLinesForComponent(parent.ID) {
			next := ParentRef{Kind: line.ParentKind, ID: line.ParentID}.key()
			if _, ok := nodes[next]; !ok {
				continue
			}
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	report.Visited = processed
	if processed < len(nodes) {
		var stuck []string
		for _, key := range order {
			if indegree[key] > 0 {
				stuck = append(stuck, nodes[key].ID)
			}
		}
		return report, domain.CycleDetectedError{Path: stuck}
	}
	return report, nil
}

// cyclePath rebuilds source -> ... -> last -> source from the upward walk.
func cyclePath(via map[string]string, source, last string) []string {
	path := []string{source}
	for id := last; id != source; id = via[id] {
		path = append(path, id)
	}
	// path is source, last, ..., first dependent; reverse the tail.
	for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return append(path, source)
}

// propagateAll runs propagate for each distinct source in order.
func propagateAll(tx Transaction, itemIDs []string, reason string) (PropagationReport, error) {
	var report PropagationReport
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		r, err := propagate(tx, id, reason)
		if err != nil {
			return report, err
		}
		report.merge(r)
	}
	return report, nil
}

// Propagate recomputes every dependent of itemID from the current stored
// costs.
func (s *Service) Propagate(ctx context.Context, tenantID, itemID string) (PropagationReport, Result, error) {
	var report PropagationReport
	res, err := s.run(ctx, "propagate", tenantID, func(tx Transaction) (string, error) {
		if _, ok := tx.FindItem(itemID); !ok {
			return itemID, domain.NotFoundError{Entity: domain.EntityItem, ID: itemID}
		}
		var err error
		report, err = propagate(tx, itemID, "manual propagation")
		return itemID, err
	})
	return report, res, err
}

// RecomputeAll recomputes every recipe parent of the tenant in global
// topological order.
func (s *Service) RecomputeAll(ctx context.Context, tenantID string) (PropagationReport, Result, error) {
	var report PropagationReport
	res, err := s.run(ctx, "recompute_all", tenantID, func(tx Transaction) (string, error) {
		order, err := topologicalParents(tx)
		if err != nil {
			return "", err
		}
		for _, parent := range order {
			change, changed, err := recomputeParent(tx, parent.Kind, parent.ID, "full recompute")
			if err != nil {
				return "", err
			}
			report.Visited++
			if changed {
				report.Updated = append(report.Updated, change)
			}
		}
		return "", nil
	})
	return report, res, err
}

// topologicalParents orders every recipe parent so composite components come
// before their consumers.
func topologicalParents(view TransactionView) ([]ParentRef, error) {
	nodes := make(map[string]ParentRef)
	var keys []string
	for _, line := range view.ListRecipeLines() {
		ref := ParentRef{Kind: line.ParentKind, ID: line.ParentID}
		if _, ok := nodes[ref.key()]; !ok {
			nodes[ref.key()] = ref
			keys = append(keys, ref.key())
		}
	}
	indegree := make(map[string]int, len(nodes))
	for _, key := range keys {
		ref := nodes[key]
		for _, line := range view.RecipeLinesForParent(ref.Kind, ref.ID) {
			if _, ok := nodes[ParentRef{Kind: ParentItem, ID: line.ComponentID}.key()]; ok {
				indegree[key]++
			}
		}
	}
	var ready, out []string
	for _, key := range keys {
		if indegree[key] == 0 {
			ready = append(ready, key)
		}
	}
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		out = append(out, key)
		ref := nodes[key]
		if ref.Kind != ParentItem {
			continue
		}
		for _, line := range view.RecipeLinesForComponent(ref.ID) {
			next := ParentRef{Kind: line.ParentKind, ID: line.ParentID}.key()
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	if len(out) < len(keys) {
		var stuck []string
		for _, key := range keys {
			if indegree[key] > 0 {
				stuck = append(stuck, nodes[key].ID)
			}
		}
		return nil, domain.CycleDetectedError{Path: stuck}
	}
	refs := make([]ParentRef, len(out))
	for i, key := range out {
		refs[i] = nodes[key]
	}
	return refs, nil
}
