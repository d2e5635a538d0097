package core

import (
	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

var one = decimal.NewFromInt(1)

// LineCost is the priced contribution of one recipe line.
type LineCost struct {
	LineID           string          `json:"line_id"`
	ComponentID      string          `json:"component_id"`
	ComponentName    string          `json:"component_name"`
	Composite        bool            `json:"composite"`
	Quantity         decimal.Decimal `json:"quantity"`
	Unit             string          `json:"unit"`
	CorrectionFactor decimal.Decimal `json:"correction_factor"`
	YieldPercentage  decimal.Decimal `json:"yield_percentage"`
	GrossQuantity    decimal.Decimal `json:"gross_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Cost             decimal.Decimal `json:"cost"`
}

// CostBreakdown is the resolved cost of a recipe parent.
type CostBreakdown struct {
	ParentKind ParentKind      `json:"parent_kind"`
	ParentID   string          `json:"parent_id"`
	Name       string          `json:"name"`
	Lines      []LineCost      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// ParentRef identifies a recipe owner.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   string     `json:"id"`
}

func (p ParentRef) key() string { return string(p.Kind) + ":" + p.ID }

// positiveOr returns v when positive, otherwise fallback.
func positiveOr(v, fallback decimal.Decimal) decimal.Decimal {
	if v.IsPositive() {
		return v
	}
	return fallback
}

// grossQuantity converts a recipe quantity into stock units of the component,
// grossed up for trim loss.
func grossQuantity(line RecipeLine, component Item) decimal.Decimal {
	inStockUnits := line.Quantity.Div(positiveOr(component.StockCorrectionFactor, one))
	return inStockUnits.Div(positiveOr(component.YieldPercentage, one))
}

func priceLine(line RecipeLine, component Item, unitCost decimal.Decimal) LineCost {
	gross := grossQuantity(line, component)
	return LineCost{
		LineID:           line.ID,
		ComponentID:      component.ID,
		ComponentName:    component.Name,
		Composite:        component.IsComposite,
		Quantity:         line.Quantity,
		Unit:             line.Unit,
		CorrectionFactor: positiveOr(component.StockCorrectionFactor, one),
		YieldPercentage:  positiveOr(component.YieldPercentage, one),
		GrossQuantity:    gross,
		UnitCost:         unitCost,
		Cost:             gross.Mul(unitCost),
	}
}

func parentName(view TransactionView, kind ParentKind, parentID string) (string, error) {
	switch kind {
	case ParentItem:
		item, ok := view.FindItem(parentID)
		if !ok {
			return "", domain.NotFoundError{Entity: domain.EntityItem, ID: parentID}
		}
		return item.Name, nil
	case ParentProduct:
		product, ok := view.FindProduct(parentID)
		if !ok {
			return "", domain.NotFoundError{Entity: domain.EntityProduct, ID: parentID}
		}
		return product.Name, nil
	default:
		return "", domain.ValidationError{Field: "parent_kind", Reason: "must be item or product"}
	}
}

// DirectCost prices one level of a recipe from the stored component costs.
func DirectCost(view TransactionView, kind ParentKind, parentID string) (CostBreakdown, error) {
	name, err := parentName(view, kind, parentID)
	if err != nil {
		return CostBreakdown{}, err
	}
	out := CostBreakdown{ParentKind: kind, ParentID: parentID, Name: name, Total: decimal.Zero}
	for _, line := range view.RecipeLinesForParent(kind, parentID) {
		component, ok := view.FindItem(line.ComponentID)
		if !ok {
			return CostBreakdown{}, domain.NotFoundError{Entity: domain.EntityItem, ID: line.ComponentID}
		}
		lc := priceLine(line, component, component.UnitCost())
		out.Lines = append(out.Lines, lc)
		out.Total = out.Total.Add(lc.Cost)
	}
	return out, nil
}

// ResolveCost prices a recipe recursively, deriving every composite
// component from its own recipe instead of its stored batch cost. Revisiting
// an item on the current path returns a CycleDetectedError.
func ResolveCost(view TransactionView, kind ParentKind, parentID string) (CostBreakdown, error) {
	r := &resolver{view: view, onPath: make(map[string]bool), memo: make(map[string]decimal.Decimal)}
	if kind == ParentItem {
		r.onPath[parentID] = true
	}
	r.path = append(r.path, parentID)
	return r.breakdown(kind, parentID)
}

type resolver struct {
	view   TransactionView
	onPath map[string]bool
	path   []string
	memo   map[string]decimal.Decimal
}

func (r *resolver) breakdown(kind ParentKind, parentID string) (CostBreakdown, error) {
	name, err := parentName(r.view, kind, parentID)
	if err != nil {
		return CostBreakdown{}, err
	}
	out := CostBreakdown{ParentKind: kind, ParentID: parentID, Name: name, Total: decimal.Zero}
	for _, line := range r.view.RecipeLinesForParent(kind, parentID) {
		component, ok := r.view.FindItem(line.ComponentID)
		if !ok {
			return CostBreakdown{}, domain.NotFoundError{Entity: domain.EntityItem, ID: line.ComponentID}
		}
		unitCost := component.UnitCost()
		if component.IsComposite {
			if unitCost, err = r.compositeUnitCost(component); err != nil {
				return CostBreakdown{}, err
			}
		}
		lc := priceLine(line, component, unitCost)
		out.Lines = append(out.Lines, lc)
		out.Total = out.Total.Add(lc.Cost)
	}
	return out, nil
}

func (r *resolver) compositeUnitCost(item Item) (decimal.Decimal, error) {
	if cost, ok := r.memo[item.ID]; ok {
		return cost, nil
	}
	if r.onPath[item.ID] {
		path := append(append([]string(nil), r.path...), item.ID)
		return decimal.Zero, domain.CycleDetectedError{Path: path}
	}
	r.onPath[item.ID] = true
	r.path = append(r.path, item.ID)
	sub, err := r.breakdown(ParentItem, item.ID)
	r.path = r.path[:len(r.path)-1]
	delete(r.onPath, item.ID)
	if err != nil {
		return decimal.Zero, err
	}
	cost := sub.Total.Div(positiveOr(item.YieldQuantity, one))
	r.memo[item.ID] = cost
	return cost, nil
}

// Components returns the direct recipe lines of a parent.
func Components(view TransactionView, kind ParentKind, parentID string) []RecipeLine {
	return view.RecipeLinesForParent(kind, parentID)
}

// Dependents returns the distinct parents consuming itemID directly, in
// recipe line order.
func Dependents(view TransactionView, itemID string) []ParentRef {
	seen := make(map[string]struct{})
	var out []ParentRef
	for _, line := range view.RecipeLinesForComponent(itemID) {
		ref := ParentRef{Kind: line.ParentKind, ID: line.ParentID}
		if _, ok := seen[ref.key()]; ok {
			continue
		}
		seen[ref.key()] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// reachableCycle reports the path when target is reachable from start by
// walking recipe lines downward through composite items.
func reachableCycle(view TransactionView, start, target string) []string {
	visited := make(map[string]bool)
	var walk func(id string, path []string) []string
	walk = func(id string, path []string) []string {
		if id == target {
			return path
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		for _, line := range view.RecipeLinesForParent(ParentItem, id) {
			if found := walk(line.ComponentID, append(path, line.ComponentID)); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(start, []string{target, start})
}
