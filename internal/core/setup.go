package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"stockcore/pkg/domain"
)

// NormalizeName collapses whitespace and casefolds a display name.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// SupplierInput describes a supplier.
type SupplierInput struct {
	Name     string
	Category string
}

// CreateSupplier stores a supplier. A supplier with the same normalized name
// is returned instead of creating a duplicate.
func (s *Service) CreateSupplier(ctx context.Context, tenantID string, in SupplierInput) (Supplier, Result, error) {
	var supplier Supplier
	normalized := NormalizeName(in.Name)
	if normalized == "" {
		return supplier, Result{}, domain.ValidationError{Field: "name", Reason: "is required"}
	}
	res, err := s.run(ctx, "create_supplier", tenantID, func(tx Transaction) (string, error) {
		for _, existing := range tx.ListSuppliers() {
			if existing.NormalizedName == normalized {
				supplier = existing
				return existing.ID, nil
			}
		}
		var err error
		supplier, err = tx.CreateSupplier(Supplier{
			Name:           strings.TrimSpace(in.Name),
			NormalizedName: normalized,
			Category:       in.Category,
		})
		return supplier.ID, err
	})
	return supplier, res, err
}

// ItemInput describes a new item. Zero factors default to 1.
type ItemInput struct {
	Name                  string
	Category              string
	Unit                  string
	UnitCost              decimal.Decimal
	OpeningStock          decimal.Decimal
	StockCorrectionFactor decimal.Decimal
	YieldPercentage       decimal.Decimal
	// YieldQuantity and YieldUnit describe one production run when the
	// item later receives a recipe.
	YieldQuantity decimal.Decimal
	YieldUnit     string
	ParLevel      *decimal.Decimal
	MinLevel      *decimal.Decimal
	MaxLevel      *decimal.Decimal
}

func (in ItemInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.ValidationError{Field: "name", Reason: "is required"}
	case strings.TrimSpace(in.Unit) == "":
		return domain.ValidationError{Field: "unit", Reason: "is required"}
	case in.UnitCost.IsNegative():
		return domain.ValidationError{Field: "unit_cost", Reason: "must not be negative"}
	case in.OpeningStock.IsNegative():
		return domain.ValidationError{Field: "opening_stock", Reason: "must not be negative"}
	case in.StockCorrectionFactor.IsNegative():
		return domain.ValidationError{Field: "stock_correction_factor", Reason: "must be positive"}
	case in.YieldPercentage.IsNegative() || in.YieldPercentage.GreaterThan(one):
		return domain.ValidationError{Field: "yield_percentage", Reason: "must be within (0, 1]"}
	case in.YieldQuantity.IsNegative():
		return domain.ValidationError{Field: "yield_quantity", Reason: "must be positive"}
	}
	return nil
}

// CreateItem stores a leaf item. Opening stock is recorded in the ledger.
func (s *Service) CreateItem(ctx context.Context, tenantID string, in ItemInput) (Item, Result, error) {
	var item Item
	if err := in.validate(); err != nil {
		return item, Result{}, err
	}
	res, err := s.run(ctx, "create_item", tenantID, func(tx Transaction) (string, error) {
		var err error
		item, err = tx.CreateItem(Item{
			Name:                  strings.TrimSpace(in.Name),
			Category:              in.Category,
			Unit:                  strings.TrimSpace(in.Unit),
			CurrentCost:           in.UnitCost,
			AverageCost:           in.UnitCost,
			StockQuantity:         in.OpeningStock,
			YieldQuantity:         positiveOr(in.YieldQuantity, one),
			YieldUnit:             in.YieldUnit,
			StockCorrectionFactor: positiveOr(in.StockCorrectionFactor, one),
			YieldPercentage:       positiveOr(in.YieldPercentage, one),
			ParLevel:              in.ParLevel,
			MinLevel:              in.MinLevel,
			MaxLevel:              in.MaxLevel,
		})
		if err != nil {
			return "", err
		}
		if in.OpeningStock.IsZero() {
			return item.ID, nil
		}
		_, err = tx.AppendLedgerEntry(domain.InventoryLogEntry{
			ItemID:        item.ID,
			PreviousStock: decimal.Zero,
			NewStock:      item.StockQuantity,
			ChangeAmount:  item.StockQuantity,
			Reason:        domain.ReasonOpeningStock,
		})
		return item.ID, err
	})
	return item, res, err
}

// ProductInput describes a sellable product.
type ProductInput struct {
	SKU   string
	Name  string
	Price decimal.Decimal
}

// CreateProduct stores a product. SKUs are unique per tenant, compared
// casefolded.
func (s *Service) CreateProduct(ctx context.Context, tenantID string, in ProductInput) (Product, Result, error) {
	var product Product
	if strings.TrimSpace(in.Name) == "" {
		return product, Result{}, domain.ValidationError{Field: "name", Reason: "is required"}
	}
	if in.Price.IsNegative() {
		return product, Result{}, domain.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	sku := strings.TrimSpace(in.SKU)
	res, err := s.run(ctx, "create_product", tenantID, func(tx Transaction) (string, error) {
		if sku != "" {
			keys := newProductKeys()
			for _, existing := range tx.ListProducts() {
				if existing.SKU != "" && keys.sku(existing.SKU) == keys.sku(sku) {
					return existing.ID, domain.InvariantError{Entity: domain.EntityProduct, EntityID: existing.ID, Reason: fmt.Sprintf("sku %s already in use", sku)}
				}
			}
		}
		var err error
		product, err = tx.CreateProduct(Product{SKU: sku, Name: strings.TrimSpace(in.Name), Price: in.Price, Cost: decimal.Zero})
		return product.ID, err
	})
	return product, res, err
}

// RecipeLineInput is one component of a recipe.
type RecipeLineInput struct {
	ComponentID string
	Quantity    decimal.Decimal
	Unit        string
}

// RecipeResult reports the recipe after SetRecipe.
type RecipeResult struct {
	Lines       []RecipeLine      `json:"lines"`
	Cost        CostBreakdown     `json:"cost"`
	Propagation PropagationReport `json:"propagation"`
}

// SetRecipe replaces the recipe of a parent, recomputes its cost and
// propagates to its dependents. Edges that would close a cycle are rejected.
func (s *Service) SetRecipe(ctx context.Context, tenantID string, kind ParentKind, parentID string, lines []RecipeLineInput) (RecipeResult, Result, error) {
	var out RecipeResult
	if kind != ParentItem && kind != ParentProduct {
		return out, Result{}, domain.ValidationError{Field: "parent_kind", Reason: "must be item or product"}
	}
	seen := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		field := fmt.Sprintf("lines[%d].", i)
		if strings.TrimSpace(line.ComponentID) == "" {
			return out, Result{}, domain.ValidationError{Field: field + "component_id", Reason: "is required"}
		}
		if !line.Quantity.IsPositive() {
			return out, Result{}, domain.ValidationError{Field: field + "quantity", Reason: "must be positive"}
		}
		if _, dup := seen[line.ComponentID]; dup {
			return out, Result{}, domain.ValidationError{Field: field + "component_id", Reason: "appears more than once"}
		}
		seen[line.ComponentID] = struct{}{}
		if kind == ParentItem && line.ComponentID == parentID {
			return out, Result{}, domain.CycleDetectedError{Path: []string{parentID, parentID}}
		}
	}
	res, err := s.run(ctx, "set_recipe", tenantID, func(tx Transaction) (string, error) {
		if _, err := parentName(tx, kind, parentID); err != nil {
			return parentID, err
		}
		next := make([]RecipeLine, 0, len(lines))
		for _, line := range lines {
			component, ok := tx.FindItem(line.ComponentID)
			if !ok {
				return parentID, domain.NotFoundError{Entity: domain.EntityItem, ID: line.ComponentID}
			}
			if kind == ParentItem {
				if path := reachableCycle(tx, component.ID, parentID); path != nil {
					return parentID, domain.CycleDetectedError{Path: path}
				}
			}
			unit := line.Unit
			if unit == "" {
				unit = component.Unit
			}
			next = append(next, RecipeLine{ComponentID: component.ID, Quantity: line.Quantity, Unit: unit})
		}
		stored, err := tx.ReplaceRecipeLines(kind, parentID, next)
		if err != nil {
			return parentID, err
		}
		out.Lines = stored
		if kind == ParentItem {
			composite := len(stored) > 0
			if _, err := tx.UpdateItem(parentID, func(it *Item) error {
				it.IsComposite = composite
				if composite {
					it.YieldQuantity = positiveOr(it.YieldQuantity, one)
					if it.YieldUnit == "" {
						it.YieldUnit = it.Unit
					}
				} else {
					it.BatchCost = decimal.Zero
				}
				return nil
			}); err != nil {
				return parentID, err
			}
		}
		if kind == ParentProduct || len(stored) > 0 {
			if _, _, err := recomputeParent(tx, kind, parentID, "recipe change"); err != nil {
				return parentID, err
			}
		}
		if out.Cost, err = DirectCost(tx, kind, parentID); err != nil {
			return parentID, err
		}
		if kind == ParentItem {
			out.Propagation, err = propagate(tx, parentID, "recipe change")
		}
		return parentID, err
	})
	return out, res, err
}
