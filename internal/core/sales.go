package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"stockcore/pkg/domain"
)

// SaleEventInput is one raw point-of-sale line.
type SaleEventInput struct {
	SKU         string
	ProductName string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	SoldAt      time.Time
}

// productKeys builds the casefolded lookup keys for a SKU and a name. A Caser
// keeps internal state, so a new one is made per call.
type productKeys struct {
	caser cases.Caser
}

func newProductKeys() productKeys { return productKeys{caser: cases.Fold()} }

func (k productKeys) sku(sku string) string {
	return "SKU:" + k.caser.String(strings.TrimSpace(sku))
}

func (k productKeys) name(name string) string {
	return "NAME:" + k.caser.String(strings.Join(strings.Fields(name), " "))
}

// CommitSaleBatch stores a pending batch of sale events.
func (s *Service) CommitSaleBatch(ctx context.Context, tenantID, fileName string, events []SaleEventInput) (SaleBatch, Result, error) {
	var batch SaleBatch
	if len(events) == 0 {
		return batch, Result{}, domain.ValidationError{Field: "events", Reason: "must not be empty"}
	}
	for i, ev := range events {
		field := fmt.Sprintf("events[%d].", i)
		if strings.TrimSpace(ev.SKU) == "" && strings.TrimSpace(ev.ProductName) == "" {
			return batch, Result{}, domain.ValidationError{Field: field + "product_name", Reason: "sku or product name is required"}
		}
		if !ev.Quantity.IsPositive() {
			return batch, Result{}, domain.ValidationError{Field: field + "quantity", Reason: "must be positive"}
		}
		if ev.Price.IsNegative() {
			return batch, Result{}, domain.ValidationError{Field: field + "price", Reason: "must not be negative"}
		}
	}
	res, err := s.run(ctx, "commit_sale_batch", tenantID, func(tx Transaction) (string, error) {
		raw := make([]SaleEvent, 0, len(events))
		for _, ev := range events {
			raw = append(raw, SaleEvent{
				SKU:         strings.TrimSpace(ev.SKU),
				ProductName: strings.TrimSpace(ev.ProductName),
				Quantity:    ev.Quantity,
				Price:       ev.Price,
				SoldAt:      ev.SoldAt,
			})
		}
		var err error
		batch, _, err = tx.CreateSaleBatch(SaleBatch{FileName: fileName}, raw)
		return batch.ID, err
	})
	return batch, res, err
}

// SaleBatchReport summarises a processed batch. Unmatched and recipe-less
// products are reported without failing the batch.
type SaleBatchReport struct {
	BatchID               string          `json:"batch_id"`
	ProcessedEvents       int             `json:"processed_events"`
	DeductedItemCount     int             `json:"deducted_item_count"`
	Deductions            []StockMovement `json:"deductions"`
	MissingRecipeProducts []string        `json:"missing_recipe_products,omitempty"`
	UnmatchedProducts     []string        `json:"unmatched_products,omitempty"`
	Warnings              []Violation     `json:"warnings,omitempty"`
}

type soldProduct struct {
	product  Product
	quantity decimal.Decimal
}

// ProcessSaleBatch deducts the recipe components of every sold product once.
// Processing a completed batch is rejected.
func (s *Service) ProcessSaleBatch(ctx context.Context, tenantID, batchID string) (SaleBatchReport, Result, error) {
	report := SaleBatchReport{BatchID: batchID}
	res, err := s.run(ctx, "process_sale_batch", tenantID, func(tx Transaction) (string, error) {
		batch, ok := tx.FindSaleBatch(batchID)
		if !ok {
			return batchID, domain.NotFoundError{Entity: domain.EntitySaleBatch, ID: batchID}
		}
		if batch.Status != domain.SaleBatchPending {
			return batchID, domain.InvariantError{Entity: domain.EntitySaleBatch, EntityID: batchID, Reason: "already processed"}
		}

		keys := newProductKeys()
		index := make(map[string]Product)
		for _, p := range tx.ListProducts() {
			if p.SKU != "" {
				index[keys.sku(p.SKU)] = p
			}
			if _, taken := index[keys.name(p.Name)]; !taken {
				index[keys.name(p.Name)] = p
			}
		}

		var (
			sold      []*soldProduct
			byProduct = make(map[string]*soldProduct)
			unmatched = make(map[string]bool)
		)
		for _, ev := range tx.SaleEventsForBatch(batchID) {
			var (
				product Product
				found   bool
			)
			if ev.SKU != "" {
				product, found = index[keys.sku(ev.SKU)]
			}
			if !found && ev.ProductName != "" {
				product, found = index[keys.name(ev.ProductName)]
			}
			if !found {
				label, key := ev.ProductName, keys.name(ev.ProductName)
				if ev.SKU != "" {
					label, key = ev.SKU, keys.sku(ev.SKU)
				}
				if !unmatched[key] {
					unmatched[key] = true
					report.UnmatchedProducts = append(report.UnmatchedProducts, label)
				}
				continue
			}
			agg, ok := byProduct[product.ID]
			if !ok {
				agg = &soldProduct{product: product, quantity: decimal.Zero}
				byProduct[product.ID] = agg
				sold = append(sold, agg)
			}
			agg.quantity = agg.quantity.Add(ev.Quantity)
		}

		var (
			componentOrder []string
			need           = make(map[string]decimal.Decimal)
		)
		for _, agg := range sold {
			lines := tx.RecipeLinesForParent(ParentProduct, agg.product.ID)
			if len(lines) == 0 {
				report.MissingRecipeProducts = append(report.MissingRecipeProducts, agg.product.Name)
				continue
			}
			for _, line := range lines {
				component, ok := tx.FindItem(line.ComponentID)
				if !ok {
					return batchID, domain.NotFoundError{Entity: domain.EntityItem, ID: line.ComponentID}
				}
				if _, seen := need[component.ID]; !seen {
					componentOrder = append(componentOrder, component.ID)
					need[component.ID] = decimal.Zero
				}
				need[component.ID] = need[component.ID].Add(grossQuantity(line, component).Mul(agg.quantity))
			}
		}

		note := "sale batch " + batchID
		if batch.FileName != "" {
			note = "sale batch " + batch.FileName
		}
		for _, id := range componentOrder {
			moved, err := adjustStock(tx, id, need[id].Neg(), domain.ReasonSale, batchID, note)
			if err != nil {
				return batchID, err
			}
			report.Deductions = append(report.Deductions, moved)
		}
		report.DeductedItemCount = len(report.Deductions)

		now := tx.Now()
		if _, err := tx.UpdateSaleBatch(batchID, func(b *SaleBatch) error {
			b.Status = domain.SaleBatchCompleted
			b.ProcessedAt = &now
			return nil
		}); err != nil {
			return batchID, err
		}
		n, err := tx.MarkSaleEventsProcessed(batchID)
		report.ProcessedEvents = n
		return batchID, err
	})
	report.Warnings = res.Warnings()
	return report, res, err
}
