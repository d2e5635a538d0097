package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

const tenant = "acme"

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return fixedNow }))}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(NegativeStockAllow), opts...)
}

func newStrictService(t *testing.T) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(NegativeStockReject), WithClock(ClockFunc(func() time.Time { return fixedNow })))
}

func mustItem(t *testing.T, svc *Service, in ItemInput) Item {
	t.Helper()
	item, _, err := svc.CreateItem(context.Background(), tenant, in)
	if err != nil {
		t.Fatalf("create item %s: %v", in.Name, err)
	}
	return item
}

func mustProduct(t *testing.T, svc *Service, in ProductInput) Product {
	t.Helper()
	product, _, err := svc.CreateProduct(context.Background(), tenant, in)
	if err != nil {
		t.Fatalf("create product %s: %v", in.Name, err)
	}
	return product
}

func mustRecipe(t *testing.T, svc *Service, kind ParentKind, parentID string, lines ...RecipeLineInput) RecipeResult {
	t.Helper()
	out, _, err := svc.SetRecipe(context.Background(), tenant, kind, parentID, lines)
	if err != nil {
		t.Fatalf("set recipe %s %s: %v", kind, parentID, err)
	}
	return out
}

func line(componentID, qty string) RecipeLineInput {
	return RecipeLineInput{ComponentID: componentID, Quantity: d(qty)}
}

func getItem(t *testing.T, svc *Service, id string) Item {
	t.Helper()
	item, err := svc.GetItem(context.Background(), tenant, id)
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	return item
}

func getProduct(t *testing.T, svc *Service, id string) Product {
	t.Helper()
	product, err := svc.GetProduct(context.Background(), tenant, id)
	if err != nil {
		t.Fatalf("get product %s: %v", id, err)
	}
	return product
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func hasViolation(res Result, rule string, severity domain.Severity) bool {
	for _, v := range res.Violations {
		if v.Rule == rule && v.Severity == severity {
			return true
		}
	}
	return false
}

// burgerFixture builds meat @ 10/kg and bun @ 0.50 feeding a burger product.
type burgerFixture struct {
	meat, bun Item
	burger    Product
}

func newBurgerFixture(t *testing.T, svc *Service) burgerFixture {
	t.Helper()
	f := burgerFixture{
		meat:   mustItem(t, svc, ItemInput{Name: "Ground beef", Unit: "kg", UnitCost: d("10"), OpeningStock: d("20")}),
		bun:    mustItem(t, svc, ItemInput{Name: "Bun", Unit: "unit", UnitCost: d("0.50"), OpeningStock: d("100")}),
		burger: mustProduct(t, svc, ProductInput{SKU: "BRG-1", Name: "Classic Burger", Price: d("8")}),
	}
	mustRecipe(t, svc, ParentProduct, f.burger.ID, line(f.meat.ID, "0.2"), line(f.bun.ID, "1"))
	return f
}

// breadFixture builds flour @ 1.50/kg feeding a 5 kg dough batch that feeds
// a bread product.
type breadFixture struct {
	flour, dough Item
	bread        Product
}

func newBreadFixture(t *testing.T, svc *Service) breadFixture {
	t.Helper()
	f := breadFixture{
		flour: mustItem(t, svc, ItemInput{Name: "Flour", Unit: "kg", UnitCost: d("1.50"), OpeningStock: d("30")}),
		dough: mustItem(t, svc, ItemInput{Name: "Dough", Unit: "kg", YieldQuantity: d("5"), YieldUnit: "kg"}),
		bread: mustProduct(t, svc, ProductInput{SKU: "BRD-1", Name: "Loaf", Price: d("4")}),
	}
	mustRecipe(t, svc, ParentItem, f.dough.ID, line(f.flour.ID, "3"))
	mustRecipe(t, svc, ParentProduct, f.bread.ID, line(f.dough.ID, "1"))
	return f
}
