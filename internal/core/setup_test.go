package core

import (
	"context"
	"testing"

	"stockcore/pkg/domain"
)

func TestCreateItemDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	item := mustItem(t, svc, ItemInput{Name: "  Butter ", Unit: "kg", UnitCost: d("8"), OpeningStock: d("3")})

	if item.Name != "Butter" || item.IsComposite {
		t.Fatalf("unexpected item %+v", item)
	}
	assertDecimal(t, "factor", item.StockCorrectionFactor, "1")
	assertDecimal(t, "yield pct", item.YieldPercentage, "1")
	assertDecimal(t, "yield qty", item.YieldQuantity, "1")
	assertDecimal(t, "average", item.AverageCost, "8")
	if !item.CreatedAt.Equal(fixedNow) || item.TenantID != tenant {
		t.Fatalf("expected stamped item, got %+v", item.Base)
	}

	ledger, err := svc.ItemLedger(ctx, tenant, item.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Reason != domain.ReasonOpeningStock {
		t.Fatalf("expected opening stock entry, got %+v", ledger)
	}
	assertDecimal(t, "opening", ledger[0].NewStock, "3")

	empty := mustItem(t, svc, ItemInput{Name: "Pepper", Unit: "kg"})
	ledger, _ = svc.ItemLedger(ctx, tenant, empty.ID)
	if len(ledger) != 0 {
		t.Fatalf("zero opening stock must not write a ledger entry, got %+v", ledger)
	}
}

func TestCreateItemValidation(t *testing.T) {
	svc := newTestService(t)
	cases := map[string]ItemInput{
		"no name":         {Unit: "kg"},
		"no unit":         {Name: "Salt"},
		"negative cost":   {Name: "Salt", Unit: "kg", UnitCost: d("-1")},
		"negative stock":  {Name: "Salt", Unit: "kg", OpeningStock: d("-1")},
		"yield above one": {Name: "Salt", Unit: "kg", YieldPercentage: d("1.2")},
		"negative factor": {Name: "Salt", Unit: "kg", StockCorrectionFactor: d("-2")},
	}
	for name, in := range cases {
		if _, _, err := svc.CreateItem(context.Background(), tenant, in); err == nil {
			t.Fatalf("%s: expected error", name)
		} else {
			assertIs(t, err, domain.ErrValidation)
		}
	}
}

func TestCreateSupplierDeduplicatesNormalizedName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	first, _, err := svc.CreateSupplier(ctx, tenant, SupplierInput{Name: "Green  Farms", Category: "produce"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, _, err := svc.CreateSupplier(ctx, tenant, SupplierInput{Name: " green farms "})
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if first.ID != second.ID || second.Category != "produce" {
		t.Fatalf("expected existing supplier, got %+v", second)
	}
	_, _, err = svc.CreateSupplier(ctx, tenant, SupplierInput{Name: "   "})
	assertIs(t, err, domain.ErrValidation)
	if got := NormalizeName("  Straße   Café "); got != NormalizeName("STRASSE café") {
		t.Fatalf("casefolding mismatch %q", got)
	}
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mustProduct(t, svc, ProductInput{SKU: "LAT-01", Name: "Latte", Price: d("4")})

	_, _, err := svc.CreateProduct(ctx, tenant, ProductInput{SKU: " lat-01", Name: "Iced latte", Price: d("4.5")})
	assertIs(t, err, domain.ErrInvariant)
	_, _, err = svc.CreateProduct(ctx, tenant, ProductInput{SKU: "X", Price: d("1")})
	assertIs(t, err, domain.ErrValidation)
	_, _, err = svc.CreateProduct(ctx, tenant, ProductInput{Name: "Tea", Price: d("-1")})
	assertIs(t, err, domain.ErrValidation)

	// Products without SKU never collide.
	mustProduct(t, svc, ProductInput{Name: "Tea", Price: d("2")})
	mustProduct(t, svc, ProductInput{Name: "Tea special", Price: d("3")})
	products, err := svc.ListProducts(ctx, tenant)
	if err != nil || len(products) != 3 {
		t.Fatalf("expected three products, got %d err=%v", len(products), err)
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	item := mustItem(t, svc, ItemInput{Name: "Rice", Unit: "kg", UnitCost: d("2")})

	_, err := svc.GetItem(ctx, "other", item.ID)
	assertIs(t, err, domain.ErrNotFound)
	items, err := svc.ListItems(ctx, "other")
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty tenant, got %d err=%v", len(items), err)
	}
	_, _, err = svc.CreateItem(ctx, "", ItemInput{Name: "Rice", Unit: "kg"})
	assertIs(t, err, domain.ErrValidation)
}

func TestCancelledContextRollsBack(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := svc.CreateItem(ctx, tenant, ItemInput{Name: "Rice", Unit: "kg"}); err == nil {
		t.Fatalf("expected cancellation error")
	}
	items, _ := svc.ListItems(context.Background(), tenant)
	if len(items) != 0 {
		t.Fatalf("cancelled transaction must not commit, got %+v", items)
	}
}
