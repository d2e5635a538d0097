package core

import (
	"context"
	"testing"
	"time"

	"stockcore/pkg/domain"
)

func TestValuationReport(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	minLevel := d("5")
	mustItem(t, svc, ItemInput{Name: "Rice", Unit: "kg", UnitCost: d("2"), OpeningStock: d("10")})
	mustItem(t, svc, ItemInput{Name: "Oil", Unit: "l", UnitCost: d("3.5"), OpeningStock: d("4"), MinLevel: &minLevel})

	report, err := svc.ValuationReport(ctx, tenant)
	if err != nil {
		t.Fatalf("valuation: %v", err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("expected two rows, got %+v", report.Rows)
	}
	assertDecimal(t, "total", report.Total, "34")
	for _, row := range report.Rows {
		if row.Name == "Oil" && !row.BelowMin {
			t.Fatalf("oil is below its minimum level")
		}
		if row.Name == "Rice" && row.BelowMin {
			t.Fatalf("rice has no minimum level")
		}
	}
}

func TestExplainCostBreakdown(t *testing.T) {
	svc := newTestService(t)
	f := newBurgerFixture(t, svc)
	out, err := svc.ExplainCost(context.Background(), tenant, ParentProduct, f.burger.ID)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if out.Name != "Classic Burger" || len(out.Lines) != 2 {
		t.Fatalf("unexpected breakdown %+v", out)
	}
	assertDecimal(t, "total", out.Total, "2.5")

	_, err = svc.ExplainCost(context.Background(), tenant, ParentProduct, "ghost")
	assertIs(t, err, domain.ErrNotFound)
}

func TestHealthCheckReportsStockMismatch(t *testing.T) {
	// Without rules a silent stock move can commit.
	svc := NewInMemoryService(NewRulesEngine(), WithClock(ClockFunc(func() time.Time { return fixedNow })))
	ctx := context.Background()
	f := newBurgerFixture(t, svc)

	health, err := svc.HealthCheck(ctx, tenant)
	if err != nil || !health.Healthy {
		t.Fatalf("fresh tenant must be healthy, got %+v err=%v", health, err)
	}

	if _, err := svc.Store().RunInTransaction(ctx, tenant, func(tx Transaction) error {
		_, err := tx.UpdateItem(f.bun.ID, func(it *Item) error {
			it.StockQuantity = d("90")
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("silent move: %v", err)
	}
	health, err = svc.HealthCheck(ctx, tenant)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Healthy || len(health.StockMismatches) != 1 {
		t.Fatalf("expected one stock mismatch, got %+v", health)
	}
	mismatch := health.StockMismatches[0]
	if mismatch.ItemID != f.bun.ID {
		t.Fatalf("unexpected mismatch %+v", mismatch)
	}
	assertDecimal(t, "stock", mismatch.Stock, "90")
	assertDecimal(t, "ledger stock", mismatch.LedgerStock, "100")
}

func TestSupplierPricePlanPicksCheapestLatestQuote(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return now })))
	ctx := context.Background()
	flour := mustItem(t, svc, ItemInput{Name: "Flour", Unit: "kg", UnitCost: d("1.50"), OpeningStock: d("10")})
	salt := mustItem(t, svc, ItemInput{Name: "Salt", Unit: "kg", UnitCost: d("1")})
	mill, _, err := svc.CreateSupplier(ctx, tenant, SupplierInput{Name: "Mill"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	grocer, _, err := svc.CreateSupplier(ctx, tenant, SupplierInput{Name: "Grocer"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}

	// Grocer was cheapest once but its latest price is higher than Mill's.
	for i, buy := range []struct {
		supplier, cost string
	}{
		{grocer.ID, "1.00"},
		{grocer.ID, "2.50"},
		{mill.ID, "2.00"},
	} {
		now = now.Add(24 * time.Hour)
		if _, _, err := svc.ConfirmPurchase(ctx, tenant, PurchaseInput{
			SupplierID:    buy.supplier,
			PaymentMethod: domain.PaymentTransfer,
			Lines:         []ReceiptLine{{ItemID: flour.ID, Quantity: d("1"), UnitCost: d(buy.cost)}},
		}); err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
	}

	plan, err := svc.SupplierPricePlan(ctx, tenant, []string{flour.ID, salt.ID, "ghost"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Unknown) != 1 || plan.Unknown[0] != "ghost" {
		t.Fatalf("expected ghost to be unknown, got %v", plan.Unknown)
	}
	if len(plan.Suppliers) != 2 {
		t.Fatalf("expected two supplier groups, got %+v", plan.Suppliers)
	}
	best := plan.Suppliers[0]
	if best.SupplierID != mill.ID || len(best.Items) != 1 || best.Items[0].ItemID != flour.ID {
		t.Fatalf("expected flour from mill, got %+v", best)
	}
	assertDecimal(t, "flour price", best.Items[0].UnitCost, "2")
	assertDecimal(t, "mill total", best.EstimatedTotal, "2")
	if got := best.Items[0].LastPurchasedAt; got == nil || !got.Equal(now) {
		t.Fatalf("expected last purchase at %s, got %v", now, got)
	}

	fallback := plan.Suppliers[1]
	if fallback.SupplierID != "" || len(fallback.Items) != 1 || fallback.Items[0].ItemID != salt.ID {
		t.Fatalf("expected salt without supplier, got %+v", fallback)
	}
	assertDecimal(t, "salt price", fallback.Items[0].UnitCost, "1")
	if fallback.Items[0].LastPurchasedAt != nil {
		t.Fatalf("fallback item has no purchase date")
	}

	if _, err := svc.SupplierPricePlan(ctx, tenant, nil); err == nil {
		t.Fatalf("expected validation error for empty item list")
	} else {
		assertIs(t, err, domain.ErrValidation)
	}
}

func TestWasteReportAggregatesPeriod(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return now })))
	ctx := context.Background()
	cheese := mustItem(t, svc, ItemInput{Name: "Cheese", Unit: "kg", UnitCost: d("10"), OpeningStock: d("10")})
	bread := mustItem(t, svc, ItemInput{Name: "Bread", Unit: "unit", UnitCost: d("2"), OpeningStock: d("10")})

	waste := func(at time.Time, item Item, qty, kind string) {
		t.Helper()
		now = at
		if _, _, err := svc.ReportWaste(ctx, tenant, WasteInput{ItemID: item.ID, Quantity: d(qty), WasteType: kind}); err != nil {
			t.Fatalf("waste %s: %v", item.Name, err)
		}
	}
	day := func(n, hour int) time.Time { return time.Date(2024, 3, n, hour, 0, 0, 0, time.UTC) }
	waste(day(9, 12), cheese, "1", "spoilage")
	waste(day(10, 9), cheese, "0.5", "spoilage")
	waste(day(11, 12), bread, "3", "spill")
	waste(day(11, 13), cheese, "0.2", "spill")
	waste(day(12, 0), bread, "1", "spill")

	report, err := svc.WasteReport(ctx, tenant, day(10, 0), day(12, 0))
	if err != nil {
		t.Fatalf("waste report: %v", err)
	}
	if report.Events != 3 {
		t.Fatalf("expected 3 events in period, got %d", report.Events)
	}
	assertDecimal(t, "quantity", report.TotalQuantity, "3.7")
	assertDecimal(t, "cost", report.TotalCost, "13")

	if len(report.ByType) != 2 || report.ByType[0].Type != "spill" || report.ByType[1].Type != "spoilage" {
		t.Fatalf("unexpected type breakdown %+v", report.ByType)
	}
	assertDecimal(t, "spill cost", report.ByType[0].Cost, "8")
	assertDecimal(t, "spill share", report.ByType[0].Share, "66.67")
	assertDecimal(t, "spoilage share", report.ByType[1].Share, "33.33")

	if len(report.ByItem) != 2 || report.ByItem[0].ItemID != cheese.ID {
		t.Fatalf("expected cheese to lead the item breakdown, got %+v", report.ByItem)
	}
	assertDecimal(t, "cheese quantity", report.ByItem[0].Quantity, "0.7")
	assertDecimal(t, "bread cost", report.ByItem[1].Cost, "6")

	if len(report.Timeline) != 2 || report.Timeline[0].Date != "2024-03-10" || report.Timeline[1].Date != "2024-03-11" {
		t.Fatalf("unexpected timeline %+v", report.Timeline)
	}
	assertDecimal(t, "first day", report.Timeline[0].Cost, "5")

	if report.PreviousCost == nil || report.TrendPct == nil {
		t.Fatalf("bounded period should carry a trend, got %+v", report)
	}
	assertDecimal(t, "previous", *report.PreviousCost, "10")
	assertDecimal(t, "trend", *report.TrendPct, "30")
}

func TestWasteReportOpenPeriod(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	oil := mustItem(t, svc, ItemInput{Name: "Oil", Unit: "l", UnitCost: d("4"), OpeningStock: d("2")})
	if _, _, err := svc.ReportWaste(ctx, tenant, WasteInput{ItemID: oil.ID, Quantity: d("0.5"), WasteType: "expired"}); err != nil {
		t.Fatalf("waste: %v", err)
	}
	if _, _, err := svc.SubmitCount(ctx, tenant, CountInput{ItemID: oil.ID, CountedQty: d("1"), CounterID: "emp-1"}); err != nil {
		t.Fatalf("count: %v", err)
	}

	report, err := svc.WasteReport(ctx, tenant, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("waste report: %v", err)
	}
	if report.Events != 1 || report.PreviousCost != nil || report.TrendPct != nil {
		t.Fatalf("expected one waste event and no trend, got %+v", report)
	}
	assertDecimal(t, "cost", report.TotalCost, "2")

	if _, err := svc.WasteReport(ctx, tenant, fixedNow, fixedNow); err == nil {
		t.Fatalf("expected empty period to be rejected")
	} else {
		assertIs(t, err, domain.ErrValidation)
	}
}
