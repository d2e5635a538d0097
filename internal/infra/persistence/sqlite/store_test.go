package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	var itemID string
	if _, err := store.RunInTransaction(ctx, "t1", func(tx domain.Transaction) error {
		item, e := tx.CreateItem(domain.Item{Name: "Flour", Unit: "kg", StockQuantity: decimal.RequireFromString("12.5")})
		if e != nil {
			return e
		}
		itemID = item.ID
		_, e = tx.AppendLedgerEntry(domain.InventoryLogEntry{ItemID: item.ID, NewStock: item.StockQuantity, ChangeAmount: item.StockQuantity, Reason: domain.ReasonPurchase})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	if got := reloaded.Tenants(); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("expected tenant t1 restored, got %v", got)
	}
	if err := reloaded.View(ctx, "t1", func(v domain.TransactionView) error {
		item, ok := v.FindItem(itemID)
		if !ok {
			t.Fatalf("expected item restored")
		}
		if !item.StockQuantity.Equal(decimal.RequireFromString("12.5")) {
			t.Fatalf("expected decimal round trip, got %s", item.StockQuantity)
		}
		if len(v.LedgerForItem(itemID)) != 1 {
			t.Fatalf("expected ledger restored")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteStoreFailedTransactionIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	boom := errors.New("boom")
	_, err = store.RunInTransaction(context.Background(), "t1", func(tx domain.Transaction) error {
		if _, e := tx.CreateItem(domain.Item{Name: "Ghost", Unit: "kg"}); e != nil {
			return e
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM tenant_state`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected no persisted partition, got %d", rows)
	}
	_ = store.Close()
}

func TestSQLiteStoreCreatesTenantTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name= ?", "tenant_state").Scan(&tableName); err != nil {
		t.Fatalf("lookup tenant_state table: %v", err)
	}
	if tableName != "tenant_state" {
		t.Fatalf("expected tenant_state table, got %s", tableName)
	}
}
