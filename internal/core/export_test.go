package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"stockcore/internal/archive"
	"stockcore/internal/config"
)

func TestExportLedgerWritesJSONLines(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	f := newBurgerFixture(t, svc)
	if _, _, err := svc.ReportWaste(ctx, tenant, WasteInput{ItemID: f.bun.ID, WasteType: "stale", Quantity: d("3")}); err != nil {
		t.Fatalf("waste: %v", err)
	}
	store, err := archive.Open(ctx, config.ArchiveConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	info, err := svc.ExportLedger(ctx, tenant, store)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Key != "ledger/acme/20240301T093000.000000000Z.jsonl" {
		t.Fatalf("unexpected key %s", info.Key)
	}
	if info.ContentType != "application/x-ndjson" || info.Metadata["entries"] != "3" || info.Metadata["tenant"] != tenant {
		t.Fatalf("unexpected info %+v", info)
	}

	_, body, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer body.Close()
	var entries []InventoryLogEntry
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var entry InventoryLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		entries = append(entries, entry)
	}
	if len(entries) != 3 || entries[2].Reason != "waste_stale" {
		t.Fatalf("unexpected exported entries %+v", entries)
	}
	assertDecimal(t, "exported stock", entries[2].NewStock, "97")

	// The fixed clock reuses the key and archives are write-once.
	_, err = svc.ExportLedger(ctx, tenant, store)
	if !errors.Is(err, archive.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}
