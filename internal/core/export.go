package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"stockcore/internal/archive"
)

const ledgerContentType = "application/x-ndjson"

// ledgerExportKey names an export by tenant and UTC timestamp.
func (s *Service) ledgerExportKey(tenantID string) string {
	return fmt.Sprintf("ledger/%s/%s.jsonl", tenantID, s.clock.Now().UTC().Format("20060102T150405.000000000Z"))
}

// ExportLedger writes the tenant ledger to store as JSON lines. Archive keys
// are write-once.
func (s *Service) ExportLedger(ctx context.Context, tenantID string, store archive.Store) (archive.Info, error) {
	var info archive.Info
	_, err := s.observe(ctx, "export_ledger", tenantID, func(ctx context.Context) (string, Result, error) {
		var entries []InventoryLogEntry
		if err := s.view(ctx, tenantID, func(v TransactionView) error {
			entries = v.ListLedger()
			return nil
		}); err != nil {
			return "", Result{}, err
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return "", Result{}, fmt.Errorf("encode ledger entry %s: %w", entry.ID, err)
			}
		}
		key := s.ledgerExportKey(tenantID)
		var err error
		info, err = store.Put(ctx, key, &buf, archive.PutOptions{
			ContentType: ledgerContentType,
			Metadata: map[string]string{
				"tenant":  tenantID,
				"entries": strconv.Itoa(len(entries)),
			},
		})
		if err != nil {
			return key, Result{}, fmt.Errorf("archive ledger: %w", err)
		}
		return key, Result{}, nil
	})
	return info, err
}
