// Package postgres provides a Postgres-backed persistent store. Each committed
// tenant partition is snapshotted as JSONB and new ledger entries are
// mirrored into an append-only inventory_log table for SQL reporting.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"stockcore/internal/infra/persistence/memory"
	"stockcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/stockcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	// mirrored counts ledger entries already in inventory_log per tenant.
	// Only the commit hook touches it, under the memory store's write lock.
	mirrored map[string]int
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN),
// ensures the snapshot table exists and hydrates every stored tenant partition.
func NewStore(dsn string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshots, err := loadSnapshots(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, mirrored: make(map[string]int, len(snapshots))}
	s.Store = memory.NewStore(engine, append(opts, memory.WithCommitHook(s.persist))...)
	for tenantID, snapshot := range snapshots {
		s.ImportTenant(tenantID, snapshot)
		s.mirrored[tenantID] = len(snapshot.Ledger)
	}
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

var schema = []struct{ table, ddl string }{
	{"tenant_state", `CREATE TABLE IF NOT EXISTS tenant_state (
		tenant_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`},
	{"inventory_log", `CREATE TABLE IF NOT EXISTS inventory_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		change_amount NUMERIC NOT NULL,
		new_stock NUMERIC NOT NULL,
		reference_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`},
}

func ensureTables(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("ensure %s table: %w", t.table, err)
		}
	}
	return nil
}

func loadSnapshots(ctx context.Context, db *sql.DB) (map[string]memory.TenantSnapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT tenant_id, payload FROM tenant_state`)
	if err != nil {
		return nil, fmt.Errorf("select tenant_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]memory.TenantSnapshot)
	for rows.Next() {
		var tenantID string
		var payload []byte
		if err := rows.Scan(&tenantID, &payload); err != nil {
			return nil, fmt.Errorf("scan tenant_state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var snapshot memory.TenantSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tenantID, err)
		}
		out[tenantID] = snapshot
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant_state: %w", err)
	}
	return out, nil
}

func (s *Store) persist(ctx context.Context, tenantID string, snapshot memory.TenantSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s: %w", tenantID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO tenant_state(tenant_id,payload) VALUES($1,$2) ON CONFLICT(tenant_id) DO UPDATE SET payload=EXCLUDED.payload`, tenantID, data); err != nil {
		return fmt.Errorf("upsert %s: %w", tenantID, err)
	}
	from := min(s.mirrored[tenantID], len(snapshot.Ledger))
	for _, entry := range snapshot.Ledger[from:] {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO inventory_log(id,tenant_id,item_id,reason,change_amount,new_stock,reference_id,created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			entry.ID, tenantID, entry.ItemID, string(entry.Reason), entry.ChangeAmount, entry.NewStock, entry.ReferenceID, entry.CreatedAt,
		); err != nil {
			return fmt.Errorf("mirror ledger entry %s: %w", entry.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	s.mirrored[tenantID] = len(snapshot.Ledger)
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
