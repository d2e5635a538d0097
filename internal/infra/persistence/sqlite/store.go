// Package sqlite provides a SQLite-backed persistent store that snapshots each
// committed tenant partition into a single table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stockcore/internal/infra/persistence/memory"
	"stockcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "stockcore.db"

// Store persists tenant partitions to SQLite as JSON blobs. The write runs
// from the memory store's commit hook, so a failed write rolls back the
// in-memory commit too.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path, ensures the snapshot table
// and hydrates every stored tenant.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps the file lock simple.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS tenant_state (
		tenant_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tenant_state table: %w", err)
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewStore(engine, append(opts, memory.WithCommitHook(s.persist))...)
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, payload FROM tenant_state`)
	if err != nil {
		return fmt.Errorf("select tenant_state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			tenantID string
			payload  []byte
		)
		if err := rows.Scan(&tenantID, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var snapshot memory.TenantSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return fmt.Errorf("decode tenant %s: %w", tenantID, err)
		}
		s.ImportTenant(tenantID, snapshot)
	}
	return rows.Err()
}

func (s *Store) persist(ctx context.Context, tenantID string, snapshot memory.TenantSnapshot) (retErr error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode tenant %s: %w", tenantID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO tenant_state(tenant_id,payload) VALUES(?,?) ON CONFLICT(tenant_id) DO UPDATE SET payload=excluded.payload`, tenantID, data); err != nil {
		return fmt.Errorf("upsert %s: %w", tenantID, err)
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
