package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	upsert := "INSERT INTO tenant_state(tenant_id,payload) VALUES($1,$2) ON CONFLICT(tenant_id) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{"v1", "v2"} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "t1"}, {Value: payload}}); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if len(conn.Tables["tenant_state"]) != 1 {
		t.Fatalf("expected upsert to keep one row, got %v", conn.Tables["tenant_state"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT tenant_id, payload FROM tenant_state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "t1" || dest[1] != "v2" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}
