package core

import (
	"bytes"
	"context"
	"encoding/json"
	"expvar"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"stockcore/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAudit) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := "ok"
	if !success {
		status = "err"
	}
	c.calls = append(c.calls, op+":"+status)
}

func TestServiceRecordsAuditAndMetrics(t *testing.T) {
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	svc := newTestService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics))
	ctx := context.Background()

	item := mustItem(t, svc, ItemInput{Name: "Basil", Unit: "kg", UnitCost: d("12")})
	_, _, _, err := svc.RevalueItem(ctx, tenant, "ghost", d("1"))
	assertIs(t, err, domain.ErrNotFound)
	if _, err := svc.GetItem(ctx, tenant, item.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("expected two audit entries, got %+v", audit.entries)
	}
	created := audit.entries[0]
	if created.Operation != "create_item" || created.Entity != domain.EntityItem || created.Action != domain.ActionCreate || created.EntityID != item.ID || created.Status != AuditStatusSuccess {
		t.Fatalf("unexpected create audit %+v", created)
	}
	if !created.Timestamp.Equal(fixedNow) {
		t.Fatalf("audit must use the service clock, got %v", created.Timestamp)
	}
	failed := audit.entries[1]
	if failed.Operation != "revalue_item" || failed.Status != AuditStatusError || failed.Error == "" {
		t.Fatalf("unexpected failure audit %+v", failed)
	}
	if strings.Join(metrics.calls, ",") != "create_item:ok,revalue_item:err" {
		t.Fatalf("unexpected metrics %v", metrics.calls)
	}
}

func TestServiceAuditCountsWarnings(t *testing.T) {
	audit := &captureAudit{}
	svc := newTestService(t, WithAuditRecorder(audit))
	f := newBreadFixture(t, svc)
	if _, _, err := svc.ExecuteProduction(context.Background(), tenant, ProductionInput{BatchItemID: f.dough.ID, Quantity: d("100")}); err != nil {
		t.Fatalf("produce: %v", err)
	}
	last := audit.entries[len(audit.entries)-1]
	if last.Operation != "execute_production" || last.Warnings != 1 {
		t.Fatalf("expected one warning on production audit, got %+v", last)
	}
}

func TestSlogAuditRecorderAndLogger(t *testing.T) {
	var auditBuf, logBuf bytes.Buffer
	auditLogger := slog.New(slog.NewJSONHandler(&auditBuf, nil))
	logger := slog.New(slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := newTestService(t, WithAuditRecorder(NewSlogAuditRecorder(auditLogger)), WithLogger(logger))

	mustItem(t, svc, ItemInput{Name: "Basil", Unit: "kg", UnitCost: d("12")})
	_, _, _, _ = svc.RevalueItem(context.Background(), tenant, "ghost", d("1"))

	lines := strings.Split(strings.TrimSpace(auditBuf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two audit lines, got %q", auditBuf.String())
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if first["msg"] != "audit" || first["operation"] != "create_item" || first["status"] != "success" {
		t.Fatalf("unexpected audit line %v", first)
	}
	if !strings.Contains(lines[1], `"level":"WARN"`) || !strings.Contains(lines[1], `"error"`) {
		t.Fatalf("failed operations audit at warn, got %s", lines[1])
	}
	if !strings.Contains(logBuf.String(), "operation committed") || !strings.Contains(logBuf.String(), "operation failed") {
		t.Fatalf("expected operation logs, got %s", logBuf.String())
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	svc := newTestService(t, WithMetricsRecorder(rec))
	mustItem(t, svc, ItemInput{Name: "Basil", Unit: "kg", UnitCost: d("12")})
	_, _, _, _ = svc.RevalueItem(context.Background(), tenant, "ghost", d("1"))

	snap := rec.Snapshot()
	if snap.Operations["create_item"].Success != 1 || snap.Operations["revalue_item"].Error != 1 {
		t.Fatalf("unexpected snapshot %+v", snap.Operations)
	}
	published := expvar.Get(rec.Name())
	if published == nil || !strings.Contains(published.String(), "create_item") {
		t.Fatalf("expected published expvar %s", rec.Name())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(rec))
	mustItem(t, svc, ItemInput{Name: "Basil", Unit: "kg", UnitCost: d("12")})
	mustItem(t, svc, ItemInput{Name: "Mint", Unit: "kg", UnitCost: d("10")})
	_, _, _, _ = svc.RevalueItem(context.Background(), tenant, "ghost", d("1"))

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_item", "success")); got != 2 {
		t.Fatalf("expected two successful creates, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("revalue_item", "error")); got != 1 {
		t.Fatalf("expected one failed revalue, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 2 {
		t.Fatalf("expected two duration series, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := newTestService(t, WithTracer(tracer))
	mustItem(t, svc, ItemInput{Name: "Basil", Unit: "kg", UnitCost: d("12")})
	_, _, _, _ = svc.RevalueItem(context.Background(), tenant, "ghost", d("1"))

	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "create_item" || entries[1].Status != "error" {
		t.Fatalf("unexpected spans %+v", entries)
	}
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected two json lines, got %d", got)
	}

	_, span := tracer.Start(context.Background(), "manual")
	span.End(nil)
	span.End(nil)
	if len(tracer.Entries()) != 3 {
		t.Fatalf("span must end once")
	}
}
