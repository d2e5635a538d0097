package core

import (
	"context"
	"time"

	"stockcore/pkg/domain"
)

// AuditStatus records the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one completed service operation.
type AuditEntry struct {
	Operation string
	TenantID  string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Warnings  int
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span around each service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// Clock supplies the service time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

// operations maps every audited operation to the entity it primarily touches.
var operations = map[string]operationMeta{
	"create_supplier":        {domain.EntitySupplier, domain.ActionCreate},
	"create_item":            {domain.EntityItem, domain.ActionCreate},
	"create_product":         {domain.EntityProduct, domain.ActionCreate},
	"set_recipe":             {domain.EntityRecipeLine, domain.ActionUpdate},
	"confirm_purchase":       {domain.EntityPurchaseOrder, domain.ActionCreate},
	"create_purchase_order":  {domain.EntityPurchaseOrder, domain.ActionCreate},
	"confirm_purchase_order": {domain.EntityPurchaseOrder, domain.ActionUpdate},
	"revalue_item":           {domain.EntityItem, domain.ActionUpdate},
	"propagate":              {domain.EntityItem, domain.ActionUpdate},
	"recompute_all":          {domain.EntityItem, domain.ActionUpdate},
	"execute_production":     {domain.EntityItem, domain.ActionUpdate},
	"commit_sale_batch":      {domain.EntitySaleBatch, domain.ActionCreate},
	"process_sale_batch":     {domain.EntitySaleBatch, domain.ActionUpdate},
	"submit_count":           {domain.EntityCountRecord, domain.ActionAppend},
	"report_waste":           {domain.EntityLedgerEntry, domain.ActionAppend},
	"open_register":          {domain.EntityRegisterSession, domain.ActionCreate},
	"post_transaction":       {domain.EntityCashTransaction, domain.ActionAppend},
	"close_register":         {domain.EntityRegisterSession, domain.ActionUpdate},
	"export_ledger":          {domain.EntityLedgerEntry, domain.ActionAppend},
}
