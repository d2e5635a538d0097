package core

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"stockcore/internal/infra/persistence/memory"
)

// RegisterLimits bounds register amounts in absolute value.
type RegisterLimits struct {
	StartingCashCeiling decimal.Decimal
	TransactionCeiling  decimal.Decimal
}

// DefaultRegisterLimits returns the built-in ceilings of 100000.
func DefaultRegisterLimits() RegisterLimits {
	return RegisterLimits{
		StartingCashCeiling: decimal.NewFromInt(100000),
		TransactionCeiling:  decimal.NewFromInt(100000),
	}
}

// Service runs engine operations as tenant-scoped transactions.
type Service struct {
	store   PersistentStore
	logger  *slog.Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
	limits  RegisterLimits
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for audit timestamps, export keys
// and, for in-memory services, record timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRegisterLimits overrides the register ceilings. Non-positive values
// keep the defaults.
func WithRegisterLimits(limits RegisterLimits) Option {
	return func(s *Service) {
		if limits.StartingCashCeiling.IsPositive() {
			s.limits.StartingCashCeiling = limits.StartingCashCeiling
		}
		if limits.TransactionCeiling.IsPositive() {
			s.limits.TransactionCeiling = limits.TransactionCeiling
		}
	}
}

func newService(opts []Option) *Service {
	s := &Service{
		logger:  slog.New(slog.DiscardHandler),
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		clock:   systemClock{},
		limits:  DefaultRegisterLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewService constructs a service over the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := newService(opts)
	s.store = store
	return s
}

// NewInMemoryService creates a service backed by a fresh memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	s := newService(opts)
	s.store = memory.NewStore(engine, memory.WithClock(s.clock.Now))
	return s
}

// Store returns the underlying store.
func (s *Service) Store() PersistentStore { return s.store }

// Limits returns the active register ceilings.
func (s *Service) Limits() RegisterLimits { return s.limits }

// run executes fn in one transaction. fn returns the primary entity id for
// the audit trail.
func (s *Service) run(ctx context.Context, op, tenantID string, fn func(tx Transaction) (string, error)) (Result, error) {
	return s.observe(ctx, op, tenantID, func(ctx context.Context) (string, Result, error) {
		var entityID string
		res, err := s.store.RunInTransaction(ctx, tenantID, func(tx Transaction) error {
			id, err := fn(tx)
			entityID = id
			return err
		})
		return entityID, res, err
	})
}

func (s *Service) observe(ctx context.Context, op, tenantID string, fn func(context.Context) (string, Result, error)) (Result, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, res, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	warnings := res.Warnings()
	if err != nil {
		s.logger.WarnContext(ctx, "operation failed", "op", op, "tenant", tenantID, "error", err)
	} else {
		for _, v := range warnings {
			s.logger.WarnContext(ctx, "rule warning", "op", op, "tenant", tenantID, "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
		}
		s.logger.DebugContext(ctx, "operation committed", "op", op, "tenant", tenantID, "entity_id", entityID, "duration", duration)
	}

	meta, ok := operations[op]
	if !ok {
		return res, err
	}
	entry := AuditEntry{
		Operation: op,
		TenantID:  tenantID,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Warnings:  len(warnings),
		Duration:  duration,
		Timestamp: start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
	return res, err
}

func (s *Service) view(ctx context.Context, tenantID string, fn func(TransactionView) error) error {
	return s.store.View(ctx, tenantID, fn)
}
