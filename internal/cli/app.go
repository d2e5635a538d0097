package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockcore/internal/config"
	"stockcore/internal/core"
	"stockcore/pkg/domain"
)

// app is the wired engine for one command invocation.
type app struct {
	cfg    config.Config
	store  core.PersistentStore
	svc    *core.Service
	logger *slog.Logger
	tenant string
	// metrics is non-nil when the invocation exports a metrics textfile.
	metrics *prometheus.Registry
}

func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	policy, err := core.ParseNegativeStockPolicy(cfg.Policy.NegativeStock)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine(policy))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open storage", err)
	}
	a := &app{cfg: cfg, store: store, logger: logger, tenant: opts.Tenant}
	svcOpts := []core.Option{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.NewSlogAuditRecorder(logger)),
		core.WithRegisterLimits(core.RegisterLimits{
			StartingCashCeiling: cfg.Register.StartingCashCeiling,
			TransactionCeiling:  cfg.Register.TransactionCeiling,
		}),
	}
	if cfg.Metrics.TextfilePath != "" {
		a.metrics = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(a.metrics)
		if err != nil {
			if closer, ok := store.(io.Closer); ok {
				_ = closer.Close()
			}
			return nil, WrapExitError(ExitFailure, "register metrics", err)
		}
		svcOpts = append(svcOpts, core.WithMetricsRecorder(rec))
	}
	if cfg.Metrics.Trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(cmd.ErrOrStderr())))
	}
	a.svc = core.NewService(store, svcOpts...)
	return a, nil
}

// Close flushes the metrics textfile and releases the store.
func (a *app) Close() error {
	var errs []error
	if a.metrics != nil {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.TextfilePath, a.metrics); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	if closer, ok := a.store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// outcome is what a command hands back for rendering.
type outcome struct {
	data   any
	result domain.Result
}

type runFunc func(ctx context.Context, a *app, args []string) (outcome, error)

// run opens the engine, executes fn and renders its outcome.
func (o *RootOptions) run(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		out := &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
		a, err := openApp(cmd, o)
		if err != nil {
			return out.Error(err)
		}
		defer func() { _ = a.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		res, err := fn(ctx, a, args)
		if err != nil {
			return out.Error(err)
		}
		return out.Success(res.data, res.result.Warnings())
	}
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, domain.ValidationError{Field: field, Reason: "must be a decimal number"}
	}
	return d, nil
}

// optionalDecimal parses value unless it is empty.
func optionalDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(field, value)
}
