package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "stock below zero"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if got, want := err.Error(), "transaction blocked by rules: block: stock below zero"; got != want {
		t.Fatalf("error string = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrBlockedByRule) {
		t.Fatalf("expected ErrBlockedByRule")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestResultWarningsSkipsBlockAndLog(t *testing.T) {
	result := Result{Violations: []Violation{
		{Rule: "a", Severity: SeverityWarn},
		{Rule: "b", Severity: SeverityBlock},
		{Rule: "c", Severity: SeverityLog},
		{Rule: "d", Severity: SeverityWarn},
	}}
	warnings := result.Warnings()
	if len(warnings) != 2 || warnings[0].Rule != "a" || warnings[1].Rule != "d" {
		t.Fatalf("unexpected warnings %+v", warnings)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"first"})
	engine.Register(staticRule{"second"})
	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].Rule != "first" {
		t.Fatalf("expected violations in registration order, got %+v", res.Violations)
	}

	rules := engine.Rules()
	rules[0] = staticRule{"mutated"}
	if engine.Rules()[0].Name() != "first" {
		t.Fatalf("Rules must return a copy")
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	engine.Register(errorRule{})
	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err == nil {
		t.Fatalf("expected evaluation error")
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected empty result on error, got %+v", res)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}
