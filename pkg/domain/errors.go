package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify engine failures. Typed errors below wrap them so
// callers can branch with errors.Is while still reading structured detail
// through errors.As.
var (
	ErrValidation    = errors.New("stockcore: validation failed")
	ErrNotFound      = errors.New("stockcore: not found")
	ErrInvariant     = errors.New("stockcore: invariant violation")
	ErrCycleDetected = errors.New("stockcore: recipe cycle detected")
	ErrBlockedByRule = errors.New("stockcore: transaction blocked by rules")
)

// ValidationError reports malformed input rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Unwrap ties the error to ErrValidation.
func (e ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError is returned when a referenced entity is absent.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Unwrap ties the error to ErrNotFound.
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// InvariantError rejects an operation that would break a state invariant.
type InvariantError struct {
	Entity   EntityType
	EntityID string
	Reason   string
}

func (e InvariantError) Error() string {
	if e.EntityID == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.EntityID, e.Reason)
}

// Unwrap ties the error to ErrInvariant.
func (e InvariantError) Unwrap() error { return ErrInvariant }

// CycleDetectedError carries the id path that revisited an item.
type CycleDetectedError struct {
	Path []string
}

func (e CycleDetectedError) Error() string {
	return "recipe cycle detected: " + strings.Join(e.Path, " -> ")
}

// Unwrap ties the error to ErrCycleDetected.
func (e CycleDetectedError) Unwrap() error { return ErrCycleDetected }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Rule+": "+v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}

// Unwrap ties the error to ErrBlockedByRule.
func (e RuleViolationError) Unwrap() error { return ErrBlockedByRule }
