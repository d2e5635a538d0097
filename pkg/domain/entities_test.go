package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestItemUnitCost(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name string
		item Item
		want string
	}{
		{"average wins", Item{AverageCost: d("2.5"), CurrentCost: d("3")}, "2.5"},
		{"falls back to last price", Item{CurrentCost: d("3")}, "3"},
		{"composite divides batch cost", Item{IsComposite: true, BatchCost: d("9"), YieldQuantity: d("5"), AverageCost: d("7")}, "1.8"},
		{"composite without yield", Item{IsComposite: true, BatchCost: d("9")}, "9"},
	}
	for _, tc := range cases {
		if got := tc.item.UnitCost(); !got.Equal(d(tc.want)) {
			t.Errorf("%s: UnitCost = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestCashTransactionTypeSign(t *testing.T) {
	inflows := map[CashTransactionType]bool{
		CashSale: true, CashDeposit: true,
		CashExpense: false, CashWithdrawal: false, CashPurchase: false,
	}
	for typ, inflow := range inflows {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
		if typ.Inflow() != inflow {
			t.Errorf("%s Inflow = %v, want %v", typ, typ.Inflow(), inflow)
		}
	}
	if CashTransactionType("sale").Valid() {
		t.Fatalf("types are case sensitive")
	}
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want error
		msg  string
	}{
		{ValidationError{Field: "quantity", Reason: "must be positive"}, ErrValidation, "validation: quantity must be positive"},
		{NotFoundError{Entity: EntityItem, ID: "i-1"}, ErrNotFound, "item i-1 not found"},
		{InvariantError{Entity: EntitySaleBatch, EntityID: "b-1", Reason: "already processed"}, ErrInvariant, "sale_batch b-1: already processed"},
		{CycleDetectedError{Path: []string{"a", "b", "a"}}, ErrCycleDetected, "recipe cycle detected: a -> b -> a"},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op: %w", tc.err)
		if !errors.Is(wrapped, tc.want) {
			t.Errorf("%T does not unwrap to %v", tc.err, tc.want)
		}
		if tc.err.Error() != tc.msg {
			t.Errorf("%T message = %q, want %q", tc.err, tc.err.Error(), tc.msg)
		}
	}

	var cycle CycleDetectedError
	if !errors.As(fmt.Errorf("wrap: %w", CycleDetectedError{Path: []string{"x", "x"}}), &cycle) || len(cycle.Path) != 2 {
		t.Fatalf("expected cycle path through errors.As, got %+v", cycle)
	}
}
