package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stockcore/pkg/domain"
)

// closeDifferenceThreshold is the smallest drawer difference noted on close.
var closeDifferenceThreshold = decimal.RequireFromString("0.01")

func openSessionFor(view TransactionView, employeeID string) (RegisterSession, bool) {
	for _, session := range view.ListRegisterSessions() {
		if session.EmployeeID == employeeID && session.Status == domain.SessionOpen {
			return session, true
		}
	}
	return RegisterSession{}, false
}

func (s *Service) checkTransactionCeiling(amount decimal.Decimal) error {
	if amount.Abs().GreaterThan(s.limits.TransactionCeiling) {
		return domain.InvariantError{
			Entity: domain.EntityCashTransaction,
			Reason: fmt.Sprintf("amount %s exceeds ceiling %s", amount.String(), s.limits.TransactionCeiling.String()),
		}
	}
	return nil
}

// OpenRegister starts a register session for employeeID.
func (s *Service) OpenRegister(ctx context.Context, tenantID, employeeID string, startingCash decimal.Decimal) (RegisterSession, Result, error) {
	var session RegisterSession
	if strings.TrimSpace(employeeID) == "" {
		return session, Result{}, domain.ValidationError{Field: "employee_id", Reason: "is required"}
	}
	if startingCash.IsNegative() {
		return session, Result{}, domain.ValidationError{Field: "starting_cash", Reason: "must not be negative"}
	}
	res, err := s.run(ctx, "open_register", tenantID, func(tx Transaction) (string, error) {
		if startingCash.GreaterThan(s.limits.StartingCashCeiling) {
			return "", domain.InvariantError{
				Entity: domain.EntityRegisterSession,
				Reason: fmt.Sprintf("starting cash %s exceeds ceiling %s", startingCash.String(), s.limits.StartingCashCeiling.String()),
			}
		}
		if open, ok := openSessionFor(tx, employeeID); ok {
			return open.ID, domain.InvariantError{Entity: domain.EntityRegisterSession, EntityID: open.ID, Reason: "employee already has an open session"}
		}
		var err error
		session, err = tx.CreateRegisterSession(RegisterSession{
			EmployeeID:   employeeID,
			StartingCash: startingCash,
			Status:       domain.SessionOpen,
			OpenedAt:     tx.Now(),
		})
		return session.ID, err
	})
	return session, res, err
}

// TransactionInput describes one register movement. PURCHASE movements may
// carry an inventory link that also receives the stock.
type TransactionInput struct {
	SessionID   string
	Type        CashTransactionType
	Amount      decimal.Decimal
	Description string
	ItemID      string
	Quantity    *decimal.Decimal
	UnitCost    *decimal.Decimal
	ReferenceID string
}

func (in TransactionInput) validate() error {
	if strings.TrimSpace(in.SessionID) == "" {
		return domain.ValidationError{Field: "session_id", Reason: "is required"}
	}
	if !in.Type.Valid() {
		return domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown transaction type %q", in.Type)}
	}
	if in.Amount.IsZero() {
		return domain.ValidationError{Field: "amount", Reason: "must not be zero"}
	}
	if in.ItemID != "" {
		if in.Type != domain.CashPurchase {
			return domain.ValidationError{Field: "item_id", Reason: "only purchases may link inventory"}
		}
		if in.Quantity == nil || !in.Quantity.IsPositive() {
			return domain.ValidationError{Field: "quantity", Reason: "must be positive for linked purchases"}
		}
		if in.UnitCost == nil || !in.UnitCost.IsPositive() {
			return domain.ValidationError{Field: "unit_cost", Reason: "must be positive for linked purchases"}
		}
	}
	return nil
}

// PostedTransaction reports a posted register movement.
type PostedTransaction struct {
	Transaction CashTransaction    `json:"transaction"`
	Item        *Item              `json:"item,omitempty"`
	Propagation *PropagationReport `json:"propagation,omitempty"`
}

// PostTransaction appends a signed movement to an open session.
func (s *Service) PostTransaction(ctx context.Context, tenantID string, in TransactionInput) (PostedTransaction, Result, error) {
	var out PostedTransaction
	if err := in.validate(); err != nil {
		return out, Result{}, err
	}
	res, err := s.run(ctx, "post_transaction", tenantID, func(tx Transaction) (string, error) {
		session, ok := tx.FindRegisterSession(in.SessionID)
		if !ok {
			return in.SessionID, domain.NotFoundError{Entity: domain.EntityRegisterSession, ID: in.SessionID}
		}
		if session.Status != domain.SessionOpen {
			return session.ID, domain.InvariantError{Entity: domain.EntityRegisterSession, EntityID: session.ID, Reason: "session is closed"}
		}
		if in.Type.Inflow() != in.Amount.IsPositive() {
			return session.ID, domain.InvariantError{
				Entity:   domain.EntityCashTransaction,
				EntityID: session.ID,
				Reason:   fmt.Sprintf("amount %s has the wrong sign for %s", in.Amount.String(), in.Type),
			}
		}
		if err := s.checkTransactionCeiling(in.Amount); err != nil {
			return session.ID, err
		}
		posted, err := tx.AppendCashTransaction(domain.CashTransaction{
			SessionID:   session.ID,
			Type:        in.Type,
			Amount:      in.Amount,
			Description: in.Description,
			ItemID:      in.ItemID,
			Quantity:    in.Quantity,
			UnitCost:    in.UnitCost,
			ReferenceID: in.ReferenceID,
		})
		if err != nil {
			return session.ID, err
		}
		out.Transaction = posted
		if in.ItemID == "" {
			return posted.ID, nil
		}
		item, err := receiveStock(tx, ReceiptLine{ItemID: in.ItemID, Quantity: *in.Quantity, UnitCost: *in.UnitCost}, receipt{
			reason:      domain.ReasonRegisterPurchase,
			referenceID: posted.ID,
			note:        in.Description,
		})
		if err != nil {
			return posted.ID, err
		}
		report, err := propagate(tx, item.ID, "register purchase "+posted.ID)
		if err != nil {
			return posted.ID, err
		}
		out.Item = &item
		out.Propagation = &report
		return posted.ID, nil
	})
	return out, res, err
}

// CloseInput carries the declared drawer totals.
type CloseInput struct {
	SessionID        string
	DeclaredCash     decimal.Decimal
	DeclaredCard     decimal.Decimal
	DeclaredTransfer decimal.Decimal
	Notes            string
}

// CloseRegister reconciles declared cash against the expected drawer and
// closes the session.
func (s *Service) CloseRegister(ctx context.Context, tenantID string, in CloseInput) (RegisterSession, Result, error) {
	var session RegisterSession
	declared := []struct {
		field string
		value decimal.Decimal
	}{
		{"declared_cash", in.DeclaredCash},
		{"declared_card", in.DeclaredCard},
		{"declared_transfer", in.DeclaredTransfer},
	}
	for _, d := range declared {
		if d.value.IsNegative() {
			return session, Result{}, domain.ValidationError{Field: d.field, Reason: "must not be negative"}
		}
	}
	res, err := s.run(ctx, "close_register", tenantID, func(tx Transaction) (string, error) {
		current, ok := tx.FindRegisterSession(in.SessionID)
		if !ok {
			return in.SessionID, domain.NotFoundError{Entity: domain.EntityRegisterSession, ID: in.SessionID}
		}
		if current.Status != domain.SessionOpen {
			return current.ID, domain.InvariantError{Entity: domain.EntityRegisterSession, EntityID: current.ID, Reason: "session already closed"}
		}
		expected := expectedCash(current, tx.CashTransactionsForSession(current.ID))
		difference := in.DeclaredCash.Sub(expected)
		notes := in.Notes
		if difference.Abs().GreaterThan(closeDifferenceThreshold) {
			notes = strings.TrimSpace(fmt.Sprintf("[difference %s] %s", difference.StringFixed(2), in.Notes))
		}
		now := tx.Now()
		var err error
		session, err = tx.UpdateRegisterSession(current.ID, func(rs *RegisterSession) error {
			cash, card, transfer := in.DeclaredCash, in.DeclaredCard, in.DeclaredTransfer
			rs.Status = domain.SessionClosed
			rs.DeclaredCash = &cash
			rs.DeclaredCard = &card
			rs.DeclaredTransfer = &transfer
			rs.ExpectedCash = &expected
			rs.Difference = &difference
			rs.Notes = notes
			rs.ClosedAt = &now
			return nil
		})
		return current.ID, err
	})
	return session, res, err
}

func expectedCash(session RegisterSession, txs []CashTransaction) decimal.Decimal {
	total := session.StartingCash
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// RegisterAuditReport summarises a session's movements.
type RegisterAuditReport struct {
	Session          RegisterSession                         `json:"session"`
	ExpectedCash     decimal.Decimal                         `json:"expected_cash"`
	DeclaredCash     *decimal.Decimal                        `json:"declared_cash,omitempty"`
	Difference       *decimal.Decimal                        `json:"difference,omitempty"`
	ByType           map[CashTransactionType]decimal.Decimal `json:"by_type"`
	TransactionCount int                                     `json:"transaction_count"`
}

// RegisterAudit reports expected and declared cash with a per-type breakdown.
func (s *Service) RegisterAudit(ctx context.Context, tenantID, sessionID string) (RegisterAuditReport, error) {
	var report RegisterAuditReport
	err := s.view(ctx, tenantID, func(v TransactionView) error {
		session, ok := v.FindRegisterSession(sessionID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRegisterSession, ID: sessionID}
		}
		txs := v.CashTransactionsForSession(sessionID)
		report = RegisterAuditReport{
			Session:          session,
			ExpectedCash:     expectedCash(session, txs),
			DeclaredCash:     session.DeclaredCash,
			ByType:           make(map[CashTransactionType]decimal.Decimal),
			TransactionCount: len(txs),
		}
		for _, t := range txs {
			report.ByType[t.Type] = report.ByType[t.Type].Add(t.Amount)
		}
		if session.DeclaredCash != nil {
			diff := session.DeclaredCash.Sub(report.ExpectedCash)
			report.Difference = &diff
		}
		return nil
	})
	return report, err
}
