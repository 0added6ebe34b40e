package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/match"
)

func newTestSession(m *mockLedger) *Session {
	return NewSession(m, m, m, match.DefaultConfig())
}

func TestSessionSelectRanksCandidates(t *testing.T) {
	m := newMockLedger()
	m.addObligation("ob-1", "500.00", march10)
	m.addTransaction("tx-near", "-500.00", march10.AddDate(0, 0, 1))
	m.addTransaction("tx-far", "-500.00", march10.AddDate(0, 0, 9))
	m.addTransaction("tx-off", "-80.00", march10)

	s := newTestSession(m)
	cands, err := s.Select(context.Background(), "ob-1")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if cands[0].TransactionID != "tx-near" {
		t.Errorf("best candidate = %s, want tx-near", cands[0].TransactionID)
	}
	if s.Selected() != "ob-1" {
		t.Errorf("Selected() = %q, want ob-1", s.Selected())
	}
}

func TestSessionSelectSettledObligationRejected(t *testing.T) {
	m := newMockLedger()
	m.addObligation("ob-1", "500.00", march10)
	m.obligations["ob-1"].State = domain.ObligationSettled

	s := newTestSession(m)
	if _, err := s.Select(context.Background(), "ob-1"); !domain.IsValidation(err) {
		t.Errorf("Select of settled obligation returned %v, want ValidationError", err)
	}
}

func TestSessionReselectDiscardsPreviousCandidates(t *testing.T) {
	m := newMockLedger()
	m.addObligation("ob-a", "100.00", march10)
	m.addObligation("ob-b", "200.00", march10)
	m.addTransaction("tx-a", "-100.00", march10)
	m.addTransaction("tx-b", "-200.00", march10)

	s := newTestSession(m)
	if _, err := s.Select(context.Background(), "ob-a"); err != nil {
		t.Fatalf("first Select failed: %v", err)
	}
	if _, err := s.Select(context.Background(), "ob-b"); err != nil {
		t.Fatalf("second Select failed: %v", err)
	}

	// tx-a was a candidate for ob-a only; accepting it now must fail.
	if err := s.Accept(context.Background(), "tx-a"); !domain.IsValidation(err) {
		t.Errorf("Accept of discarded candidate returned %v, want ValidationError", err)
	}
	if m.obligations["ob-a"].State != domain.ObligationOpen {
		t.Error("ob-a must remain open")
	}
}

func TestSessionAcceptAppliesMatchAtomically(t *testing.T) {
	m := newMockLedger()
	m.addObligation("ob-1", "500.00", march10)
	m.addTransaction("tx-1", "-500.00", march10.AddDate(0, 0, 1))

	s := newTestSession(m)
	if _, err := s.Select(context.Background(), "ob-1"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := s.Accept(context.Background(), "tx-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	ob := m.obligations["ob-1"]
	tx := m.transactions["tx-1"]
	if ob.State != domain.ObligationSettled || !tx.Reconciled {
		t.Error("both sides must reflect the match after a confirmed accept")
	}
	if tx.LinkedObligationID != "ob-1" || ob.SettledViaTransactionID != "tx-1" {
		t.Error("links not set on both records")
	}
	if ob.SettledDate == nil || !ob.SettledDate.Equal(tx.Date) {
		t.Error("settled date should be the transaction date")
	}
	if s.Selected() != "" {
		t.Error("selection should clear after a confirmed accept")
	}
}

func TestSessionAcceptFailureIsNotOptimistic(t *testing.T) {
	m := newMockLedger()
	m.addObligation("ob-1", "500.00", march10)
	m.addTransaction("tx-1", "-500.00", march10)

	s := newTestSession(m)
	if _, err := s.Select(context.Background(), "ob-1"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	m.failAccept = true
	err := s.Accept(context.Background(), "tx-1")
	if err == nil {
		t.Fatal("Accept should surface the collaborator failure")
	}
	if domain.IsValidation(err) {
		t.Error("a collaborator failure is not a validation error")
	}

	if m.obligations["ob-1"].State != domain.ObligationOpen || m.transactions["tx-1"].Reconciled {
		t.Error("failed accept must leave both records untouched")
	}
	if s.Selected() != "ob-1" {
		t.Error("selection must survive a failed accept so the operator can retry")
	}

	// Retry once the collaborator recovers.
	m.failAccept = false
	if err := s.Accept(context.Background(), "tx-1"); err != nil {
		t.Fatalf("retry Accept failed: %v", err)
	}
	if m.obligations["ob-1"].State != domain.ObligationSettled {
		t.Error("retry should settle the obligation")
	}
}

func TestSessionAcceptWithoutSelection(t *testing.T) {
	s := newTestSession(newMockLedger())
	if err := s.Accept(context.Background(), "tx-1"); !domain.IsValidation(err) {
		t.Errorf("Accept without selection returned %v, want ValidationError", err)
	}
}

func TestRemoveMatchReopensBothSides(t *testing.T) {
	m := newMockLedger()
	m.addObligation("ob-1", "500.00", march10)
	m.addTransaction("tx-1", "-500.00", march10)
	if err := m.AcceptMatch(context.Background(), "ob-1", "tx-1", march10); err != nil {
		t.Fatalf("AcceptMatch failed: %v", err)
	}

	if err := m.RemoveMatch(context.Background(), "ob-1"); err != nil {
		t.Fatalf("RemoveMatch failed: %v", err)
	}

	if m.obligations["ob-1"].State != domain.ObligationOpen {
		t.Error("obligation should reopen")
	}
	if m.transactions["tx-1"].Reconciled || m.transactions["tx-1"].LinkedObligationID != "" {
		t.Error("transaction should be released")
	}

	var notFound error = domain.ErrNotFound
	if err := m.RemoveMatch(context.Background(), "ob-missing"); !errors.Is(err, notFound) {
		t.Errorf("RemoveMatch of missing obligation returned %v, want ErrNotFound", err)
	}
}
