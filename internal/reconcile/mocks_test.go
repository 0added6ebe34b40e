package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/domain"
)

// mockLedger is an in-memory obligation/transaction store whose
// AcceptMatch is atomic: both sides flip or neither does.
type mockLedger struct {
	obligations  map[string]*domain.Obligation
	transactions map[string]*domain.BankTransaction
	failAccept   bool
	acceptCalls  int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		obligations:  make(map[string]*domain.Obligation),
		transactions: make(map[string]*domain.BankTransaction),
	}
}

func (m *mockLedger) addObligation(id, amount string, due time.Time) {
	m.obligations[id] = &domain.Obligation{
		ID:               id,
		CounterpartyName: "fornitore " + id,
		DueDate:          due,
		Amount:           decimal.RequireFromString(amount),
		State:            domain.ObligationOpen,
	}
}

func (m *mockLedger) addTransaction(id, amount string, date time.Time) {
	m.transactions[id] = &domain.BankTransaction{
		ID:     id,
		Date:   date,
		Amount: decimal.RequireFromString(amount),
	}
}

func (m *mockLedger) ListOpenObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error) {
	var out []*domain.Obligation
	for _, ob := range m.obligations {
		if !ob.Open() {
			continue
		}
		if period != nil && !period.Contains(ob.DueDate) {
			continue
		}
		cp := *ob
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockLedger) GetObligation(ctx context.Context, id string) (*domain.Obligation, error) {
	ob, ok := m.obligations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ob
	return &cp, nil
}

func (m *mockLedger) ListBankTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.BankTransaction, error) {
	var out []*domain.BankTransaction
	for _, tx := range m.transactions {
		if filter.OnlyUnmatched && tx.Reconciled {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockLedger) AcceptMatch(ctx context.Context, obligationID, transactionID string, settledDate time.Time) error {
	m.acceptCalls++
	if m.failAccept {
		// Simulated mid-operation failure: no record is touched.
		return errors.New("collaborator unavailable")
	}
	ob, okOb := m.obligations[obligationID]
	tx, okTx := m.transactions[transactionID]
	if !okOb || !okTx {
		return domain.ErrNotFound
	}
	if !ob.Open() || tx.Reconciled {
		return errors.New("already matched")
	}
	ob.State = domain.ObligationSettled
	d := settledDate
	ob.SettledDate = &d
	ob.SettledViaTransactionID = transactionID
	tx.Reconciled = true
	tx.LinkedObligationID = obligationID
	return nil
}

func (m *mockLedger) RemoveMatch(ctx context.Context, obligationID string) error {
	ob, ok := m.obligations[obligationID]
	if !ok {
		return domain.ErrNotFound
	}
	if tx, ok := m.transactions[ob.SettledViaTransactionID]; ok {
		tx.Reconciled = false
		tx.LinkedObligationID = ""
	}
	ob.State = domain.ObligationOpen
	ob.SettledDate = nil
	ob.SettledViaTransactionID = ""
	return nil
}

var (
	_ ObligationReader  = (*mockLedger)(nil)
	_ TransactionReader = (*mockLedger)(nil)
	_ MatchWriter       = (*mockLedger)(nil)
)
