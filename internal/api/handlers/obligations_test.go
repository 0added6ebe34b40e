package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/match"
	"github.com/mverdani/primanota/internal/reconcile"
)

var march10 = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

// mockScadenzeStore backs both the handler and the manual session.
type mockScadenzeStore struct {
	obligations  map[string]*domain.Obligation
	transactions map[string]*domain.BankTransaction
}

func newMockScadenzeStore() *mockScadenzeStore {
	return &mockScadenzeStore{
		obligations:  make(map[string]*domain.Obligation),
		transactions: make(map[string]*domain.BankTransaction),
	}
}

func (m *mockScadenzeStore) addObligation(id, amount string, due time.Time) {
	m.obligations[id] = &domain.Obligation{
		ID:               id,
		CounterpartyName: "fornitore " + id,
		DueDate:          due,
		Amount:           decimal.RequireFromString(amount),
		State:            domain.ObligationOpen,
	}
}

func (m *mockScadenzeStore) addTransaction(id, amount string, date time.Time) {
	m.transactions[id] = &domain.BankTransaction{
		ID:     id,
		Date:   date,
		Amount: decimal.RequireFromString(amount),
	}
}

func (m *mockScadenzeStore) ListObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error) {
	var out []*domain.Obligation
	for _, ob := range m.obligations {
		cp := *ob
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockScadenzeStore) ListOpenObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error) {
	var out []*domain.Obligation
	for _, ob := range m.obligations {
		if !ob.Open() {
			continue
		}
		cp := *ob
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockScadenzeStore) GetObligation(ctx context.Context, id string) (*domain.Obligation, error) {
	ob, ok := m.obligations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ob
	return &cp, nil
}

func (m *mockScadenzeStore) CreateObligation(ctx context.Context, ob domain.Obligation) error {
	m.obligations[ob.ID] = &ob
	return nil
}

func (m *mockScadenzeStore) DeleteObligation(ctx context.Context, id string) error {
	delete(m.obligations, id)
	return nil
}

func (m *mockScadenzeStore) ListBankTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.BankTransaction, error) {
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

func (m *mockScadenzeStore) AcceptMatch(ctx context.Context, obligationID, transactionID string, settledDate time.Time) error {
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

func (m *mockScadenzeStore) RemoveMatch(ctx context.Context, obligationID string) error {
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

func newTestObligationsHandler(m *mockScadenzeStore) *ObligationsHandler {
	session := reconcile.NewSession(m, m, m, match.DefaultConfig())
	return NewObligationsHandler(m, session, zerolog.Nop())
}

func confirm(t *testing.T, h *ObligationsHandler, obligationID, transactionID string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"obligation_id":"` + obligationID + `","transaction_id":"` + transactionID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/riconciliazione/conferma", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)
	return rec
}

func TestCandidatesThenConfirmSettlesMatch(t *testing.T) {
	m := newMockScadenzeStore()
	m.addObligation("ob-1", "500.00", march10)
	m.addTransaction("tx-1", "-500.00", march10.AddDate(0, 0, 1))

	h := newTestObligationsHandler(m)

	req := httptest.NewRequest(http.MethodGet, "/api/scadenze/ob-1/candidati", nil)
	rec := httptest.NewRecorder()
	h.Candidates(rec, req, "ob-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Candidates status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "tx-1") {
		t.Fatalf("candidates should offer tx-1: %s", rec.Body)
	}

	rec = confirm(t, h, "ob-1", "tx-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Confirm status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if m.obligations["ob-1"].State != domain.ObligationSettled {
		t.Error("scadenza must be settled after confirm")
	}
	if !m.transactions["tx-1"].Reconciled {
		t.Error("movement must be reconciled after confirm")
	}
}

func TestConfirmRejectsMovementOutsideCandidates(t *testing.T) {
	m := newMockScadenzeStore()
	m.addObligation("ob-1", "500.00", march10)
	m.addTransaction("tx-off", "-80.00", march10)

	h := newTestObligationsHandler(m)

	rec := confirm(t, h, "ob-1", "tx-off")
	if rec.Code != http.StatusConflict {
		t.Fatalf("Confirm status = %d, want 409: %s", rec.Code, rec.Body)
	}
	if m.obligations["ob-1"].State != domain.ObligationOpen {
		t.Error("scadenza must remain open")
	}
	if m.transactions["tx-off"].Reconciled {
		t.Error("movement must remain unreconciled")
	}
}

func TestConfirmForDifferentScadenzaReselects(t *testing.T) {
	m := newMockScadenzeStore()
	m.addObligation("ob-a", "100.00", march10)
	m.addObligation("ob-b", "200.00", march10)
	m.addTransaction("tx-a", "-100.00", march10)
	m.addTransaction("tx-b", "-200.00", march10)

	h := newTestObligationsHandler(m)

	// Browse candidates for ob-a, then confirm ob-b directly: the
	// session must switch selection instead of failing.
	req := httptest.NewRequest(http.MethodGet, "/api/scadenze/ob-a/candidati", nil)
	h.Candidates(httptest.NewRecorder(), req, "ob-a")

	rec := confirm(t, h, "ob-b", "tx-b")
	if rec.Code != http.StatusOK {
		t.Fatalf("Confirm status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if m.obligations["ob-b"].State != domain.ObligationSettled {
		t.Error("ob-b must be settled")
	}

	// tx-b is now reconciled; it can never be offered for ob-a.
	rec = confirm(t, h, "ob-a", "tx-b")
	if rec.Code != http.StatusConflict {
		t.Fatalf("Confirm of a settled movement status = %d, want 409: %s", rec.Code, rec.Body)
	}
	if m.obligations["ob-a"].State != domain.ObligationOpen {
		t.Error("ob-a must remain open")
	}
}

func TestCandidatesSettledScadenzaConflict(t *testing.T) {
	m := newMockScadenzeStore()
	m.addObligation("ob-1", "500.00", march10)
	m.obligations["ob-1"].State = domain.ObligationSettled

	h := newTestObligationsHandler(m)

	req := httptest.NewRequest(http.MethodGet, "/api/scadenze/ob-1/candidati", nil)
	rec := httptest.NewRecorder()
	h.Candidates(rec, req, "ob-1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("Candidates status = %d, want 409: %s", rec.Code, rec.Body)
	}
}

func TestCandidatesUnknownScadenzaNotFound(t *testing.T) {
	m := newMockScadenzeStore()
	h := newTestObligationsHandler(m)

	req := httptest.NewRequest(http.MethodGet, "/api/scadenze/missing/candidati", nil)
	rec := httptest.NewRecorder()
	h.Candidates(rec, req, "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Candidates status = %d, want 404: %s", rec.Code, rec.Body)
	}
}
