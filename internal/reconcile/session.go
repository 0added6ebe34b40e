package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/match"
)

// Session is the manual-matching path: the operator selects one open
// obligation, reviews ranked candidates and accepts exactly one. Only one
// obligation is selected at a time; selecting a new one discards the
// unconfirmed candidates of the previous selection.
type Session struct {
	obligations  ObligationReader
	transactions TransactionReader
	writer       MatchWriter
	cfg          match.Config

	mu         sync.Mutex
	selected   string
	candidates map[string]match.Candidate // keyed by transaction ID
	dates      map[string]time.Time
}

// NewSession creates a manual matching session.
func NewSession(obligations ObligationReader, transactions TransactionReader, writer MatchWriter, cfg match.Config) *Session {
	return &Session{
		obligations:  obligations,
		transactions: transactions,
		writer:       writer,
		cfg:          cfg,
	}
}

// Select computes candidates for the obligation against every
// unreconciled transaction, ranked best-first, and makes it the current
// selection. Any previous selection is discarded.
func (s *Session) Select(ctx context.Context, obligationID string) ([]match.Candidate, error) {
	ob, err := s.obligations.GetObligation(ctx, obligationID)
	if err != nil {
		return nil, fmt.Errorf("Select: load obligation %s: %w", obligationID, err)
	}
	if !ob.Open() {
		return nil, &domain.ValidationError{Field: "obligation", Reason: "already settled"}
	}

	available, err := s.transactions.ListBankTransactions(ctx, domain.TransactionFilter{OnlyUnmatched: true})
	if err != nil {
		return nil, fmt.Errorf("Select: list bank transactions: %w", err)
	}

	txs := make([]domain.BankTransaction, 0, len(available))
	dates := make(map[string]time.Time, len(available))
	for _, tx := range available {
		txs = append(txs, *tx)
		dates[tx.ID] = tx.Date
	}

	ranked := match.Rank(s.cfg, *ob, txs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = obligationID
	s.candidates = make(map[string]match.Candidate, len(ranked))
	for _, c := range ranked {
		s.candidates[c.TransactionID] = c
	}
	s.dates = dates

	return ranked, nil
}

// Accept confirms one candidate of the current selection. Local state
// changes only after the collaborator confirms the atomic update; on
// failure both records keep their prior state and the selection survives.
func (s *Session) Accept(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	obligationID := s.selected
	cand, offered := s.candidates[transactionID]
	settledDate, hasDate := s.dates[transactionID]
	s.mu.Unlock()

	if obligationID == "" {
		return &domain.ValidationError{Field: "selection", Reason: "no obligation selected"}
	}
	if !offered || !hasDate {
		return &domain.ValidationError{Field: "transaction_id", Reason: "not among the offered candidates"}
	}

	if err := s.writer.AcceptMatch(ctx, obligationID, cand.TransactionID, settledDate); err != nil {
		return fmt.Errorf("Accept: accept match: %w", err)
	}

	s.mu.Lock()
	s.selected = ""
	s.candidates = nil
	s.dates = nil
	s.mu.Unlock()

	return nil
}

// Clear drops the current selection without confirming anything.
func (s *Session) Clear() {
	s.mu.Lock()
	s.selected = ""
	s.candidates = nil
	s.dates = nil
	s.mu.Unlock()
}

// Selected returns the currently selected obligation ID, or empty.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}
