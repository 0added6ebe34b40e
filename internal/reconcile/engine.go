// Package reconcile links scadenze to the bank transactions that paid
// them: a batch engine for the background job, a session for manual
// matching, and a polling orchestrator for operator-facing clients.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/match"
)

// Engine runs batch matching over the open obligations of a period.
type Engine struct {
	obligations  ObligationReader
	transactions TransactionReader
	writer       MatchWriter
	cfg          match.Config
	log          zerolog.Logger
}

// NewEngine creates a batch matching engine.
func NewEngine(obligations ObligationReader, transactions TransactionReader, writer MatchWriter, cfg match.Config, log zerolog.Logger) *Engine {
	return &Engine{
		obligations:  obligations,
		transactions: transactions,
		writer:       writer,
		cfg:          cfg,
		log:          log,
	}
}

// pairing is one obligation/candidate couple considered by the batch run.
type pairing struct {
	obligationID string
	candidate    match.Candidate
}

// Run matches open obligations against unreconciled transactions and
// applies the excellent-tier matches through the atomic writer. Lower
// scores win; each transaction settles at most one obligation. Matches
// below the excellent tier are left for manual review.
func (e *Engine) Run(ctx context.Context, period *domain.Period) (*domain.ReconcileResult, error) {
	open, err := e.obligations.ListOpenObligations(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("Run: list open obligations: %w", err)
	}

	available, err := e.transactions.ListBankTransactions(ctx, domain.TransactionFilter{OnlyUnmatched: true})
	if err != nil {
		return nil, fmt.Errorf("Run: list bank transactions: %w", err)
	}

	txs := make([]domain.BankTransaction, 0, len(available))
	for _, tx := range available {
		txs = append(txs, *tx)
	}

	// Collect every admissible pairing, then walk them best-first so a
	// transaction always goes to the obligation it fits best.
	var pairings []pairing
	for _, ob := range open {
		for _, cand := range match.Rank(e.cfg, *ob, txs) {
			if cand.Tier != match.TierExcellent {
				continue
			}
			pairings = append(pairings, pairing{obligationID: ob.ID, candidate: cand})
		}
	}
	sort.SliceStable(pairings, func(i, j int) bool {
		return pairings[i].candidate.Score < pairings[j].candidate.Score
	})

	result := &domain.ReconcileResult{}
	settled := make(map[string]bool, len(open))
	claimed := make(map[string]bool, len(txs))

	txDates := make(map[string]int, len(txs))
	for i, tx := range txs {
		txDates[tx.ID] = i
	}

	for _, p := range pairings {
		if settled[p.obligationID] || claimed[p.candidate.TransactionID] {
			continue
		}

		settledDate := txs[txDates[p.candidate.TransactionID]].Date
		if err := e.writer.AcceptMatch(ctx, p.obligationID, p.candidate.TransactionID, settledDate); err != nil {
			// On failure neither record changed; skip the pair and keep
			// going so one bad write does not sink the whole run.
			e.log.Error().
				Err(err).
				Str("obligation_id", p.obligationID).
				Str("transaction_id", p.candidate.TransactionID).
				Msg("Accept match failed during batch run")
			continue
		}

		settled[p.obligationID] = true
		claimed[p.candidate.TransactionID] = true
		result.Matched++

		e.log.Info().
			Str("obligation_id", p.obligationID).
			Str("transaction_id", p.candidate.TransactionID).
			Str("tier", string(p.candidate.Tier)).
			Msg("Obligation settled by batch reconciliation")
	}

	result.Unmatched = len(open) - result.Matched
	return result, nil
}
