// Package ledger derives running balances for prima nota entries.
//
// Balances are always computed by walking the entries in chronological
// order, oldest first, regardless of how the caller wants them displayed.
// Walking a newest-first list and summing from an index produces a suffix
// sum, not a running balance, and is deliberately not offered here.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/domain"
)

// BalancedEntry pairs a ledger entry with the balance as of and including
// that entry.
type BalancedEntry struct {
	domain.LedgerEntry
	Balance decimal.Decimal `json:"balance"`
}

// Running computes the per-entry balance for one account given the opening
// balance. The input is not mutated; the result is ordered chronologically
// ascending. An empty input yields an empty result.
//
// Invariant: for consecutive entries A, B in the result,
// balance(B) = balance(A) + signed(B).
func Running(entries []domain.LedgerEntry, opening decimal.Decimal) []BalancedEntry {
	if len(entries) == 0 {
		return []BalancedEntry{}
	}

	ordered := make([]domain.LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := make([]BalancedEntry, 0, len(ordered))
	balance := opening
	for _, e := range ordered {
		balance = balance.Add(e.Signed())
		out = append(out, BalancedEntry{LedgerEntry: e, Balance: balance})
	}
	return out
}

// NewestFirst reverses a chronologically ascending result for display.
// Balances are preserved as computed; only the order changes.
func NewestFirst(entries []BalancedEntry) []BalancedEntry {
	out := make([]BalancedEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// Closing returns the balance after the last entry, or the opening balance
// when there are no entries.
func Closing(entries []BalancedEntry, opening decimal.Decimal) decimal.Decimal {
	if len(entries) == 0 {
		return opening
	}
	return entries[len(entries)-1].Balance
}
