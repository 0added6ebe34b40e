package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one imported bank-statement line. Amount is signed:
// negative for outgoing payments. Reconciled flips to true only through
// the matching process; LinkedObligationID is a weak reference that must
// be cleared when the obligation is deleted.
type BankTransaction struct {
	ID                 string          `json:"id"`
	Date               time.Time       `json:"date"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description"`
	Reconciled         bool            `json:"reconciled"`
	LinkedObligationID string          `json:"linked_obligation_id,omitempty"`
	StatementURI       string          `json:"statement_uri,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Validate rejects malformed transactions before they reach the store.
func (t BankTransaction) Validate() error {
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if t.Amount.IsZero() {
		return &ValidationError{Field: "amount", Reason: "must be non-zero"}
	}
	return nil
}

// AbsAmount returns the unsigned payment amount, which is what the match
// scorer compares against an obligation's amount due.
func (t BankTransaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// TransactionFilter narrows a bank transaction listing.
type TransactionFilter struct {
	Period        *Period
	OnlyUnmatched bool
	LinkedToID    string
}

// ReconcileResult is the aggregate outcome of one batch reconciliation.
type ReconcileResult struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}
