package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationState tracks the settlement lifecycle of a scadenza.
// The only automatic transition is open -> settled through an accepted
// match; settled -> open happens only via an explicit remove-association.
type ObligationState string

const (
	ObligationOpen    ObligationState = "open"
	ObligationSettled ObligationState = "settled"
)

// Obligation is a scadenza: a payable or payroll transfer awaiting
// settlement against a bank transaction.
type Obligation struct {
	ID                      string          `json:"id"`
	CounterpartyName        string          `json:"counterparty_name"`
	InvoiceRef              string          `json:"invoice_ref"`
	DueDate                 time.Time       `json:"due_date"`
	Amount                  decimal.Decimal `json:"amount"`
	SettlementMethod        string          `json:"settlement_method"`
	State                   ObligationState `json:"state"`
	SettledDate             *time.Time      `json:"settled_date,omitempty"`
	SettledViaTransactionID string          `json:"settled_via_transaction_id,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
}

// Validate rejects malformed obligations before they reach the store.
func (o Obligation) Validate() error {
	if o.CounterpartyName == "" {
		return &ValidationError{Field: "counterparty_name", Reason: "is required"}
	}
	if o.DueDate.IsZero() {
		return &ValidationError{Field: "due_date", Reason: "is required"}
	}
	if !o.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

// Open reports whether the obligation still awaits settlement.
func (o Obligation) Open() bool {
	return o.State == ObligationOpen
}
