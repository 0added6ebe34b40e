package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/mverdani/primanota/internal/domain"
)

// ObligationRow maps contabilita.scadenze.
type ObligationRow struct {
	ObligationID string `bigquery:"obligation_id"` // REQUIRED

	CounterpartyName string              `bigquery:"counterparty_name"` // REQUIRED
	InvoiceRef       bigquery.NullString `bigquery:"invoice_ref"`       // NULLABLE
	DueDate          civil.Date          `bigquery:"due_date"`          // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, positive

	SettlementMethod bigquery.NullString `bigquery:"settlement_method"` // NULLABLE

	State                   string              `bigquery:"state"`                      // REQUIRED: open | settled
	SettledDate             bigquery.NullDate   `bigquery:"settled_date"`               // NULLABLE
	SettledViaTransactionID bigquery.NullString `bigquery:"settled_via_transaction_id"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// ToDomain converts the row to a domain obligation.
func (r *ObligationRow) ToDomain() domain.Obligation {
	ob := domain.Obligation{
		ID:                      r.ObligationID,
		CounterpartyName:        r.CounterpartyName,
		InvoiceRef:              r.InvoiceRef.StringVal,
		DueDate:                 r.DueDate.In(time.UTC),
		Amount:                  decimalFromRat(r.Amount),
		SettlementMethod:        r.SettlementMethod.StringVal,
		State:                   domain.ObligationState(r.State),
		SettledViaTransactionID: r.SettledViaTransactionID.StringVal,
		CreatedAt:               r.CreatedTS,
	}
	if r.SettledDate.Valid {
		t := r.SettledDate.Date.In(time.UTC)
		ob.SettledDate = &t
	}
	return ob
}

// NewObligationRow maps a domain obligation onto the table schema.
func NewObligationRow(ob domain.Obligation) *ObligationRow {
	row := &ObligationRow{
		ObligationID:            ob.ID,
		CounterpartyName:        ob.CounterpartyName,
		InvoiceRef:              nullString(ob.InvoiceRef),
		DueDate:                 civil.DateOf(ob.DueDate),
		Amount:                  ob.Amount.Rat(),
		SettlementMethod:        nullString(ob.SettlementMethod),
		State:                   string(ob.State),
		SettledViaTransactionID: nullString(ob.SettledViaTransactionID),
		CreatedTS:               ob.CreatedAt,
	}
	if ob.SettledDate != nil {
		row.SettledDate = bigquery.NullDate{Date: civil.DateOf(*ob.SettledDate), Valid: true}
	}
	return row
}
