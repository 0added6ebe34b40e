package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/mverdani/primanota/internal/domain"
)

// BankTransactionRow maps contabilita.movimenti_banca.
type BankTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	ValueDate civil.Date `bigquery:"value_date"` // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, signed

	Description string `bigquery:"description"` // REQUIRED

	Reconciled         bool                `bigquery:"reconciled"`           // REQUIRED
	LinkedObligationID bigquery.NullString `bigquery:"linked_obligation_id"` // NULLABLE, weak reference

	StatementURI bigquery.NullString `bigquery:"statement_uri"` // NULLABLE, gs:// source file

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// ToDomain converts the row to a domain bank transaction.
func (r *BankTransactionRow) ToDomain() domain.BankTransaction {
	return domain.BankTransaction{
		ID:                 r.TransactionID,
		Date:               r.ValueDate.In(time.UTC),
		Amount:             decimalFromRat(r.Amount),
		Description:        r.Description,
		Reconciled:         r.Reconciled,
		LinkedObligationID: r.LinkedObligationID.StringVal,
		StatementURI:       r.StatementURI.StringVal,
		CreatedAt:          r.CreatedTS,
	}
}

// NewBankTransactionRow maps a domain transaction onto the table schema.
func NewBankTransactionRow(tx domain.BankTransaction) *BankTransactionRow {
	return &BankTransactionRow{
		TransactionID:      tx.ID,
		ValueDate:          civil.DateOf(tx.Date),
		Amount:             tx.Amount.Rat(),
		Description:        tx.Description,
		Reconciled:         tx.Reconciled,
		LinkedObligationID: nullString(tx.LinkedObligationID),
		StatementURI:       nullString(tx.StatementURI),
		CreatedTS:          tx.CreatedAt,
	}
}
