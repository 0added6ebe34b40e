package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/domain"
)

// LedgerEntryRow maps contabilita.prima_nota.
type LedgerEntryRow struct {
	EntryID string `bigquery:"entry_id"` // REQUIRED

	Account   string     `bigquery:"account"`    // REQUIRED: cassa | banca
	EntryDate civil.Date `bigquery:"entry_date"` // REQUIRED
	Direction string     `bigquery:"direction"`  // REQUIRED: entrata | uscita

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, always positive

	Category     bigquery.NullString `bigquery:"category"`     // NULLABLE
	Description  string              `bigquery:"description"`  // REQUIRED
	Counterparty bigquery.NullString `bigquery:"counterparty"` // NULLABLE

	LinkedCheckID bigquery.NullString `bigquery:"linked_check_id"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// ToDomain converts the row to a domain ledger entry.
func (r *LedgerEntryRow) ToDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:            r.EntryID,
		Account:       domain.Account(r.Account),
		Date:          r.EntryDate.In(time.UTC),
		Direction:     domain.Direction(r.Direction),
		Amount:        decimalFromRat(r.Amount),
		Category:      r.Category.StringVal,
		Description:   r.Description,
		Counterparty:  r.Counterparty.StringVal,
		LinkedCheckID: r.LinkedCheckID.StringVal,
		CreatedAt:     r.CreatedTS,
	}
}

// NewLedgerEntryRow maps a domain entry onto the table schema.
func NewLedgerEntryRow(e domain.LedgerEntry) *LedgerEntryRow {
	return &LedgerEntryRow{
		EntryID:       e.ID,
		Account:       string(e.Account),
		EntryDate:     civil.DateOf(e.Date),
		Direction:     string(e.Direction),
		Amount:        e.Amount.Rat(),
		Category:      nullString(e.Category),
		Description:   e.Description,
		Counterparty:  nullString(e.Counterparty),
		LinkedCheckID: nullString(e.LinkedCheckID),
		CreatedTS:     e.CreatedAt,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, 2)
}
