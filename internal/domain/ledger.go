package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account identifies one of the two prima nota books.
type Account string

const (
	AccountCassa Account = "cassa"
	AccountBanca Account = "banca"
)

// Valid reports whether the account is one of the known books.
func (a Account) Valid() bool {
	return a == AccountCassa || a == AccountBanca
}

// Direction is the sign of a prima nota movement.
type Direction string

const (
	DirectionEntrata Direction = "entrata"
	DirectionUscita  Direction = "uscita"
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool {
	return d == DirectionEntrata || d == DirectionUscita
}

// LedgerEntry is one dated movement of the cash or bank journal.
// Amount is always positive; Direction carries the sign. Once created, only
// Description and Category may be edited.
type LedgerEntry struct {
	ID            string          `json:"id"`
	Account       Account         `json:"account"`
	Date          time.Time       `json:"date"`
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Counterparty  string          `json:"counterparty,omitempty"`
	LinkedCheckID string          `json:"linked_check_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the amount with the direction applied: positive for
// entrata, negative for uscita.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == DirectionUscita {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Validate rejects malformed entries before they reach the store.
func (e LedgerEntry) Validate() error {
	if !e.Account.Valid() {
		return &ValidationError{Field: "account", Reason: "must be cassa or banca"}
	}
	if e.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if !e.Direction.Valid() {
		return &ValidationError{Field: "direction", Reason: "must be entrata or uscita"}
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

// LedgerEntryPatch is a soft edit of an existing entry. Nil fields are
// left unchanged; date, amount and direction are immutable.
type LedgerEntryPatch struct {
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// AccountInfo is a conto record: one of the two books plus the opening
// balance used as B0 by the running balance calculator.
type AccountInfo struct {
	Account        Account         `json:"account"`
	Name           string          `json:"name"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// Period is an inclusive date range filter.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PreviousMonth returns the calendar month before the one containing ref,
// first day through last day.
func PreviousMonth(ref time.Time) Period {
	year, month, _ := ref.Date()
	start := time.Date(year, month-1, 1, 0, 0, 0, 0, ref.Location())
	end := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location()).AddDate(0, 0, -1)
	return Period{Start: start, End: end}
}

// Contains reports whether t falls inside the period. A zero Start or End
// leaves that side unbounded.
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}
