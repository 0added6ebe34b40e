// Package match scores the compatibility of a scadenza against a
// bank-statement transaction. Scoring is a pure function over the two
// records and a configuration; nothing here touches storage.
package match

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/domain"
)

// Tier is the confidence label shown to the operator instead of a raw
// score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierUncertain Tier = "uncertain"
)

// Candidate is a scored pairing of one obligation and one transaction.
// Derived on demand, never persisted. Lower Score is better.
type Candidate struct {
	TransactionID    string          `json:"transaction_id"`
	ObligationID     string          `json:"obligation_id"`
	AmountDifference decimal.Decimal `json:"amount_difference"`
	DateDistanceDays int             `json:"date_distance_days"`
	Score            float64         `json:"score"`
	Tier             Tier            `json:"tier"`
}

// Config holds the tunable thresholds of the scorer. Amount comparisons
// are done on cent-rounded decimals; the admission tolerance is the
// greater of the absolute and percentage bounds.
type Config struct {
	// DateWindowDays is the admission window around the due date.
	DateWindowDays int

	// AmountToleranceAbsolute admits candidates whose amount difference
	// does not exceed this value.
	AmountToleranceAbsolute decimal.Decimal

	// AmountTolerancePercent admits candidates whose amount difference
	// does not exceed this fraction of the obligation amount.
	AmountTolerancePercent decimal.Decimal

	// DateWeight converts a day of distance into score units, so amount
	// difference and date distance share one ordering key.
	DateWeight float64

	// Tier thresholds. A candidate is excellent when both its amount
	// difference and date distance are within the excellent bounds, good
	// when within the good bounds, uncertain otherwise.
	ExcellentMaxDiff decimal.Decimal
	ExcellentMaxDays int
	GoodMaxDiff      decimal.Decimal
	GoodMaxDays      int
}

// DefaultConfig returns the thresholds used when no override is supplied.
func DefaultConfig() Config {
	return Config{
		DateWindowDays:          30,
		AmountToleranceAbsolute: decimal.RequireFromString("1.00"),
		AmountTolerancePercent:  decimal.RequireFromString("0.02"),
		DateWeight:              0.5,
		ExcellentMaxDiff:        decimal.RequireFromString("0.01"),
		ExcellentMaxDays:        3,
		GoodMaxDiff:             decimal.RequireFromString("1.00"),
		GoodMaxDays:             10,
	}
}

// WithinTolerance reports whether an amount difference is admissible for
// the given obligation amount.
func (c Config) WithinTolerance(diff, obligationAmount decimal.Decimal) bool {
	if diff.LessThanOrEqual(c.AmountToleranceAbsolute) {
		return true
	}
	if obligationAmount.IsZero() {
		return false
	}
	return diff.Div(obligationAmount.Abs()).LessThanOrEqual(c.AmountTolerancePercent)
}

// Score computes the candidate for one obligation/transaction pair. ok is
// false when the pair falls outside the date window or amount tolerance
// and must not be offered.
func Score(cfg Config, ob domain.Obligation, tx domain.BankTransaction) (Candidate, bool) {
	days := dateDistanceDays(ob.DueDate, tx.Date)
	if days > cfg.DateWindowDays {
		return Candidate{}, false
	}

	diff := ob.Amount.Sub(tx.AbsAmount()).Abs().Round(2)
	if !cfg.WithinTolerance(diff, ob.Amount) {
		return Candidate{}, false
	}

	cand := Candidate{
		TransactionID:    tx.ID,
		ObligationID:     ob.ID,
		AmountDifference: diff,
		DateDistanceDays: days,
		Score:            diff.InexactFloat64() + float64(days)*cfg.DateWeight,
	}
	cand.Tier = cfg.tier(diff, days)
	return cand, true
}

// Rank scores an obligation against every transaction and returns the
// admissible candidates ordered best-first. Reconciled transactions are
// never offered.
func Rank(cfg Config, ob domain.Obligation, txs []domain.BankTransaction) []Candidate {
	candidates := make([]Candidate, 0, len(txs))
	for _, tx := range txs {
		if tx.Reconciled {
			continue
		}
		if c, ok := Score(cfg, ob, tx); ok {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score < candidates[j].Score
	})
	return candidates
}

// tier assigns the confidence bucket. Thresholds are conjunctive per
// bucket, so lowering the amount difference at fixed date distance can
// never demote a candidate.
func (c Config) tier(diff decimal.Decimal, days int) Tier {
	if diff.LessThanOrEqual(c.ExcellentMaxDiff) && days <= c.ExcellentMaxDays {
		return TierExcellent
	}
	if diff.LessThanOrEqual(c.GoodMaxDiff) && days <= c.GoodMaxDays {
		return TierGood
	}
	return TierUncertain
}

func dateDistanceDays(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
