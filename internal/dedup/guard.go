// Package dedup implements the duplicate guard shared by every import
// path: a record whose fingerprint is already present is skipped, never
// inserted twice and never treated as an error.
package dedup

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fingerprint identifies an imported record by date and cent-rounded
// amount, optionally extended with a normalized description. Rounding to
// cents is the epsilon for currency comparison: two amounts that agree at
// two decimal places collide.
type Fingerprint string

const dateLayout = "2006-01-02"

// NewFingerprint builds the fingerprint of a (date, amount) pair.
func NewFingerprint(date time.Time, amount decimal.Decimal) Fingerprint {
	return Fingerprint(date.Format(dateLayout) + "|" + amount.Round(2).String())
}

// NewFingerprintWithDescription additionally mixes in the normalized
// description, for sources where same-day same-amount lines are common.
func NewFingerprintWithDescription(date time.Time, amount decimal.Decimal, description string) Fingerprint {
	return NewFingerprint(date, amount) + Fingerprint("|"+normalize(description))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Guard tracks the fingerprints already present in the store plus those
// admitted during the current import, so re-running the same source file
// adds nothing.
type Guard struct {
	seen map[Fingerprint]struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{seen: make(map[Fingerprint]struct{})}
}

// Seed marks fingerprints of records already in the store.
func (g *Guard) Seed(fps ...Fingerprint) {
	for _, fp := range fps {
		g.seen[fp] = struct{}{}
	}
}

// Admit reports whether the fingerprint is new, recording it if so. A
// false return means the record must be skipped and counted, not stored.
func (g *Guard) Admit(fp Fingerprint) bool {
	if _, dup := g.seen[fp]; dup {
		return false
	}
	g.seen[fp] = struct{}{}
	return true
}

// Report aggregates one import run. Imported + Skipped + len(Errors)
// always equals Total.
type Report struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors,omitempty"`
}

// Add records the outcome of one source row.
func (r *Report) Add(imported bool) {
	r.Total++
	if imported {
		r.Imported++
	} else {
		r.Skipped++
	}
}

// AddError records a row that could not be processed at all.
func (r *Report) AddError(msg string) {
	r.Total++
	r.Errors = append(r.Errors, msg)
}
