package match

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/domain"
)

func obligation(amount string, due time.Time) domain.Obligation {
	return domain.Obligation{
		ID:               "ob-1",
		CounterpartyName: "Rossi Forniture",
		DueDate:          due,
		Amount:           decimal.RequireFromString(amount),
		State:            domain.ObligationOpen,
	}
}

func transaction(id, amount string, d time.Time) domain.BankTransaction {
	return domain.BankTransaction{
		ID:     id,
		Date:   d,
		Amount: decimal.RequireFromString(amount),
	}
}

func TestScore(t *testing.T) {
	cfg := DefaultConfig()
	due := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		ob       domain.Obligation
		tx       domain.BankTransaction
		wantOK   bool
		wantTier Tier
	}{
		{
			name:     "exact amount next day is excellent",
			ob:       obligation("500", due),
			tx:       transaction("tx-1", "-500", due.AddDate(0, 0, 1)),
			wantOK:   true,
			wantTier: TierExcellent,
		},
		{
			name:     "cent difference within epsilon is excellent",
			ob:       obligation("500.00", due),
			tx:       transaction("tx-2", "-499.99", due),
			wantOK:   true,
			wantTier: TierExcellent,
		},
		{
			name:     "small difference a week away is good",
			ob:       obligation("500", due),
			tx:       transaction("tx-3", "-499.50", due.AddDate(0, 0, 7)),
			wantOK:   true,
			wantTier: TierGood,
		},
		{
			name:     "far date inside window is uncertain",
			ob:       obligation("500", due),
			tx:       transaction("tx-4", "-500", due.AddDate(0, 0, 20)),
			wantOK:   true,
			wantTier: TierUncertain,
		},
		{
			name:   "amount difference of 150 is rejected",
			ob:     obligation("500", due),
			tx:     transaction("tx-5", "-650", due),
			wantOK: false,
		},
		{
			name:   "outside date window is rejected",
			ob:     obligation("500", due),
			tx:     transaction("tx-6", "-500", due.AddDate(0, 2, 0)),
			wantOK: false,
		},
		{
			name:     "transaction before the due date counts by distance",
			ob:       obligation("500", due),
			tx:       transaction("tx-7", "-500", due.AddDate(0, 0, -2)),
			wantOK:   true,
			wantTier: TierExcellent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, ok := Score(cfg, tt.ob, tt.tx)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cand.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", cand.Tier, tt.wantTier)
			}
			if cand.ObligationID != tt.ob.ID || cand.TransactionID != tt.tx.ID {
				t.Errorf("candidate ids = (%s, %s), want (%s, %s)",
					cand.ObligationID, cand.TransactionID, tt.ob.ID, tt.tx.ID)
			}
		})
	}
}

func TestScoreNeverComparesFloatsExactly(t *testing.T) {
	cfg := DefaultConfig()
	due := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	// 0.1+0.2 style residue must not break an exact-amount match.
	ob := obligation("0.30", due)
	tx := domain.BankTransaction{
		ID:     "tx-f",
		Date:   due,
		Amount: decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2)).Neg(),
	}

	cand, ok := Score(cfg, ob, tx)
	if !ok {
		t.Fatal("expected match within epsilon")
	}
	if cand.Tier != TierExcellent {
		t.Errorf("tier = %s, want excellent", cand.Tier)
	}
}

func TestTierMonotonicInAmountDifference(t *testing.T) {
	cfg := DefaultConfig()
	rank := map[Tier]int{TierExcellent: 0, TierGood: 1, TierUncertain: 2}
	diffs := []string{"10", "1.00", "0.50", "0.01", "0"}

	for days := 0; days <= cfg.DateWindowDays; days++ {
		prev := -1
		for _, d := range diffs {
			got := cfg.tier(decimal.RequireFromString(d), days)
			if prev >= 0 && rank[got] > prev {
				t.Fatalf("tier worsened at days=%d when diff dropped to %s", days, d)
			}
			prev = rank[got]
		}
	}
}

func TestRank(t *testing.T) {
	cfg := DefaultConfig()
	due := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	ob := obligation("500", due)

	txs := []domain.BankTransaction{
		transaction("far", "-500", due.AddDate(0, 0, 9)),
		transaction("near", "-500", due.AddDate(0, 0, 1)),
		{ID: "taken", Date: due, Amount: decimal.RequireFromString("-500"), Reconciled: true},
		transaction("off", "-9000", due),
	}

	got := Rank(cfg, ob, txs)
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].TransactionID != "near" || got[1].TransactionID != "far" {
		t.Errorf("order = [%s, %s], want [near, far]", got[0].TransactionID, got[1].TransactionID)
	}
	if got[0].Score >= got[1].Score {
		t.Errorf("scores not ascending: %f >= %f", got[0].Score, got[1].Score)
	}
}
