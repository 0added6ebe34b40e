package reconcile

import (
	"context"
	"time"

	"github.com/mverdani/primanota/internal/domain"
)

// ObligationReader lists the open scadenze considered for matching.
type ObligationReader interface {
	ListOpenObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error)
	GetObligation(ctx context.Context, id string) (*domain.Obligation, error)
}

// TransactionReader lists the bank movements available as candidates.
type TransactionReader interface {
	ListBankTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.BankTransaction, error)
}

// MatchWriter applies and removes associations. AcceptMatch must be
// atomic on the collaborator side: either the obligation is settled and
// the transaction reconciled, or neither changes.
type MatchWriter interface {
	AcceptMatch(ctx context.Context, obligationID, transactionID string, settledDate time.Time) error
	RemoveMatch(ctx context.Context, obligationID string) error
}
