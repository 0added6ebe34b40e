package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/mverdani/primanota/internal/domain"
)

// Repository is the BigQuery-backed persistence collaborator. It holds a
// shared client and exposes domain-typed operations over the *WithClient
// functions.
type Repository struct {
	client *bigquery.Client
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListLedgerEntries returns one account's prima nota, chronologically
// ascending.
func (r *Repository) ListLedgerEntries(ctx context.Context, account domain.Account, period *domain.Period) ([]domain.LedgerEntry, error) {
	rows, err := QueryLedgerEntriesWithClient(ctx, r.client, account, period)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.ToDomain())
	}
	return entries, nil
}

// CreateLedgerEntry appends one prima nota entry.
func (r *Repository) CreateLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	return InsertLedgerEntryWithClient(ctx, r.client, NewLedgerEntryRow(e))
}

// UpdateLedgerEntry applies a soft edit to description/category.
func (r *Repository) UpdateLedgerEntry(ctx context.Context, entryID string, patch domain.LedgerEntryPatch) error {
	return UpdateLedgerEntryWithClient(ctx, r.client, entryID, patch)
}

// DeleteLedgerEntry removes one entry.
func (r *Repository) DeleteLedgerEntry(ctx context.Context, entryID string) error {
	return DeleteLedgerEntryWithClient(ctx, r.client, entryID)
}

// ListAccounts lists the configured conti.
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.AccountInfo, error) {
	rows, err := ListAccountsWithClient(ctx, r.client)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.AccountInfo, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.ToDomain())
	}
	return accounts, nil
}

// GetAccount fetches one conto.
func (r *Repository) GetAccount(ctx context.Context, account domain.Account) (domain.AccountInfo, error) {
	row, err := GetAccountWithClient(ctx, r.client, account)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	return row.ToDomain(), nil
}

// CreateObligation appends one scadenza.
func (r *Repository) CreateObligation(ctx context.Context, ob domain.Obligation) error {
	return InsertObligationWithClient(ctx, r.client, NewObligationRow(ob))
}

// GetObligation fetches one scadenza by ID.
func (r *Repository) GetObligation(ctx context.Context, obligationID string) (*domain.Obligation, error) {
	row, err := GetObligationWithClient(ctx, r.client, obligationID)
	if err != nil {
		return nil, err
	}
	ob := row.ToDomain()
	return &ob, nil
}

// ListObligations lists scadenze in every state.
func (r *Repository) ListObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error) {
	rows, err := ListObligationsWithClient(ctx, r.client, period)
	if err != nil {
		return nil, err
	}
	obligations := make([]*domain.Obligation, 0, len(rows))
	for _, row := range rows {
		ob := row.ToDomain()
		obligations = append(obligations, &ob)
	}
	return obligations, nil
}

// ListOpenObligations lists scadenze awaiting settlement.
func (r *Repository) ListOpenObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error) {
	rows, err := ListOpenObligationsWithClient(ctx, r.client, period)
	if err != nil {
		return nil, err
	}
	obligations := make([]*domain.Obligation, 0, len(rows))
	for _, row := range rows {
		ob := row.ToDomain()
		obligations = append(obligations, &ob)
	}
	return obligations, nil
}

// DeleteObligation removes a scadenza, releasing any linked transaction.
func (r *Repository) DeleteObligation(ctx context.Context, obligationID string) error {
	return DeleteObligationWithClient(ctx, r.client, obligationID)
}

// AcceptMatch settles an obligation against a transaction atomically.
func (r *Repository) AcceptMatch(ctx context.Context, obligationID, transactionID string, settledDate time.Time) error {
	return AcceptMatchWithClient(ctx, r.client, obligationID, transactionID, settledDate)
}

// RemoveMatch reopens a settled obligation and releases its transaction.
func (r *Repository) RemoveMatch(ctx context.Context, obligationID string) error {
	return RemoveMatchWithClient(ctx, r.client, obligationID)
}

// GetBankTransaction fetches one movement by ID.
func (r *Repository) GetBankTransaction(ctx context.Context, transactionID string) (*domain.BankTransaction, error) {
	row, err := GetBankTransactionWithClient(ctx, r.client, transactionID)
	if err != nil {
		return nil, err
	}
	tx := row.ToDomain()
	return &tx, nil
}

// ListBankTransactions lists movements matching the filter.
func (r *Repository) ListBankTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.BankTransaction, error) {
	rows, err := ListBankTransactionsWithClient(ctx, r.client, filter)
	if err != nil {
		return nil, err
	}
	txs := make([]*domain.BankTransaction, 0, len(rows))
	for _, row := range rows {
		tx := row.ToDomain()
		txs = append(txs, &tx)
	}
	return txs, nil
}

// InsertBankTransactions appends a batch of imported statement lines.
func (r *Repository) InsertBankTransactions(ctx context.Context, txs []domain.BankTransaction) error {
	rows := make([]*BankTransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, NewBankTransactionRow(tx))
	}
	return InsertBankTransactionsWithClient(ctx, r.client, rows)
}
