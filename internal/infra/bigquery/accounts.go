package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/mverdani/primanota/internal/domain"
)

// AccountRow maps contabilita.conti: the two books and their opening
// balances, consumed as B0 by the running balance calculator.
type AccountRow struct {
	Account        string   `bigquery:"account"`         // REQUIRED: cassa | banca
	Name           string   `bigquery:"name"`            // REQUIRED
	OpeningBalance *big.Rat `bigquery:"opening_balance"` // REQUIRED NUMERIC
}

// ToDomain converts the row to domain account info.
func (r *AccountRow) ToDomain() domain.AccountInfo {
	return domain.AccountInfo{
		Account:        domain.Account(r.Account),
		Name:           r.Name,
		OpeningBalance: decimalFromRat(r.OpeningBalance),
	}
}

// ListAccountsWithClient lists the configured conti.
func ListAccountsWithClient(ctx context.Context, client *bigquery.Client) ([]*AccountRow, error) {
	q := client.Query(fmt.Sprintf(
		"SELECT account, name, opening_balance FROM `%s.%s.%s` ORDER BY account",
		projectID, datasetID, accountsTable,
	))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query read: %w", err)
	}

	var rows []*AccountRow
	for {
		var r AccountRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: iterating: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// GetAccountWithClient fetches one conto.
func GetAccountWithClient(ctx context.Context, client *bigquery.Client, account domain.Account) (*AccountRow, error) {
	q := client.Query(fmt.Sprintf(
		"SELECT account, name, opening_balance FROM `%s.%s.%s` WHERE account = @account LIMIT 1",
		projectID, datasetID, accountsTable,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "account", Value: string(account)}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: query read: %w", err)
	}

	var r AccountRow
	if err := it.Next(&r); err == iterator.Done {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("GetAccount: iterating: %w", err)
	}
	return &r, nil
}
