package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/mverdani/primanota/internal/domain"
)

// InsertBankTransactionsWithClient appends a batch of statement lines.
func InsertBankTransactionsWithClient(ctx context.Context, client *bigquery.Client, rows []*BankTransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(projectID, datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertBankTransactions: inserting rows: %w", err)
	}
	return nil
}

// GetBankTransactionWithClient fetches one movement by ID.
func GetBankTransactionWithClient(ctx context.Context, client *bigquery.Client, transactionID string) (*BankTransactionRow, error) {
	q := client.Query(fmt.Sprintf(
		"SELECT * FROM `%s.%s.%s` WHERE transaction_id = @transaction_id LIMIT 1",
		projectID, datasetID, transactionsTable,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "transaction_id", Value: transactionID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBankTransaction: query read: %w", err)
	}

	var r BankTransactionRow
	if err := it.Next(&r); err == iterator.Done {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("GetBankTransaction: iterating: %w", err)
	}
	return &r, nil
}

// ListBankTransactionsWithClient lists movements matching the filter,
// value date ascending.
func ListBankTransactionsWithClient(ctx context.Context, client *bigquery.Client, filter domain.TransactionFilter) ([]*BankTransactionRow, error) {
	sql := fmt.Sprintf(
		"SELECT * FROM `%s.%s.%s` WHERE TRUE",
		projectID, datasetID, transactionsTable,
	)
	var params []bigquery.QueryParameter

	if filter.OnlyUnmatched {
		sql += " AND reconciled = FALSE"
	}
	if filter.LinkedToID != "" {
		sql += " AND linked_obligation_id = @linked_obligation_id"
		params = append(params, bigquery.QueryParameter{Name: "linked_obligation_id", Value: filter.LinkedToID})
	}
	if filter.Period != nil {
		if !filter.Period.Start.IsZero() {
			sql += " AND value_date >= @start_date"
			params = append(params, bigquery.QueryParameter{Name: "start_date", Value: filter.Period.Start.Format(dateFormat)})
		}
		if !filter.Period.End.IsZero() {
			sql += " AND value_date <= @end_date"
			params = append(params, bigquery.QueryParameter{Name: "end_date", Value: filter.Period.End.Format(dateFormat)})
		}
	}
	sql += " ORDER BY value_date, created_ts"

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBankTransactions: query read: %w", err)
	}

	var rows []*BankTransactionRow
	for {
		var r BankTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBankTransactions: iterating: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
