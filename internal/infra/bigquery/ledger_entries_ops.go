package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/mverdani/primanota/internal/domain"
)

// InsertLedgerEntryWithClient appends one prima nota entry.
func InsertLedgerEntryWithClient(ctx context.Context, client *bigquery.Client, row *LedgerEntryRow) error {
	table := client.DatasetInProject(projectID, datasetID).Table(ledgerTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertLedgerEntry: inserting row: %w", err)
	}
	return nil
}

// UpdateLedgerEntryWithClient applies a soft edit. Only description and
// category are mutable; date, amount and direction never change.
func UpdateLedgerEntryWithClient(ctx context.Context, client *bigquery.Client, entryID string, patch domain.LedgerEntryPatch) error {
	var sets []string
	params := []bigquery.QueryParameter{{Name: "entry_id", Value: entryID}}

	if patch.Description != nil {
		sets = append(sets, "description = @description")
		params = append(params, bigquery.QueryParameter{Name: "description", Value: *patch.Description})
	}
	if patch.Category != nil {
		sets = append(sets, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: *patch.Category})
	}
	if len(sets) == 0 {
		return nil
	}

	q := client.Query(fmt.Sprintf(
		"UPDATE `%s.%s.%s` SET %s WHERE entry_id = @entry_id",
		projectID, datasetID, ledgerTable, strings.Join(sets, ", "),
	))
	q.Parameters = params

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateLedgerEntry: %w", err)
	}
	return nil
}

// DeleteLedgerEntryWithClient removes an entry; it disappears from every
// balance computation.
func DeleteLedgerEntryWithClient(ctx context.Context, client *bigquery.Client, entryID string) error {
	q := client.Query(fmt.Sprintf(
		"DELETE FROM `%s.%s.%s` WHERE entry_id = @entry_id",
		projectID, datasetID, ledgerTable,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "entry_id", Value: entryID}}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteLedgerEntry: %w", err)
	}
	return nil
}

// QueryLedgerEntriesWithClient lists the entries of one account,
// chronologically ascending, optionally bounded by a period.
func QueryLedgerEntriesWithClient(ctx context.Context, client *bigquery.Client, account domain.Account, period *domain.Period) ([]*LedgerEntryRow, error) {
	sql := fmt.Sprintf(`
		SELECT
			entry_id,
			account,
			entry_date,
			direction,
			amount,
			category,
			description,
			counterparty,
			linked_check_id,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE account = @account`, projectID, datasetID, ledgerTable)

	params := []bigquery.QueryParameter{{Name: "account", Value: string(account)}}
	if period != nil {
		if !period.Start.IsZero() {
			sql += " AND entry_date >= @start_date"
			params = append(params, bigquery.QueryParameter{Name: "start_date", Value: period.Start.Format(dateFormat)})
		}
		if !period.End.IsZero() {
			sql += " AND entry_date <= @end_date"
			params = append(params, bigquery.QueryParameter{Name: "end_date", Value: period.End.Format(dateFormat)})
		}
	}
	sql += " ORDER BY entry_date, created_ts"

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryLedgerEntries: query read: %w", err)
	}

	var rows []*LedgerEntryRow
	for {
		var r LedgerEntryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryLedgerEntries: iterating: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// runDML runs a DML statement or script to completion.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job failed: %w", err)
	}
	return nil
}
