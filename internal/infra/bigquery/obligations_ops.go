package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/mverdani/primanota/internal/domain"
)

// InsertObligationWithClient appends one scadenza.
func InsertObligationWithClient(ctx context.Context, client *bigquery.Client, row *ObligationRow) error {
	table := client.DatasetInProject(projectID, datasetID).Table(obligationsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertObligation: inserting row: %w", err)
	}
	return nil
}

// GetObligationWithClient fetches one scadenza by ID.
func GetObligationWithClient(ctx context.Context, client *bigquery.Client, obligationID string) (*ObligationRow, error) {
	q := client.Query(fmt.Sprintf(
		"SELECT * FROM `%s.%s.%s` WHERE obligation_id = @obligation_id LIMIT 1",
		projectID, datasetID, obligationsTable,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "obligation_id", Value: obligationID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetObligation: query read: %w", err)
	}

	var r ObligationRow
	if err := it.Next(&r); err == iterator.Done {
		return nil, domain.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("GetObligation: iterating: %w", err)
	}
	return &r, nil
}

// ListOpenObligationsWithClient lists scadenze still awaiting settlement,
// oldest due date first, optionally bounded to a period.
func ListOpenObligationsWithClient(ctx context.Context, client *bigquery.Client, period *domain.Period) ([]*ObligationRow, error) {
	sql := fmt.Sprintf(
		"SELECT * FROM `%s.%s.%s` WHERE state = 'open'",
		projectID, datasetID, obligationsTable,
	)
	var params []bigquery.QueryParameter
	if period != nil {
		if !period.Start.IsZero() {
			sql += " AND due_date >= @start_date"
			params = append(params, bigquery.QueryParameter{Name: "start_date", Value: period.Start.Format(dateFormat)})
		}
		if !period.End.IsZero() {
			sql += " AND due_date <= @end_date"
			params = append(params, bigquery.QueryParameter{Name: "end_date", Value: period.End.Format(dateFormat)})
		}
	}
	sql += " ORDER BY due_date, created_ts"

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListOpenObligations: query read: %w", err)
	}

	var rows []*ObligationRow
	for {
		var r ObligationRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListOpenObligations: iterating: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// ListObligationsWithClient lists scadenze in every state, oldest due
// date first, optionally bounded to a period.
func ListObligationsWithClient(ctx context.Context, client *bigquery.Client, period *domain.Period) ([]*ObligationRow, error) {
	sql := fmt.Sprintf(
		"SELECT * FROM `%s.%s.%s` WHERE TRUE",
		projectID, datasetID, obligationsTable,
	)
	var params []bigquery.QueryParameter
	if period != nil {
		if !period.Start.IsZero() {
			sql += " AND due_date >= @start_date"
			params = append(params, bigquery.QueryParameter{Name: "start_date", Value: period.Start.Format(dateFormat)})
		}
		if !period.End.IsZero() {
			sql += " AND due_date <= @end_date"
			params = append(params, bigquery.QueryParameter{Name: "end_date", Value: period.End.Format(dateFormat)})
		}
	}
	sql += " ORDER BY due_date, created_ts"

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListObligations: query read: %w", err)
	}

	var rows []*ObligationRow
	for {
		var r ObligationRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListObligations: iterating: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// AcceptMatchWithClient settles an obligation against a transaction in a
// single multi-statement transaction, so either both sides flip or
// neither does.
func AcceptMatchWithClient(ctx context.Context, client *bigquery.Client, obligationID, transactionID string, settledDate time.Time) error {
	q := client.Query(fmt.Sprintf(`
		BEGIN TRANSACTION;

		UPDATE `+"`%s.%s.%s`"+`
		SET state = 'settled',
		    settled_date = @settled_date,
		    settled_via_transaction_id = @transaction_id
		WHERE obligation_id = @obligation_id AND state = 'open';

		UPDATE `+"`%s.%s.%s`"+`
		SET reconciled = TRUE,
		    linked_obligation_id = @obligation_id
		WHERE transaction_id = @transaction_id AND reconciled = FALSE;

		COMMIT TRANSACTION;`,
		projectID, datasetID, obligationsTable,
		projectID, datasetID, transactionsTable,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "obligation_id", Value: obligationID},
		{Name: "transaction_id", Value: transactionID},
		{Name: "settled_date", Value: civil.DateOf(settledDate)},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("AcceptMatch: %w", err)
	}
	return nil
}

// RemoveMatchWithClient reopens a settled obligation and releases its
// linked transaction, again in one transaction.
func RemoveMatchWithClient(ctx context.Context, client *bigquery.Client, obligationID string) error {
	q := client.Query(fmt.Sprintf(`
		BEGIN TRANSACTION;

		UPDATE `+"`%s.%s.%s`"+`
		SET reconciled = FALSE,
		    linked_obligation_id = NULL
		WHERE linked_obligation_id = @obligation_id;

		UPDATE `+"`%s.%s.%s`"+`
		SET state = 'open',
		    settled_date = NULL,
		    settled_via_transaction_id = NULL
		WHERE obligation_id = @obligation_id;

		COMMIT TRANSACTION;`,
		projectID, datasetID, transactionsTable,
		projectID, datasetID, obligationsTable,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "obligation_id", Value: obligationID}}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("RemoveMatch: %w", err)
	}
	return nil
}

// DeleteObligationWithClient removes a scadenza. Any transaction still
// pointing at it is released first; the weak reference never dangles.
func DeleteObligationWithClient(ctx context.Context, client *bigquery.Client, obligationID string) error {
	q := client.Query(fmt.Sprintf(`
		BEGIN TRANSACTION;

		UPDATE `+"`%s.%s.%s`"+`
		SET reconciled = FALSE,
		    linked_obligation_id = NULL
		WHERE linked_obligation_id = @obligation_id;

		DELETE FROM `+"`%s.%s.%s`"+`
		WHERE obligation_id = @obligation_id;

		COMMIT TRANSACTION;`,
		projectID, datasetID, transactionsTable,
		projectID, datasetID, obligationsTable,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "obligation_id", Value: obligationID}}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteObligation: %w", err)
	}
	return nil
}
