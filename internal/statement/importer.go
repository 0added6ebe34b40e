package statement

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/archive"
	"github.com/mverdani/primanota/internal/dedup"
	"github.com/mverdani/primanota/internal/domain"
)

// TransactionStore is the persistence surface needed to import bank
// movements.
type TransactionStore interface {
	ListBankTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.BankTransaction, error)
	InsertBankTransactions(ctx context.Context, txs []domain.BankTransaction) error
}

// ObligationStore is the persistence surface needed to import scadenze.
type ObligationStore interface {
	ListObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error)
	CreateObligation(ctx context.Context, ob domain.Obligation) error
}

// Importer runs the import pipeline: parse, guard, store, archive.
type Importer struct {
	transactions TransactionStore
	obligations  ObligationStore
	files        archive.Storage
	log          zerolog.Logger
}

// NewImporter creates an importer. files may be nil when no archive
// bucket is configured; imports then proceed without archiving.
func NewImporter(transactions TransactionStore, obligations ObligationStore, files archive.Storage, log zerolog.Logger) *Importer {
	return &Importer{
		transactions: transactions,
		obligations:  obligations,
		files:        files,
		log:          log,
	}
}

// ImportStatement imports one bank-statement file. Rows whose
// fingerprint (date, amount, description) is already present are counted
// as skipped; re-importing the same file adds nothing. The raw file is
// archived and its URI recorded on every inserted movement.
func (i *Importer) ImportStatement(ctx context.Context, filename string, content []byte) (*dedup.Report, error) {
	lines, parseErrs := ParseStatement(bytes.NewReader(content))

	existing, err := i.transactions.ListBankTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("ImportStatement: list existing movements: %w", err)
	}

	guard := dedup.NewGuard()
	for _, tx := range existing {
		guard.Seed(dedup.NewFingerprintWithDescription(tx.Date, tx.Amount, tx.Description))
	}

	report := &dedup.Report{}
	for _, msg := range parseErrs {
		report.AddError(msg)
	}

	now := time.Now()
	var fresh []domain.BankTransaction
	for _, line := range lines {
		tx := domain.BankTransaction{
			ID:          uuid.New().String(),
			Date:        line.Date,
			Amount:      line.Amount,
			Description: line.Description,
			CreatedAt:   now,
		}
		if err := tx.Validate(); err != nil {
			report.AddError(err.Error())
			continue
		}

		fp := dedup.NewFingerprintWithDescription(tx.Date, tx.Amount, tx.Description)
		if !guard.Admit(fp) {
			report.Add(false)
			continue
		}
		report.Add(true)
		fresh = append(fresh, tx)
	}

	if len(fresh) > 0 {
		if i.files != nil {
			uri, err := i.files.Store(ctx, filename, content)
			if err != nil {
				return nil, fmt.Errorf("ImportStatement: archive source file: %w", err)
			}
			for idx := range fresh {
				fresh[idx].StatementURI = uri
			}
		}

		if err := i.transactions.InsertBankTransactions(ctx, fresh); err != nil {
			return nil, fmt.Errorf("ImportStatement: insert movements: %w", err)
		}
	}

	i.log.Info().
		Str("filename", filename).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("Bank statement imported")

	return report, nil
}

// ImportObligations imports one scadenzario file. The fingerprint is
// (due date, amount), so a re-import of the same rows is a no-op.
func (i *Importer) ImportObligations(ctx context.Context, filename string, content []byte) (*dedup.Report, error) {
	lines, parseErrs := ParseObligations(bytes.NewReader(content))

	existing, err := i.obligations.ListObligations(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ImportObligations: list existing scadenze: %w", err)
	}

	guard := dedup.NewGuard()
	for _, ob := range existing {
		guard.Seed(dedup.NewFingerprint(ob.DueDate, ob.Amount))
	}

	report := &dedup.Report{}
	for _, msg := range parseErrs {
		report.AddError(msg)
	}

	now := time.Now()
	for _, line := range lines {
		ob := domain.Obligation{
			ID:               uuid.New().String(),
			CounterpartyName: line.Counterparty,
			InvoiceRef:       line.InvoiceRef,
			DueDate:          line.DueDate,
			Amount:           line.Amount,
			SettlementMethod: line.Method,
			State:            domain.ObligationOpen,
			CreatedAt:        now,
		}
		if err := ob.Validate(); err != nil {
			report.AddError(err.Error())
			continue
		}

		if !guard.Admit(dedup.NewFingerprint(ob.DueDate, ob.Amount)) {
			report.Add(false)
			continue
		}

		if err := i.obligations.CreateObligation(ctx, ob); err != nil {
			return nil, fmt.Errorf("ImportObligations: create scadenza: %w", err)
		}
		report.Add(true)
	}

	i.log.Info().
		Str("filename", filename).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("Scadenze imported")

	return report, nil
}
