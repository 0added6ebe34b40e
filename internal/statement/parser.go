// Package statement turns exported bank-statement and scadenzario CSV
// files into stored records, with the duplicate guard applied to every
// row.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine is one parsed bank-statement row.
type StatementLine struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// ObligationLine is one parsed scadenzario row.
type ObligationLine struct {
	Counterparty string
	InvoiceRef   string
	DueDate      time.Time
	Amount       decimal.Decimal
	Method       string
}

// Bank exports use either the Italian dd/mm/yyyy form or ISO dates.
var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

// ParseStatement reads semicolon-separated rows of
// date;amount;description. A leading header row is skipped. Malformed
// rows are reported as errors, one message per row, without aborting the
// rest of the file.
func ParseStatement(r io.Reader) ([]StatementLine, []string) {
	records, errs := readRows(r, 3)

	var lines []StatementLine
	for _, rec := range records {
		date, err := parseDate(rec.fields[0])
		if err != nil {
			if rec.number == 1 && looksLikeHeader(rec.fields[0]) {
				continue // header row
			}
			errs = append(errs, fmt.Sprintf("riga %d: %v", rec.number, err))
			continue
		}
		amount, err := parseAmount(rec.fields[1])
		if err != nil {
			errs = append(errs, fmt.Sprintf("riga %d: %v", rec.number, err))
			continue
		}
		lines = append(lines, StatementLine{
			Date:        date,
			Amount:      amount,
			Description: strings.TrimSpace(rec.fields[2]),
		})
	}
	return lines, errs
}

// ParseObligations reads semicolon-separated rows of
// counterparty;invoice_ref;due_date;amount;settlement_method.
func ParseObligations(r io.Reader) ([]ObligationLine, []string) {
	records, errs := readRows(r, 5)

	var lines []ObligationLine
	for _, rec := range records {
		due, err := parseDate(rec.fields[2])
		if err != nil {
			if rec.number == 1 && looksLikeHeader(rec.fields[2]) {
				continue // header row
			}
			errs = append(errs, fmt.Sprintf("riga %d: %v", rec.number, err))
			continue
		}
		amount, err := parseAmount(rec.fields[3])
		if err != nil {
			errs = append(errs, fmt.Sprintf("riga %d: %v", rec.number, err))
			continue
		}
		lines = append(lines, ObligationLine{
			Counterparty: strings.TrimSpace(rec.fields[0]),
			InvoiceRef:   strings.TrimSpace(rec.fields[1]),
			DueDate:      due,
			Amount:       amount,
			Method:       strings.TrimSpace(rec.fields[4]),
		})
	}
	return lines, errs
}

type row struct {
	number int
	fields []string
}

func readRows(r io.Reader, wantFields int) ([]row, []string) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []row
	var errs []string
	number := 0
	for {
		number++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("riga %d: %v", number, err))
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < wantFields {
			errs = append(errs, fmt.Sprintf("riga %d: attesi %d campi, trovati %d", number, wantFields, len(rec)))
			continue
		}
		rows = append(rows, row{number: number, fields: rec})
	}
	return rows, errs
}

// looksLikeHeader reports whether a first-row date field is a column
// label ("Data", "Data scadenza") rather than data. Labels carry no
// digits; a malformed date from a real row still does, so that row is
// reported as an error instead of being swallowed.
func looksLikeHeader(field string) bool {
	return !strings.ContainsAny(field, "0123456789")
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("data non riconosciuta: %q", s)
}

// parseAmount accepts both "1.234,56" and "1234.56".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("importo non riconosciuto: %q", s)
	}
	return d, nil
}
