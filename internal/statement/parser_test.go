package statement

import (
	"strings"
	"testing"
	"time"
)

func TestParseStatement(t *testing.T) {
	input := strings.Join([]string{
		"Data;Importo;Descrizione",
		"05/03/2026;-1.234,56;BONIFICO FORNITORE ROSSI SRL",
		"2026-03-06;500.00;INCASSO POS",
		"07/03/2026;abc;RIGA ROTTA",
		"",
		"08/03/2026;-80,00;COMMISSIONI",
	}, "\n")

	lines, errs := ParseStatement(strings.NewReader(input))

	if len(lines) != 3 {
		t.Fatalf("parsed %d lines, want 3", len(lines))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0], "riga 4") {
		t.Errorf("error should name the broken row: %q", errs[0])
	}

	first := lines[0]
	wantDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("date = %v, want %v", first.Date, wantDate)
	}
	if first.Amount.String() != "-1234.56" {
		t.Errorf("amount = %s, want -1234.56", first.Amount)
	}
	if first.Description != "BONIFICO FORNITORE ROSSI SRL" {
		t.Errorf("description = %q", first.Description)
	}

	if lines[1].Amount.String() != "500" {
		t.Errorf("ISO row amount = %s, want 500", lines[1].Amount)
	}
	if lines[2].Amount.String() != "-80" {
		t.Errorf("comma-decimal amount = %s, want -80", lines[2].Amount)
	}
}

func TestParseStatementNoHeader(t *testing.T) {
	lines, errs := ParseStatement(strings.NewReader("05/03/2026;100,00;INCASSO\n"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(lines) != 1 {
		t.Fatalf("parsed %d lines, want 1", len(lines))
	}
}

func TestParseStatementMalformedFirstRowIsNotAHeader(t *testing.T) {
	input := strings.Join([]string{
		"31/13/2026;100,00;DATA ROTTA",
		"05/03/2026;200,00;INCASSO",
	}, "\n")

	lines, errs := ParseStatement(strings.NewReader(input))

	if len(lines) != 1 {
		t.Fatalf("parsed %d lines, want 1", len(lines))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0], "riga 1") {
		t.Errorf("error should name row 1: %q", errs[0])
	}
}

func TestParseObligationsMalformedFirstRowIsNotAHeader(t *testing.T) {
	input := "Rossi SRL;FT-2026-041;31/13/2026;100,00;bonifico\n"

	lines, errs := ParseObligations(strings.NewReader(input))

	if len(lines) != 0 {
		t.Fatalf("parsed %d lines, want 0", len(lines))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0], "riga 1") {
		t.Errorf("error should name row 1: %q", errs[0])
	}
}

func TestParseStatementShortRow(t *testing.T) {
	_, errs := ParseStatement(strings.NewReader("05/03/2026;100,00\n"))
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
}

func TestParseObligations(t *testing.T) {
	input := strings.Join([]string{
		"Fornitore;Fattura;Scadenza;Importo;Modalita",
		"Rossi SRL;FT-2026-041;31/03/2026;€ 1.234,56;bonifico",
		"Studio Bianchi;FT-2026-042;2026-04-15;800.00;riba",
	}, "\n")

	lines, errs := ParseObligations(strings.NewReader(input))

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(lines) != 2 {
		t.Fatalf("parsed %d lines, want 2", len(lines))
	}

	first := lines[0]
	if first.Counterparty != "Rossi SRL" || first.InvoiceRef != "FT-2026-041" {
		t.Errorf("counterparty/ref = %q/%q", first.Counterparty, first.InvoiceRef)
	}
	if first.Amount.String() != "1234.56" {
		t.Errorf("euro-prefixed amount = %s, want 1234.56", first.Amount)
	}
	if first.Method != "bonifico" {
		t.Errorf("method = %q", first.Method)
	}
	wantDue := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	if !first.DueDate.Equal(wantDue) {
		t.Errorf("due date = %v, want %v", first.DueDate, wantDue)
	}
}

func TestParseAmountFormats(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"1234.56", "1234.56"},
		{"-80,00", "-80"},
		{"€ 500,00", "500"},
		{" 12,5 ", "12.5"},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if err != nil {
			t.Errorf("parseAmount(%q): %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("parseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := parseAmount("n/a"); err == nil {
		t.Error("parseAmount should reject non-numeric input")
	}
}
