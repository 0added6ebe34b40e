// Package bigquery persists conti, prima nota entries, scadenze and bank
// movements in BigQuery. Row structs map the table schemas; the
// *WithClient functions do the work and the Repository wraps them around
// a shared client.
package bigquery

import "os"

var (
	projectID = envOr("BQ_PROJECT", "gestione-primanota")
	datasetID = envOr("BQ_DATASET", "contabilita")
)

const (
	accountsTable     = "conti"
	ledgerTable       = "prima_nota"
	obligationsTable  = "scadenze"
	transactionsTable = "movimenti_banca"

	dateFormat = "2006-01-02"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
