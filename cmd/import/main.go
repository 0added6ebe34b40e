package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mverdani/primanota/internal/archive"
	infraBQ "github.com/mverdani/primanota/internal/infra/bigquery"
	"github.com/mverdani/primanota/internal/logger"
	"github.com/mverdani/primanota/internal/statement"
)

// Imports a CSV file straight into BigQuery, without going through the
// API server. Useful for the initial load and for scripted imports.
func main() {
	var (
		file   = flag.String("file", "", "path of the CSV file to import (required)")
		kind   = flag.String("tipo", "estratto", "file type: estratto (bank statement) or scadenze")
		bucket = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement archives (or set GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New("primanota-import")

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	var files archive.Storage
	if *bucket != "" {
		files = archive.NewGCSStorage(*bucket)
	}

	importer := statement.NewImporter(repo, repo, files, log)
	filename := filepath.Base(*file)

	switch *kind {
	case "estratto":
		r, err := importer.ImportStatement(ctx, filename, content)
		if err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		printReport(r.Imported, r.Skipped, r.Total, r.Errors)
	case "scadenze":
		r, err := importer.ImportObligations(ctx, filename, content)
		if err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		printReport(r.Imported, r.Skipped, r.Total, r.Errors)
	default:
		log.Fatal().Str("tipo", *kind).Msg("Unknown file type, want estratto or scadenze")
	}
}

func printReport(imported, skipped, total int, errs []string) {
	fmt.Printf("Import completed: %d imported, %d skipped, %d rows\n", imported, skipped, total)
	for _, e := range errs {
		fmt.Printf("  error: %s\n", e)
	}
}
