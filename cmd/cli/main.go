package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/logger"
	"github.com/mverdani/primanota/internal/reconcile"
)

func main() {
	log := logger.New("primanota-cli")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "riconcilia":
		runReconcile(log)
	case "importa-estratto":
		runImport(log, "/api/estratti/import")
	case "importa-scadenze":
		runImport(log, "/api/scadenze/import")
	case "saldi":
		runBalances(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Prima Nota CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  riconcilia        Launch a batch reconciliation and follow it to completion")
	fmt.Println("  importa-estratto  Import a bank statement CSV through the API")
	fmt.Println("  importa-scadenze  Import a scadenzario CSV through the API")
	fmt.Println("  saldi             Show the closing balance of each conto")
	fmt.Println("  help              Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runReconcile(log zerolog.Logger) {
	fs := flag.NewFlagSet("riconcilia", flag.ExitOnError)
	apiURL := fs.String("api", envOr("PRIMANOTA_API", "http://localhost:8080"), "base URL of the API server")
	startDate := fs.String("start-date", "", "period start (YYYY-MM-DD)")
	endDate := fs.String("end-date", "", "period end (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	period, err := parsePeriodFlags(*startDate, *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid period")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client := newAPIClient(*apiURL)
	orchestrator := reconcile.NewOrchestrator(client, client, log)

	outcome, err := orchestrator.Run(ctx, period)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation could not be launched")
	}

	switch outcome.State {
	case reconcile.OutcomeCompleted:
		fmt.Printf("Reconciliation completed: %d matched, %d unmatched\n",
			outcome.Result.Matched, outcome.Result.Unmatched)
	case reconcile.OutcomeErrored:
		log.Fatal().Err(outcome.Err).Str("task_id", outcome.TaskID).Msg("Reconciliation failed")
	case reconcile.OutcomeTimedOut:
		fmt.Printf("Reconciliation still running after %d polls; check job %s later\n",
			outcome.Attempts, outcome.TaskID)
		os.Exit(2)
	}
}

func runImport(log zerolog.Logger, endpoint string) {
	fs := flag.NewFlagSet("importa", flag.ExitOnError)
	apiURL := fs.String("api", envOr("PRIMANOTA_API", "http://localhost:8080"), "base URL of the API server")
	file := fs.String("file", "", "path of the CSV file to import")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(*file))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build upload")
	}
	if _, err := part.Write(content); err != nil {
		log.Fatal().Err(err).Msg("Failed to build upload")
	}
	writer.Close()

	resp, err := http.Post(*apiURL+endpoint, writer.FormDataContentType(), &body)
	if err != nil {
		log.Fatal().Err(err).Msg("Import request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		log.Fatal().Int("status", resp.StatusCode).Str("body", string(msg)).Msg("Import rejected")
	}

	var report struct {
		Imported int      `json:"imported"`
		Skipped  int      `json:"skipped"`
		Total    int      `json:"total"`
		Errors   []string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode import report")
	}

	fmt.Printf("Import completed: %d imported, %d skipped, %d rows\n",
		report.Imported, report.Skipped, report.Total)
	for _, e := range report.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func runBalances(log zerolog.Logger) {
	fs := flag.NewFlagSet("saldi", flag.ExitOnError)
	apiURL := fs.String("api", envOr("PRIMANOTA_API", "http://localhost:8080"), "base URL of the API server")
	fs.Parse(os.Args[2:])

	resp, err := http.Get(*apiURL + "/api/primanota/saldi")
	if err != nil {
		log.Fatal().Err(err).Msg("Balance request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		log.Fatal().Int("status", resp.StatusCode).Str("body", string(msg)).Msg("Balance request rejected")
	}

	var payload struct {
		Saldi []struct {
			Account string `json:"conto"`
			Name    string `json:"name"`
			Balance string `json:"saldo"`
			Entries int    `json:"entries"`
		} `json:"saldi"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode balances")
	}

	for _, s := range payload.Saldi {
		fmt.Printf("%-8s %-20s %12s  (%d movimenti)\n", s.Account, s.Name, s.Balance, s.Entries)
	}
}

// apiClient adapts the HTTP API to the orchestrator's launcher and
// status-fetcher contracts.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// LaunchReconciliation implements reconcile.Launcher.
func (c *apiClient) LaunchReconciliation(ctx context.Context, period *domain.Period) (*reconcile.LaunchResponse, error) {
	payload := map[string]string{}
	if period != nil {
		if !period.Start.IsZero() {
			payload["start_date"] = period.Start.Format("2006-01-02")
		}
		if !period.End.IsZero() {
			payload["end_date"] = period.End.Format("2006-01-02")
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("LaunchReconciliation: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/riconciliazione/avvia", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("LaunchReconciliation: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LaunchReconciliation: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		var launched struct {
			JobID string `json:"job_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&launched); err != nil {
			return nil, fmt.Errorf("LaunchReconciliation: decoding response: %w", err)
		}
		return &reconcile.LaunchResponse{TaskID: launched.JobID}, nil
	case http.StatusOK:
		// Synchronous execution: the result came back directly.
		var done struct {
			Result *domain.ReconcileResult `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&done); err != nil {
			return nil, fmt.Errorf("LaunchReconciliation: decoding response: %w", err)
		}
		return &reconcile.LaunchResponse{Result: done.Result}, nil
	default:
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LaunchReconciliation: unexpected status %d: %s", resp.StatusCode, msg)
	}
}

// ReconciliationStatus implements reconcile.StatusFetcher.
func (c *apiClient) ReconciliationStatus(ctx context.Context, taskID string) (*reconcile.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/riconciliazione/jobs/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("ReconciliationStatus: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ReconciliationStatus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ReconciliationStatus: unexpected status %d: %s", resp.StatusCode, msg)
	}

	var job struct {
		Status string                  `json:"status"`
		Result *domain.ReconcileResult `json:"result"`
		Error  string                  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("ReconciliationStatus: decoding response: %w", err)
	}

	switch job.Status {
	case "completed":
		return &reconcile.JobStatus{Running: false, Result: job.Result}, nil
	case "failed":
		return &reconcile.JobStatus{Running: false, Err: job.Error}, nil
	default:
		return &reconcile.JobStatus{Running: true}, nil
	}
}

func parsePeriodFlags(start, end string) (*domain.Period, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	var period domain.Period
	var err error
	if start != "" {
		period.Start, err = time.Parse("2006-01-02", start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q", start)
		}
	}
	if end != "" {
		period.End, err = time.Parse("2006-01-02", end)
		if err != nil {
			return nil, fmt.Errorf("invalid end date %q", end)
		}
	}
	return &period, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
