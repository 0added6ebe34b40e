package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mverdani/primanota/internal/api/handlers"
	"github.com/mverdani/primanota/internal/api/middleware"
	"github.com/mverdani/primanota/internal/archive"
	"github.com/mverdani/primanota/internal/domain"
	infraBQ "github.com/mverdani/primanota/internal/infra/bigquery"
	"github.com/mverdani/primanota/internal/jobs"
	"github.com/mverdani/primanota/internal/jobs/inmemory"
	"github.com/mverdani/primanota/internal/logger"
	"github.com/mverdani/primanota/internal/match"
	"github.com/mverdani/primanota/internal/reconcile"
	"github.com/mverdani/primanota/internal/statement"
)

func main() {
	var (
		port     = flag.String("port", "8080", "HTTP server port")
		bucket   = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement archives (or set GCS_BUCKET env)")
		cronSpec = flag.String("cron", envOr("RECONCILE_CRON", "0 3 * * *"), "cron schedule for the nightly reconciliation, empty to disable")
	)
	flag.Parse()

	log := logger.New("primanota-api")

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	var files archive.Storage
	if *bucket != "" {
		files = archive.NewGCSStorage(*bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - statement archiving disabled")
	}

	matchCfg := match.DefaultConfig()
	engine := reconcile.NewEngine(repo, repo, repo, matchCfg, log)
	session := reconcile.NewSession(repo, repo, repo, matchCfg)
	importer := statement.NewImporter(repo, repo, files, log)

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		reconcileJob, ok := job.(*jobs.ReconcileJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Msg("Processing reconciliation job")

		result, err := engine.Run(ctx, reconcileJob.Period())
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", reconcileJob.JobID).
				Msg("Reconciliation failed")
			return err
		}
		reconcileJob.Result = result

		log.Info().
			Str("job_id", reconcileJob.JobID).
			Int("matched", result.Matched).
			Int("unmatched", result.Unmatched).
			Msg("Reconciliation completed")

		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Nightly batch reconciliation
	var scheduler *cron.Cron
	if *cronSpec != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(*cronSpec, func() {
			// The nightly run covers the previous calendar month, the
			// period whose statements are complete by now.
			period := domain.PreviousMonth(time.Now())
			job := &jobs.ReconcileJob{
				JobID:       uuid.New().String(),
				PeriodStart: period.Start,
				PeriodEnd:   period.End,
				Status:      jobs.JobStatusPending,
				CreatedAt:   time.Now(),
				MaxRetries:  3,
			}
			if err := jobQueue.PublishReconcile(ctx, job); err != nil {
				log.Error().Err(err).Msg("Failed to enqueue scheduled reconciliation")
				return
			}
			log.Info().
				Str("job_id", job.JobID).
				Time("period_start", period.Start).
				Time("period_end", period.End).
				Msg("Scheduled reconciliation enqueued")
		})
		if err != nil {
			log.Fatal().Err(err).Str("cron", *cronSpec).Msg("Invalid cron schedule")
		}
		scheduler.Start()
		log.Info().Str("cron", *cronSpec).Msg("Reconciliation schedule active")
	}

	// Handlers
	ledgerHandler := handlers.NewLedgerHandler(repo, log)
	obligationsHandler := handlers.NewObligationsHandler(repo, session, log)
	reconcileHandler := handlers.NewReconcileHandler(jobQueue, jobStore, engine, repo, log)
	importsHandler := handlers.NewImportsHandler(importer, files, log)

	mux := http.NewServeMux()

	// Prima nota endpoints
	mux.HandleFunc("/api/primanota", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ledgerHandler.ListEntries(w, r)
		case http.MethodPost:
			ledgerHandler.CreateEntry(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/primanota/saldi", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.Balances(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/primanota/", func(w http.ResponseWriter, r *http.Request) {
		entryID := strings.TrimPrefix(r.URL.Path, "/api/primanota/")
		if entryID == "" || strings.Contains(entryID, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodPut:
			ledgerHandler.UpdateEntry(w, r, entryID)
		case http.MethodDelete:
			ledgerHandler.DeleteEntry(w, r, entryID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Conti endpoints
	mux.HandleFunc("/api/conti", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.ListAccounts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Scadenze endpoints
	mux.HandleFunc("/api/scadenze", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			obligationsHandler.List(w, r)
		case http.MethodPost:
			obligationsHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/scadenze/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.ImportObligations(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/scadenze/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/scadenze/")
		obligationID, action, _ := strings.Cut(rest, "/")
		if obligationID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Scadenza ID is required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodDelete:
			obligationsHandler.Delete(w, r, obligationID)
		case action == "candidati" && r.Method == http.MethodGet:
			obligationsHandler.Candidates(w, r, obligationID)
		case action == "svincola" && r.Method == http.MethodPost:
			obligationsHandler.Release(w, r, obligationID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Riconciliazione endpoints
	mux.HandleFunc("/api/riconciliazione/avvia", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			reconcileHandler.Launch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/riconciliazione/conferma", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			obligationsHandler.Confirm(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/riconciliazione/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reconcileHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/riconciliazione/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/riconciliazione/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			reconcileHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Movimenti endpoints
	mux.HandleFunc("/api/movimenti", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reconcileHandler.ListMovements(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/movimenti/", func(w http.ResponseWriter, r *http.Request) {
		transactionID := strings.TrimPrefix(r.URL.Path, "/api/movimenti/")
		if transactionID == "" || strings.Contains(transactionID, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method == http.MethodGet {
			reconcileHandler.GetMovement(w, r, transactionID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/estratti/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.ImportStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/estratti/download", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			importsHandler.DownloadStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
