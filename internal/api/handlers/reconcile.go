package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/api/middleware"
	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/jobs"
)

// BatchRunner runs one batch reconciliation synchronously.
type BatchRunner interface {
	Run(ctx context.Context, period *domain.Period) (*domain.ReconcileResult, error)
}

// TransactionLister is the read surface of the movimenti endpoints.
type TransactionLister interface {
	ListBankTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.BankTransaction, error)
	GetBankTransaction(ctx context.Context, transactionID string) (*domain.BankTransaction, error)
}

// ReconcileHandler handles batch reconciliation and movimenti endpoints.
type ReconcileHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	engine    BatchRunner
	txs       TransactionLister
	log       zerolog.Logger
}

// NewReconcileHandler creates a new reconciliation handler.
func NewReconcileHandler(publisher jobs.Publisher, store jobs.JobStore, engine BatchRunner, txs TransactionLister, log zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		publisher: publisher,
		store:     store,
		engine:    engine,
		txs:       txs,
		log:       log,
	}
}

type launchRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Sync      bool   `json:"sync"`
}

// Launch handles POST /api/riconciliazione/avvia. The default is an
// asynchronous job whose ID the caller polls; sync=true runs the batch
// inline and returns the result directly, with no job to poll.
func (h *ReconcileHandler) Launch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req launchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	var start, end time.Time
	var err error
	if req.StartDate != "" {
		start, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format, want YYYY-MM-DD")
			return
		}
	}
	if req.EndDate != "" {
		end, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format, want YYYY-MM-DD")
			return
		}
	}

	if req.Sync {
		var period *domain.Period
		if !start.IsZero() || !end.IsZero() {
			period = &domain.Period{Start: start, End: end}
		}
		result, err := h.engine.Run(ctx, period)
		if err != nil {
			h.log.Error().Err(err).Msg("Synchronous reconciliation failed")
			middleware.WriteError(w, http.StatusInternalServerError, "Reconciliation failed")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "completed",
			"result": result,
		})
		return
	}

	job := &jobs.ReconcileJob{
		JobID:       uuid.New().String(),
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      jobs.JobStatusPending,
		CreatedAt:   time.Now(),
		MaxRetries:  3,
	}

	if err := h.publisher.PublishReconcile(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue reconciliation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconciliation job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Reconciliation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/riconciliazione/jobs/{id}.
func (h *ReconcileHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/riconciliazione/jobs.
func (h *ReconcileHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{Status: jobs.JobStatus(query.Get("status"))}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// ListMovements handles GET /api/movimenti.
func (h *ReconcileHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period, err := parsePeriod(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := domain.TransactionFilter{
		Period:        period,
		OnlyUnmatched: r.URL.Query().Get("solo_non_riconciliati") == "true",
	}

	txs, err := h.txs.ListBankTransactions(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list movements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list movements")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"movimenti": txs,
		"count":     len(txs),
	})
}

// GetMovement handles GET /api/movimenti/{id}.
func (h *ReconcileHandler) GetMovement(w http.ResponseWriter, r *http.Request, transactionID string) {
	tx, err := h.txs.GetBankTransaction(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Movement not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to load movement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load movement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}
