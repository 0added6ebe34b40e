package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mverdani/primanota/internal/api/middleware"
	"github.com/mverdani/primanota/internal/domain"
	"github.com/mverdani/primanota/internal/reconcile"
)

// ObligationStore is the persistence surface the scadenze endpoints need.
type ObligationStore interface {
	ListObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error)
	ListOpenObligations(ctx context.Context, period *domain.Period) ([]*domain.Obligation, error)
	GetObligation(ctx context.Context, obligationID string) (*domain.Obligation, error)
	CreateObligation(ctx context.Context, ob domain.Obligation) error
	DeleteObligation(ctx context.Context, obligationID string) error
	RemoveMatch(ctx context.Context, obligationID string) error
}

// ObligationsHandler handles scadenze and manual reconciliation endpoints.
// Candidate ranking and accept go through a reconcile.Session, which holds
// one selected scadenza at a time and only accepts candidates it offered.
type ObligationsHandler struct {
	store   ObligationStore
	session *reconcile.Session
	log     zerolog.Logger
}

// NewObligationsHandler creates a new scadenze handler.
func NewObligationsHandler(store ObligationStore, session *reconcile.Session, log zerolog.Logger) *ObligationsHandler {
	return &ObligationsHandler{store: store, session: session, log: log}
}

// List handles GET /api/scadenze. By default only open scadenze are
// returned; stato=tutte includes the settled ones.
func (h *ObligationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period, err := parsePeriod(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var obligations []*domain.Obligation
	if r.URL.Query().Get("stato") == "tutte" {
		obligations, err = h.store.ListObligations(ctx, period)
	} else {
		obligations, err = h.store.ListOpenObligations(ctx, period)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list scadenze")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list scadenze")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scadenze": obligations,
		"count":    len(obligations),
	})
}

type createObligationRequest struct {
	Counterparty     string `json:"counterparty_name"`
	InvoiceRef       string `json:"invoice_ref"`
	DueDate          string `json:"due_date"`
	Amount           string `json:"amount"`
	SettlementMethod string `json:"settlement_method"`
}

// Create handles POST /api/scadenze.
func (h *ObligationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	due, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid due_date format, want YYYY-MM-DD")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	ob := domain.Obligation{
		ID:               uuid.New().String(),
		CounterpartyName: req.Counterparty,
		InvoiceRef:       req.InvoiceRef,
		DueDate:          due,
		Amount:           amount,
		SettlementMethod: req.SettlementMethod,
		State:            domain.ObligationOpen,
		CreatedAt:        time.Now(),
	}
	if err := ob.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateObligation(ctx, ob); err != nil {
		h.log.Error().Err(err).Msg("Failed to create scadenza")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create scadenza")
		return
	}

	h.log.Info().Str("obligation_id", ob.ID).Str("counterparty", ob.CounterpartyName).Msg("Scadenza created")
	middleware.WriteJSON(w, http.StatusCreated, ob)
}

// Delete handles DELETE /api/scadenze/{id}. Any movement linked to the
// scadenza is released in the same operation.
func (h *ObligationsHandler) Delete(w http.ResponseWriter, r *http.Request, obligationID string) {
	ctx := r.Context()

	if _, err := h.store.GetObligation(ctx, obligationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Scadenza not found")
			return
		}
		h.log.Error().Err(err).Str("obligation_id", obligationID).Msg("Failed to load scadenza")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete scadenza")
		return
	}

	if err := h.store.DeleteObligation(ctx, obligationID); err != nil {
		h.log.Error().Err(err).Str("obligation_id", obligationID).Msg("Failed to delete scadenza")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete scadenza")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": obligationID, "status": "deleted"})
}

// Candidates handles GET /api/scadenze/{id}/candidati: the unreconciled
// movements ranked against one open scadenza, best score first. The
// scadenza becomes the session's current selection; candidates of any
// earlier selection are discarded.
func (h *ObligationsHandler) Candidates(w http.ResponseWriter, r *http.Request, obligationID string) {
	candidates, err := h.session.Select(r.Context(), obligationID)
	if err != nil {
		h.writeSelectError(w, err, obligationID)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scadenza_id": obligationID,
		"candidati":   candidates,
		"count":       len(candidates),
	})
}

func (h *ObligationsHandler) writeSelectError(w http.ResponseWriter, err error, obligationID string) {
	if errors.Is(err, domain.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Scadenza not found")
		return
	}
	if domain.IsValidation(err) {
		middleware.WriteError(w, http.StatusConflict, "Scadenza already settled")
		return
	}
	h.log.Error().Err(err).Str("obligation_id", obligationID).Msg("Failed to rank candidates")
	middleware.WriteError(w, http.StatusInternalServerError, "Failed to rank candidates")
}

type confirmRequest struct {
	ObligationID  string `json:"obligation_id"`
	TransactionID string `json:"transaction_id"`
}

// Confirm handles POST /api/riconciliazione/conferma: the manual accept.
// The session only settles a candidate it offered for the currently
// selected scadenza; a confirm for a different scadenza re-selects first,
// re-ranking against the store, so a stale client cannot settle twice.
func (h *ObligationsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ObligationID == "" || req.TransactionID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "obligation_id and transaction_id are required")
		return
	}

	if h.session.Selected() != req.ObligationID {
		if _, err := h.session.Select(ctx, req.ObligationID); err != nil {
			h.writeSelectError(w, err, req.ObligationID)
			return
		}
	}

	if err := h.session.Accept(ctx, req.TransactionID); err != nil {
		switch {
		case domain.IsValidation(err):
			middleware.WriteError(w, http.StatusConflict, "Movement is not among the offered candidates")
		case errors.Is(err, domain.ErrNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Movement not found")
		default:
			h.log.Error().Err(err).
				Str("obligation_id", req.ObligationID).
				Str("transaction_id", req.TransactionID).
				Msg("Failed to accept match")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to confirm match")
		}
		return
	}

	h.log.Info().
		Str("obligation_id", req.ObligationID).
		Str("transaction_id", req.TransactionID).
		Msg("Match confirmed")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"obligation_id":  req.ObligationID,
		"transaction_id": req.TransactionID,
		"status":         "settled",
	})
}

// Release handles POST /api/scadenze/{id}/svincola: undo a settlement,
// reopening the scadenza and freeing its linked movement.
func (h *ObligationsHandler) Release(w http.ResponseWriter, r *http.Request, obligationID string) {
	ctx := r.Context()

	ob, err := h.store.GetObligation(ctx, obligationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Scadenza not found")
			return
		}
		h.log.Error().Err(err).Str("obligation_id", obligationID).Msg("Failed to load scadenza")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to release scadenza")
		return
	}
	if ob.Open() {
		middleware.WriteError(w, http.StatusConflict, "Scadenza is not settled")
		return
	}

	if err := h.store.RemoveMatch(ctx, obligationID); err != nil {
		h.log.Error().Err(err).Str("obligation_id", obligationID).Msg("Failed to release scadenza")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to release scadenza")
		return
	}

	h.log.Info().Str("obligation_id", obligationID).Msg("Scadenza released")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": obligationID, "status": "open"})
}
