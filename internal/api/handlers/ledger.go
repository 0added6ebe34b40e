// Package handlers implements the HTTP surface of the prima nota API.
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
	"github.com/mverdani/primanota/internal/ledger"
)

// LedgerStore is the persistence surface the prima nota endpoints need.
type LedgerStore interface {
	ListLedgerEntries(ctx context.Context, account domain.Account, period *domain.Period) ([]domain.LedgerEntry, error)
	CreateLedgerEntry(ctx context.Context, e domain.LedgerEntry) error
	UpdateLedgerEntry(ctx context.Context, entryID string, patch domain.LedgerEntryPatch) error
	DeleteLedgerEntry(ctx context.Context, entryID string) error
	ListAccounts(ctx context.Context) ([]domain.AccountInfo, error)
	GetAccount(ctx context.Context, account domain.Account) (domain.AccountInfo, error)
}

// LedgerHandler handles prima nota and conti endpoints.
type LedgerHandler struct {
	store LedgerStore
	log   zerolog.Logger
}

// NewLedgerHandler creates a new prima nota handler.
func NewLedgerHandler(store LedgerStore, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, log: log}
}

// ListEntries handles GET /api/primanota. Entries are returned newest
// first with the running balance computed over the full account history,
// so the balance column is correct regardless of the period filter.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account := domain.Account(r.URL.Query().Get("conto"))
	if account == "" {
		account = domain.AccountBanca
	}
	if !account.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "conto must be cassa or banca")
		return
	}

	period, err := parsePeriod(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.store.GetAccount(ctx, account)
	if err != nil {
		h.log.Error().Err(err).Str("conto", string(account)).Msg("Failed to load account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}

	entries, err := h.store.ListLedgerEntries(ctx, account, nil)
	if err != nil {
		h.log.Error().Err(err).Str("conto", string(account)).Msg("Failed to list entries")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list entries")
		return
	}

	balanced := ledger.Running(entries, info.OpeningBalance)
	closing := ledger.Closing(balanced, info.OpeningBalance)

	if period != nil {
		filtered := balanced[:0:0]
		for _, e := range balanced {
			if period.Contains(e.Date) {
				filtered = append(filtered, e)
			}
		}
		balanced = filtered
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conto":   account,
		"entries": ledger.NewestFirst(balanced),
		"count":   len(balanced),
		"saldo":   closing,
	})
}

type createEntryRequest struct {
	Account       string `json:"conto"`
	Date          string `json:"date"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Counterparty  string `json:"counterparty"`
	LinkedCheckID string `json:"linked_check_id"`
}

// CreateEntry handles POST /api/primanota.
func (h *LedgerHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format, want YYYY-MM-DD")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	entry := domain.LedgerEntry{
		ID:            uuid.New().String(),
		Account:       domain.Account(req.Account),
		Date:          date,
		Direction:     domain.Direction(req.Direction),
		Amount:        amount,
		Category:      req.Category,
		Description:   req.Description,
		Counterparty:  req.Counterparty,
		LinkedCheckID: req.LinkedCheckID,
		CreatedAt:     time.Now(),
	}
	if err := entry.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateLedgerEntry(ctx, entry); err != nil {
		h.log.Error().Err(err).Msg("Failed to create entry")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create entry")
		return
	}

	h.log.Info().Str("entry_id", entry.ID).Str("conto", string(entry.Account)).Msg("Entry created")
	middleware.WriteJSON(w, http.StatusCreated, entry)
}

// UpdateEntry handles PUT /api/primanota/{id}. Only description and
// category are editable; date, amount and direction stay immutable.
func (h *LedgerHandler) UpdateEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()

	var patch domain.LedgerEntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Description == nil && patch.Category == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := h.store.UpdateLedgerEntry(ctx, entryID, patch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Entry not found")
			return
		}
		h.log.Error().Err(err).Str("entry_id", entryID).Msg("Failed to update entry")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update entry")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": entryID, "status": "updated"})
}

// DeleteEntry handles DELETE /api/primanota/{id}.
func (h *LedgerHandler) DeleteEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	ctx := r.Context()

	if err := h.store.DeleteLedgerEntry(ctx, entryID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Entry not found")
			return
		}
		h.log.Error().Err(err).Str("entry_id", entryID).Msg("Failed to delete entry")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete entry")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": entryID, "status": "deleted"})
}

// Balances handles GET /api/primanota/saldi: the closing balance of each
// conto, opening balance plus the chronological fold of its entries.
func (h *LedgerHandler) Balances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.store.ListAccounts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	type saldo struct {
		Account        domain.Account  `json:"conto"`
		Name           string          `json:"name"`
		OpeningBalance decimal.Decimal `json:"opening_balance"`
		Balance        decimal.Decimal `json:"saldo"`
		Entries        int             `json:"entries"`
	}

	saldi := make([]saldo, 0, len(accounts))
	for _, info := range accounts {
		entries, err := h.store.ListLedgerEntries(ctx, info.Account, nil)
		if err != nil {
			h.log.Error().Err(err).Str("conto", string(info.Account)).Msg("Failed to list entries")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute balances")
			return
		}
		balanced := ledger.Running(entries, info.OpeningBalance)
		saldi = append(saldi, saldo{
			Account:        info.Account,
			Name:           info.Name,
			OpeningBalance: info.OpeningBalance,
			Balance:        ledger.Closing(balanced, info.OpeningBalance),
			Entries:        len(balanced),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"saldi": saldi})
}

// ListAccounts handles GET /api/conti.
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.store.ListAccounts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conti": accounts,
		"count": len(accounts),
	})
}

// parsePeriod reads the optional start_date/end_date query parameters.
func parsePeriod(r *http.Request) (*domain.Period, error) {
	query := r.URL.Query()
	startStr := query.Get("start_date")
	endStr := query.Get("end_date")
	if startStr == "" && endStr == "" {
		return nil, nil
	}

	var period domain.Period
	var err error
	if startStr != "" {
		period.Start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return nil, errors.New("invalid start_date format, want YYYY-MM-DD")
		}
	}
	if endStr != "" {
		period.End, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, errors.New("invalid end_date format, want YYYY-MM-DD")
		}
	}
	return &period, nil
}
