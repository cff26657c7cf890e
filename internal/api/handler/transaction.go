// internal/api/handler/transaction.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cryptocard-ledger/internal/api/middleware"
	"cryptocard-ledger/internal/api/types"
	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/service"
	"cryptocard-ledger/internal/util"
)

// TransactionHandler serves the user-facing transaction endpoints.
type TransactionHandler struct {
	responder
	ledger service.LedgerService
}

func NewTransactionHandler(ledger service.LedgerService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{responder: responder{logger: logger}, ledger: ledger}
}

// Submit records a new pending transaction, charging the card first when one
// is supplied.
// POST /transactions
func (h *TransactionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	var req types.SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.NewValidationError("body", "malformed JSON"))
		return
	}

	// Only admins may file on behalf of another user.
	userID := actor.UserID
	if actor.IsAdmin() && req.UserID != "" {
		userID = req.UserID
	}
	draft := domain.TransactionDraft{
		UserID:   userID,
		CryptoID: req.CryptoID,
		Type:     req.Type,
		Wallet:   req.Wallet,
		Amount:   req.Amount,
		Price:    req.Price,
	}

	var resp types.SubmitTransactionResponse
	if req.Payment != nil {
		tx, auth, err := h.ledger.SubmitPurchase(r.Context(), draft, *req.Payment)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		resp = types.SubmitTransactionResponse{Transaction: tx, PaymentReference: auth.Reference}
	} else {
		tx, err := h.ledger.SubmitTransaction(r.Context(), draft)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		resp = types.SubmitTransactionResponse{Transaction: tx}
	}

	h.respondWithJSON(w, http.StatusCreated, resp)
}

// Get returns one transaction. Users only see their own.
// GET /transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	tx, err := h.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if !actor.IsAdmin() && tx.UserID != actor.UserID {
		h.respondWithError(w, util.NewNotFoundError("transaction", id))
		return
	}
	h.respondWithJSON(w, http.StatusOK, tx)
}

// ListMine returns the caller's transactions in submission order.
// GET /users/me/transactions
func (h *TransactionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	txs, err := h.ledger.GetUserTransactions(r.Context(), actor.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset := pagination(r)
	h.respondWithJSON(w, http.StatusOK, types.Paginate(txs, limit, offset))
}

// Holdings returns the caller's balances derived from completed transactions.
// GET /users/me/holdings
func (h *TransactionHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	holdings, err := h.ledger.GetHoldings(r.Context(), actor.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.HoldingsResponse{UserID: actor.UserID, Holdings: holdings.Sorted()})
}
