package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cryptocard-ledger/internal/api/middleware"
	"cryptocard-ledger/internal/api/types"
	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/service"
	"cryptocard-ledger/internal/util"
	"cryptocard-ledger/internal/views"
)

// AdminHandler serves the review queue and status changes.
type AdminHandler struct {
	responder
	ledger service.LedgerService
}

func NewAdminHandler(ledger service.LedgerService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{responder: responder{logger: logger}, ledger: ledger}
}

// List filters the whole log by status, type and user.
// GET /admin/transactions?status=pending&type=buy&user_id=1
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, err := h.ledger.QueryTransactions(r.Context(), views.Query{
		Status: domain.TransactionStatus(q.Get("status")),
		Type:   domain.TransactionType(q.Get("type")),
		UserID: q.Get("user_id"),
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset := pagination(r)
	h.respondWithJSON(w, http.StatusOK, types.Paginate(txs, limit, offset))
}

// Approve completes a pending transaction.
// POST /admin/transactions/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ledger.ApproveTransaction)
}

// Cancel cancels a pending transaction.
// POST /admin/transactions/{id}/cancel
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ledger.CancelTransaction)
}

func (h *AdminHandler) transition(w http.ResponseWriter, r *http.Request, change func(context.Context, string, domain.Actor) (domain.Transaction, error)) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	tx, err := change(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, tx)
}
