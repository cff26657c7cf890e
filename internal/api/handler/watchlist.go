package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cryptocard-ledger/internal/api/middleware"
	"cryptocard-ledger/internal/api/types"
	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/service"
	"cryptocard-ledger/internal/util"
)

// WatchlistHandler serves the caller's followed assets.
type WatchlistHandler struct {
	responder
	watchlist service.WatchlistService
}

func NewWatchlistHandler(watchlist service.WatchlistService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{responder: responder{logger: logger}, watchlist: watchlist}
}

// List handles GET /users/me/watchlist.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}
	h.respondWithList(w, r, actor.UserID)
}

// Add handles PUT /users/me/watchlist/{cryptoID}.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}
	if err := h.watchlist.Add(r.Context(), actor.UserID, chi.URLParam(r, "cryptoID")); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithList(w, r, actor.UserID)
}

// Remove handles DELETE /users/me/watchlist/{cryptoID}.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}
	if err := h.watchlist.Remove(r.Context(), actor.UserID, chi.URLParam(r, "cryptoID")); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithList(w, r, actor.UserID)
}

func (h *WatchlistHandler) respondWithList(w http.ResponseWriter, r *http.Request, userID string) {
	entries, err := h.watchlist.List(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.WatchlistEntry{}
	}
	h.respondWithJSON(w, http.StatusOK, types.WatchlistResponse{UserID: userID, Entries: entries})
}
