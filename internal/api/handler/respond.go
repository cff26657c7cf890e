// Package handler adapts HTTP requests to the ledger services.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cryptocard-ledger/internal/api/types"
	"cryptocard-ledger/internal/util"
)

// DefaultTimeout bounds every non-streaming request.
const DefaultTimeout = 30 * time.Second

const (
	defaultLimit = 50
	maxLimit     = 500
)

// responder carries the JSON helpers shared by all handlers.
type responder struct {
	logger *slog.Logger
}

func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (h responder) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	case util.IsError(err, util.ErrInvalidTransition), util.IsError(err, util.ErrDuplicateEntry):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = err.Error()
	case util.IsError(err, util.ErrPaymentDeclined):
		statusCode = http.StatusPaymentRequired
		message = "Payment declined"
	case util.IsError(err, util.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = "Unauthorized"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message})
}

// pagination reads limit and offset, falling back to defaults on bad input.
func pagination(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
