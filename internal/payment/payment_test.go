package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptocard-ledger/internal/config"
	"cryptocard-ledger/internal/util"
)

func validInstrument() Instrument {
	return Instrument{Holder: "Ada Lovelace", CardNumber: "4242 4242 4242 4242", Expiry: "12/29", CVC: "123"}
}

func TestInstrument_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Instrument)
		field  string
	}{
		{"valid", func(i *Instrument) {}, ""},
		{"missing holder", func(i *Instrument) { i.Holder = " " }, "payment.holder"},
		{"short number", func(i *Instrument) { i.CardNumber = "4242 4242" }, "payment.card_number"},
		{"letters in number", func(i *Instrument) { i.CardNumber = "4242 4242 4242 42ab" }, "payment.card_number"},
		{"bad expiry", func(i *Instrument) { i.Expiry = "13/29" }, "payment.expiry"},
		{"bad cvc", func(i *Instrument) { i.CVC = "12" }, "payment.cvc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := validInstrument()
			tt.mutate(&inst)
			err := inst.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *util.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, util.ErrInvalidInput)
		})
	}
	assert.Equal(t, "4242", validInstrument().Last4())
}

func TestStaticAuthorizer(t *testing.T) {
	auth, err := StaticAuthorizer{}.Authorize(context.Background(), decimal.NewFromInt(10), validInstrument())
	require.NoError(t, err)
	assert.True(t, auth.Approved)
	assert.NotEmpty(t, auth.Reference)

	_, err = StaticAuthorizer{}.Authorize(context.Background(), decimal.NewFromInt(10), Instrument{})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func newTestAuthorizer(url string, retries int) *HTTPAuthorizer {
	a := NewHTTPAuthorizer(config.PaymentConfig{BaseURL: url, APIKey: "secret", Timeout: 2 * time.Second, MaxRetries: retries}, util.DiscardLogger())
	a.backoff = time.Millisecond
	return a
}

func TestHTTPAuthorizer_Approved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/authorizations", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var req authorizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, decimal.NewFromInt(100).Equal(req.Amount))
		assert.Equal(t, "usd", req.Currency)

		_ = json.NewEncoder(w).Encode(Authorization{Reference: "auth-1", Approved: true})
	}))
	defer srv.Close()

	auth, err := newTestAuthorizer(srv.URL, 0).Authorize(context.Background(), decimal.NewFromInt(100), validInstrument())
	require.NoError(t, err)
	assert.Equal(t, "auth-1", auth.Reference)
}

func TestHTTPAuthorizer_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(Authorization{Reference: "auth-2", Reason: "insufficient card balance"})
	}))
	defer srv.Close()

	_, err := newTestAuthorizer(srv.URL, 3).Authorize(context.Background(), decimal.NewFromInt(100), validInstrument())
	assert.ErrorIs(t, err, util.ErrPaymentDeclined)
	assert.Contains(t, err.Error(), "insufficient card balance")
}

func TestHTTPAuthorizer_RetriesServerErrorsWithSameKey(t *testing.T) {
	var calls atomic.Int32
	keys := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Authorization{Reference: "auth-3", Approved: true})
	}))
	defer srv.Close()

	auth, err := newTestAuthorizer(srv.URL, 2).Authorize(context.Background(), decimal.NewFromInt(5), validInstrument())
	require.NoError(t, err)
	assert.Equal(t, "auth-3", auth.Reference)
	assert.Equal(t, int32(3), calls.Load())

	first := <-keys
	assert.Equal(t, first, <-keys)
	assert.Equal(t, first, <-keys)
}

func TestHTTPAuthorizer_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestAuthorizer(srv.URL, 1).Authorize(context.Background(), decimal.NewFromInt(5), validInstrument())
	require.Error(t, err)
	assert.NotErrorIs(t, err, util.ErrPaymentDeclined)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPAuthorizer_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestAuthorizer(srv.URL, 3).Authorize(context.Background(), decimal.NewFromInt(5), validInstrument())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
