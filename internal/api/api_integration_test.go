package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "cryptocard-ledger/internal"
	apimw "cryptocard-ledger/internal/api/middleware"
	"cryptocard-ledger/internal/api/types"
	"cryptocard-ledger/internal/config"
	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/notify"
	"cryptocard-ledger/internal/util"
)

const testSecret = "test-secret"

var (
	testApp    *app.Application
	testServer *httptest.Server
)

func TestMain(m *testing.M) {
	cfg := config.Default()
	cfg.StoreBackend = config.StoreMemory
	cfg.JWTSecret = testSecret
	cfg.AlertSchedule = "@every 1h"

	testApp = app.NewApplication()
	if err := testApp.InitializeWithConfig(context.Background(), cfg, util.DiscardLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize test application: %v\n", err)
		os.Exit(1)
	}
	testServer = httptest.NewServer(testApp.HTTPHandler)

	code := m.Run()

	testServer.Close()
	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	tok, err := apimw.NewTokenVerifier(testSecret).Issue(domain.Actor{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func doRequest(t *testing.T, method, path, tok string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, testServer.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func submit(t *testing.T, tok string, req types.SubmitTransactionRequest) domain.Transaction {
	t.Helper()
	resp, body := doRequest(t, http.MethodPost, "/transactions", tok, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out types.SubmitTransactionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Transaction
}

func TestHealth(t *testing.T) {
	resp, body := doRequest(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestUnauthenticated(t *testing.T) {
	resp, _ := doRequest(t, http.MethodGet, "/users/me/holdings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBuyApproveHoldings(t *testing.T) {
	user := token(t, "buyer-1", domain.RoleUser)
	admin := token(t, "admin-1", domain.RoleAdmin)

	tx := submit(t, user, types.SubmitTransactionRequest{
		CryptoID: "btc", Type: domain.TransactionTypeBuy, Wallet: "0xabc...",
		Amount: decimal.NewFromInt(100), Price: decimal.NewFromInt(50000),
	})
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	assert.Equal(t, "buyer-1", tx.UserID)

	resp, _ := doRequest(t, http.MethodPost, "/admin/transactions/"+tx.ID+"/approve", user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doRequest(t, http.MethodPost, "/admin/transactions/"+tx.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var approved domain.Transaction
	require.NoError(t, json.Unmarshal(body, &approved))
	assert.Equal(t, domain.TransactionStatusCompleted, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	resp, _ = doRequest(t, http.MethodPost, "/admin/transactions/"+tx.ID+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doRequest(t, http.MethodGet, "/users/me/holdings", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var holdings types.HoldingsResponse
	require.NoError(t, json.Unmarshal(body, &holdings))
	require.Len(t, holdings.Holdings, 1)
	assert.Equal(t, "btc", holdings.Holdings[0].AssetID)
	assert.True(t, decimal.RequireFromString("0.00172").Equal(holdings.Holdings[0].Quantity))
}

func TestCancelTwice(t *testing.T) {
	user := token(t, "canceller-1", domain.RoleUser)
	admin := token(t, "admin-1", domain.RoleAdmin)

	tx := submit(t, user, types.SubmitTransactionRequest{
		CryptoID: "eth", Type: domain.TransactionTypeBuy, Amount: decimal.NewFromInt(50), Price: decimal.NewFromInt(2000),
	})

	resp, _ := doRequest(t, http.MethodPost, "/admin/transactions/"+tx.ID+"/cancel", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := doRequest(t, http.MethodPost, "/admin/transactions/"+tx.ID+"/cancel", admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "already cancelled")

	resp, _ = doRequest(t, http.MethodPost, "/admin/transactions/unknown-id/cancel", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransactionVisibility(t *testing.T) {
	owner := token(t, "owner-1", domain.RoleUser)
	other := token(t, "other-1", domain.RoleUser)
	admin := token(t, "admin-1", domain.RoleAdmin)

	tx := submit(t, owner, types.SubmitTransactionRequest{
		CryptoID: "sol", Type: domain.TransactionTypeBuy, Amount: decimal.NewFromInt(10), Price: decimal.NewFromInt(100),
	})

	resp, _ := doRequest(t, http.MethodGet, "/transactions/"+tx.ID, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, http.MethodGet, "/transactions/"+tx.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doRequest(t, http.MethodGet, "/transactions/"+tx.ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, http.MethodGet, "/users/me/transactions", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page types.PaginatedResponse[domain.Transaction]
	require.NoError(t, json.Unmarshal(body, &page))
	require.Equal(t, int64(1), page.TotalCount)
	assert.Equal(t, tx.ID, page.Data[0].ID)
}

func TestSubmitRejections(t *testing.T) {
	user := token(t, "rejected-1", domain.RoleUser)

	resp, _ := doRequest(t, http.MethodPost, "/transactions", user, types.SubmitTransactionRequest{
		CryptoID: "btc", Type: domain.TransactionTypeBuy, Amount: decimal.Zero, Price: decimal.NewFromInt(1),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodPost, "/transactions", user, types.SubmitTransactionRequest{
		CryptoID: "btc", Type: domain.TransactionTypeSell, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp, body := doRequest(t, http.MethodPost, "/transactions", user, types.SubmitTransactionRequest{
		Type: domain.TransactionTypeBuy, Amount: decimal.NewFromInt(50), Price: decimal.NewFromInt(2),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "crypto_id")

	req, err := http.NewRequest(http.MethodPost, testServer.URL+"/transactions", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+user)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestCardPurchase(t *testing.T) {
	user := token(t, "card-1", domain.RoleUser)

	resp, body := doRequest(t, http.MethodPost, "/transactions", user, map[string]interface{}{
		"type":   "deposit",
		"amount": "200",
		"payment": map[string]string{
			"holder": "Ada Lovelace", "card_number": "4242 4242 4242 4242", "expiry": "12/29", "cvc": "123",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out types.SubmitTransactionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.PaymentReference)
	assert.Equal(t, domain.FiatAssetID, out.Transaction.CryptoID)
	assert.NotContains(t, string(body), "4242 4242", "card details are never echoed")
}

func TestAdminList(t *testing.T) {
	user := token(t, "lister-1", domain.RoleUser)
	admin := token(t, "admin-1", domain.RoleAdmin)

	tx := submit(t, user, types.SubmitTransactionRequest{
		CryptoID: "ada", Type: domain.TransactionTypeBuy, Amount: decimal.NewFromInt(5), Price: decimal.NewFromInt(1),
	})

	resp, body := doRequest(t, http.MethodGet, "/admin/transactions?status=pending&user_id=lister-1", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page types.PaginatedResponse[domain.Transaction]
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, tx.ID, page.Data[0].ID)

	resp, _ = doRequest(t, http.MethodGet, "/admin/transactions?status=lost", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, "/admin/transactions", user, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWatchlist(t *testing.T) {
	user := token(t, "watcher-1", domain.RoleUser)

	doRequest(t, http.MethodPut, "/users/me/watchlist/btc", user, nil)
	doRequest(t, http.MethodPut, "/users/me/watchlist/eth", user, nil)
	resp, body := doRequest(t, http.MethodPut, "/users/me/watchlist/btc", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list types.WatchlistResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Entries, 2)

	resp, body = doRequest(t, http.MethodDelete, "/users/me/watchlist/btc", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "eth", list.Entries[0].CryptoID)

	resp, _ = doRequest(t, http.MethodPut, "/users/me/watchlist/bad%20id", user, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAlertStream(t *testing.T) {
	admin := token(t, "admin-1", domain.RoleAdmin)
	user := token(t, "alerted-1", domain.RoleUser)

	// Drain anything already pending from other tests.
	testApp.Watcher.Tick()

	url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/admin/alerts/ws?access_token=" + admin
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return testApp.Hub.Clients() > 0 }, 2*time.Second, 10*time.Millisecond)

	tx := submit(t, user, types.SubmitTransactionRequest{
		CryptoID: "btc", Type: domain.TransactionTypeBuy, Amount: decimal.NewFromInt(100), Price: decimal.NewFromInt(50000),
	})
	testApp.Watcher.Tick()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg notify.AlertMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Alerts, 1)
	assert.Equal(t, tx.ID, msg.Alerts[0].TransactionID)
	assert.Equal(t, "New Transaction Pending", msg.Title)
	assert.Equal(t, "Buy transaction of $100.00 requires your approval.", msg.Summary)

	userURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/admin/alerts/ws?access_token=" + user
	_, resp, err := websocket.DefaultDialer.Dial(userURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
