package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptocard-ledger/internal/config"
	"cryptocard-ledger/internal/util"
)

type authorizeRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Card     Instrument      `json:"card"`
}

// HTTPAuthorizer calls a card provider's REST API with bounded retries.
type HTTPAuthorizer struct {
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPAuthorizer builds an authorizer from cfg.
func NewHTTPAuthorizer(cfg config.PaymentConfig, logger *slog.Logger) *HTTPAuthorizer {
	return &HTTPAuthorizer{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		backoff:    250 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: logger.With("component", "payment_authorizer"),
	}
}

// Authorize posts the charge. Each call carries its own Idempotency-Key,
// reused across retries so the provider charges at most once.
func (a *HTTPAuthorizer) Authorize(ctx context.Context, amount decimal.Decimal, instrument Instrument) (Authorization, error) {
	if err := instrument.Validate(); err != nil {
		return Authorization{}, err
	}

	u, err := url.JoinPath(a.baseURL, "/v1/authorizations")
	if err != nil {
		return Authorization{}, fmt.Errorf("invalid payment base URL: %w", err)
	}
	body, err := json.Marshal(authorizeRequest{Amount: amount, Currency: "usd", Card: instrument})
	if err != nil {
		return Authorization{}, fmt.Errorf("encoding authorization request: %w", err)
	}
	key := uuid.NewString()

	for attempt := 0; ; attempt++ {
		auth, retry, err := a.do(ctx, u, key, body)
		if err == nil || !retry || attempt >= a.maxRetries {
			if auth.Approved {
				a.logger.Info("Payment authorized", "reference", auth.Reference, "card_last4", instrument.Last4(), "amount", amount.String())
			}
			return auth, err
		}

		wait := a.backoff << attempt
		a.logger.Warn("Payment authorization failed, retrying", "error", err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Authorization{}, ctx.Err()
		}
	}
}

func (a *HTTPAuthorizer) do(ctx context.Context, u, key string, body []byte) (Authorization, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Authorization{}, false, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Authorization{}, shouldRetry(err), fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Authorization{}, true, fmt.Errorf("reading payment response failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusPaymentRequired:
		var auth Authorization
		if err := json.Unmarshal(raw, &auth); err != nil {
			return Authorization{}, false, fmt.Errorf("parsing payment response failed: %w", err)
		}
		if !auth.Approved {
			reason := auth.Reason
			if reason == "" {
				reason = "declined by issuer"
			}
			return auth, false, fmt.Errorf("%s: %w", reason, util.ErrPaymentDeclined)
		}
		return auth, false, nil
	case shouldRetryStatusCode(resp.StatusCode):
		return Authorization{}, true, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	default:
		return Authorization{}, false, fmt.Errorf("payment provider returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func shouldRetryStatusCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
