// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/holdings"
	"cryptocard-ledger/internal/payment"
	"cryptocard-ledger/internal/store"
	"cryptocard-ledger/internal/util"
	"cryptocard-ledger/internal/views"
)

// TransactionLog is the subset of *store.TransactionStore the service needs.
type TransactionLog interface {
	Add(ctx context.Context, draft domain.TransactionDraft) (domain.Transaction, error)
	Get(ctx context.Context, id string) (domain.Transaction, error)
	SetStatus(ctx context.Context, id string, to domain.TransactionStatus) (domain.Transaction, error)
	List(ctx context.Context) []domain.Transaction
}

var _ TransactionLog = (*store.TransactionStore)(nil)

// LedgerService defines the business operations on the transaction ledger.
type LedgerService interface {
	SubmitTransaction(ctx context.Context, draft domain.TransactionDraft) (domain.Transaction, error)
	SubmitPurchase(ctx context.Context, draft domain.TransactionDraft, instrument payment.Instrument) (domain.Transaction, payment.Authorization, error)
	ApproveTransaction(ctx context.Context, id string, actor domain.Actor) (domain.Transaction, error)
	CancelTransaction(ctx context.Context, id string, actor domain.Actor) (domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	GetUserTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	GetHoldings(ctx context.Context, userID string) (domain.Holdings, error)
	PendingTransactions(ctx context.Context) ([]domain.Transaction, error)
	CompletedTransactions(ctx context.Context) ([]domain.Transaction, error)
	CancelledTransactions(ctx context.Context) ([]domain.Transaction, error)
	TransactionsByType(ctx context.Context, txType domain.TransactionType) ([]domain.Transaction, error)
	QueryTransactions(ctx context.Context, q views.Query) ([]domain.Transaction, error)
}

type ledgerService struct {
	log        TransactionLog
	authorizer payment.Authorizer
	commission decimal.Decimal
	logger     *slog.Logger
}

// NewLedgerService creates a LedgerService over log. commission is the fee
// applied by the holdings projection.
func NewLedgerService(log TransactionLog, authorizer payment.Authorizer, commission decimal.Decimal, logger *slog.Logger) LedgerService {
	return &ledgerService{
		log:        log,
		authorizer: authorizer,
		commission: commission,
		logger:     logger,
	}
}

// normalizeDraft fills the fixed fields of a fiat deposit or withdrawal. A
// deposit without an asset is fiat; a withdrawal must name "usd" or nothing.
func normalizeDraft(draft domain.TransactionDraft) domain.TransactionDraft {
	switch draft.Type {
	case domain.TransactionTypeDeposit, domain.TransactionTypeWithdrawal:
	default:
		return draft
	}
	asset := strings.TrimSpace(draft.CryptoID)
	if asset != "" && !strings.EqualFold(asset, domain.FiatAssetID) {
		return draft
	}
	draft.CryptoID = domain.FiatAssetID
	if draft.Price.IsZero() {
		draft.Price = decimal.NewFromInt(1)
	}
	return draft
}

// SubmitTransaction records a new pending transaction. Sells and withdrawals
// are refused when completed holdings cannot cover them.
func (s *ledgerService) SubmitTransaction(ctx context.Context, draft domain.TransactionDraft) (domain.Transaction, error) {
	draft = normalizeDraft(draft)
	if err := store.ValidateDraft(draft); err != nil {
		return domain.Transaction{}, err
	}
	if err := s.checkFunds(ctx, draft); err != nil {
		return domain.Transaction{}, err
	}

	tx, err := s.log.Add(ctx, draft)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("submit transaction: %w", err)
	}
	s.logger.Info("Transaction submitted", "id", tx.ID, "user_id", tx.UserID, "type", tx.Type, "crypto_id", tx.CryptoID, "amount", tx.Amount.String())
	return tx, nil
}

// SubmitPurchase charges instrument for a buy or deposit and records the
// transaction once the charge is authorized.
func (s *ledgerService) SubmitPurchase(ctx context.Context, draft domain.TransactionDraft, instrument payment.Instrument) (domain.Transaction, payment.Authorization, error) {
	draft = normalizeDraft(draft)
	if draft.Type != domain.TransactionTypeBuy && draft.Type != domain.TransactionTypeDeposit {
		return domain.Transaction{}, payment.Authorization{}, util.NewValidationError("type", "card payment only applies to buy and deposit")
	}
	if err := store.ValidateDraft(draft); err != nil {
		return domain.Transaction{}, payment.Authorization{}, err
	}
	if err := instrument.Validate(); err != nil {
		return domain.Transaction{}, payment.Authorization{}, err
	}

	auth, err := s.authorizer.Authorize(ctx, draft.Amount, instrument)
	if err != nil {
		return domain.Transaction{}, auth, fmt.Errorf("submit purchase: %w", err)
	}

	tx, err := s.SubmitTransaction(ctx, draft)
	if err != nil {
		s.logger.Error("Authorized payment could not be recorded", "reference", auth.Reference, "error", err)
		return domain.Transaction{}, auth, err
	}
	return tx, auth, nil
}

func (s *ledgerService) checkFunds(ctx context.Context, draft domain.TransactionDraft) error {
	need, ok := holdings.Required(draft)
	if !ok {
		return nil
	}
	asset := draft.CryptoID
	if asset == "" {
		asset = domain.FiatAssetID
	}
	have := holdings.Compute(s.log.List(ctx), draft.UserID, s.commission).Of(asset)
	if have.LessThan(need) {
		return fmt.Errorf("%s balance %s is below %s: %w", asset, have.String(), need.String(), util.ErrInsufficientFunds)
	}
	return nil
}

func (s *ledgerService) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.log.Get(ctx, id)
}

func (s *ledgerService) GetUserTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return views.ByUser(s.log.List(ctx), userID), nil
}

// GetHoldings projects userID's completed transactions into per-asset balances.
func (s *ledgerService) GetHoldings(ctx context.Context, userID string) (domain.Holdings, error) {
	if userID == "" {
		return nil, util.NewValidationError("user_id", "is required")
	}
	return holdings.Compute(s.log.List(ctx), userID, s.commission), nil
}

func (s *ledgerService) PendingTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return views.Pending(s.log.List(ctx)), nil
}

func (s *ledgerService) CompletedTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return views.Completed(s.log.List(ctx)), nil
}

func (s *ledgerService) CancelledTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return views.Cancelled(s.log.List(ctx)), nil
}

func (s *ledgerService) TransactionsByType(ctx context.Context, txType domain.TransactionType) ([]domain.Transaction, error) {
	if !txType.Valid() {
		return nil, util.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", txType))
	}
	return views.ByType(s.log.List(ctx), txType), nil
}

// QueryTransactions applies q to the whole log.
func (s *ledgerService) QueryTransactions(ctx context.Context, q views.Query) ([]domain.Transaction, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, util.NewValidationError("status", fmt.Sprintf("unknown transaction status %q", q.Status))
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, util.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", q.Type))
	}
	return q.Apply(s.log.List(ctx)), nil
}
