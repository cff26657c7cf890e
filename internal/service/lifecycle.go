package service

import (
	"context"
	"fmt"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/util"
)

// ApproveTransaction completes a pending transaction on behalf of an admin.
func (s *ledgerService) ApproveTransaction(ctx context.Context, id string, actor domain.Actor) (domain.Transaction, error) {
	return s.transition(ctx, id, actor, domain.TransactionStatusCompleted)
}

// CancelTransaction cancels a pending transaction on behalf of an admin.
func (s *ledgerService) CancelTransaction(ctx context.Context, id string, actor domain.Actor) (domain.Transaction, error) {
	return s.transition(ctx, id, actor, domain.TransactionStatusCancelled)
}

// transition is the only path from pending to a terminal status. The store
// serializes concurrent callers, so exactly one of them wins.
func (s *ledgerService) transition(ctx context.Context, id string, actor domain.Actor, to domain.TransactionStatus) (domain.Transaction, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("Rejected status change by non-admin", "id", id, "user_id", actor.UserID, "to", to)
		current, err := s.log.Get(ctx, id)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("%s transaction: %w", verb(to), err)
		}
		return current, &util.InvalidTransitionError{ID: id, From: string(current.Status), To: string(to), Reason: "administrator capability required"}
	}

	tx, err := s.log.SetStatus(ctx, id, to)
	if err != nil {
		return tx, fmt.Errorf("%s transaction: %w", verb(to), err)
	}
	s.logger.Info("Transaction status changed", "id", tx.ID, "status", tx.Status, "admin_id", actor.UserID)
	return tx, nil
}

func verb(to domain.TransactionStatus) string {
	if to == domain.TransactionStatusCompleted {
		return "approve"
	}
	return "cancel"
}
