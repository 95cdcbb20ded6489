package ledger

import (
	"context"
	"fmt"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// RequestWithdrawal checks the preconditions in a fixed order (wallet before
// passkey, passkey before funds) and then atomically debits the balance and
// inserts the pending row. None of the precondition failures has a side
// effect.
func (s *Service) RequestWithdrawal(ctx context.Context, accountId int64, amount decimal.Decimal, currency, passkey string) (*models.Withdrawal, error) {
	account, err := s.db.GetAccount(ctx, accountId)
	if err != nil {
		return nil, err
	}

	if account.WalletAddress == "" {
		return nil, store.ErrWalletNotSet
	}
	if account.WithdrawalPasskey == "" {
		return nil, store.ErrPasskeyNotSet
	}
	// Exact match, per the withdrawal protocol.
	if account.WithdrawalPasskey != passkey {
		return nil, store.ErrInvalidPasskey
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("withdrawal amount must be positive, got %s", amount.String())
	}
	if currency == "" {
		return nil, fmt.Errorf("currency cannot be empty")
	}

	return s.db.CreateWithdrawal(ctx, accountId, amount, currency)
}

// CancelWithdrawal lets the owner abort a pending withdrawal with the same
// refund semantics as an admin rejection.
func (s *Service) CancelWithdrawal(ctx context.Context, accountId int64, withdrawalId string) (*models.Withdrawal, error) {
	withdrawal, err := s.db.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}
	if withdrawal.AccountId != accountId {
		return nil, store.ErrUnauthorized
	}

	return s.db.ResolveWithdrawal(ctx, withdrawalId, models.WithdrawalFailed)
}

// ResolveWithdrawal is the admin transition out of pending. Completing leaves
// the balance untouched (the funds left at request time); rejecting refunds
// the original amount atomically with the status change.
func (s *Service) ResolveWithdrawal(ctx context.Context, withdrawalId, outcome string) (*models.Withdrawal, error) {
	if outcome != models.WithdrawalCompleted && outcome != models.WithdrawalFailed {
		return nil, fmt.Errorf("unknown withdrawal outcome %q", outcome)
	}
	return s.db.ResolveWithdrawal(ctx, withdrawalId, outcome)
}

// ListWithdrawals returns the account's withdrawal history for the UI.
func (s *Service) ListWithdrawals(ctx context.Context, accountId int64, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.db.ListWithdrawals(ctx, accountId, limit, offset)
}
