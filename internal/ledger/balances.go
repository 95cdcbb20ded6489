package ledger

import (
	"context"
	"fmt"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustBalance is the admin-only override. Unlike Debit, subtract may drive
// the balance negative deliberately.
func (s *Service) AdjustBalance(ctx context.Context, accountId int64, amount decimal.Decimal, mode string) (decimal.Decimal, error) {
	newBalance, err := s.db.AdjustBalance(ctx, accountId, amount, mode)
	if err != nil {
		return decimal.Zero, err
	}

	zap.L().Info("Balance adjusted by admin",
		zap.Int64("account_id", accountId),
		zap.String("mode", mode),
		zap.String("amount", amount.String()),
		zap.String("new_balance", newBalance.String()))

	return newBalance, nil
}

// PurchasePlan debits the plan price and records a completed subscription
// transaction as one atomic unit. Insufficient balance leaves no trace.
func (s *Service) PurchasePlan(ctx context.Context, accountId int64, plan models.Plan) (*models.Transaction, error) {
	return s.purchase(ctx, accountId, plan.Price, plan.Currency, models.TxTypeSubscription)
}

// PurchaseCustom records an ad-hoc priced purchase.
func (s *Service) PurchaseCustom(ctx context.Context, accountId int64, amount decimal.Decimal, currency string) (*models.Transaction, error) {
	return s.purchase(ctx, accountId, amount, currency, models.TxTypeCustomSubscription)
}

func (s *Service) purchase(ctx context.Context, accountId int64, amount decimal.Decimal, currency, txType string) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("purchase amount must be positive, got %s", amount.String())
	}
	if currency == "" {
		return nil, fmt.Errorf("currency cannot be empty")
	}

	return s.db.CreateCompletedPurchase(ctx, store.CreateTransactionParams{
		OrderId:   newOrderId(accountId),
		AccountId: accountId,
		Amount:    amount,
		Currency:  currency,
		Type:      txType,
	})
}

// ListTransactions returns the account's transaction history for the UI.
func (s *Service) ListTransactions(ctx context.Context, accountId int64, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.db.ListTransactions(ctx, accountId, limit, offset)
}

// SetWalletAddress and SetWithdrawalPasskey expose the write-once credential
// fields to the boundary API.
func (s *Service) SetWalletAddress(ctx context.Context, accountId int64, address string) error {
	if address == "" {
		return fmt.Errorf("wallet address cannot be empty")
	}
	return s.db.SetWalletAddress(ctx, accountId, address)
}

func (s *Service) SetWithdrawalPasskey(ctx context.Context, accountId int64, passkey string) error {
	if passkey == "" {
		return fmt.Errorf("passkey cannot be empty")
	}
	return s.db.SetWithdrawalPasskey(ctx, accountId, passkey)
}
