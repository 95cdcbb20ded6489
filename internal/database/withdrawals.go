package database

import (
	"context"
	"database/sql"
	"fmt"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var amountStr string

	err := row.Scan(&w.Id, &w.AccountId, &amountStr, &w.Currency, &w.Address,
		&w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	w.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return &w, nil
}

// CreateWithdrawal debits the balance and inserts the pending row as one
// atomic unit. The destination address is copied from the account inside the
// same transaction, so later wallet changes cannot redirect a pending payout.
func (s *Service) CreateWithdrawal(ctx context.Context, accountId int64, amount decimal.Decimal, currency string) (*models.Withdrawal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("withdrawal amount must be positive, got %s", amount.String())
	}

	withdrawalId := uuid.New().String()

	_, err := s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		var address sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT wallet_address FROM accounts WHERE id = ?`, accountId).Scan(&address)
		if err == sql.ErrNoRows {
			return decimal.Zero, store.ErrAccountNotFound
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to read wallet address: %w", err)
		}
		if !address.Valid || address.String == "" {
			return decimal.Zero, store.ErrWalletNotSet
		}

		newBalance, err := applyDelta(ctx, tx, accountId, amount.Neg(), true)
		if err != nil {
			return decimal.Zero, err
		}

		_, err = tx.ExecContext(ctx, queryInsertWithdrawal,
			withdrawalId, accountId, amount.String(), currency, address.String)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to insert withdrawal: %w", err)
		}
		return newBalance, nil
	})
	if err != nil {
		return nil, err
	}

	withdrawal, err := s.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.Int64("account_id", accountId),
		zap.String("amount", amount.String()),
		zap.String("address", withdrawal.Address))

	return withdrawal, nil
}

func (s *Service) GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(s.db.QueryRowContext(ctx, queryGetWithdrawal, withdrawalId))
	if err == sql.ErrNoRows {
		return nil, store.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// ResolveWithdrawal performs the single legal transition out of pending.
// The update is conditional on the row still being pending, so two racing
// resolutions produce exactly one effective transition; the loser gets
// ErrInvalidState and no side effect. Resolving to failed refunds the exact
// original amount atomically with the status change.
func (s *Service) ResolveWithdrawal(ctx context.Context, withdrawalId, outcome string) (*models.Withdrawal, error) {
	if outcome != models.WithdrawalCompleted && outcome != models.WithdrawalFailed {
		return nil, fmt.Errorf("unknown withdrawal outcome %q", outcome)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, withdrawalId))
	if err == sql.ErrNoRows {
		return nil, store.ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up withdrawal: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryResolveWithdrawal, outcome, withdrawalId)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve withdrawal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, store.ErrInvalidState
	}

	if outcome == models.WithdrawalFailed {
		if _, err := applyDelta(ctx, tx, w.AccountId, w.Amount, false); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal resolution: %w", err)
	}

	zap.L().Info("Withdrawal resolved",
		zap.String("withdrawal_id", withdrawalId),
		zap.Int64("account_id", w.AccountId),
		zap.String("outcome", outcome),
		zap.String("amount", w.Amount.String()))

	w.Status = outcome
	return w, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, accountId int64, limit, offset int) ([]models.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx, queryListWithdrawals, accountId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return withdrawals, nil
}
