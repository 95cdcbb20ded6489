package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// balanceRetries bounds the optimistic-lock retry loop. With _txlock=immediate
// the database serializes writers, so the version guard almost never trips;
// the loop covers the remaining window.
const balanceRetries = 3

// applyDelta mutates the balance inside an open transaction. When guarded is
// true the mutation fails with ErrInsufficientFunds instead of producing a
// negative balance. The version check turns an interleaved writer into
// ErrConcurrentModification so no check-then-act race can slip through.
func applyDelta(ctx context.Context, tx *sql.Tx, accountId int64, delta decimal.Decimal, guarded bool) (decimal.Decimal, error) {
	var balanceStr string
	var version int64
	err := tx.QueryRowContext(ctx, queryGetBalanceVersion, accountId).Scan(&balanceStr, &version)
	if err == sql.ErrNoRows {
		return decimal.Zero, store.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
	}

	newBalance := balance.Add(delta)
	if guarded && newBalance.IsNegative() {
		return decimal.Zero, store.ErrInsufficientFunds
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalance, newBalance.String(), accountId, version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return decimal.Zero, store.ErrConcurrentModification
	}

	return newBalance, nil
}

// setBalance overwrites the balance unconditionally (admin "set" mode).
func setBalance(ctx context.Context, tx *sql.Tx, accountId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var version int64
	var balanceStr string
	err := tx.QueryRowContext(ctx, queryGetBalanceVersion, accountId).Scan(&balanceStr, &version)
	if err == sql.ErrNoRows {
		return decimal.Zero, store.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalance, amount.String(), accountId, version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to set balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return decimal.Zero, store.ErrConcurrentModification
	}

	return amount, nil
}

// withBalanceRetry runs fn in its own transaction, retrying the bounded number
// of times when an interleaved writer invalidated the version guard.
func (s *Service) withBalanceRetry(ctx context.Context, fn func(tx *sql.Tx) (decimal.Decimal, error)) (decimal.Decimal, error) {
	var lastErr error
	for attempt := 0; attempt < balanceRetries; attempt++ {
		newBalance, err := s.runInTx(ctx, fn)
		if err == nil {
			return newBalance, nil
		}
		if !errors.Is(err, store.ErrConcurrentModification) {
			return decimal.Zero, err
		}
		lastErr = err
		zap.L().Warn("Balance update conflicted, retrying", zap.Int("attempt", attempt+1))
	}
	return decimal.Zero, lastErr
}

func (s *Service) runInTx(ctx context.Context, fn func(tx *sql.Tx) (decimal.Decimal, error)) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := fn(tx)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newBalance, nil
}

// Credit increments the balance. The change is durable before this returns.
func (s *Service) Credit(ctx context.Context, accountId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("credit amount must be positive, got %s", amount.String())
	}
	return s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return applyDelta(ctx, tx, accountId, amount, false)
	})
}

// Debit decrements the balance, failing with ErrInsufficientFunds when the
// current balance does not cover the amount. No partial state is observable.
func (s *Service) Debit(ctx context.Context, accountId int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("debit amount must be positive, got %s", amount.String())
	}
	return s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return applyDelta(ctx, tx, accountId, amount.Neg(), true)
	})
}

// AdjustBalance is the administrative override. Add and subtract skip the
// insufficient-funds guard: an admin may force a negative balance deliberately.
func (s *Service) AdjustBalance(ctx context.Context, accountId int64, amount decimal.Decimal, mode string) (decimal.Decimal, error) {
	switch mode {
	case store.AdjustSet:
		return s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
			return setBalance(ctx, tx, accountId, amount)
		})
	case store.AdjustAdd:
		return s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
			return applyDelta(ctx, tx, accountId, amount, false)
		})
	case store.AdjustSubtract:
		return s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
			return applyDelta(ctx, tx, accountId, amount.Neg(), false)
		})
	default:
		return decimal.Zero, fmt.Errorf("unknown adjustment mode %q", mode)
	}
}
