package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// sqliteTimeLayout matches CURRENT_TIMESTAMP's storage format (UTC).
const sqliteTimeLayout = "2006-01-02 15:04:05"

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var amountStr string
	var invoiceId sql.NullString

	err := row.Scan(&t.OrderId, &t.AccountId, &amountStr, &t.Currency, &t.Type,
		&t.Status, &invoiceId, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	t.InvoiceId = invoiceId.String
	return &t, nil
}

// CreateTransaction inserts a new ledger entry, typically a pending deposit
// carrying the gateway's invoice id.
func (s *Service) CreateTransaction(ctx context.Context, params store.CreateTransactionParams) (*models.Transaction, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("transaction amount must be positive, got %s", params.Amount.String())
	}

	_, err := s.db.ExecContext(ctx, queryInsertTransaction,
		params.OrderId, params.AccountId, params.Amount.String(), params.Currency,
		params.Type, params.Status, params.InvoiceId)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return nil, store.ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	zap.L().Info("Transaction created",
		zap.String("order_id", params.OrderId),
		zap.Int64("account_id", params.AccountId),
		zap.String("type", params.Type),
		zap.String("status", params.Status),
		zap.String("amount", params.Amount.String()))

	return s.GetTransaction(ctx, params.OrderId)
}

// CreateCompletedPurchase debits the balance and records the purchase as one
// atomic unit: either both happen or neither does.
func (s *Service) CreateCompletedPurchase(ctx context.Context, params store.CreateTransactionParams) (*models.Transaction, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("purchase amount must be positive, got %s", params.Amount.String())
	}

	_, err := s.withBalanceRetry(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		newBalance, err := applyDelta(ctx, tx, params.AccountId, params.Amount.Neg(), true)
		if err != nil {
			return decimal.Zero, err
		}
		_, err = tx.ExecContext(ctx, queryInsertTransaction,
			params.OrderId, params.AccountId, params.Amount.String(), params.Currency,
			params.Type, models.StatusCompleted, params.InvoiceId)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return decimal.Zero, store.ErrDuplicateTransaction
			}
			return decimal.Zero, fmt.Errorf("failed to insert purchase: %w", err)
		}
		return newBalance, nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Purchase recorded",
		zap.String("order_id", params.OrderId),
		zap.Int64("account_id", params.AccountId),
		zap.String("type", params.Type),
		zap.String("amount", params.Amount.String()))

	return s.GetTransaction(ctx, params.OrderId)
}

func (s *Service) GetTransaction(ctx context.Context, orderId string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransaction, orderId))
	if err == sql.ErrNoRows {
		return nil, store.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ApplyGatewayStatus translates a gateway notification into at most one
// balance credit. The credit is gated on the conditional update matching a
// not-yet-paid row, so delivering the same notification K times credits
// exactly once. Status moves monotonically toward paid: non-paid overwrites
// are bookkeeping on unpaid rows only and can never regress a settled row,
// regardless of delivery order across the webhook and polling paths.
func (s *Service) ApplyGatewayStatus(ctx context.Context, orderId, status string) (*models.ReconcileResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTransaction(tx.QueryRowContext(ctx, queryGetTransaction, orderId))
	if err == sql.ErrNoRows {
		return nil, store.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction: %w", err)
	}

	result := &models.ReconcileResult{OrderId: orderId, Status: status, Amount: t.Amount}

	if models.IsPaidStatus(status) {
		res, err := tx.ExecContext(ctx, queryMarkTransactionPaid, status, orderId)
		if err != nil {
			return nil, fmt.Errorf("failed to mark transaction paid: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 1 {
			// First paid transition: credit inside the same transaction.
			if _, err := applyDelta(ctx, tx, t.AccountId, t.Amount, false); err != nil {
				return nil, err
			}
			result.Credited = true
		} else if t.Status != status {
			// Already paid under the other paid status; bookkeeping only.
			if _, err := tx.ExecContext(ctx, queryOverwritePaidStatus, status, orderId); err != nil {
				return nil, fmt.Errorf("failed to overwrite transaction status: %w", err)
			}
		}
	} else if t.Status != status {
		// Non-paid statuses only ever overwrite non-paid rows. A stale
		// expired or a forged pending landing after the credit leaves the
		// paid status untouched, so the credit gate stays disarmed.
		if _, err := tx.ExecContext(ctx, queryOverwriteUnpaidStatus, status, orderId); err != nil {
			return nil, fmt.Errorf("failed to overwrite transaction status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	if result.Credited {
		zap.L().Info("Deposit credited",
			zap.String("order_id", orderId),
			zap.Int64("account_id", t.AccountId),
			zap.String("status", status),
			zap.String("amount", t.Amount.String()))
	} else {
		zap.L().Debug("Deposit notification applied without credit",
			zap.String("order_id", orderId),
			zap.String("old_status", t.Status),
			zap.String("new_status", status))
	}

	return result, nil
}

// ListPendingDeposits returns pending deposit intents between minAge and
// maxAge old, for the polling verification path.
func (s *Service) ListPendingDeposits(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]models.Transaction, error) {
	now := time.Now().UTC()
	newest := now.Add(-minAge).Format(sqliteTimeLayout)
	oldest := now.Add(-maxAge).Format(sqliteTimeLayout)

	rows, err := s.db.QueryContext(ctx, queryListPendingDeposits, newest, oldest, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deposits: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (s *Service) ListTransactions(ctx context.Context, accountId int64, limit, offset int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryListTransactions, accountId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}
