package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// rowScanner lets scanAccount work on both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var balanceStr string
	var phone, referralCode, walletAddress, passkey sql.NullString

	err := row.Scan(&account.Id, &account.FirstName, &account.LastName, &account.Username,
		&account.LanguageCode, &account.PhotoUrl, &phone, &balanceStr, &referralCode,
		&walletAddress, &passkey, &account.HasWelcomeBonus, &account.Role,
		&account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	account.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
	}
	account.Phone = phone.String
	account.ReferralCode = referralCode.String
	account.WalletAddress = walletAddress.String
	account.WithdrawalPasskey = passkey.String

	return &account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountId int64) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccount, accountId))
	if err == sql.ErrNoRows {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// UpsertAccount creates the account on first sync and merges profile fields on
// every subsequent one. An explicit read-then-insert-or-merge keeps the phone
// merge rule visible: a stored number is never overwritten by an empty value.
func (s *Service) UpsertAccount(ctx context.Context, params store.UpsertAccountParams) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingId int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = ?`, params.Id).Scan(&existingId)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, queryInsertAccount,
			params.Id, params.FirstName, params.LastName, params.Username,
			params.LanguageCode, params.PhotoUrl, params.Phone, params.Role)
		if err != nil {
			return nil, fmt.Errorf("failed to insert account: %w", err)
		}
		zap.L().Info("Account created",
			zap.Int64("account_id", params.Id),
			zap.String("username", params.Username),
			zap.String("role", params.Role))
	case err != nil:
		return nil, fmt.Errorf("failed to look up account: %w", err)
	default:
		_, err = tx.ExecContext(ctx, queryMergeAccount,
			params.FirstName, params.LastName, params.Username,
			params.LanguageCode, params.PhotoUrl, params.Phone, params.Role, params.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to merge account: %w", err)
		}
	}

	account, err := scanAccount(tx.QueryRowContext(ctx, queryGetAccount, params.Id))
	if err != nil {
		return nil, fmt.Errorf("failed to read back account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account upsert: %w", err)
	}
	return account, nil
}

// SetWalletAddress is write-once in the normal flow: a second attempt is
// rejected with ErrInvalidState rather than silently overwriting.
func (s *Service) SetWalletAddress(ctx context.Context, accountId int64, address string) error {
	return s.setWriteOnceField(ctx, querySetWalletAddress, accountId, address, "wallet address")
}

// SetWithdrawalPasskey is write-once; the passkey is stored and later compared
// by exact match, matching the source protocol.
func (s *Service) SetWithdrawalPasskey(ctx context.Context, accountId int64, passkey string) error {
	return s.setWriteOnceField(ctx, querySetWithdrawalPasskey, accountId, passkey, "withdrawal passkey")
}

func (s *Service) setWriteOnceField(ctx context.Context, query string, accountId int64, value, field string) error {
	result, err := s.db.ExecContext(ctx, query, value, accountId)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := s.GetAccount(ctx, accountId); err != nil {
			return err
		}
		return store.ErrInvalidState
	}
	return nil
}

// SetReferralCode assigns a code only when none is present. A uniqueness
// collision with another account's code surfaces as ErrDuplicateReferralCode
// so the caller can retry with a fresh code.
func (s *Service) SetReferralCode(ctx context.Context, accountId int64, code string) error {
	result, err := s.db.ExecContext(ctx, querySetReferralCode, code, accountId)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return store.ErrDuplicateReferralCode
		}
		return fmt.Errorf("failed to set referral code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		// Already assigned; the existing code wins.
		return nil
	}
	return nil
}

// MarkWelcomeBonus flips the bonus flag. The flag is monotonic: it is never
// reset, so repeated calls are harmless.
func (s *Service) MarkWelcomeBonus(ctx context.Context, accountId int64) error {
	result, err := s.db.ExecContext(ctx, queryMarkWelcomeBonus, accountId)
	if err != nil {
		return fmt.Errorf("failed to mark welcome bonus: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}
