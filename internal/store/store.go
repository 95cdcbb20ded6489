package store

import (
	"context"
	"errors"
	"time"

	"vpn-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the ledger core. Precondition failures are
// checked before any mutation; callers can match them with errors.Is and
// render a specific message.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrWalletNotSet           = errors.New("wallet address not set")
	ErrPasskeyNotSet          = errors.New("withdrawal passkey not set")
	ErrInvalidPasskey         = errors.New("invalid withdrawal passkey")
	ErrInvalidState           = errors.New("withdrawal is not pending")
	ErrUnauthorized           = errors.New("actor does not own this withdrawal")
	ErrAccountNotFound        = errors.New("account not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrDuplicateReferralCode  = errors.New("referral code already taken")
	ErrReferralCodeExhausted  = errors.New("unable to generate unique referral code")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Balance adjustment modes for the administrative override. Add and Subtract
// are credit/debit without the insufficient-funds guard.
const (
	AdjustSet      = "set"
	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
)

// UpsertAccountParams carries the profile fields of a sync event. Phone is
// merged COALESCE-style: an empty incoming value never clears a stored one.
type UpsertAccountParams struct {
	Id           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	PhotoUrl     string
	Phone        string
	Role         string
}

// CreateTransactionParams describes a new ledger entry. Purchases are inserted
// pre-completed together with their debit; deposits start pending.
type CreateTransactionParams struct {
	OrderId   string
	AccountId int64
	Amount    decimal.Decimal
	Currency  string
	Type      string
	Status    string
	InvoiceId string
}

// LedgerStore is the contract the service layer depends on. The SQLite
// implementation lives in internal/database.
type LedgerStore interface {
	// --- Accounts ---
	UpsertAccount(ctx context.Context, params UpsertAccountParams) (*models.Account, error)
	GetAccount(ctx context.Context, accountId int64) (*models.Account, error)
	SetWalletAddress(ctx context.Context, accountId int64, address string) error
	SetWithdrawalPasskey(ctx context.Context, accountId int64, passkey string) error
	SetReferralCode(ctx context.Context, accountId int64, code string) error
	MarkWelcomeBonus(ctx context.Context, accountId int64) error

	// --- Ledger ---
	Credit(ctx context.Context, accountId int64, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, accountId int64, amount decimal.Decimal) (decimal.Decimal, error)
	AdjustBalance(ctx context.Context, accountId int64, amount decimal.Decimal, mode string) (decimal.Decimal, error)

	// --- Transactions ---
	CreateTransaction(ctx context.Context, params CreateTransactionParams) (*models.Transaction, error)
	CreateCompletedPurchase(ctx context.Context, params CreateTransactionParams) (*models.Transaction, error)
	GetTransaction(ctx context.Context, orderId string) (*models.Transaction, error)
	ApplyGatewayStatus(ctx context.Context, orderId, status string) (*models.ReconcileResult, error)
	ListPendingDeposits(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]models.Transaction, error)
	ListTransactions(ctx context.Context, accountId int64, limit, offset int) ([]models.Transaction, error)

	// --- Withdrawals ---
	CreateWithdrawal(ctx context.Context, accountId int64, amount decimal.Decimal, currency string) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, withdrawalId string) (*models.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, withdrawalId, outcome string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, accountId int64, limit, offset int) ([]models.Withdrawal, error)

	// --- Lifecycle ---
	Close()
}
