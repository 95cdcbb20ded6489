package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles recomputed on every sync from the static admin allow-list.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Transaction types.
const (
	TxTypeDeposit            = "deposit"
	TxTypeSubscription       = "subscription"
	TxTypeCustomSubscription = "custom_subscription"
)

// Transaction statuses as reported by the payment gateway. A transaction is
// "paid" once it reaches StatusCompleted or StatusWrongAmount; the balance
// credit is applied exactly once, on the first transition into a paid status.
const (
	StatusPending     = "pending"
	StatusCompleted   = "completed"
	StatusWrongAmount = "wrong_amount"
	StatusExpired     = "expired"
	StatusCancelled   = "cancelled"
	StatusFailed      = "failed"
)

// Withdrawal statuses. pending -> completed and pending -> failed are the only
// legal transitions; both are terminal.
const (
	WithdrawalPending   = "pending"
	WithdrawalCompleted = "completed"
	WithdrawalFailed    = "failed"
)

// IsPaidStatus reports whether a gateway status means money was received.
func IsPaidStatus(status string) bool {
	return status == StatusCompleted || status == StatusWrongAmount
}

// Account represents one end user: Telegram profile, ledger balance and
// provisioning linkage. Accounts are created on first sync and never deleted.
// The withdrawal passkey is a second factor checked on every withdrawal
// request and is never serialized back to the client.
type Account struct {
	Id                int64           `db:"id" json:"id"`
	FirstName         string          `db:"first_name" json:"first_name"`
	LastName          string          `db:"last_name" json:"last_name"`
	Username          string          `db:"username" json:"username"`
	LanguageCode      string          `db:"language_code" json:"language_code"`
	PhotoUrl          string          `db:"photo_url" json:"photo_url"`
	Phone             string          `db:"phone" json:"phone,omitempty"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	ReferralCode      string          `db:"referral_code" json:"referral_code"`
	WalletAddress     string          `db:"wallet_address" json:"wallet_address"`
	WithdrawalPasskey string          `db:"withdrawal_passkey" json:"-"`
	HasWelcomeBonus   bool            `db:"has_welcome_bonus" json:"has_welcome_bonus"`
	Role              string          `db:"role" json:"role"`
	Version           int64           `db:"version" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the account currently holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Transaction is an append-mostly ledger entry keyed by the externally visible
// order id (monotonic time source + account id).
type Transaction struct {
	OrderId   string          `db:"order_id" json:"order_id"`
	AccountId int64           `db:"account_id" json:"account_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	Type      string          `db:"type" json:"type"`
	Status    string          `db:"status" json:"status"`
	InvoiceId string          `db:"invoice_id" json:"invoice_id,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Withdrawal carries its own destination address, copied from the account at
// request time. Every pending withdrawal has already debited the balance.
type Withdrawal struct {
	Id        string          `db:"id" json:"id"`
	AccountId int64           `db:"account_id" json:"account_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	Address   string          `db:"address" json:"address"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
