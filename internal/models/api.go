package models

import "github.com/shopspring/decimal"

// TelegramUser is the profile extracted from validated Mini App init data.
type TelegramUser struct {
	Id           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	PhotoUrl     string `json:"photo_url"`
	Phone        string `json:"phone,omitempty"`
}

// SyncResult is returned to the frontend on every session start.
type SyncResult struct {
	Account      *Account           `json:"account"`
	Provisioning ProvisioningStatus `json:"provisioning"`
}

// PaymentIntent pairs the persisted pending transaction with the gateway's
// invoice reference the frontend redirects to.
type PaymentIntent struct {
	Transaction *Transaction `json:"transaction"`
	PayUrl      string       `json:"pay_url"`
}

// ReconcileResult reports what a deposit notification actually did.
type ReconcileResult struct {
	OrderId  string          `json:"order_id"`
	Status   string          `json:"status"`
	Credited bool            `json:"credited"`
	Amount   decimal.Decimal `json:"amount"`
}

// Plan is one entry of the subscription catalog.
type Plan struct {
	Id           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DurationDays int             `json:"duration_days"`
	DataLimitGb  int64           `json:"data_limit_gb"`
}
