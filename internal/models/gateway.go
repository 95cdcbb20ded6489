package models

// Invoice is the gateway's reference to a created payment intent.
type Invoice struct {
	InvoiceId string `json:"uuid"`
	OrderId   string `json:"order_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	PayUrl    string `json:"url"`
}

// GatewayNotification is the webhook payload delivered by the payment gateway.
// The gateway retries delivery, so the same notification can arrive any number
// of times. Authentication is payload-shape validation only; that weakness is a
// property of the gateway's protocol, not something this layer hardens.
type GatewayNotification struct {
	OrderId   string `json:"order_id"`
	InvoiceId string `json:"uuid"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}
