package ledger

import (
	"context"
	"fmt"

	"vpn-ledger-go/internal/gateway"
	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreatePaymentIntent opens a gateway invoice and persists the pending
// transaction carrying its correlation id. The gateway call completes before
// the local insert, so a gateway timeout leaves no local state behind.
func (s *Service) CreatePaymentIntent(ctx context.Context, accountId int64, amount decimal.Decimal, currency string) (*models.PaymentIntent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", amount.String())
	}
	if currency == "" {
		return nil, fmt.Errorf("currency cannot be empty")
	}
	if _, err := s.db.GetAccount(ctx, accountId); err != nil {
		return nil, err
	}

	orderId := newOrderId(accountId)

	invoice, err := s.gateway.CreateInvoice(ctx, gateway.CreateInvoiceParams{
		OrderId:  orderId,
		Amount:   amount,
		Currency: currency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway invoice: %w", err)
	}

	transaction, err := s.db.CreateTransaction(ctx, store.CreateTransactionParams{
		OrderId:   orderId,
		AccountId: accountId,
		Amount:    amount,
		Currency:  currency,
		Type:      models.TxTypeDeposit,
		Status:    models.StatusPending,
		InvoiceId: invoice.InvoiceId,
	})
	if err != nil {
		return nil, err
	}

	return &models.PaymentIntent{
		Transaction: transaction,
		PayUrl:      invoice.PayUrl,
	}, nil
}

// HandleGatewayCallback applies a webhook notification. Duplicate deliveries
// are success-with-no-effect: the gateway retries until it sees 200, and must
// see it on redelivery too.
func (s *Service) HandleGatewayCallback(ctx context.Context, notification models.GatewayNotification) (*models.ReconcileResult, error) {
	if notification.OrderId == "" || notification.Status == "" {
		return nil, fmt.Errorf("notification missing order id or status")
	}

	result, err := s.db.ApplyGatewayStatus(ctx, notification.OrderId, notification.Status)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Gateway callback processed",
		zap.String("order_id", notification.OrderId),
		zap.String("status", notification.Status),
		zap.Bool("credited", result.Credited))

	return result, nil
}

// VerifyTransaction pulls the invoice status from the gateway and feeds it
// through the same idempotency boundary as the webhook, so the two paths can
// race safely.
func (s *Service) VerifyTransaction(ctx context.Context, orderId, invoiceId string) (*models.ReconcileResult, error) {
	if orderId == "" && invoiceId == "" {
		return nil, fmt.Errorf("order id or invoice id required")
	}

	invoice, err := s.gateway.GetInvoice(ctx, orderId, invoiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice status: %w", err)
	}

	if orderId == "" {
		orderId = invoice.OrderId
	}

	return s.db.ApplyGatewayStatus(ctx, orderId, invoice.Status)
}
