package ledger

import (
	"context"
	"fmt"
	"time"

	"vpn-ledger-go/internal/gateway"
	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"
)

// GatewayAPI is the payment-gateway capability the service consumes.
type GatewayAPI interface {
	CreateInvoice(ctx context.Context, params gateway.CreateInvoiceParams) (*models.Invoice, error)
	GetInvoice(ctx context.Context, orderId, invoiceId string) (*models.Invoice, error)
}

// ProvisioningAPI is the reconciliation capability consumed on every sync.
type ProvisioningAPI interface {
	EnsureAccount(ctx context.Context, account *models.Account) (models.ProvisioningStatus, error)
	AssignReferralCode(ctx context.Context, account *models.Account) (string, error)
}

// Service orchestrates the account store, the payment gateway and the
// provisioning reconciler. All balance mutations go through the store; the
// external calls happen entirely before or after the atomic local mutation,
// never inside it.
type Service struct {
	db           store.LedgerStore
	gateway      GatewayAPI
	provisioning ProvisioningAPI
	telegram     models.TelegramConfig
}

func NewService(db store.LedgerStore, gw GatewayAPI, prov ProvisioningAPI, telegram models.TelegramConfig) *Service {
	return &Service{
		db:           db,
		gateway:      gw,
		provisioning: prov,
		telegram:     telegram,
	}
}

// HealthCheck verifies the store answers queries.
func (s *Service) HealthCheck(ctx context.Context) error {
	_, err := s.db.ListPendingDeposits(ctx, 0, time.Hour, 1)
	if err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// newOrderId builds the externally visible order id from a monotonic time
// source plus the account id, keeping ids unique without coordination.
func newOrderId(accountId int64) string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), accountId)
}
