package poller

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vpn-ledger-go/internal/database"
	"vpn-ledger-go/internal/gateway"
	"vpn-ledger-go/internal/ledger"
	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	statuses map[string]string
}

func (f *fakeGateway) CreateInvoice(ctx context.Context, params gateway.CreateInvoiceParams) (*models.Invoice, error) {
	return &models.Invoice{InvoiceId: "uuid-" + params.OrderId, OrderId: params.OrderId, Status: "pending"}, nil
}

func (f *fakeGateway) GetInvoice(ctx context.Context, orderId, invoiceId string) (*models.Invoice, error) {
	status, ok := f.statuses[orderId]
	if !ok {
		return nil, gateway.ErrInvoiceNotFound
	}
	return &models.Invoice{OrderId: orderId, Status: status}, nil
}

type fakeProvisioning struct{}

func (fakeProvisioning) EnsureAccount(ctx context.Context, account *models.Account) (models.ProvisioningStatus, error) {
	return models.ProvisioningStatus{Reachable: true}, nil
}

func (fakeProvisioning) AssignReferralCode(ctx context.Context, account *models.Account) (string, error) {
	return "CD001", nil
}

func TestPollOnce_CreditsSettledDeposits(t *testing.T) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)
	ctx := context.Background()

	if _, err := db.UpsertAccount(ctx, store.UpsertAccountParams{Id: 1, Username: "alice", Role: models.RoleUser}); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	amount := decimal.RequireFromString("25")
	if _, err := db.CreateTransaction(ctx, store.CreateTransactionParams{
		OrderId:   "order-settled",
		AccountId: 1,
		Amount:    amount,
		Currency:  "USDT",
		Type:      models.TxTypeDeposit,
		Status:    models.StatusPending,
		InvoiceId: "uuid-order-settled",
	}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if _, err := db.CreateTransaction(ctx, store.CreateTransactionParams{
		OrderId:   "order-open",
		AccountId: 1,
		Amount:    amount,
		Currency:  "USDT",
		Type:      models.TxTypeDeposit,
		Status:    models.StatusPending,
		InvoiceId: "uuid-order-open",
	}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	gw := &fakeGateway{statuses: map[string]string{
		"order-settled": models.StatusCompleted,
		"order-open":    models.StatusPending,
	}}
	service := ledger.NewService(db, gw, fakeProvisioning{}, models.TelegramConfig{})

	p := NewPoller(db, service, models.PollerConfig{
		Interval: time.Minute,
		MinAge:   0,
		MaxAge:   time.Hour,
		Batch:    10,
	}, nil)
	p.pollOnce(ctx)

	account, err := db.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !account.Balance.Equal(amount) {
		t.Errorf("Expected balance 25 after poll, got %s", account.Balance.String())
	}

	// The settled order leaves the pending set; the open one is retried.
	pending, err := db.ListPendingDeposits(ctx, 0, time.Hour, 10)
	if err != nil {
		t.Fatalf("ListPendingDeposits failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OrderId != "order-open" {
		t.Fatalf("Expected only order-open pending, got %+v", pending)
	}

	// A second cycle must not credit the settled order again.
	p.pollOnce(ctx)
	account, err = db.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !account.Balance.Equal(amount) {
		t.Errorf("Expected balance unchanged at 25, got %s", account.Balance.String())
	}
}

func TestStartStop(t *testing.T) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	gw := &fakeGateway{statuses: map[string]string{}}
	service := ledger.NewService(db, gw, fakeProvisioning{}, models.TelegramConfig{})

	p := NewPoller(db, service, models.PollerConfig{
		Interval: 10 * time.Millisecond,
		MaxAge:   time.Hour,
		Batch:    10,
	}, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	badPoller := NewPoller(db, service, models.PollerConfig{}, nil)
	if err := badPoller.Start(context.Background()); err == nil {
		t.Fatal("Expected error for zero interval")
	}
}
