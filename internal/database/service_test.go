package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// newTestService opens a file-backed database under t.TempDir so concurrent
// connections see one shared database.
func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	}

	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(service.Close)

	return service
}

func createTestAccount(t *testing.T, service *Service, id int64) *models.Account {
	t.Helper()

	account, err := service.UpsertAccount(context.Background(), store.UpsertAccountParams{
		Id:           id,
		FirstName:    "Test",
		Username:     "tester",
		LanguageCode: "en",
		Role:         models.RoleUser,
	})
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

func fundAccount(t *testing.T, service *Service, id int64, amount string) {
	t.Helper()

	if _, err := service.Credit(context.Background(), id, mustDecimal(t, amount)); err != nil {
		t.Fatalf("Failed to fund account: %v", err)
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Invalid decimal %q: %v", s, err)
	}
	return d
}

func accountBalance(t *testing.T, service *Service, id int64) decimal.Decimal {
	t.Helper()

	account, err := service.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	return account.Balance
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(context.Background(), models.DatabaseConfig{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		PingTimeout:  time.Second,
	})
	if err == nil {
		t.Fatal("Expected error for empty database path")
	}
}
