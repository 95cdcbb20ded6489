package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"
)

func setupWithdrawalAccount(t *testing.T, service *Service, id int64, balance string) *models.Account {
	t.Helper()

	account := createTestAccount(t, service, id)
	if err := service.SetWalletAddress(context.Background(), id, "TWalletAddr"); err != nil {
		t.Fatalf("Failed to set wallet address: %v", err)
	}
	fundAccount(t, service, id, balance)
	return account
}

func TestCreateWithdrawal_DebitsAtRequest(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := setupWithdrawalAccount(t, service, 1, "20")

	withdrawal, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "15"), "USDT")
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}
	if withdrawal.Status != models.WithdrawalPending {
		t.Errorf("Expected pending status, got %s", withdrawal.Status)
	}
	if withdrawal.Address != "TWalletAddr" {
		t.Errorf("Expected address snapshot, got %q", withdrawal.Address)
	}
	if got := accountBalance(t, service, account.Id); !got.Equal(mustDecimal(t, "5")) {
		t.Errorf("Expected balance 5 after request, got %s", got.String())
	}
}

func TestCreateWithdrawal_InsufficientFunds(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := setupWithdrawalAccount(t, service, 1, "10")

	_, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "10.01"), "USDT")
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	// No pending row, no balance change.
	if got := accountBalance(t, service, account.Id); !got.Equal(mustDecimal(t, "10")) {
		t.Errorf("Expected balance 10, got %s", got.String())
	}
	withdrawals, err := service.ListWithdrawals(ctx, account.Id, 10, 0)
	if err != nil {
		t.Fatalf("ListWithdrawals failed: %v", err)
	}
	if len(withdrawals) != 0 {
		t.Errorf("Expected no withdrawal rows, got %d", len(withdrawals))
	}
}

func TestCreateWithdrawal_WalletNotSet(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := createTestAccount(t, service, 1)
	fundAccount(t, service, account.Id, "10")

	_, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "5"), "USDT")
	if !errors.Is(err, store.ErrWalletNotSet) {
		t.Fatalf("Expected ErrWalletNotSet, got %v", err)
	}
}

func TestResolveWithdrawal_CompletedKeepsDebit(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := setupWithdrawalAccount(t, service, 1, "20")

	withdrawal, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "15"), "USDT")
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	resolved, err := service.ResolveWithdrawal(ctx, withdrawal.Id, models.WithdrawalCompleted)
	if err != nil {
		t.Fatalf("ResolveWithdrawal failed: %v", err)
	}
	if resolved.Status != models.WithdrawalCompleted {
		t.Errorf("Expected completed, got %s", resolved.Status)
	}
	// The funds left at request time; completing changes nothing.
	if got := accountBalance(t, service, account.Id); !got.Equal(mustDecimal(t, "5")) {
		t.Errorf("Expected balance 5, got %s", got.String())
	}
}

func TestResolveWithdrawal_FailedRefunds(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := setupWithdrawalAccount(t, service, 1, "20")

	withdrawal, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "15"), "USDT")
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	resolved, err := service.ResolveWithdrawal(ctx, withdrawal.Id, models.WithdrawalFailed)
	if err != nil {
		t.Fatalf("ResolveWithdrawal failed: %v", err)
	}
	if resolved.Status != models.WithdrawalFailed {
		t.Errorf("Expected failed, got %s", resolved.Status)
	}
	// The exact original amount comes back: request then fail conserves the
	// balance.
	if got := accountBalance(t, service, account.Id); !got.Equal(mustDecimal(t, "20")) {
		t.Errorf("Expected balance restored to 20, got %s", got.String())
	}
}

func TestResolveWithdrawal_OnlyOnce(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := setupWithdrawalAccount(t, service, 1, "20")

	withdrawal, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "15"), "USDT")
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	if _, err := service.ResolveWithdrawal(ctx, withdrawal.Id, models.WithdrawalCompleted); err != nil {
		t.Fatalf("First resolution failed: %v", err)
	}

	// A second resolution, even to a different outcome, is rejected with no
	// side effect. A failed-after-completed would mint money via the refund.
	_, err = service.ResolveWithdrawal(ctx, withdrawal.Id, models.WithdrawalFailed)
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState, got %v", err)
	}
	if got := accountBalance(t, service, account.Id); !got.Equal(mustDecimal(t, "5")) {
		t.Errorf("Expected balance 5 after rejected re-resolution, got %s", got.String())
	}
}

func TestResolveWithdrawal_ConcurrentRace(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := setupWithdrawalAccount(t, service, 1, "20")

	withdrawal, err := service.CreateWithdrawal(ctx, account.Id, mustDecimal(t, "10"), "USDT")
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	outcomes := []string{
		models.WithdrawalCompleted, models.WithdrawalFailed,
		models.WithdrawalCompleted, models.WithdrawalFailed,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for _, outcome := range outcomes {
		wg.Add(1)
		go func(outcome string) {
			defer wg.Done()
			if _, err := service.ResolveWithdrawal(ctx, withdrawal.Id, outcome); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(outcome)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one effective resolution, got %d", wins)
	}

	// Whichever outcome won, the balance must be consistent with it.
	resolved, err := service.GetWithdrawal(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("GetWithdrawal failed: %v", err)
	}
	balance := accountBalance(t, service, account.Id)
	switch resolved.Status {
	case models.WithdrawalCompleted:
		if !balance.Equal(mustDecimal(t, "10")) {
			t.Errorf("Completed outcome expects balance 10, got %s", balance.String())
		}
	case models.WithdrawalFailed:
		if !balance.Equal(mustDecimal(t, "20")) {
			t.Errorf("Failed outcome expects balance 20, got %s", balance.String())
		}
	default:
		t.Errorf("Unexpected terminal status %s", resolved.Status)
	}
}

func TestResolveWithdrawal_Unknown(t *testing.T) {
	service := newTestService(t)

	_, err := service.ResolveWithdrawal(context.Background(), "no-such-id", models.WithdrawalCompleted)
	if !errors.Is(err, store.ErrWithdrawalNotFound) {
		t.Fatalf("Expected ErrWithdrawalNotFound, got %v", err)
	}
}
