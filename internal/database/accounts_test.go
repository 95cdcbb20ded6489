package database

import (
	"context"
	"errors"
	"testing"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"
)

func TestUpsertAccount_CreateAndMerge(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	account, err := service.UpsertAccount(ctx, store.UpsertAccountParams{
		Id:        1,
		FirstName: "Alice",
		Username:  "alice",
		Role:      models.RoleUser,
	})
	if err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}
	if !account.Balance.IsZero() {
		t.Errorf("Expected zero initial balance, got %s", account.Balance.String())
	}
	if account.HasWelcomeBonus {
		t.Error("New account must not have the welcome bonus flag set")
	}

	fundAccount(t, service, 1, "42")

	// A later sync merges profile fields but never touches the balance.
	account, err = service.UpsertAccount(ctx, store.UpsertAccountParams{
		Id:        1,
		FirstName: "Alicia",
		Username:  "alice",
		Role:      models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Second UpsertAccount failed: %v", err)
	}
	if account.FirstName != "Alicia" {
		t.Errorf("Expected merged first name, got %s", account.FirstName)
	}
	if account.Role != models.RoleAdmin {
		t.Errorf("Expected role recomputed to admin, got %s", account.Role)
	}
	if !account.Balance.Equal(mustDecimal(t, "42")) {
		t.Errorf("Expected balance preserved at 42, got %s", account.Balance.String())
	}
}

func TestUpsertAccount_PhoneMerge(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.UpsertAccount(ctx, store.UpsertAccountParams{
		Id: 1, Username: "alice", Phone: "+491700000001", Role: models.RoleUser,
	})
	if err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	// Empty incoming phone must not clear the stored number.
	account, err := service.UpsertAccount(ctx, store.UpsertAccountParams{
		Id: 1, Username: "alice", Phone: "", Role: models.RoleUser,
	})
	if err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}
	if account.Phone != "+491700000001" {
		t.Errorf("Expected phone preserved, got %q", account.Phone)
	}

	// A new non-empty phone replaces the old one.
	account, err = service.UpsertAccount(ctx, store.UpsertAccountParams{
		Id: 1, Username: "alice", Phone: "+491700000002", Role: models.RoleUser,
	})
	if err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}
	if account.Phone != "+491700000002" {
		t.Errorf("Expected phone updated, got %q", account.Phone)
	}
}

func TestSetWalletAddress_WriteOnce(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := createTestAccount(t, service, 1)

	if err := service.SetWalletAddress(ctx, account.Id, "TAddr1"); err != nil {
		t.Fatalf("SetWalletAddress failed: %v", err)
	}

	err := service.SetWalletAddress(ctx, account.Id, "TAddr2")
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second set, got %v", err)
	}

	got, err := service.GetAccount(ctx, account.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.WalletAddress != "TAddr1" {
		t.Errorf("Expected first address to stick, got %q", got.WalletAddress)
	}
}

func TestSetWalletAddress_UnknownAccount(t *testing.T) {
	service := newTestService(t)

	err := service.SetWalletAddress(context.Background(), 999, "TAddr")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestSetWithdrawalPasskey_WriteOnce(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := createTestAccount(t, service, 1)

	if err := service.SetWithdrawalPasskey(ctx, account.Id, "secret"); err != nil {
		t.Fatalf("SetWithdrawalPasskey failed: %v", err)
	}
	err := service.SetWithdrawalPasskey(ctx, account.Id, "other")
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second set, got %v", err)
	}
}

func TestSetReferralCode(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	first := createTestAccount(t, service, 1)
	second := createTestAccount(t, service, 2)

	if err := service.SetReferralCode(ctx, first.Id, "AAAAA"); err != nil {
		t.Fatalf("SetReferralCode failed: %v", err)
	}

	// Another account claiming the same code collides.
	err := service.SetReferralCode(ctx, second.Id, "AAAAA")
	if !errors.Is(err, store.ErrDuplicateReferralCode) {
		t.Fatalf("Expected ErrDuplicateReferralCode, got %v", err)
	}

	// Re-assigning an already coded account is a silent no-op; the existing
	// code wins.
	if err := service.SetReferralCode(ctx, first.Id, "BBBBB"); err != nil {
		t.Fatalf("SetReferralCode on coded account failed: %v", err)
	}
	got, err := service.GetAccount(ctx, first.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.ReferralCode != "AAAAA" {
		t.Errorf("Expected original code to stick, got %q", got.ReferralCode)
	}
}

func TestMarkWelcomeBonus(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	account := createTestAccount(t, service, 1)

	if err := service.MarkWelcomeBonus(ctx, account.Id); err != nil {
		t.Fatalf("MarkWelcomeBonus failed: %v", err)
	}
	// Monotonic: repeating is harmless.
	if err := service.MarkWelcomeBonus(ctx, account.Id); err != nil {
		t.Fatalf("Repeated MarkWelcomeBonus failed: %v", err)
	}

	got, err := service.GetAccount(ctx, account.Id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !got.HasWelcomeBonus {
		t.Error("Expected welcome bonus flag set")
	}

	if err := service.MarkWelcomeBonus(ctx, 999); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound for unknown account, got %v", err)
	}
}
