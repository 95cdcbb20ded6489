package provisioning

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"go.uber.org/zap"
)

// PanelAPI is the capability the reconciler needs from the panel client.
type PanelAPI interface {
	GetAccount(ctx context.Context, username string) (*models.PanelAccount, error)
	CreateAccount(ctx context.Context, username string, quotaBytes int64) (*models.PanelAccount, error)
	UpdateAccount(ctx context.Context, username string, fields map[string]any) (*models.PanelAccount, error)
}

// referral codes: 5 chars from an unambiguous alphabet, bounded retries.
const (
	referralCodeLength   = 5
	referralCodeAttempts = 5
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Reconciler keeps a local account and its panel counterpart in agreement on
// every sync: the remote account exists, the welcome bonus was granted exactly
// once (gated by the local has_welcome_bonus flag), and a referral code is
// assigned. The remote side is at-least-once: a crash between the panel update
// and the local flag write can reapply the bonus on the next sync.
type Reconciler struct {
	panel      PanelAPI
	store      store.LedgerStore
	bonusBytes int64
}

func NewReconciler(panel PanelAPI, ledgerStore store.LedgerStore, bonusBytes int64) *Reconciler {
	return &Reconciler{
		panel:      panel,
		store:      ledgerStore,
		bonusBytes: bonusBytes,
	}
}

// PanelUsername resolves the provisioning username deterministically: the
// Telegram username lowercased, or a synthesized name when none is set.
func PanelUsername(account *models.Account) string {
	if account.Username != "" {
		return strings.ToLower(account.Username)
	}
	return fmt.Sprintf("u%d", account.Id)
}

// EnsureAccount runs the provisioning half of a sync. Panel failures are
// reported to the caller but are not fatal to the sync: the bonus is retried
// lazily on the next session start.
func (r *Reconciler) EnsureAccount(ctx context.Context, account *models.Account) (models.ProvisioningStatus, error) {
	username := PanelUsername(account)

	remote, err := r.panel.GetAccount(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		// First contact: create with the welcome-bonus quota, then persist
		// the flag. Creation is tried once; a failure leaves the bonus for
		// the next sync.
		remote, err = r.panel.CreateAccount(ctx, username, r.bonusBytes)
		if err != nil {
			return models.ProvisioningStatus{Username: username}, fmt.Errorf("failed to create panel account: %w", err)
		}
		if err := r.store.MarkWelcomeBonus(ctx, account.Id); err != nil {
			return models.ProvisioningStatus{Username: username}, fmt.Errorf("failed to mark welcome bonus: %w", err)
		}
	case err != nil:
		return models.ProvisioningStatus{Username: username}, fmt.Errorf("failed to query panel account: %w", err)
	case !account.HasWelcomeBonus:
		// Remote account exists but the bonus was never granted. Add the
		// bonus to the current quota rather than overwriting, so manually
		// granted quota survives.
		remote, err = r.panel.UpdateAccount(ctx, username, map[string]any{
			"data_limit": remote.DataLimit + r.bonusBytes,
		})
		if err != nil {
			return models.ProvisioningStatus{Username: username}, fmt.Errorf("failed to apply welcome bonus: %w", err)
		}
		if err := r.store.MarkWelcomeBonus(ctx, account.Id); err != nil {
			return models.ProvisioningStatus{Username: username}, fmt.Errorf("failed to mark welcome bonus: %w", err)
		}
	}

	return models.ProvisioningStatus{
		Username:    username,
		DataLimit:   remote.DataLimit,
		UsedTraffic: remote.UsedTraffic,
		Status:      remote.Status,
		ExpireAt:    remote.ExpireAt,
		Reachable:   true,
	}, nil
}

// AssignReferralCode generates and persists a referral code when the account
// has none. Collisions retry with a fresh code up to the bound; exhaustion is
// an internal error, never silently ignored.
func (r *Reconciler) AssignReferralCode(ctx context.Context, account *models.Account) (string, error) {
	if account.ReferralCode != "" {
		return account.ReferralCode, nil
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code := randomReferralCode()
		err := r.store.SetReferralCode(ctx, account.Id, code)
		if errors.Is(err, store.ErrDuplicateReferralCode) {
			zap.L().Warn("Referral code collision, retrying",
				zap.Int64("account_id", account.Id),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}

	return "", store.ErrReferralCodeExhausted
}

func randomReferralCode() string {
	code := make([]byte, referralCodeLength)
	for i := range code {
		code[i] = referralCodeAlphabet[rand.Intn(len(referralCodeAlphabet))]
	}
	return string(code)
}
