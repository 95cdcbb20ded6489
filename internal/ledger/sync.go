package ledger

import (
	"context"
	"fmt"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Sync is called once per session start. It upserts the account, recomputes
// the role from the admin allow-list, assigns a referral code when missing
// and reconciles the panel account. Panel failures are swallowed here: the
// welcome bonus is retried lazily on the next sync instead of failing the
// whole session.
func (s *Service) Sync(ctx context.Context, user models.TelegramUser) (*models.SyncResult, error) {
	role := models.RoleUser
	if s.telegram.IsAdminId(user.Id) {
		role = models.RoleAdmin
	}

	account, err := s.db.UpsertAccount(ctx, store.UpsertAccountParams{
		Id:           user.Id,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		LanguageCode: user.LanguageCode,
		PhotoUrl:     user.PhotoUrl,
		Phone:        user.Phone,
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}

	if account.ReferralCode == "" {
		code, err := s.provisioning.AssignReferralCode(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to assign referral code: %w", err)
		}
		account.ReferralCode = code
	}

	provisioningStatus, err := s.provisioning.EnsureAccount(ctx, account)
	if err != nil {
		zap.L().Warn("Provisioning reconciliation failed, deferring to next sync",
			zap.Int64("account_id", account.Id),
			zap.Error(err))
	} else if provisioningStatus.Reachable && !account.HasWelcomeBonus {
		// The reconciler may have flipped the bonus flag; read the fresh row.
		account, err = s.db.GetAccount(ctx, account.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to reload account: %w", err)
		}
	}

	return &models.SyncResult{
		Account:      account,
		Provisioning: provisioningStatus,
	}, nil
}
