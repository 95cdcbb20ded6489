package poller

import (
	"context"
	"fmt"
	"time"

	"vpn-ledger-go/internal/ledger"
	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Observer receives the outcome of every poll cycle. The HTTP server's
// metrics satisfy it; a nil observer is valid.
type Observer interface {
	ObservePollerRun(err error)
	ObserveReconcile(credited bool)
}

// Poller periodically re-verifies pending deposits against the gateway. It is
// the second delivery path next to the webhook: both funnel into the same
// conditional update, so overlap between the two is harmless.
type Poller struct {
	db       store.LedgerStore
	service  *ledger.Service
	cfg      models.PollerConfig
	observer Observer

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewPoller(db store.LedgerStore, service *ledger.Service, cfg models.PollerConfig, observer Observer) *Poller {
	return &Poller{
		db:       db,
		service:  service,
		cfg:      cfg,
		observer: observer,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the polling loop in the background.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive, got %s", p.cfg.Interval)
	}

	go p.pollLoop(ctx)

	zap.L().Info("Deposit poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("min_age", p.cfg.MinAge),
		zap.Duration("max_age", p.cfg.MaxAge),
		zap.Int("batch", p.cfg.Batch))

	return nil
}

// Stop blocks until the loop has drained.
func (p *Poller) Stop() {
	zap.L().Info("Stopping deposit poller")
	close(p.stopChan)
	<-p.doneChan
	zap.L().Info("Deposit poller stopped")
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer close(p.doneChan)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce verifies one batch of pending deposits. Individual failures are
// logged and skipped; the transaction stays pending and is retried next cycle
// until it ages out of the window.
func (p *Poller) pollOnce(ctx context.Context) {
	pending, err := p.db.ListPendingDeposits(ctx, p.cfg.MinAge, p.cfg.MaxAge, p.cfg.Batch)
	if err != nil {
		zap.L().Error("Failed to list pending deposits", zap.Error(err))
		if p.observer != nil {
			p.observer.ObservePollerRun(err)
		}
		return
	}

	if len(pending) == 0 {
		if p.observer != nil {
			p.observer.ObservePollerRun(nil)
		}
		return
	}

	zap.L().Debug("Verifying pending deposits", zap.Int("count", len(pending)))

	for _, tx := range pending {
		result, err := p.service.VerifyTransaction(ctx, tx.OrderId, tx.InvoiceId)
		if err != nil {
			zap.L().Warn("Failed to verify pending deposit",
				zap.String("order_id", tx.OrderId),
				zap.Error(err))
			continue
		}
		if p.observer != nil && result.Status != models.StatusPending {
			p.observer.ObserveReconcile(result.Credited)
		}
		if result.Credited {
			zap.L().Info("Pending deposit credited by poller",
				zap.String("order_id", tx.OrderId),
				zap.String("amount", result.Amount.String()))
		}
	}

	if p.observer != nil {
		p.observer.ObservePollerRun(nil)
	}
}
