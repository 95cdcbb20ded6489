package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vpn-ledger-go/internal/common"
	"vpn-ledger-go/internal/config"
	"vpn-ledger-go/internal/poller"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting pending-deposit poller")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	p := poller.NewPoller(services.DbService, services.LedgerService, cfg.Poller, nil)
	if err := p.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start poller", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))

	p.Stop()
}
