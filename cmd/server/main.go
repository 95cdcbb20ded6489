package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vpn-ledger-go/internal/common"
	"vpn-ledger-go/internal/config"
	"vpn-ledger-go/internal/server"

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

	zap.L().Info("Starting VPN ledger server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	plans, err := config.LoadPlans(cfg.Server.PlansFile)
	if err != nil {
		zap.L().Fatal("Failed to load plan catalog", zap.Error(err))
	}
	zap.L().Info("Plan catalog loaded", zap.Int("plans", len(plans)))

	srv := server.NewServer(cfg, services.LedgerService, plans, server.NewMetrics())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			zap.L().Error("Server exited with error", zap.Error(err))
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		zap.L().Error("Graceful shutdown failed", zap.Error(err))
	}
	zap.L().Info("Server stopped")
}
