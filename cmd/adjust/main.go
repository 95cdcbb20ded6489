package main

import (
	"context"
	"flag"
	"fmt"

	"vpn-ledger-go/internal/common"
	"vpn-ledger-go/internal/config"
	"vpn-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Offline balance-adjustment tool for operators with host access. The HTTP
// admin endpoint covers the same operation remotely.
func main() {
	accountId := flag.Int64("account", 0, "Account id to adjust")
	amountStr := flag.String("amount", "", "Amount as a decimal string, e.g. 12.50")
	mode := flag.String("mode", store.AdjustAdd, "Adjustment mode: set, add or subtract")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *accountId == 0 {
		zap.L().Fatal("Missing -account flag")
	}
	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		zap.L().Fatal("Invalid -amount flag", zap.String("amount", *amountStr), zap.Error(err))
	}

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open store", zap.Error(err))
	}
	defer dbService.Close()

	newBalance, err := dbService.AdjustBalance(ctx, *accountId, amount, *mode)
	if err != nil {
		zap.L().Fatal("Adjustment failed",
			zap.Int64("account_id", *accountId),
			zap.String("mode", *mode),
			zap.Error(err))
	}

	fmt.Printf("Account %d balance is now %s\n", *accountId, newBalance.String())
}
