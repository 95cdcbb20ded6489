package common

import (
	"context"
	"log"
	"strings"

	"vpn-ledger-go/internal/database"
	"vpn-ledger-go/internal/gateway"
	"vpn-ledger-go/internal/ledger"
	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/provisioning"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export or the container
	// runtime, so a missing .env file is fine.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService     *database.Service
	PanelClient   *provisioning.Client
	GatewayClient *gateway.Client
	Reconciler    *provisioning.Reconciler
	LedgerService *ledger.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	panelClient, err := provisioning.NewClient(cfg.Panel)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	reconciler := provisioning.NewReconciler(panelClient, dbService, cfg.Panel.WelcomeBonusBytes)
	ledgerService := ledger.NewService(dbService, gatewayClient, reconciler, cfg.Telegram)

	return &Services{
		DbService:     dbService,
		PanelClient:   panelClient,
		GatewayClient: gatewayClient,
		Reconciler:    reconciler,
		LedgerService: ledgerService,
	}, nil
}

// InitializeDatabaseOnly initializes just the store, without the panel or
// gateway clients. Used by the offline balance-adjustment tool.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
