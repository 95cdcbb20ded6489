package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"vpn-ledger-go/internal/ledger"
	"vpn-ledger-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the Mini App API, the gateway webhook and the admin surface
// over one gin engine.
type Server struct {
	cfg     *models.Config
	service *ledger.Service
	plans   []models.Plan
	metrics *Metrics
	httpSrv *http.Server
}

func NewServer(cfg *models.Config, service *ledger.Service, plans []models.Plan, metrics *Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		plans:   plans,
		metrics: metrics,
	}
	s.httpSrv = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: s.buildRouter(),
	}
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(rateLimitMiddleware(5, 10))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The gateway signs nothing; correlation happens on order id and the
	// conditional update makes redelivery harmless.
	engine.POST("/api/payments/webhook", s.handleGatewayWebhook)

	api := engine.Group("/api", s.telegramAuth())
	{
		api.POST("/sync", s.handleSync)
		api.GET("/plans", s.handleListPlans)
		api.POST("/account/wallet", s.handleSetWallet)
		api.POST("/account/passkey", s.handleSetPasskey)
		api.GET("/transactions", s.handleListTransactions)
		api.POST("/payments", s.handleCreatePayment)
		api.POST("/payments/verify", s.handleVerifyPayment)
		api.POST("/purchases", s.handlePurchase)
		api.POST("/withdrawals", s.handleRequestWithdrawal)
		api.GET("/withdrawals", s.handleListWithdrawals)
		api.POST("/withdrawals/:id/cancel", s.handleCancelWithdrawal)
		api.POST("/admin/session", s.handleAdminSession)
	}

	admin := engine.Group("/api/admin", s.adminAuth())
	{
		admin.POST("/withdrawals/:id/resolve", s.handleResolveWithdrawal)
		admin.POST("/balance", s.handleAdjustBalance)
	}

	return engine
}

func (s *Server) planById(id string) (models.Plan, bool) {
	for _, plan := range s.plans {
		if plan.Id == id {
			return plan, true
		}
	}
	return models.Plan{}, false
}

// Run blocks serving requests until Shutdown is called.
func (s *Server) Run() error {
	zap.L().Info("HTTP server listening", zap.String("addr", s.cfg.Server.ListenAddr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
