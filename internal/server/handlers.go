package server

import (
	"errors"
	"net/http"

	"vpn-ledger-go/internal/models"
	"vpn-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// statusForError maps the store's sentinel errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrWithdrawalNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrWalletNotSet),
		errors.Is(err, store.ErrPasskeyNotSet),
		errors.Is(err, store.ErrInvalidState),
		errors.Is(err, store.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidPasskey),
		errors.Is(err, store.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleSync(c *gin.Context) {
	user := currentUser(c)
	result, err := s.service.Sync(c.Request.Context(), *user)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.ObserveSync()
	if !result.Provisioning.Reachable {
		s.metrics.ObservePanelFailure()
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": s.plans})
}

type setWalletRequest struct {
	Address string `json:"address" binding:"required"`
}

func (s *Server) handleSetWallet(c *gin.Context) {
	var req setWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.service.SetWalletAddress(c.Request.Context(), currentUser(c).Id, req.Address); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type setPasskeyRequest struct {
	Passkey string `json:"passkey" binding:"required"`
}

func (s *Server) handleSetPasskey(c *gin.Context) {
	var req setPasskeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.service.SetWithdrawalPasskey(c.Request.Context(), currentUser(c).Id, req.Passkey); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type paginationQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (s *Server) handleListTransactions(c *gin.Context) {
	var q paginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transactions, err := s.service.ListTransactions(c.Request.Context(), currentUser(c).Id, q.Limit, q.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

type createPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
}

func (s *Server) handleCreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	intent, err := s.service.CreatePaymentIntent(c.Request.Context(), currentUser(c).Id, req.Amount, req.Currency)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

// handleGatewayWebhook is the unauthenticated callback endpoint. The gateway
// retries until it receives 200, so redeliveries of an already settled
// notification must also answer 200.
func (s *Server) handleGatewayWebhook(c *gin.Context) {
	var notification models.GatewayNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.service.HandleGatewayCallback(c.Request.Context(), notification)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.ObserveReconcile(result.Credited)
	c.JSON(http.StatusOK, result)
}

type verifyRequest struct {
	OrderId   string `json:"order_id"`
	InvoiceId string `json:"invoice_id"`
}

func (s *Server) handleVerifyPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.service.VerifyTransaction(c.Request.Context(), req.OrderId, req.InvoiceId)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.ObserveReconcile(result.Credited)
	c.JSON(http.StatusOK, result)
}

type purchaseRequest struct {
	PlanId   string          `json:"plan_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (s *Server) handlePurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accountId := currentUser(c).Id
	var (
		transaction *models.Transaction
		err         error
	)
	if req.PlanId != "" {
		plan, ok := s.planById(req.PlanId)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown plan"})
			return
		}
		transaction, err = s.service.PurchasePlan(c.Request.Context(), accountId, plan)
	} else {
		transaction, err = s.service.PurchaseCustom(c.Request.Context(), accountId, req.Amount, req.Currency)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

type withdrawalRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
	Passkey  string          `json:"passkey" binding:"required"`
}

func (s *Server) handleRequestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	withdrawal, err := s.service.RequestWithdrawal(c.Request.Context(), currentUser(c).Id, req.Amount, req.Currency, req.Passkey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawal)
}

func (s *Server) handleCancelWithdrawal(c *gin.Context) {
	withdrawal, err := s.service.CancelWithdrawal(c.Request.Context(), currentUser(c).Id, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.ObserveWithdrawalResolution(withdrawal.Status)
	c.JSON(http.StatusOK, withdrawal)
}

func (s *Server) handleListWithdrawals(c *gin.Context) {
	var q paginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	withdrawals, err := s.service.ListWithdrawals(c.Request.Context(), currentUser(c).Id, q.Limit, q.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

// handleAdminSession exchanges validated init data of an allow-listed admin
// for a short-lived bearer token.
func (s *Server) handleAdminSession(c *gin.Context) {
	user := currentUser(c)
	if !s.cfg.Telegram.IsAdminId(user.Id) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin"})
		return
	}
	token, err := s.issueAdminToken(user.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type resolveWithdrawalRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

func (s *Server) handleResolveWithdrawal(c *gin.Context) {
	var req resolveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	withdrawal, err := s.service.ResolveWithdrawal(c.Request.Context(), c.Param("id"), req.Outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.ObserveWithdrawalResolution(withdrawal.Status)
	c.JSON(http.StatusOK, withdrawal)
}

type adjustBalanceRequest struct {
	AccountId int64           `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Mode      string          `json:"mode" binding:"required"`
}

func (s *Server) handleAdjustBalance(c *gin.Context) {
	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newBalance, err := s.service.AdjustBalance(c.Request.Context(), req.AccountId, req.Amount, req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": req.AccountId, "balance": newBalance})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.service.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
