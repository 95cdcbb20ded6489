package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"vpn-ledger-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	contextKeyUser      = "telegramUser"
	contextKeyAdminId   = "adminAccountId"
	initDataHeader      = "X-Telegram-Init-Data"
	visitorIdleEviction = 3 * time.Minute
)

// telegramAuth validates the init data header on every Mini App request and
// stores the extracted user in the gin context.
func (s *Server) telegramAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		initData := c.GetHeader(initDataHeader)
		if initData == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing init data"})
			return
		}

		user, err := validateInitData(initData, s.cfg.Telegram.BotToken, time.Now())
		if err != nil {
			zap.L().Warn("Init data validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
			return
		}

		c.Set(contextKeyUser, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.TelegramUser {
	value, exists := c.Get(contextKeyUser)
	if !exists {
		return nil
	}
	return value.(*models.TelegramUser)
}

type adminClaims struct {
	AccountId int64 `json:"account_id"`
	jwt.RegisteredClaims
}

// issueAdminToken mints the short-lived session token handed out after an
// allow-listed admin authenticates with init data.
func (s *Server) issueAdminToken(accountId int64) (string, error) {
	now := time.Now()
	claims := adminClaims{
		AccountId: accountId,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Server.AdminJwtTtl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Server.AdminJwtSecret))
}

// adminAuth guards the administrative routes with the session JWT.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &adminClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.cfg.Server.AdminJwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !s.cfg.Telegram.IsAdminId(claims.AccountId) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not an admin"})
			return
		}

		c.Set(contextKeyAdminId, claims.AccountId)
		c.Next()
	}
}

// ipRateLimiter keeps one token bucket per client IP and evicts idle entries.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIpRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	l := &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
	}
	go l.evictIdle()
	return l
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (l *ipRateLimiter) evictIdle() {
	for {
		time.Sleep(time.Minute)
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > visitorIdleEviction {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

func rateLimitMiddleware(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := newIpRateLimiter(limit, burst)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
