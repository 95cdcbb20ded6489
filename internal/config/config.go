package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vpn-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	adminJwtTtl, err := getEnvDuration("ADMIN_JWT_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	panelTimeout, err := getEnvDuration("PANEL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	gatewayTimeout, err := getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pollerInterval, err := getEnvDuration("POLLER_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pollerMinAge, err := getEnvDuration("POLLER_MIN_AGE", time.Minute)
	if err != nil {
		return nil, err
	}

	pollerMaxAge, err := getEnvDuration("POLLER_MAX_AGE", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	adminIds, err := getEnvInt64List("TELEGRAM_ADMIN_IDS")
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Server: models.ServerConfig{
			ListenAddr:      getEnvString("SERVER_LISTEN_ADDR", ":8080"),
			AdminJwtSecret:  os.Getenv("ADMIN_JWT_SECRET"),
			AdminJwtTtl:     adminJwtTtl,
			ShutdownTimeout: shutdownTimeout,
			PlansFile:       getEnvString("PLANS_FILE", "plans.yaml"),
		},
		Panel: models.PanelConfig{
			BaseUrl:           strings.TrimRight(os.Getenv("PANEL_BASE_URL"), "/"),
			Username:          os.Getenv("PANEL_USERNAME"),
			Password:          os.Getenv("PANEL_PASSWORD"),
			Timeout:           panelTimeout,
			WelcomeBonusBytes: getEnvInt64("PANEL_WELCOME_BONUS_BYTES", 10<<30),
		},
		Gateway: models.GatewayConfig{
			BaseUrl:     strings.TrimRight(os.Getenv("GATEWAY_BASE_URL"), "/"),
			ApiKey:      os.Getenv("GATEWAY_API_KEY"),
			CallbackUrl: os.Getenv("GATEWAY_CALLBACK_URL"),
			Timeout:     gatewayTimeout,
		},
		Poller: models.PollerConfig{
			Interval: pollerInterval,
			MinAge:   pollerMinAge,
			MaxAge:   pollerMaxAge,
			Batch:    getEnvInt("POLLER_BATCH", 50),
		},
		Telegram: models.TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			AdminIds: adminIds,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64List(key string) ([]int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id in %s: %q (%w)", key, part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
