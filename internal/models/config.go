package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Panel    PanelConfig
	Gateway  GatewayConfig
	Poller   PollerConfig
	Telegram TelegramConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr      string
	AdminJwtSecret  string
	AdminJwtTtl     time.Duration
	ShutdownTimeout time.Duration
	PlansFile       string
}

// PanelConfig holds VPN provisioning panel settings
type PanelConfig struct {
	BaseUrl           string
	Username          string
	Password          string
	Timeout           time.Duration
	WelcomeBonusBytes int64
}

// GatewayConfig holds crypto payment gateway settings
type GatewayConfig struct {
	BaseUrl     string
	ApiKey      string
	CallbackUrl string
	Timeout     time.Duration
}

// PollerConfig holds pending-deposit verification settings
type PollerConfig struct {
	Interval time.Duration
	MinAge   time.Duration
	MaxAge   time.Duration
	Batch    int
}

// TelegramConfig holds bot credentials and the admin allow-list
type TelegramConfig struct {
	BotToken string
	AdminIds []int64
}

// IsAdminId reports whether the given Telegram id is on the allow-list.
func (c TelegramConfig) IsAdminId(id int64) bool {
	for _, adminId := range c.AdminIds {
		if adminId == id {
			return true
		}
	}
	return false
}
