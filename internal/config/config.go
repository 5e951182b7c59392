package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Session   SessionConfig
	Dashboard DashboardConfig
	Logger    LoggerConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type UploadConfig struct {
	MaxBytes int64
}

type SessionConfig struct {
	TTL        time.Duration
	CookieName string
}

type DashboardConfig struct {
	MonthOrder  string
	TopProducts int
	TableRows   int
	Currency    string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

var defaults = map[string]any{
	"SERVER_HOST":                 "localhost",
	"SERVER_PORT":                 8084,
	"SERVER_READ_TIMEOUT":         "30s",
	"SERVER_WRITE_TIMEOUT":        "30s",
	"SERVER_IDLE_TIMEOUT":         "60s",
	"SERVER_SHUTDOWN_TIMEOUT":     "30s",
	"UPLOAD_MAX_BYTES":            32 << 20,
	"SESSION_TTL":                 "2h",
	"SESSION_COOKIE":              "sd_session",
	"DASHBOARD_MONTH_ORDER":       "discovery",
	"DASHBOARD_TOP_PRODUCTS":      0,
	"DASHBOARD_TABLE_ROWS":        200,
	"DASHBOARD_CURRENCY":          "₹",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"SECURITY_RATE_LIMIT_ENABLED": true,
	"SECURITY_RATE_LIMIT_RPS":     100,
	"SECURITY_RATE_LIMIT_BURST":   20,
	"SECURITY_ALLOWED_ORIGINS":    "http://localhost:8084",
	"SECURITY_TRUSTED_PROXIES":    "127.0.0.1",
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, if given, with environment
// variables taking precedence over the file. Keys in the file use the same
// names as the environment variables.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Session: SessionConfig{
			TTL:        v.GetDuration("SESSION_TTL"),
			CookieName: v.GetString("SESSION_COOKIE"),
		},
		Dashboard: DashboardConfig{
			MonthOrder:  strings.ToLower(v.GetString("DASHBOARD_MONTH_ORDER")),
			TopProducts: v.GetInt("DASHBOARD_TOP_PRODUCTS"),
			TableRows:   v.GetInt("DASHBOARD_TABLE_ROWS"),
			Currency:    v.GetString("DASHBOARD_CURRENCY"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Security: SecurityConfig{
			EnableRateLimit: v.GetBool("SECURITY_RATE_LIMIT_ENABLED"),
			RateLimitRPS:    v.GetInt("SECURITY_RATE_LIMIT_RPS"),
			RateLimitBurst:  v.GetInt("SECURITY_RATE_LIMIT_BURST"),
			AllowedOrigins:  splitList(v.GetString("SECURITY_ALLOWED_ORIGINS")),
			TrustedProxies:  splitList(v.GetString("SECURITY_TRUSTED_PROXIES")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name cannot be empty")
	}

	validMonthOrders := []string{"discovery", "calendar"}
	if !slices.Contains(validMonthOrders, c.Dashboard.MonthOrder) {
		return fmt.Errorf("invalid month order %q, must be one of: %s", c.Dashboard.MonthOrder, strings.Join(validMonthOrders, ", "))
	}

	if c.Dashboard.TopProducts < 0 {
		return fmt.Errorf("top products cannot be negative")
	}

	if c.Dashboard.TableRows <= 0 {
		return fmt.Errorf("table rows must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
