package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "RECONCILER_"

const (
	GatewayEnvTest       = "test"
	GatewayEnvProduction = "production"
)

type Config struct {
	Primary    Primary          `koanf:"primary"`
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Gateway    GatewayConfig    `koanf:"gateway"`
	Sweeper    SweeperConfig    `koanf:"sweeper"`
	Membership MembershipConfig `koanf:"membership"`
	Logger     LoggerConfig     `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// GatewayConfig holds both credential sets; Environment picks one of them.
type GatewayConfig struct {
	Environment string `koanf:"environment" validate:"required,oneof=test production"`

	TestBaseURL       string `koanf:"test_base_url" validate:"required,url"`
	ProductionBaseURL string `koanf:"production_base_url" validate:"required,url"`

	TestPrivateKey       string `koanf:"test_private_key"`
	ProductionPrivateKey string `koanf:"production_private_key"`

	TestEventsSecret       string `koanf:"test_events_secret"`
	ProductionEventsSecret string `koanf:"production_events_secret"`

	TestIntegritySecret       string `koanf:"test_integrity_secret"`
	ProductionIntegritySecret string `koanf:"production_integrity_secret"`

	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"required"`
	ListTimeout  time.Duration `koanf:"list_timeout" validate:"required"`

	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=0,max=10"`
}

func (g GatewayConfig) IsProduction() bool {
	return g.Environment == GatewayEnvProduction
}

func (g GatewayConfig) BaseURL() string {
	if g.IsProduction() {
		return g.ProductionBaseURL
	}
	return g.TestBaseURL
}

func (g GatewayConfig) PrivateKey() string {
	if g.IsProduction() {
		return g.ProductionPrivateKey
	}
	return g.TestPrivateKey
}

func (g GatewayConfig) EventsSecret() string {
	if g.IsProduction() {
		return g.ProductionEventsSecret
	}
	return g.TestEventsSecret
}

func (g GatewayConfig) IntegritySecret() string {
	if g.IsProduction() {
		return g.ProductionIntegritySecret
	}
	return g.TestIntegritySecret
}

type SweeperConfig struct {
	Interval         time.Duration `koanf:"interval" validate:"required"`
	StaleThreshold   time.Duration `koanf:"stale_threshold" validate:"required"`
	BatchSize        int           `koanf:"batch_size" validate:"required,min=1"`
	ApprovedInterval time.Duration `koanf:"approved_interval" validate:"required"`
	ApprovedLookback time.Duration `koanf:"approved_lookback" validate:"required"`
	ApprovedPageSize int           `koanf:"approved_page_size" validate:"required,min=1"`
}

type MembershipConfig struct {
	DefaultDays int    `koanf:"default_days" validate:"required,min=1"`
	Currency    string `koanf:"currency" validate:"required,len=3"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

// NewLogger builds the process logger from the configured level and format.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func defaults() map[string]any {
	return map[string]any{
		"primary.env":                 "development",
		"server.port":                 "8080",
		"server.read_timeout":         "15s",
		"server.write_timeout":        "30s",
		"server.idle_timeout":         "60s",
		"server.request_timeout":      "25s",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"gateway.environment":         GatewayEnvTest,
		"gateway.test_base_url":       "https://sandbox.wompi.co/v1",
		"gateway.production_base_url": "https://production.wompi.co/v1",
		"gateway.fetch_timeout":       "10s",
		"gateway.list_timeout":        "20s",
		"gateway.retry_base_delay":    "500ms",
		"gateway.max_attempts":        3,
		"sweeper.interval":            "10m",
		"sweeper.stale_threshold":     "10m",
		"sweeper.batch_size":          200,
		"sweeper.approved_interval":   "6h",
		"sweeper.approved_lookback":   "1h",
		"sweeper.approved_page_size":  50,
		"membership.default_days":     365,
		"membership.currency":         "COP",
		"logger.level":                "info",
		"logger.format":               "text",
	}
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load config defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	if mainConfig.Gateway.PrivateKey() == "" {
		err = fmt.Errorf("gateway private key for %q environment is not set", mainConfig.Gateway.Environment)
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
