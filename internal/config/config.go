// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tathienbao/signal-bridge/internal/risk"
	"github.com/tathienbao/signal-bridge/internal/signal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Account     AccountConfig           `yaml:"account"`
	Risk        RiskConfig              `yaml:"risk"`
	Normalizer  NormalizerConfig        `yaml:"normalizer"`
	Brokers     map[string]BrokerConfig `yaml:"brokers"`
	Execution   ExecutionConfig         `yaml:"execution"`
	Webhook     WebhookConfig           `yaml:"webhook"`
	Metrics     MetricsConfig           `yaml:"metrics"`
	Persistence PersistenceConfig       `yaml:"persistence"`
	Alerting    AlertingConfig          `yaml:"alerting"`
}

// AccountConfig holds account-level settings.
type AccountConfig struct {
	StartingBalance float64 `yaml:"starting_balance"`
	DefaultBroker   string  `yaml:"default_broker"`
}

// RiskConfig holds the account risk limits.
type RiskConfig struct {
	MaxPositionSize        float64 `yaml:"max_position_size"`
	MaxDailyLoss           float64 `yaml:"max_daily_loss"`
	MaxDrawdownPct         float64 `yaml:"max_drawdown_pct"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
}

// NormalizerConfig holds symbol normalization settings.
type NormalizerConfig struct {
	QuoteSuffixes []string `yaml:"quote_suffixes"`
	DefaultQuote  string   `yaml:"default_quote"`
}

// BrokerConfig holds one broker gateway configuration, keyed by the broker
// name signals route on.
type BrokerConfig struct {
	Type              string  `yaml:"type"` // binance | paper
	Testnet           bool    `yaml:"testnet"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	PaperBalance      float64 `yaml:"paper_balance"`
}

// ExecutionConfig holds execution settings.
type ExecutionConfig struct {
	BrokerCallTimeoutSec int `yaml:"broker_call_timeout_sec"`
}

// WebhookConfig holds the inbound webhook listener settings.
type WebhookConfig struct {
	Port            int    `yaml:"port"`
	Path            string `yaml:"path"`
	AuthToken       string `yaml:"auth_token"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// PersistenceConfig holds persistence settings.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // telegram | console
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. Environment variable
// references of the form ${VAR} are expanded before parsing, so secrets
// stay out of the file.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration, collecting every problem rather than
// stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Account.StartingBalance <= 0 {
		errs = append(errs, "account.starting_balance must be positive")
	}

	if c.Risk.MaxPositionSize <= 0 {
		errs = append(errs, "risk.max_position_size must be positive")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk.max_daily_loss must be positive")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 100 {
		errs = append(errs, "risk.max_drawdown_pct must be between 0 and 100")
	}
	if c.Risk.MaxConcurrentPositions <= 0 {
		errs = append(errs, "risk.max_concurrent_positions must be positive")
	}

	if len(c.Brokers) == 0 {
		errs = append(errs, "at least one broker must be configured")
	}
	for name, broker := range c.Brokers {
		if broker.Type != "binance" && broker.Type != "paper" {
			errs = append(errs, fmt.Sprintf("brokers.%s.type must be 'binance' or 'paper'", name))
		}
	}
	if c.Account.DefaultBroker != "" {
		if _, ok := c.Brokers[c.Account.DefaultBroker]; !ok {
			errs = append(errs, fmt.Sprintf("account.default_broker '%s' is not a configured broker", c.Account.DefaultBroker))
		}
	}

	if c.Persistence.Enabled && c.Persistence.Path == "" {
		errs = append(errs, "persistence.path is required when persistence is enabled")
	}

	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					errs = append(errs, fmt.Sprintf("alerting.channels[%d]: telegram requires bot_token and chat_id", i))
				}
			default:
				errs = append(errs, fmt.Sprintf("alerting.channels[%d].type must be 'telegram' or 'console'", i))
			}
		}
	}

	// Defaults, not errors.
	if c.Execution.BrokerCallTimeoutSec <= 0 {
		c.Execution.BrokerCallTimeoutSec = 10
	}
	if c.Webhook.Port <= 0 {
		c.Webhook.Port = 8080
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = "/signal"
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		c.Webhook.MaxBodyBytes = 64 * 1024
	}
	if c.Metrics.Port <= 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ToLimits converts the risk section to risk.Limits.
func (c *Config) ToLimits() risk.Limits {
	return risk.Limits{
		MaxPositionSize:        decimal.NewFromFloat(c.Risk.MaxPositionSize),
		MaxDailyLoss:           decimal.NewFromFloat(c.Risk.MaxDailyLoss),
		MaxDrawdownPercent:     decimal.NewFromFloat(c.Risk.MaxDrawdownPct),
		MaxConcurrentPositions: c.Risk.MaxConcurrentPositions,
	}
}

// ToNormalizerConfig converts the normalizer section to signal.Config.
func (c *Config) ToNormalizerConfig() signal.Config {
	if len(c.Normalizer.QuoteSuffixes) == 0 {
		return signal.DefaultConfig()
	}
	return signal.Config{
		QuoteSuffixes: c.Normalizer.QuoteSuffixes,
		DefaultQuote:  c.Normalizer.DefaultQuote,
	}
}

// StartingBalanceDecimal returns the starting balance as decimal.
func (c *Config) StartingBalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Account.StartingBalance)
}

// BrokerCallTimeout returns the per-call broker timeout.
func (c *Config) BrokerCallTimeout() time.Duration {
	return time.Duration(c.Execution.BrokerCallTimeoutSec) * time.Second
}

// WebhookReadTimeout returns the webhook read timeout.
func (c *Config) WebhookReadTimeout() time.Duration {
	if c.Webhook.ReadTimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Webhook.ReadTimeoutSec) * time.Second
}

// WebhookWriteTimeout returns the webhook write timeout.
func (c *Config) WebhookWriteTimeout() time.Duration {
	if c.Webhook.WriteTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Webhook.WriteTimeoutSec) * time.Second
}
