package binance

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Production and testnet REST endpoints for USD-M futures.
const (
	baseURLLive    = "https://fapi.binance.com"
	baseURLTestnet = "https://testnet.binancefuture.com"
)

// Credentials are loaded from the environment, never from config files.
type Credentials struct {
	APIKey    string `envconfig:"API_KEY" required:"true"`
	APISecret string `envconfig:"API_SECRET" required:"true"`
}

// LoadCredentials reads BINANCE_API_KEY / BINANCE_API_SECRET.
func LoadCredentials() (Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("BINANCE", &creds); err != nil {
		return Credentials{}, fmt.Errorf("load binance credentials: %w", err)
	}
	return creds, nil
}

// Config holds Binance gateway settings.
type Config struct {
	Testnet              bool
	BaseURL              string // override for tests; derived from Testnet when empty
	Timeout              time.Duration
	RecvWindowMs         int
	MaxRequestsPerSecond int
}

// DefaultConfig returns testnet-safe defaults.
func DefaultConfig() Config {
	return Config{
		Testnet:              true,
		Timeout:              10 * time.Second,
		RecvWindowMs:         5000,
		MaxRequestsPerSecond: 5,
	}
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Testnet {
		return baseURLTestnet
	}
	return baseURLLive
}
