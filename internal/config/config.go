// Package config loads the settlement layer configuration. All protocol
// constants (delays, windows, bounds, pricing) live here rather than as
// hard-coded literals, since deployments disagree on the exact values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a yaml string like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// EngineConfig carries the settlement protocol constants.
type EngineConfig struct {
	UnitPriceCents uint64   `yaml:"unit_price_cents"`
	AddDelay       Duration `yaml:"add_delay"`
	CommitCooldown Duration `yaml:"commit_cooldown"`
	RevealWindow   Duration `yaml:"reveal_window"`
}

// PriceConfig configures the external feed and the cache bounds.
type PriceConfig struct {
	FeedURL         string   `yaml:"feed_url"`
	FeedAPIKey      string   `yaml:"feed_api_key"`
	PricePath       string   `yaml:"price_path"`
	UpdatedAtPath   string   `yaml:"updated_at_path"`
	MinPriceUSD     int64    `yaml:"min_price_usd"`
	MaxPriceUSD     int64    `yaml:"max_price_usd"`
	Staleness       Duration `yaml:"staleness"`
	RefreshInterval Duration `yaml:"refresh_interval"`
	MaxRPS          float64  `yaml:"max_rps"`
}

// PayoutConfig configures the refund payout gateway.
type PayoutConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Config is the daemon configuration root.
type Config struct {
	ListenAddr   string       `yaml:"listen_addr"`
	LogLevel     string       `yaml:"log_level"`
	OwnerAddress string       `yaml:"owner_address"`
	AdminAPIKey  string       `yaml:"admin_api_key"`
	PostgresDSN  string       `yaml:"postgres_dsn"`
	Engine       EngineConfig `yaml:"engine"`
	Price        PriceConfig  `yaml:"price"`
	Payout       PayoutConfig `yaml:"payout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Engine: EngineConfig{
			UnitPriceCents: 50,
			AddDelay:       Duration(120 * time.Second),
			CommitCooldown: Duration(5 * time.Minute),
			RevealWindow:   Duration(5 * time.Minute),
		},
		Price: PriceConfig{
			MinPriceUSD:     1,
			MaxPriceUSD:     1_000_000,
			Staleness:       Duration(time.Hour),
			RefreshInterval: Duration(30 * time.Second),
			MaxRPS:          1,
		},
	}
}

// Load reads the configuration file at path, layered over Default and the
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads the file when it exists, otherwise returns Default with
// environment overrides applied. The default config has no owner and fails
// validation, so a missing file is only usable for tooling that sets the
// owner itself.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		cfg.applyEnv()
		return cfg, cfg.validate()
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	set := func(target *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
	set(&c.OwnerAddress, "SETTLEMENT_OWNER_ADDRESS")
	set(&c.AdminAPIKey, "SETTLEMENT_ADMIN_API_KEY")
	set(&c.PostgresDSN, "SETTLEMENT_POSTGRES_DSN")
	set(&c.Price.FeedURL, "PRICEFEED_FETCH_URL")
	set(&c.Price.FeedAPIKey, "PRICEFEED_FETCH_KEY")
	set(&c.Payout.URL, "PAYOUT_GATEWAY_URL")
	set(&c.Payout.APIKey, "PAYOUT_GATEWAY_KEY")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.OwnerAddress) == "" {
		return fmt.Errorf("owner_address is required")
	}
	if c.Engine.UnitPriceCents == 0 {
		return fmt.Errorf("engine.unit_price_cents must be positive")
	}
	if c.Price.MinPriceUSD <= 0 || c.Price.MaxPriceUSD <= c.Price.MinPriceUSD {
		return fmt.Errorf("price bounds must satisfy 0 < min < max")
	}
	return nil
}
