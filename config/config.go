package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Coinflow CoinflowConfig `yaml:"coinflow"`
	Venue    VenueConfig    `yaml:"venue"`
	Channels ChannelsConfig `yaml:"channels"`
	Markets  []MarketConfig `yaml:"markets"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type CoinflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Duration decodes yaml values like "500ms" or "1s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type VenueConfig struct {
	WSPublicURL    string          `yaml:"ws_public_url"`
	WSPrivateURL   string          `yaml:"ws_private_url"`
	RestURL        string          `yaml:"rest_url"`
	ReconnectDelay Duration        `yaml:"reconnect_delay"`
	PingInterval   Duration        `yaml:"ping_interval"`
	AuthTimeout    Duration        `yaml:"auth_timeout"`
	RequestTimeout Duration        `yaml:"request_timeout"`
	BatchLimit     int             `yaml:"batch_limit"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

type ChannelsConfig struct {
	RawBuffer int `yaml:"raw_buffer"`
}

// MarketConfig names one instrument as a base group plus quote asset.
// The venue instrument id and the normalized symbol are both the
// concatenation of the two.
type MarketConfig struct {
	Group      string `yaml:"group"`
	QuoteAsset string `yaml:"quote_asset"`
}

func (m MarketConfig) Symbol() string {
	return m.Group + m.QuoteAsset
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Region     string `yaml:"region"`
	Namespace  string `yaml:"namespace"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Venue: VenueConfig{
			ReconnectDelay: Duration(time.Second),
			PingInterval:   Duration(20 * time.Second),
			AuthTimeout:    Duration(10 * time.Second),
			RequestTimeout: Duration(10 * time.Second),
			BatchLimit:     20,
			RateLimit:      RateLimitConfig{RequestsPerSecond: 10, Burst: 10},
		},
		Channels: ChannelsConfig{RawBuffer: 1024},
	}
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Coinflow.Name == "" {
		return fmt.Errorf("coinflow.name is required")
	}
	if cfg.Coinflow.Version == "" {
		return fmt.Errorf("coinflow.version is required")
	}
	if cfg.Venue.WSPublicURL == "" {
		return fmt.Errorf("venue.ws_public_url is required")
	}
	if cfg.Venue.RestURL == "" {
		return fmt.Errorf("venue.rest_url is required")
	}
	if cfg.Venue.ReconnectDelay <= 0 {
		return fmt.Errorf("venue.reconnect_delay must be greater than 0")
	}
	if cfg.Venue.BatchLimit <= 0 {
		return fmt.Errorf("venue.batch_limit must be greater than 0")
	}
	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if len(cfg.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	for i, m := range cfg.Markets {
		if m.Group == "" || m.QuoteAsset == "" {
			return fmt.Errorf("markets[%d]: group and quote_asset are required", i)
		}
	}
	return nil
}

// expandEnv substitutes ${VAR} references so credentials never live in
// the config file itself.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
