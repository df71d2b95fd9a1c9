// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/avask/harvester/internal/harvest"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Harvest HarvestConfig `mapstructure:"harvest"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// HarvestConfig governs the pipeline: worker fan-out, execution mode and
// timeouts.
type HarvestConfig struct {
	Mode                     string `mapstructure:"mode"`
	Workers                  int    `mapstructure:"workers"`
	ClampToCPU               string `mapstructure:"clamp_to_cpu"`
	QueueDepth               int    `mapstructure:"queue_depth"`
	MaxInFlight              int    `mapstructure:"max_in_flight"`
	UserAgent                string `mapstructure:"user_agent"`
	RequestTimeoutSeconds    int    `mapstructure:"request_timeout_seconds"`
	CompletionTimeoutSeconds int    `mapstructure:"completion_timeout_seconds"`
}

// ScraperConfig holds the image pipeline settings.
type ScraperConfig struct {
	URL         string `mapstructure:"url"`
	OutDir      string `mapstructure:"out_dir"`
	AmountPages int    `mapstructure:"amount_pages"`
	Item        string `mapstructure:"item"`
	HostFilter  string `mapstructure:"host_filter"`
}

// MetricsConfig controls the optional metrics listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. An empty path loads defaults
// and environment overrides only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.mode", string(harvest.ModeSequential))
	v.SetDefault("harvest.workers", 4)
	v.SetDefault("harvest.clamp_to_cpu", "")
	v.SetDefault("harvest.queue_depth", 64)
	v.SetDefault("harvest.max_in_flight", 32)
	v.SetDefault("harvest.user_agent", "harvester/0.1")
	v.SetDefault("harvest.request_timeout_seconds", 30)
	v.SetDefault("harvest.completion_timeout_seconds", 0)
	v.SetDefault("scraper.out_dir", "images")
	v.SetDefault("scraper.amount_pages", 10)
	v.SetDefault("scraper.host_filter", "images.stockfreeimages.com")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := harvest.ParseMode(c.Harvest.Mode); err != nil {
		return fmt.Errorf("harvest.mode: %w", err)
	}
	if c.Harvest.ClampToCPU != "" {
		if _, err := harvest.ParseClamp(c.Harvest.ClampToCPU); err != nil {
			return fmt.Errorf("harvest.clamp_to_cpu: %w", err)
		}
	}
	if c.Harvest.QueueDepth <= 0 {
		return fmt.Errorf("harvest.queue_depth must be > 0")
	}
	if c.Harvest.MaxInFlight <= 0 {
		return fmt.Errorf("harvest.max_in_flight must be > 0")
	}
	if c.Harvest.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("harvest.request_timeout_seconds must be > 0")
	}
	if c.Harvest.CompletionTimeoutSeconds < 0 {
		return fmt.Errorf("harvest.completion_timeout_seconds must be >= 0")
	}
	return nil
}

// RequestTimeout converts the per-request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Harvest.RequestTimeoutSeconds) * time.Second
}

// CompletionTimeout converts the coordinator deadline into a duration; zero
// means no deadline.
func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Harvest.CompletionTimeoutSeconds) * time.Second
}

// TickerFile is the JSON document naming the tickers to harvest.
type TickerFile struct {
	Tickers []string          `mapstructure:"tickers"`
	BaseURL string            `mapstructure:"base_url"`
	Params  map[string]string `mapstructure:"params"`
}

// LoadTickers reads a ticker config file such as
// {"tickers": ["AAA"], "base_url": "https://...", "params": {"interval": "1d"}}.
func LoadTickers(path string) (TickerFile, error) {
	if path == "" {
		return TickerFile{}, fmt.Errorf("ticker config path is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return TickerFile{}, fmt.Errorf("read ticker config: %w", err)
	}

	var tf TickerFile
	if err := v.Unmarshal(&tf); err != nil {
		return TickerFile{}, fmt.Errorf("unmarshal ticker config: %w", err)
	}
	if tf.BaseURL == "" {
		return TickerFile{}, fmt.Errorf("ticker config: base_url is required")
	}
	if len(tf.Tickers) == 0 {
		return TickerFile{}, fmt.Errorf("ticker config: tickers list is empty")
	}
	return tf, nil
}
