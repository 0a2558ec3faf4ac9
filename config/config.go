// Package config loads process configuration with viper: built-in defaults,
// an optional config file, then LIMITBOOK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"limitbook/domain/engine"
)

const EnvPrefix = "LIMITBOOK"

type Config struct {
	GRPC      ServerConfig    `mapstructure:"grpc"`
	HTTP      ServerConfig    `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	// Markets are opened at startup when not already restored.
	Markets []string `mapstructure:"markets"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type JournalConfig struct {
	Dir            string        `mapstructure:"dir"`
	SegmentSize    int64         `mapstructure:"segment_size"`
	SegmentMaxAge  time.Duration `mapstructure:"segment_max_age"`
	SyncEveryWrite bool          `mapstructure:"sync_every_write"`
	Serializer     string        `mapstructure:"serializer"`
}

type OutboxConfig struct {
	Dir string `mapstructure:"dir"`
}

type SnapshotConfig struct {
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"`
}

// KafkaConfig with no brokers disables both publishers.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	TradesTopic     string   `mapstructure:"trades_topic"`
	MarketDataTopic string   `mapstructure:"market_data_topic"`
}

type BroadcastConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/limitbook.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("journal.dir", "./data/journal")
	v.SetDefault("journal.segment_size", 2*1024*1024)
	v.SetDefault("journal.segment_max_age", time.Minute)
	v.SetDefault("journal.sync_every_write", false)
	v.SetDefault("journal.serializer", "proto")

	v.SetDefault("outbox.dir", "./data/outbox")

	v.SetDefault("snapshot.dir", "./data/snapshot")
	v.SetDefault("snapshot.interval", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.trades_topic", "limitbook.trades")
	v.SetDefault("kafka.market_data_topic", "limitbook.marketdata")

	v.SetDefault("broadcast.interval", 250*time.Millisecond)

	v.SetDefault("markets", []string{})
}

// Load reads path (if non-empty) on top of the defaults and applies
// environment overrides such as LIMITBOOK_JOURNAL_DIR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Journal.Dir == "" {
		errs = append(errs, errors.New("journal.dir is required"))
	}
	if c.Journal.SegmentSize <= 0 {
		errs = append(errs, fmt.Errorf("journal.segment_size must be positive, got %d", c.Journal.SegmentSize))
	}
	if c.Outbox.Dir == "" {
		errs = append(errs, errors.New("outbox.dir is required"))
	}
	if c.Snapshot.Interval < 0 {
		errs = append(errs, fmt.Errorf("snapshot.interval must not be negative, got %s", c.Snapshot.Interval))
	}
	for _, m := range c.Markets {
		if _, err := engine.ParseTradingPair(m); err != nil {
			errs = append(errs, fmt.Errorf("markets: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Pairs parses Markets; Validate has already accepted them.
func (c *Config) Pairs() []engine.TradingPair {
	out := make([]engine.TradingPair, 0, len(c.Markets))
	for _, m := range c.Markets {
		if p, err := engine.ParseTradingPair(m); err == nil {
			out = append(out, p)
		}
	}
	return out
}
