// Package config loads the server configuration from YAML, expanding
// ${VAR} environment references, applying defaults and validating.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Asset  uint64 `yaml:"asset"`
	MinQty uint32 `yaml:"min_qty"`

	Fees struct {
		DevBps       uint32 `yaml:"dev_bps"`
		BurnBps      uint32 `yaml:"burn_bps"`
		DevRecipient uint64 `yaml:"dev_recipient"`
	} `yaml:"fees"`

	Royalty struct {
		Recipient uint64 `yaml:"recipient"`
		Bps       uint32 `yaml:"bps"`
	} `yaml:"royalty"`

	WAL struct {
		Dir           string `yaml:"dir"`
		SegmentSizeMB int64  `yaml:"segment_size_mb"`
	} `yaml:"wal"`

	Outbox struct {
		Dir string `yaml:"dir"`
	} `yaml:"outbox"`

	Snapshot struct {
		Dir             string `yaml:"dir"`
		IntervalSeconds int    `yaml:"interval_seconds"`
	} `yaml:"snapshot"`

	Kafka struct {
		Brokers              []string `yaml:"brokers"`
		TradeTopic           string   `yaml:"trade_topic"`
		DepthTopic           string   `yaml:"depth_topic"`
		DrainIntervalMillis  int      `yaml:"drain_interval_ms"`
		DepthIntervalSeconds int      `yaml:"depth_interval_seconds"`
		DepthLevels          int      `yaml:"depth_levels"`
	} `yaml:"kafka"`

	Settler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"settler"`

	GRPC struct {
		Addr string `yaml:"addr"`
	} `yaml:"grpc"`
}

// Default values for optional fields.
const (
	DefaultMinQty          = 1
	DefaultWALDir          = "./data/wal"
	DefaultWALSegmentMB    = 16
	DefaultOutboxDir       = "./data/outbox"
	DefaultSnapshotDir     = "./data/snapshots"
	DefaultSnapshotEvery   = 30
	DefaultTradeTopic      = "freya.trades"
	DefaultDepthTopic      = "freya.depth"
	DefaultDrainEveryMS    = 250
	DefaultDepthEverySec   = 2
	DefaultDepthLevels     = 20
	DefaultSettlerEverySec = 60
	DefaultGRPCAddr        = ":50051"
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.MinQty == 0 {
		c.MinQty = DefaultMinQty
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = DefaultWALDir
	}
	if c.WAL.SegmentSizeMB == 0 {
		c.WAL.SegmentSizeMB = DefaultWALSegmentMB
	}
	if c.Outbox.Dir == "" {
		c.Outbox.Dir = DefaultOutboxDir
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = DefaultSnapshotDir
	}
	if c.Snapshot.IntervalSeconds == 0 {
		c.Snapshot.IntervalSeconds = DefaultSnapshotEvery
	}
	if c.Kafka.TradeTopic == "" {
		c.Kafka.TradeTopic = DefaultTradeTopic
	}
	if c.Kafka.DepthTopic == "" {
		c.Kafka.DepthTopic = DefaultDepthTopic
	}
	if c.Kafka.DrainIntervalMillis == 0 {
		c.Kafka.DrainIntervalMillis = DefaultDrainEveryMS
	}
	if c.Kafka.DepthIntervalSeconds == 0 {
		c.Kafka.DepthIntervalSeconds = DefaultDepthEverySec
	}
	if c.Kafka.DepthLevels == 0 {
		c.Kafka.DepthLevels = DefaultDepthLevels
	}
	if c.Settler.IntervalSeconds == 0 {
		c.Settler.IntervalSeconds = DefaultSettlerEverySec
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = DefaultGRPCAddr
	}
}

func (c *Config) Validate() error {
	if c.Asset == 0 {
		return errors.New("asset must be set")
	}
	if c.Fees.DevBps+c.Fees.BurnBps+c.Royalty.Bps >= 10_000 {
		return errors.New("fees and royalty must total under 100%")
	}
	if c.Fees.DevBps > 0 && c.Fees.DevRecipient == 0 {
		return errors.New("dev fee configured without recipient")
	}
	if c.Royalty.Bps > 0 && c.Royalty.Recipient == 0 {
		return errors.New("royalty configured without recipient")
	}
	return nil
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Kafka.DrainIntervalMillis) * time.Millisecond
}

func (c *Config) DepthInterval() time.Duration {
	return time.Duration(c.Kafka.DepthIntervalSeconds) * time.Second
}

func (c *Config) SettlerInterval() time.Duration {
	return time.Duration(c.Settler.IntervalSeconds) * time.Second
}
