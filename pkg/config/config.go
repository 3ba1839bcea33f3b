package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Tiingo struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ThresholdLevel int           `yaml:"threshold_level"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		Backoff        struct {
			Initial time.Duration `yaml:"initial"`
			Max     time.Duration `yaml:"max"`
		} `yaml:"backoff"`
		StaleAfter time.Duration `yaml:"stale_after"`
	} `yaml:"tiingo"`
	Candles struct {
		SeriesCapacity int      `yaml:"series_capacity"`
		Timeframes     []string `yaml:"timeframes"`
	} `yaml:"candles"`
	Hub struct {
		ClientQueueSize int           `yaml:"client_queue_size"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
	} `yaml:"hub"`
	Alerts struct {
		RetryLimit   int           `yaml:"retry_limit"`
		RetryBackoff time.Duration `yaml:"retry_backoff"`
		RetryQueue   int           `yaml:"retry_queue"`
	} `yaml:"alerts"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TickTopic    string   `yaml:"tick_topic"`
		AlertTopic   string   `yaml:"alert_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		Table        string        `yaml:"table"`
		FlushSize    int           `yaml:"flush_size"`
		FlushEvery   time.Duration `yaml:"flush_every"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TIINGO_API_KEY"); v != "" {
		c.Tiingo.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Tiingo.APIKey == "" {
		return fmt.Errorf("tiingo.api_key is required")
	}
	if c.Tiingo.WebSocketURL == "" {
		return fmt.Errorf("tiingo.websocket_url is required")
	}
	if c.Candles.SeriesCapacity <= 0 {
		return fmt.Errorf("candles.series_capacity must be positive")
	}
	for _, tf := range c.Candles.Timeframes {
		if !validTimeframes[tf] {
			return fmt.Errorf("unknown timeframe %q", tf)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "4h": true,
}
