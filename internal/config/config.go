package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPort      = 9090
	DefaultQueueSize = 10
)

var (
	ErrMissingHost  = errors.New("config: host is not set")
	ErrInvalidPort  = errors.New("config: invalid port")
	ErrInvalidTopic = errors.New("config: invalid topic entry")
)

// Config is the resolved runtime configuration of the bridge process.
type Config struct {
	Host               string
	Port               int
	Secure             bool
	CAFile             string
	TFPrefix           string
	MetricsAddr        string
	CORSOrigins        []string
	Relay              bool
	QueueSize          int
	MaxConnectAttempts int
	CallTimeout        time.Duration
	Outbound           []TopicConfig
	Inbound            []TopicConfig
}

// TopicConfig is one [[outbound]] or [[inbound]] table.
type TopicConfig struct {
	Topic  string `toml:"topic"`
	Type   string `toml:"type"`
	Latch  bool   `toml:"latch"`
	Filter string `toml:"filter"`
	Local  string `toml:"local"`
}

// fileConfig maps config.toml keys.
type fileConfig struct {
	Host               string        `toml:"host"`
	Port               int           `toml:"port"`
	Secure             bool          `toml:"secure"`
	CAFile             string        `toml:"ca_file"`
	TFPrefix           string        `toml:"tf_prefix"`
	MetricsAddr        string        `toml:"metrics_addr"`
	CORSOrigins        []string      `toml:"cors_origins"`
	Relay              bool          `toml:"relay"`
	QueueSize          int           `toml:"queue_size"`
	MaxConnectAttempts int           `toml:"max_connect_attempts"`
	CallTimeout        time.Duration `toml:"call_timeout"`
	Outbound           []TopicConfig `toml:"outbound"`
	Inbound            []TopicConfig `toml:"inbound"`
}

func Default() Config {
	return Config{
		Port:               DefaultPort,
		QueueSize:          DefaultQueueSize,
		MaxConnectAttempts: 5,
		CallTimeout:        5 * time.Second,
	}
}

// LoadFile overlays the keys present in the TOML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("secure") {
		cfg.Secure = raw.Secure
	}
	if meta.IsDefined("ca_file") {
		cfg.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("tf_prefix") {
		cfg.TFPrefix = strings.TrimSpace(raw.TFPrefix)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("relay") {
		cfg.Relay = raw.Relay
	}
	if meta.IsDefined("queue_size") {
		cfg.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("call_timeout") {
		cfg.CallTimeout = raw.CallTimeout
	}
	if meta.IsDefined("outbound") {
		cfg.Outbound = raw.Outbound
	}
	if meta.IsDefined("inbound") {
		cfg.Inbound = raw.Inbound
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrMissingHost
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	for i, t := range c.Outbound {
		if err := validateTopic(t); err != nil {
			return fmt.Errorf("outbound[%d]: %w", i, err)
		}
	}
	for i, t := range c.Inbound {
		if err := validateTopic(t); err != nil {
			return fmt.Errorf("inbound[%d]: %w", i, err)
		}
	}
	return nil
}

func validateTopic(t TopicConfig) error {
	if strings.Trim(strings.TrimSpace(t.Topic), "/") == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidTopic)
	}
	if strings.TrimSpace(t.Type) == "" {
		return fmt.Errorf("%w: type is required for %s", ErrInvalidTopic, t.Topic)
	}
	return nil
}
