package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Environment variable names.
const (
	EnvConfig      = "MIRBRIDGE_CONFIG"
	EnvHost        = "MIRBRIDGE_HOST"
	EnvPort        = "MIRBRIDGE_PORT"
	EnvTFPrefix    = "MIRBRIDGE_TF_PREFIX"
	EnvMetricsAddr = "MIRBRIDGE_METRICS_ADDR"
	EnvRelay       = "MIRBRIDGE_RELAY"
)

// envConfig fields stay nil unless the variable is set.
type envConfig struct {
	Host        *string `env:"MIRBRIDGE_HOST"`
	Port        *int    `env:"MIRBRIDGE_PORT"`
	TFPrefix    *string `env:"MIRBRIDGE_TF_PREFIX"`
	MetricsAddr *string `env:"MIRBRIDGE_METRICS_ADDR"`
	Relay       *bool   `env:"MIRBRIDGE_RELAY"`
}

// ApplyEnv overlays set environment variables onto cfg. A nil environ reads
// the process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var raw envConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if raw.Host != nil {
		cfg.Host = strings.TrimSpace(*raw.Host)
	}
	if raw.Port != nil {
		cfg.Port = *raw.Port
	}
	if raw.TFPrefix != nil {
		cfg.TFPrefix = strings.TrimSpace(*raw.TFPrefix)
	}
	if raw.MetricsAddr != nil {
		cfg.MetricsAddr = strings.TrimSpace(*raw.MetricsAddr)
	}
	if raw.Relay != nil {
		cfg.Relay = *raw.Relay
	}
	return nil
}
