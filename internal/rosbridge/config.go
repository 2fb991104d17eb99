package rosbridge

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultPort = 9090

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config describes the remote endpoint and connection reliability knobs.
// Zero attempt limits mean retry forever.
type Config struct {
	Host                 string
	Port                 int
	Path                 string
	Secure               bool
	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	CallTimeout          time.Duration
	MaxConnectAttempts   int
	MaxReconnectAttempts int
	Backoff              BackoffConfig
	TLS                  TLSConfig
}

// TLSConfig applies when Secure is set. An empty CAFile uses the system pool.
type TLSConfig struct {
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

func DefaultConfig() Config {
	return Config{
		Port:               DefaultPort,
		Path:               "/",
		ConnectTimeout:     5 * time.Second,
		WriteTimeout:       5 * time.Second,
		CallTimeout:        5 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	c.Host = strings.TrimSpace(c.Host)
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if strings.TrimSpace(c.Path) == "" {
		c.Path = d.Path
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.MaxConnectAttempts < 0 {
		c.MaxConnectAttempts = 0
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}

func (c Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// Addr is host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) URL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: scheme, Host: c.Addr(), Path: path}
	return u.String()
}
