// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the service configuration loaded from environment variables.
type Config struct {
	Port        uint16     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"debug"`
	LogFormat   string     `env:"LOG_FORMAT" envDefault:"text"`

	DiscordToken    string        `env:"DISCORD_TOKEN,notEmpty"`
	DiscordAPIBase  string        `env:"DISCORD_API_BASE" envDefault:"https://discord.com/api/v10"`

	// UpstreamTimeout is an extra client-side limit on a Discord call. Zero
	// leaves cancellation to the request deadline, which answers 408. A
	// nonzero value must not be shorter than RequestTimeout, or a slow
	// upstream would surface as a 500 before the deadline fires.
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"`

	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RateLimitPerSecond float64       `env:"RATE_LIMIT_PER_SECOND" envDefault:"2"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// TrustedProxies restricts which peers may set forwarding headers.
	// Empty means forwarding headers are always trusted, which is only
	// safe behind a reverse proxy.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load loads configuration from environment variables.
// Returns an error if required fields are missing or values are invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must not be negative, got %s", c.UpstreamTimeout)
	}
	if c.UpstreamTimeout > 0 && c.UpstreamTimeout < c.RequestTimeout {
		return fmt.Errorf("UPSTREAM_TIMEOUT (%s) must be 0 or at least REQUEST_TIMEOUT (%s)", c.UpstreamTimeout, c.RequestTimeout)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %v", c.RateLimitPerSecond)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %d", c.RateLimitBurst)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. Bare addresses are accepted
// and treated as single-host prefixes.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid entry %q", raw)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
