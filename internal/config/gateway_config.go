// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the relaygate server.
// It handles loading and parsing YAML configuration files and provides
// structured access to gateway flavor settings, provider registrations, the
// shared store backend, and audit/logging options.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relaygate/relaygate/internal/provider"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	Host string `yaml:"host"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile controls whether logs go to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogDir is the directory for rotating log files.
	LogDir string `yaml:"log-dir"`

	// Store selects and configures the shared state backend.
	Store StoreConfig `yaml:"store"`

	// Audit configures the append-only dispatch audit log.
	Audit AuditConfig `yaml:"audit"`

	// Providers lists the providers to register at start-up. This is the
	// explicit registration table; there is no runtime scanning.
	Providers []ProviderConfig `yaml:"providers"`

	// AI, Messaging, and Payment hold the per-flavor gateway settings.
	AI        GatewayConfig `yaml:"ai"`
	Messaging GatewayConfig `yaml:"messaging"`
	Payment   GatewayConfig `yaml:"payment"`
}

// StoreConfig selects the shared store backend. Breaker health, rate
// windows, and the response cache all live in this store.
type StoreConfig struct {
	// Backend is "memory" or "redis". Memory is only valid for a single
	// long-lived gateway instance.
	Backend string `yaml:"backend"`

	// Redis holds connection settings when Backend is "redis".
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix namespaces all gateway keys. Default "relaygate".
	Prefix string `yaml:"prefix"`
}

// AuditConfig configures the JSONL audit sink.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// ProviderConfig declares one provider registration.
type ProviderConfig struct {
	// Code is the unique provider identifier.
	Code string `yaml:"code"`
	// Domain is ai, messaging, or payment.
	Domain string `yaml:"domain"`
	// Capabilities lists the operations this provider implements.
	Capabilities []string `yaml:"capabilities"`
	// Priority orders providers when no chain applies; lower wins.
	Priority int `yaml:"priority"`

	// Simulated executor knobs, used when the provider has no real backend
	// wired into the binary.
	LatencyMS   int     `yaml:"latency-ms"`
	FailureRate float64 `yaml:"failure-rate"`
	FailureKind string  `yaml:"failure-kind"`
}

// GatewayConfig holds one flavor's settings.
type GatewayConfig struct {
	// DefaultProvider is tried when no chain entry qualifies.
	DefaultProvider string `yaml:"default-provider"`

	// Fallback maps a capability to its ordered provider preference list.
	Fallback map[string][]string `yaml:"fallback"`

	// MaxRetries is the attempt budget per provider.
	MaxRetries int `yaml:"max-retries"`

	// BackoffBase and BackoffMultiplier parameterize the retry delay in
	// seconds: base * multiplier^(attempt-1).
	BackoffBase       float64 `yaml:"backoff-base"`
	BackoffMultiplier float64 `yaml:"backoff-multiplier"`

	// RetryDelayExpr optionally replaces the backoff formula with an
	// expression over attempt, base, and multiplier.
	RetryDelayExpr string `yaml:"retry-delay-expr"`

	// CircuitBreakerThreshold failures open a provider's circuit.
	CircuitBreakerThreshold int `yaml:"circuit-breaker-threshold"`

	// CircuitBreakerTimeoutSec is the open period before a half-open trial.
	CircuitBreakerTimeoutSec int `yaml:"circuit-breaker-timeout"`

	// RateLimitWindowSec and RateLimitMax bound requests per provider per
	// fixed window.
	RateLimitWindowSec int `yaml:"rate-limit-window"`
	RateLimitMax       int `yaml:"rate-limit-max"`

	// CacheTTLSec is the response cache TTL.
	CacheTTLSec int `yaml:"cache-ttl"`

	// CacheableCapabilities lists read-like, deterministic capabilities
	// whose results may be served from cache. Never list side-effecting
	// sends here.
	CacheableCapabilities []string `yaml:"cacheable-capabilities"`

	// CallTimeoutSec bounds each provider attempt. Zero disables it.
	CallTimeoutSec int `yaml:"call-timeout"`
}

// flavorDefaults are applied per flavor when the file leaves a field unset.
var flavorDefaults = map[provider.Domain]GatewayConfig{
	provider.DomainAI: {
		MaxRetries:               3,
		BackoffBase:              1,
		BackoffMultiplier:        2,
		CircuitBreakerThreshold:  5,
		CircuitBreakerTimeoutSec: 300,
		RateLimitWindowSec:       60,
		RateLimitMax:             100,
		CacheTTLSec:              300,
		CallTimeoutSec:           60,
	},
	provider.DomainMessaging: {
		MaxRetries:               3,
		BackoffBase:              1,
		BackoffMultiplier:        2,
		CircuitBreakerThreshold:  5,
		CircuitBreakerTimeoutSec: 300,
		RateLimitWindowSec:       60,
		RateLimitMax:             1000,
		CacheTTLSec:              300,
		CallTimeoutSec:           30,
	},
	provider.DomainPayment: {
		MaxRetries:               2,
		BackoffBase:              1,
		BackoffMultiplier:        2,
		CircuitBreakerThreshold:  3,
		CircuitBreakerTimeoutSec: 300,
		RateLimitWindowSec:       60,
		RateLimitMax:             100,
		CacheTTLSec:              300,
		CallTimeoutSec:           30,
	},
}

// Load reads and parses the YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8317
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "relaygate"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "logs/dispatch_audit.log"
	}

	c.AI.applyDefaults(provider.DomainAI)
	c.Messaging.applyDefaults(provider.DomainMessaging)
	c.Payment.applyDefaults(provider.DomainPayment)
}

func (g *GatewayConfig) applyDefaults(domain provider.Domain) {
	def := flavorDefaults[domain]
	if g.MaxRetries == 0 {
		g.MaxRetries = def.MaxRetries
	}
	if g.BackoffBase == 0 {
		g.BackoffBase = def.BackoffBase
	}
	if g.BackoffMultiplier == 0 {
		g.BackoffMultiplier = def.BackoffMultiplier
	}
	if g.CircuitBreakerThreshold == 0 {
		g.CircuitBreakerThreshold = def.CircuitBreakerThreshold
	}
	if g.CircuitBreakerTimeoutSec == 0 {
		g.CircuitBreakerTimeoutSec = def.CircuitBreakerTimeoutSec
	}
	if g.RateLimitWindowSec == 0 {
		g.RateLimitWindowSec = def.RateLimitWindowSec
	}
	if g.RateLimitMax == 0 {
		g.RateLimitMax = def.RateLimitMax
	}
	if g.CacheTTLSec == 0 {
		g.CacheTTLSec = def.CacheTTLSec
	}
	if g.CallTimeoutSec == 0 {
		g.CallTimeoutSec = def.CallTimeoutSec
	}
	if g.Fallback == nil {
		g.Fallback = make(map[string][]string)
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Code == "" {
			return fmt.Errorf("config: provider with empty code")
		}
		if seen[p.Code] {
			return fmt.Errorf("config: duplicate provider code %q", p.Code)
		}
		seen[p.Code] = true
		switch provider.Domain(p.Domain) {
		case provider.DomainAI, provider.DomainMessaging, provider.DomainPayment:
		default:
			return fmt.Errorf("config: provider %s has unknown domain %q", p.Code, p.Domain)
		}
		if len(p.Capabilities) == 0 {
			return fmt.Errorf("config: provider %s advertises no capabilities", p.Code)
		}
	}
	return nil
}

// Flavor returns the settings for a domain.
func (c *Config) Flavor(domain provider.Domain) GatewayConfig {
	switch domain {
	case provider.DomainMessaging:
		return c.Messaging
	case provider.DomainPayment:
		return c.Payment
	default:
		return c.AI
	}
}

// CircuitBreakerTimeout returns the configured open period.
func (g GatewayConfig) CircuitBreakerTimeout() time.Duration {
	return time.Duration(g.CircuitBreakerTimeoutSec) * time.Second
}

// RateLimitWindow returns the configured fixed-window size.
func (g GatewayConfig) RateLimitWindow() time.Duration {
	return time.Duration(g.RateLimitWindowSec) * time.Second
}

// CacheTTL returns the configured response cache TTL.
func (g GatewayConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLSec) * time.Second
}

// CallTimeout returns the per-attempt timeout.
func (g GatewayConfig) CallTimeout() time.Duration {
	return time.Duration(g.CallTimeoutSec) * time.Second
}
