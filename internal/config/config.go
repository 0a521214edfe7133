// Package config provides the ambient server configuration for the
// Sentinel Intercept Proxy.
//
// This is a deliberately small schema: the spec-mandated rules+port
// document is owned by internal/domain/rules.Store, not here. This
// package covers everything around that core — listen address, log
// level, timeouts, worker counts, and metrics — the way the teacher's
// OSSConfig covers everything around its policy engine.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// ServerConfig is the top-level ambient configuration.
type ServerConfig struct {
	// Server configures the proxy's listen socket and logging.
	Server ListenConfig `yaml:"server" mapstructure:"server"`

	// Rules configures where the Config Store's JSON rules+port document lives.
	Rules RulesConfig `yaml:"rules" mapstructure:"rules"`

	// TLSInspection configures the MITM CA used to terminate HTTPS.
	TLSInspection TLSInspectionConfig `yaml:"tls_inspection" mapstructure:"tls_inspection"`

	// History configures the bounded Flow Record ring buffer.
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// Intercept configures the manual-intercept gate's operator deadline.
	Intercept InterceptConfig `yaml:"intercept" mapstructure:"intercept"`

	// Intruder configures the bounded worker pool used for attack replays.
	Intruder IntruderConfig `yaml:"intruder" mapstructure:"intruder"`

	// Spider configures crawl bounds.
	Spider SpiderConfig `yaml:"spider" mapstructure:"spider"`

	// Metrics configures the optional Prometheus metrics listener.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// DevMode enables verbose logging and permissive defaults.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ListenConfig configures the proxy's HTTP(S) listener.
type ListenConfig struct {
	// ListenAddr is the proxy's listen address. Defaults to "127.0.0.1:9507"
	// (loopback only, per spec.md §6).
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// UpstreamTimeout is the default per-request upstream timeout (spec.md §5, default 30s).
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" mapstructure:"upstream_timeout"`

	// ShutdownDrain bounds how long graceful shutdown waits for in-flight flows.
	ShutdownDrain time.Duration `yaml:"shutdown_drain" mapstructure:"shutdown_drain"`
}

// RulesConfig locates the Config Store's persisted document.
type RulesConfig struct {
	// Path is the JSON rules+port file path (spec.md §6).
	Path string `yaml:"path" mapstructure:"path"`
}

// TLSInspectionConfig configures the MITM CA used for HTTPS interception.
type TLSInspectionConfig struct {
	// CADir is the directory holding the root CA cert/key (generated once, cached).
	CADir string `yaml:"ca_dir" mapstructure:"ca_dir"`

	// CertTTL is the TTL for cached per-domain leaf certificates.
	CertTTL time.Duration `yaml:"cert_ttl" mapstructure:"cert_ttl"`
}

// HistoryConfig bounds the Flow Record ring buffer.
type HistoryConfig struct {
	// Capacity is the bounded ring-buffer size N (spec.md §3, default 1000).
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"omitempty,min=1"`
}

// InterceptConfig configures the manual-intercept gate.
type InterceptConfig struct {
	// Deadline is the operator deadline before an expired hold is dropped (default 300s).
	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline"`
}

// IntruderConfig configures the attack-plan runner.
type IntruderConfig struct {
	// Workers is the default bounded worker-pool size (default 10).
	Workers int `yaml:"workers" mapstructure:"workers" validate:"omitempty,min=1"`

	// RequestTimeout bounds each in-flight replay (default 10s).
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// SpiderConfig bounds crawl depth/breadth when not overridden per-run.
type SpiderConfig struct {
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth" validate:"omitempty,min=1"`
	MaxURLs  int `yaml:"max_urls" mapstructure:"max_urls" validate:"omitempty,min=1"`
}

// MetricsConfig configures the optional Prometheus metrics endpoint.
type MetricsConfig struct {
	// Addr, if non-empty, serves /metrics on this address.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// SetDefaults applies sensible default values for every field left zero.
func (c *ServerConfig) SetDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:9507"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.UpstreamTimeout == 0 {
		c.Server.UpstreamTimeout = 30 * time.Second
	}
	if c.Server.ShutdownDrain == 0 {
		c.Server.ShutdownDrain = 10 * time.Second
	}
	if c.Rules.Path == "" {
		c.Rules.Path = "sentinel-proxy-rules.json"
	}
	if c.TLSInspection.CADir == "" {
		c.TLSInspection.CADir = "~/.sentinel-proxy"
	}
	if c.TLSInspection.CertTTL == 0 {
		c.TLSInspection.CertTTL = time.Hour
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = 1000
	}
	if c.Intercept.Deadline == 0 {
		c.Intercept.Deadline = 300 * time.Second
	}
	if c.Intruder.Workers == 0 {
		c.Intruder.Workers = 10
	}
	if c.Intruder.RequestTimeout == 0 {
		c.Intruder.RequestTimeout = 10 * time.Second
	}
	if c.Spider.MaxDepth == 0 {
		c.Spider.MaxDepth = 5
	}
	if c.Spider.MaxURLs == 0 {
		c.Spider.MaxURLs = 5000
	}
	if c.DevMode {
		c.Server.LogLevel = "debug"
	}
}

// isSet lets callers distinguish "not configured" from "explicitly zero"
// for booleans, matching the teacher's viper.IsSet pattern.
func isSet(key string) bool {
	return viper.IsSet(key)
}
