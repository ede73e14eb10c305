package config

import (
	"path/filepath"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
)

// BaseConfig contains fields shared by both binaries. Binary configs embed
// it with mapstructure:",squash".
type BaseConfig struct {
	DataDir       string              `mapstructure:"data_dir"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// Obs converts to the observability package's config.
func (o ObservabilityConfig) Obs() observability.ObsConfig {
	return observability.ObsConfig{
		LogLevel:       o.LogLevel,
		LogFormat:      o.LogFormat,
		OTLPEndpoint:   o.OTLPEndpoint,
		OTLPProtocol:   o.OTLPProtocol,
		ServiceName:    o.ServiceName,
		ServiceVersion: o.ServiceVersion,
	}
}

// ResolvedDataDir returns the data directory from config, or the default (~/.mw).
func (c BaseConfig) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

// Path resolves p against the data directory unless it is absolute.
func (c BaseConfig) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ResolvedDataDir(), p)
}

// GRPCConfig holds gRPC server settings.
type GRPCConfig struct {
	Addr             string   `mapstructure:"addr"`
	Advertise        []string `mapstructure:"advertise"`
	EnableReflection bool     `mapstructure:"enable_reflection"`
}
