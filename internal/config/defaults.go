// Package config provides the configuration surface of the middleware
// instance and the RDC: defaults, flag binding and file/env loading.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Common contains default values shared by both binaries.
var Common = struct {
	LogLevel     string
	LogFormat    string
	DataDir      string
	OTLPProtocol string
}{
	LogLevel:     "info",
	LogFormat:    "auto",
	DataDir:      DefaultDataDir(),
	OTLPProtocol: "http",
}

// DefaultDataDir returns the default data directory (~/.mw).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mw"
	}
	return filepath.Join(home, ".mw")
}

// NodeDefaults contains default values for a middleware instance.
var NodeDefaults = struct {
	ListenAddr       string
	MetricsAddr      string
	ServiceName      string
	Forceable        bool
	Discoverable     bool
	CallTimeout      time.Duration
	AnnounceInterval time.Duration
	LivenessInterval time.Duration
}{
	ListenAddr:       ":7400",
	MetricsAddr:      ":9400",
	ServiceName:      "mw",
	Forceable:        false,
	Discoverable:     true,
	CallTimeout:      5 * time.Second,
	AnnounceInterval: 30 * time.Second,
	LivenessInterval: 10 * time.Second,
}

// RDCDefaults contains default values for the Resource Discovery Center.
var RDCDefaults = struct {
	ListenAddr   string
	MetricsAddr  string
	ServiceName  string
	TTL          time.Duration
	ReapInterval time.Duration
	Backend      string
}{
	ListenAddr:   ":7500",
	MetricsAddr:  ":9500",
	ServiceName:  "mw-rdc",
	TTL:          90 * time.Second,
	ReapInterval: 15 * time.Second,
	Backend:      "memory",
}
