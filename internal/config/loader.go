package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SetCommonDefaults configures defaults shared by both binaries.
func SetCommonDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", Common.DataDir)
	v.SetDefault("observability.log_level", Common.LogLevel)
	v.SetDefault("observability.log_format", Common.LogFormat)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", Common.OTLPProtocol)
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("grpc.enable_reflection", false)
}

// SetNodeDefaults configures middleware instance defaults.
func SetNodeDefaults(v *viper.Viper) {
	SetCommonDefaults(v)
	v.SetDefault("grpc.addr", NodeDefaults.ListenAddr)
	v.SetDefault("observability.metrics_addr", NodeDefaults.MetricsAddr)
	v.SetDefault("observability.service_name", NodeDefaults.ServiceName)
	v.SetDefault("instance.id", "")
	v.SetDefault("instance.forceable", NodeDefaults.Forceable)
	v.SetDefault("instance.discoverable", NodeDefaults.Discoverable)
	v.SetDefault("rdc.addr", "")
	v.SetDefault("timeouts.call", NodeDefaults.CallTimeout)
	v.SetDefault("timeouts.announce_interval", NodeDefaults.AnnounceInterval)
	v.SetDefault("timeouts.liveness_interval", NodeDefaults.LivenessInterval)
}

// SetRDCDefaults configures RDC defaults.
func SetRDCDefaults(v *viper.Viper) {
	SetCommonDefaults(v)
	v.SetDefault("grpc.addr", RDCDefaults.ListenAddr)
	v.SetDefault("observability.metrics_addr", RDCDefaults.MetricsAddr)
	v.SetDefault("observability.service_name", RDCDefaults.ServiceName)
	v.SetDefault("index.ttl", RDCDefaults.TTL)
	v.SetDefault("index.reap_interval", RDCDefaults.ReapInterval)
	v.SetDefault("storage.backend", RDCDefaults.Backend)
}

// BindCommonFlags binds the flags every server command accepts.
func BindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String("config", "", "config file path")
	f.String("data-dir", "", "data directory (default ~/.mw)")
	f.String("addr", "", "gRPC listen address")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (auto, json, text)")
	f.String("metrics-addr", "", "metrics HTTP listen address")
	f.Bool("reflection", false, "enable gRPC reflection")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("grpc.addr", f.Lookup("addr"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("grpc.enable_reflection", f.Lookup("reflection"))
}

// BindNodeFlags binds middleware instance flags.
func BindNodeFlags(cmd *cobra.Command, v *viper.Viper) {
	BindCommonFlags(cmd, v)
	f := cmd.Flags()
	f.String("id", "", "instance id (default: random)")
	f.String("rdc", "", "RDC address (host:port)")
	f.StringSlice("advertise", nil, "extra addresses to advertise (host:port)")
	f.Bool("forceable", NodeDefaults.Forceable, "accept remote commands")
	f.Bool("discoverable", NodeDefaults.Discoverable, "announce exposed endpoints to the RDC")

	_ = v.BindPFlag("instance.id", f.Lookup("id"))
	_ = v.BindPFlag("rdc.addr", f.Lookup("rdc"))
	_ = v.BindPFlag("grpc.advertise", f.Lookup("advertise"))
	_ = v.BindPFlag("instance.forceable", f.Lookup("forceable"))
	_ = v.BindPFlag("instance.discoverable", f.Lookup("discoverable"))
}

// BindRDCFlags binds RDC flags.
func BindRDCFlags(cmd *cobra.Command, v *viper.Viper) {
	BindCommonFlags(cmd, v)
	f := cmd.Flags()
	f.String("backend", "", "announcement store backend (memory, badger, redis, sqlite)")
	f.Duration("ttl", RDCDefaults.TTL, "expire locations not refreshed within this period")

	_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
	_ = v.BindPFlag("index.ttl", f.Lookup("ttl"))
}

// Load reads config from flags, env, and file.
// The envPrefix is used for environment variable lookups (e.g., "MW_RDC").
// The configPaths are directories to search for config files.
func Load(v *viper.Viper, envPrefix string, configFile string, configPaths ...string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("hcl")
		v.AddConfigPath(".")
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) && configFile != "" {
			return err
		}
		// Config file not found is OK if not explicitly specified
	}

	return nil
}

// LoadNode loads a middleware instance config.
func LoadNode(v *viper.Viper, configFile string) (NodeConfig, error) {
	SetNodeDefaults(v)
	if err := Load(v, "MW", configFile, Common.DataDir, "/etc/mw"); err != nil {
		return NodeConfig{}, err
	}
	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// LoadRDC loads an RDC config.
func LoadRDC(v *viper.Viper, configFile string) (RDCConfig, error) {
	SetRDCDefaults(v)
	if err := Load(v, "MW_RDC", configFile, filepath.Join(Common.DataDir, "rdc"), "/etc/mw/rdc"); err != nil {
		return RDCConfig{}, err
	}
	var cfg RDCConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RDCConfig{}, err
	}
	return cfg, nil
}
