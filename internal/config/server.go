package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/oicur0t/ratelog/internal/logbuffer"
	"github.com/oicur0t/ratelog/internal/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. RATELOG_BUFFER_RATE_LIMIT
const EnvPrefix = "RATELOG"

// HTTPServerConfig holds HTTP server settings
type HTTPServerConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// ServerMTLSConfig holds mTLS configuration for the server
type ServerMTLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CACert     string `mapstructure:"ca_cert"`
	ServerCert string `mapstructure:"server_cert"`
	ServerKey  string `mapstructure:"server_key"`
	ClientAuth string `mapstructure:"client_auth"` // require, request, or none
}

// SourceConfig is a file tailed into the buffer
type SourceConfig struct {
	Path      string `mapstructure:"path"`
	Module    string `mapstructure:"module"`
	Enabled   bool   `mapstructure:"enabled"`
	FromStart bool   `mapstructure:"from_start"`
}

// TailConfig holds settings shared by every tailed source
type TailConfig struct {
	Poll bool `mapstructure:"poll"` // false uses inotify
}

// ServerConfig represents the complete daemon configuration
type ServerConfig struct {
	Server    HTTPServerConfig `mapstructure:"server"`
	Buffer    logbuffer.Config `mapstructure:"buffer"`
	MTLS      ServerMTLSConfig `mapstructure:"mtls"`
	Sources   []SourceConfig   `mapstructure:"sources"`
	Tail      TailConfig       `mapstructure:"tail"`
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
	LogFile   string           `mapstructure:"log_file"`
}

// EnabledSources returns the sources switched on
func (c *ServerConfig) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, src := range c.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

// LoadServerConfig loads the daemon configuration from a file.
// An empty path yields defaults plus environment overrides.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := newViper(configPath)

	// Set defaults
	bufDefaults := logbuffer.DefaultConfig()
	v.SetDefault("server.listen_address", "127.0.0.1:7070")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("buffer.rate_limit", bufDefaults.RateLimit)
	v.SetDefault("buffer.window", bufDefaults.Window.String())
	v.SetDefault("buffer.policy", string(bufDefaults.Policy))
	v.SetDefault("buffer.command_bypass", false)
	v.SetDefault("buffer.render_limit", bufDefaults.RenderLimit)
	v.SetDefault("tail.poll", true)
	v.SetDefault("mtls.enabled", false)
	v.SetDefault("mtls.client_auth", "require")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks field values that defaults cannot repair
func (c *ServerConfig) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address is required")
	}
	if c.Buffer.RateLimit <= 0 {
		return fmt.Errorf("buffer.rate_limit must be positive, got %d", c.Buffer.RateLimit)
	}
	if c.Buffer.Window <= 0 {
		return fmt.Errorf("buffer.window must be positive, got %s", c.Buffer.Window)
	}
	if c.Buffer.RenderLimit <= 0 {
		return fmt.Errorf("buffer.render_limit must be positive, got %d", c.Buffer.RenderLimit)
	}
	switch c.Buffer.Policy {
	case ratelimit.PolicyWindow, ratelimit.PolicyRefill, ratelimit.PolicyOff:
	default:
		return fmt.Errorf("buffer.policy: %w: %q", ratelimit.ErrUnknownPolicy, c.Buffer.Policy)
	}
	if c.MTLS.Enabled {
		if c.MTLS.CACert == "" || c.MTLS.ServerCert == "" || c.MTLS.ServerKey == "" {
			return fmt.Errorf("mTLS certificates are required when mTLS is enabled")
		}
	}
	for i, src := range c.Sources {
		if src.Enabled && src.Path == "" {
			return fmt.Errorf("sources[%d].path is required", i)
		}
	}
	return nil
}
