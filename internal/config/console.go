package config

import (
	"fmt"
	"time"
)

// ConsoleMTLSConfig holds client certificate settings
type ConsoleMTLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CACert     string `mapstructure:"ca_cert"`
	ClientCert string `mapstructure:"client_cert"`
	ClientKey  string `mapstructure:"client_key"`
	ServerName string `mapstructure:"server_name"`
}

// ConsoleConfig represents the console client configuration
type ConsoleConfig struct {
	URL        string            `mapstructure:"url"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	MaxRetries int               `mapstructure:"max_retries"`
	MTLS       ConsoleMTLSConfig `mapstructure:"mtls"`
	Output     string            `mapstructure:"output"`
}

// Output formats understood by the console
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// LoadConsoleConfig loads the console configuration. The file is optional.
func LoadConsoleConfig(configPath string) (*ConsoleConfig, error) {
	v := newViper(configPath)

	v.SetDefault("url", "http://127.0.0.1:7070")
	v.SetDefault("timeout", "10s")
	v.SetDefault("max_retries", 2)
	v.SetDefault("mtls.enabled", false)
	v.SetDefault("output", OutputText)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config ConsoleConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative")
	}
	switch config.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", config.Output)
	}
	if config.MTLS.Enabled {
		if config.MTLS.CACert == "" || config.MTLS.ClientCert == "" || config.MTLS.ClientKey == "" {
			return nil, fmt.Errorf("mTLS certificates are required when mTLS is enabled")
		}
	}

	return &config, nil
}
