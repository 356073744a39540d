// Package config provides XML (or YAML) configuration for the field-unit dashboard.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"FieldUnitDashboard" yaml:"-"`

	// HTTP surface for operators
	Server ServerConfig `xml:"Server" yaml:"server"`

	// Upstream hub: catalog endpoint and push channel
	Upstream UpstreamConfig `xml:"Upstream" yaml:"upstream"`

	// View engine tuning
	Dashboard DashboardConfig `xml:"Dashboard" yaml:"dashboard"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port" yaml:"port"`
	BindAddress  string `xml:"BindAddress" yaml:"bind_address"`
	EnableCORS   bool   `xml:"EnableCORS" yaml:"enable_cors"`
	AllowOrigins string `xml:"AllowOrigins" yaml:"allow_origins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds" yaml:"read_timeout_seconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds" yaml:"write_timeout_seconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds" yaml:"idle_timeout_seconds"`
	BodyLimit    string `xml:"BodyLimit" yaml:"body_limit"`
}

// UpstreamConfig locates the hub that serves the catalog and snapshots
type UpstreamConfig struct {
	BaseURL               string `xml:"BaseURL" yaml:"base_url"`
	CatalogPath           string `xml:"CatalogPath" yaml:"catalog_path"`
	WebSocketPath         string `xml:"WebSocketPath" yaml:"websocket_path"`
	CatalogTimeout        int    `xml:"CatalogTimeoutSeconds" yaml:"catalog_timeout_seconds"`
	HandshakeTimeout      int    `xml:"HandshakeTimeoutSeconds" yaml:"handshake_timeout_seconds"`
	ReconnectDelaySeconds int    `xml:"ReconnectDelaySeconds" yaml:"reconnect_delay_seconds"`
	PingIntervalSeconds   int    `xml:"PingIntervalSeconds" yaml:"ping_interval_seconds"`
}

// DashboardConfig contains view engine settings
type DashboardConfig struct {
	LogLines         int `xml:"LogLines" yaml:"log_lines"`
	EventBuffer      int `xml:"EventBuffer" yaml:"event_buffer"`
	SubscriberBuffer int `xml:"SubscriberBuffer" yaml:"subscriber_buffer"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel" yaml:"log_level"`
	LogFormat               string `xml:"LogFormat" yaml:"log_format"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging" yaml:"enable_request_logging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB" yaml:"websocket_max_message_size_kb"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "1M",
		},
		Upstream: UpstreamConfig{
			BaseURL:               "http://localhost:5000",
			CatalogPath:           "/api/satellites",
			WebSocketPath:         "/ws",
			CatalogTimeout:        30,
			HandshakeTimeout:      10,
			ReconnectDelaySeconds: 3,
			PingIntervalSeconds:   25,
		},
		Dashboard: DashboardConfig{
			LogLines:         500,
			EventBuffer:      64,
			SubscriberBuffer: 256,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			LogFormat:               "text",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 4096,
		},
	}
}

// LoadConfig loads configuration from an XML or YAML file, picked by
// extension. A missing file is created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so omitted elements keep sane values
	config := DefaultConfig()
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = xml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration, as YAML for a .yaml/.yml path and XML otherwise
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	if isYAML(configPath) {
		output, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = append([]byte("# Field Unit Dashboard configuration\n# This file is auto-generated on first run\n\n"), output...)
	} else {
		output, err := xml.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		header := []byte(xml.Header + "\n<!-- Field Unit Dashboard Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
		content = append(header, output...)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the dashboard cannot start with
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return fmt.Errorf("upstream base URL must be http(s): %q", c.Upstream.BaseURL)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if upstream := os.Getenv("UPSTREAM_URL"); upstream != "" {
		c.Upstream.BaseURL = upstream
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Advanced.LogFormat = format
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// CatalogURL is the absolute catalog endpoint
func (c *AppConfig) CatalogURL() string {
	return strings.TrimRight(c.Upstream.BaseURL, "/") + c.Upstream.CatalogPath
}

// PushChannelURL is the websocket endpoint, with the scheme swapped to ws(s)
func (c *AppConfig) PushChannelURL() string {
	base := strings.TrimRight(c.Upstream.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + c.Upstream.WebSocketPath
}

// CatalogTimeout returns the catalog fetch timeout
func (c *AppConfig) CatalogTimeout() time.Duration {
	return time.Duration(c.Upstream.CatalogTimeout) * time.Second
}

// ReconnectDelay returns the pause between push channel reconnects
func (c *AppConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.Upstream.ReconnectDelaySeconds) * time.Second
}

// MaxMessageBytes returns the push channel read limit in bytes
func (c *AppConfig) MaxMessageBytes() int64 {
	return int64(c.Advanced.WebSocketMaxMessageSize) * 1024
}
