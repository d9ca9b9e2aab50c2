package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dhke/internal/crypto"
	"dhke/internal/transport"
)

// Parameter sources for a server.
const (
	SourceGroup      = "group"
	SourceGenerate   = "generate"
	SourcePerSession = "per-session"
	SourceFile       = "file"
)

// Config is the full runtime configuration, loaded from YAML.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures `dhke server`.
type ServerConfig struct {
	// Listen is the host:port to accept exchanges on.
	Listen    string `yaml:"listen"`
	Transport string `yaml:"transport"` // tcp or kcp
	// HandshakeTimeout bounds each read and write of a session.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int `yaml:"max_sessions"`
	// StatusListen serves the HTTP status endpoint; empty disables it.
	StatusListen string          `yaml:"status_listen"`
	Params       ParamsConfig    `yaml:"params"`
	Discovery    DiscoveryConfig `yaml:"discovery"`
}

// ParamsConfig selects the group a server offers.
type ParamsConfig struct {
	Source string `yaml:"source"` // group, generate, per-session or file
	Group  int    `yaml:"group"`  // MODP group id for source=group
	Bits   int    `yaml:"bits"`   // prime size for generate and per-session
	File   string `yaml:"file"`   // parameter file for source=file
}

// DiscoveryConfig controls mDNS advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// ClientConfig configures `dhke client`.
type ClientConfig struct {
	Address   string        `yaml:"address"`
	Transport string        `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`
	// MinPrimeBits is the smallest modulus the client accepts from a server.
	MinPrimeBits int `yaml:"min_prime_bits"`
	// MaxPrimeBits is the largest modulus it accepts; 0 removes the cap.
	MaxPrimeBits int `yaml:"max_prime_bits"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:           ":4040",
			Transport:        transport.TCP,
			HandshakeTimeout: 30 * time.Second,
			MaxSessions:      256,
			Params: ParamsConfig{
				Source: SourceGroup,
				Group:  crypto.DefaultGroup,
				Bits:   512,
			},
			Discovery: DiscoveryConfig{Instance: "dhke"},
		},
		Client: ClientConfig{
			Address:      "127.0.0.1:4040",
			Transport:    transport.TCP,
			Timeout:      30 * time.Second,
			MinPrimeBits: crypto.DefaultMinBits,
			MaxPrimeBits: crypto.DefaultMaxBits,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path over the defaults and validates the result. An
// empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that has a fixed set of legal values.
func (c *Config) Validate() error {
	for _, t := range []struct{ key, v string }{
		{"server.transport", c.Server.Transport},
		{"client.transport", c.Client.Transport},
	} {
		if t.v != transport.TCP && t.v != transport.KCP {
			return fmt.Errorf("%s must be %s or %s, got %q", t.key, transport.TCP, transport.KCP, t.v)
		}
	}
	if c.Server.HandshakeTimeout < 0 || c.Client.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must not be negative")
	}
	p := c.Server.Params
	switch p.Source {
	case SourceGroup:
		if _, err := crypto.Group(p.Group); err != nil {
			return fmt.Errorf("server.params.group: %w", err)
		}
	case SourceGenerate, SourcePerSession:
		if p.Bits < crypto.MinGenerateBits {
			return fmt.Errorf("server.params.bits must be at least %d, got %d", crypto.MinGenerateBits, p.Bits)
		}
	case SourceFile:
		if p.File == "" {
			return fmt.Errorf("server.params.file is required for source %q", SourceFile)
		}
	default:
		return fmt.Errorf("server.params.source must be one of %s, %s, %s, %s; got %q",
			SourceGroup, SourceGenerate, SourcePerSession, SourceFile, p.Source)
	}
	if c.Server.Discovery.Enabled && c.Server.Discovery.Instance == "" {
		return fmt.Errorf("server.discovery.instance is required when discovery is enabled")
	}
	if c.Client.MinPrimeBits < 2 {
		return fmt.Errorf("client.min_prime_bits must be at least 2")
	}
	if m := c.Client.MaxPrimeBits; m < 0 || (m > 0 && m < c.Client.MinPrimeBits) {
		return fmt.Errorf("client.max_prime_bits must be 0 or at least client.min_prime_bits, got %d", m)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
