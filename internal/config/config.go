// Package config loads the client runtime's configuration from a YAML file,
// a local .env overlay, and environment variable overrides, in that order.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/ocx/ambrosia-client/internal/transport"
)

// Config is the full set of values the runtime needs to bring up its
// sockets, size its egress ring, and decide how verbosely to log.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Ring        RingConfig        `yaml:"ring"`
	Startup     StartupConfig     `yaml:"startup"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Debug       bool              `yaml:"debug"`
}

// CoordinatorConfig names the two local sockets the coordinator listens on
// and dials, and which IP family to use for both.
type CoordinatorConfig struct {
	UpPort   uint16 `yaml:"up_port"`
	DownPort uint16 `yaml:"down_port"`
	Family   string `yaml:"family"` // "ipv4" or "ipv6"
}

// RingConfig sizes the egress ring buffer.
type RingConfig struct {
	CapacityBytes int `yaml:"capacity_bytes"` // 0 -> 20 MiB default
}

// StartupConfig carries the immortal's startup RPC target, sent once during
// the handshake's InitialMessage.
type StartupConfig struct {
	MethodID int32  `yaml:"method_id"`
	ArgsHex  string `yaml:"args_hex"`
}

// DiagnosticsConfig controls the optional debug HTTP/WebSocket surface.
type DiagnosticsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide config singleton, loading it from
// CONFIG_PATH (default "config.yaml") on first use.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("config: no .env file found, continuing with process environment")
		}
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "err", err)
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// LoadConfig reads and decodes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := getEnvInt("AMBROSIA_UP_PORT", 0); v > 0 {
		c.Coordinator.UpPort = uint16(v)
	}
	if v := getEnvInt("AMBROSIA_DOWN_PORT", 0); v > 0 {
		c.Coordinator.DownPort = uint16(v)
	}
	c.Coordinator.Family = getEnv("AMBROSIA_FAMILY", c.Coordinator.Family)

	if v := getEnvInt("AMBROSIA_RING_CAPACITY_BYTES", 0); v > 0 {
		c.Ring.CapacityBytes = v
	}
	if v := getEnvInt("AMBROSIA_STARTUP_METHOD_ID", 0); v != 0 {
		c.Startup.MethodID = int32(v)
	}
	c.Startup.ArgsHex = getEnv("AMBROSIA_STARTUP_ARGS_HEX", c.Startup.ArgsHex)

	c.Diagnostics.ListenAddr = getEnv("AMBROSIA_DIAGNOSTICS_ADDR", c.Diagnostics.ListenAddr)
	c.Debug = getEnvBool("AMBROSIA_DEBUG", c.Debug)
}

func (c *Config) applyDefaults() {
	if c.Coordinator.UpPort == 0 {
		c.Coordinator.UpPort = 2000
	}
	if c.Coordinator.DownPort == 0 {
		c.Coordinator.DownPort = 2001
	}
	if c.Coordinator.Family == "" {
		c.Coordinator.Family = "ipv4"
	}
	if c.Diagnostics.ListenAddr == "" {
		c.Diagnostics.ListenAddr = "127.0.0.1:9090"
	}
}

// TransportFamily maps the config's string family to transport.Family.
func (c *Config) TransportFamily() transport.Family {
	if c.Coordinator.Family == "ipv6" {
		return transport.IPv6
	}
	return transport.IPv4
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
