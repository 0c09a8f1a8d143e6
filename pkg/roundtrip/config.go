package roundtrip

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvAddress overrides the default service address.
const EnvAddress = "PWSCAN_ADDR"

// Defaults.
const (
	DefaultNetwork         = "unix"
	DefaultAddress         = "/tmp/pwscan-0"
	DefaultDiscoverTimeout = 5 * time.Second
	DefaultClientName      = "pwscan"
)

// Config describes how to reach the graph service.
type Config struct {
	// Network is "unix" or "tcp".
	Network string `yaml:"network"`

	// Address is a socket path or host:port.
	Address string `yaml:"address"`

	// Discover finds the service over mDNS instead of using Address.
	Discover bool `yaml:"discover"`

	// DiscoverTimeout bounds mDNS browsing.
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`

	// Interface restricts mDNS browsing to one network interface.
	Interface string `yaml:"interface"`

	// ClientName is announced to the service.
	ClientName string `yaml:"client_name"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ProtocolLog is a file that receives protocol events.
	ProtocolLog string `yaml:"protocol_log"`

	// JSON selects JSON output.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns the configuration used without a config file.
// The address honours $PWSCAN_ADDR.
func DefaultConfig() Config {
	addr := os.Getenv(EnvAddress)
	if addr == "" {
		addr = DefaultAddress
	}
	return Config{
		Network:         DefaultNetwork,
		Address:         addr,
		DiscoverTimeout: DefaultDiscoverTimeout,
		ClientName:      DefaultClientName,
		LogLevel:        "info",
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. Unknown keys
// are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Network {
	case "unix", "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("invalid network %q", c.Network)
	}
	if !c.Discover && c.Address == "" {
		return errors.New("address is required unless discover is set")
	}
	if c.Discover && c.DiscoverTimeout <= 0 {
		return errors.New("discover_timeout must be positive")
	}
	return nil
}
