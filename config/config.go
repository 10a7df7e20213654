package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"workledger/crypto"
)

// Config is the persisted daemon configuration. The administrator address and
// the fee rate are fixed at initialization; changing the fee never reprices
// existing escrows because the engine snapshots the rate onto each record.
type Config struct {
	RPCAddress         string `toml:"RPCAddress"`
	MetricsAddress     string `toml:"MetricsAddress"`
	DataDir            string `toml:"DataDir"`
	AdminAddress       string `toml:"AdminAddress"`
	FeeBps             uint32 `toml:"FeeBps"`
	AutoReleaseSeconds int64  `toml:"AutoReleaseSeconds"`
}

const (
	defaultRPCAddress     = "127.0.0.1:8645"
	defaultMetricsAddress = "127.0.0.1:9465"
	defaultDataDirName    = "workledger-data"
)

// Load loads the configuration from the given path. A missing file is
// populated with defaults, leaving AdminAddress for the operator to fill in.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(path string) {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = defaultMetricsAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = filepath.Join(filepath.Dir(path), defaultDataDirName)
	}
}

// Validate checks the loaded values against the custody core's invariants.
func (c *Config) Validate() error {
	if c.FeeBps > 10_000 {
		return fmt.Errorf("config: FeeBps %d out of range (0..10000)", c.FeeBps)
	}
	if c.AutoReleaseSeconds < 0 {
		return fmt.Errorf("config: AutoReleaseSeconds must be non-negative")
	}
	if strings.TrimSpace(c.AdminAddress) == "" {
		return fmt.Errorf("config: AdminAddress required")
	}
	if _, err := c.Admin(); err != nil {
		return fmt.Errorf("config: invalid AdminAddress: %w", err)
	}
	return nil
}

// Admin decodes the configured administrator address.
func (c *Config) Admin() (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(c.AdminAddress))
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{FeeBps: 250}
	cfg.applyDefaults(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
