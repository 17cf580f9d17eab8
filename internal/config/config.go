// Package config loads node configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/safemath"
	"github.com/eigerco/accountability/internal/state"
	"github.com/eigerco/accountability/pkg/log"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the node configuration file.
type Config struct {
	// DataDir is the pebble directory. Empty keeps state in memory.
	DataDir string `yaml:"data_dir"`
	// ListenAddr is the QUIC address the node serves on.
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr serves prometheus metrics over HTTP. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	// Faucet enables airdrop requests.
	Faucet     bool       `yaml:"faucet"`
	Allocation Allocation `yaml:"allocation"`
	// Genesis maps hex addresses to their initial balances.
	Genesis map[string]uint64 `yaml:"genesis"`
}

type Allocation struct {
	BaseCost    uint64 `yaml:"base_cost"`
	PerByteCost uint64 `yaml:"per_byte_cost"`
	// FeeCollector receives allocation charges. Empty uses the default collector.
	FeeCollector string `yaml:"fee_collector"`
}

// Default returns the configuration used for any key a file leaves out.
func Default() Config {
	fees := state.DefaultFeeSchedule()
	return Config{
		DataDir:    "./data",
		ListenAddr: "127.0.0.1:9900",
		LogLevel:   "info",
		LogFormat:  "console",
		Allocation: Allocation{
			BaseCost:    fees.BaseAllocationCost,
			PerByteCost: fees.PerByteAllocationCost,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates it.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	// An empty document leaves the defaults in place
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: listen_addr %q: %w", ErrInvalid, c.ListenAddr, err)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("%w: metrics_addr %q: %w", ErrInvalid, c.MetricsAddr, err)
		}
	}
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	if _, err := log.ParseLoggerType(c.LogFormat); err != nil {
		return fmt.Errorf("%w: log_format: %w", ErrInvalid, err)
	}
	if _, err := c.FeeSchedule(); err != nil {
		return err
	}
	if _, err := c.GenesisBalances(); err != nil {
		return err
	}
	return nil
}

// FeeSchedule converts the allocation section.
func (c Config) FeeSchedule() (state.FeeSchedule, error) {
	fees := state.FeeSchedule{
		BaseAllocationCost:    c.Allocation.BaseCost,
		PerByteAllocationCost: c.Allocation.PerByteCost,
		Collector:             state.DefaultFeeCollector,
	}
	if c.Allocation.FeeCollector != "" {
		addr, err := crypto.ParseAddress(c.Allocation.FeeCollector)
		if err != nil {
			return state.FeeSchedule{}, fmt.Errorf("%w: allocation.fee_collector: %w", ErrInvalid, err)
		}
		if addr.IsZero() {
			return state.FeeSchedule{}, fmt.Errorf("%w: allocation.fee_collector is the zero address", ErrInvalid)
		}
		fees.Collector = addr
	}
	return fees, nil
}

// GenesisBalances parses the genesis section. Its total must not overflow.
func (c Config) GenesisBalances() (map[crypto.Address]uint64, error) {
	balances := make(map[crypto.Address]uint64, len(c.Genesis))
	var total uint64
	for key, amount := range c.Genesis {
		addr, err := crypto.ParseAddress(key)
		if err != nil {
			return nil, fmt.Errorf("%w: genesis: %w", ErrInvalid, err)
		}
		if _, dup := balances[addr]; dup {
			return nil, fmt.Errorf("%w: genesis lists %s twice", ErrInvalid, addr)
		}
		if total, err = safemath.CheckedAdd64(total, amount); err != nil {
			return nil, fmt.Errorf("%w: genesis balances: %w", ErrInvalid, err)
		}
		balances[addr] = amount
	}
	return balances, nil
}
