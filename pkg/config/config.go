// Package config loads and saves the peer's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ma "github.com/multiformats/go-multiaddr"
)

// FileName is the config file inside Home().
const FileName = "config.toml"

// Config holds all peer configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	Discovery DiscoveryConfig `toml:"discovery"`
	DHT       DHTConfig       `toml:"dht"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Network   NetworkConfig   `toml:"network"`
	API       APIConfig       `toml:"api"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig identifies this peer.
type NodeConfig struct {
	Nickname string   `toml:"nickname"`
	DataDir  string   `toml:"data_dir"`
	Listen   []string `toml:"listen"`
}

// DiscoveryConfig controls mDNS and the rendezvous point.
type DiscoveryConfig struct {
	MDNS               bool     `toml:"mdns"`
	Namespace          string   `toml:"namespace"`
	Rendezvous         string   `toml:"rendezvous"`
	RendezvousInterval Duration `toml:"rendezvous_interval"`
}

// DHTConfig controls record queries.
type DHTConfig struct {
	QueryTimeout Duration `toml:"query_timeout"`
}

// ExchangeConfig controls file transfer.
type ExchangeConfig struct {
	DownloadDir      string   `toml:"download_dir"`
	RequestTimeout   Duration `toml:"request_timeout"`
	MaxResponseBytes int64    `toml:"max_response_bytes"`
}

// NetworkConfig sizes the event loop's queues and the connection manager.
type NetworkConfig struct {
	CommandBuffer int `toml:"command_buffer"`
	EventBuffer   int `toml:"event_buffer"`
	ConnLow       int `toml:"conn_low"`
	ConnHigh      int `toml:"conn_high"`
}

// APIConfig controls the local status server. Empty Addr disables it.
type APIConfig struct {
	Addr string `toml:"addr"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	home := Home()
	return Config{
		Node: NodeConfig{
			Listen: []string{
				"/ip4/0.0.0.0/tcp/0",
				"/ip4/0.0.0.0/udp/0/quic-v1",
			},
		},
		Discovery: DiscoveryConfig{
			MDNS:               true,
			Namespace:          "swapbytes",
			RendezvousInterval: Duration(30 * time.Second),
		},
		DHT: DHTConfig{
			QueryTimeout: Duration(30 * time.Second),
		},
		Exchange: ExchangeConfig{
			DownloadDir:      ".",
			RequestTimeout:   Duration(2 * time.Hour),
			MaxResponseBytes: 10 << 20,
		},
		Network: NetworkConfig{
			CommandBuffer: 16,
			EventBuffer:   64,
			ConnLow:       50,
			ConnHigh:      200,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(home, "swapbytes.log"),
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating its directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks the fields the node cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Node.Nickname) == "" {
		errs = append(errs, errors.New("node.nickname is required"))
	}
	if len(c.Node.Listen) == 0 {
		errs = append(errs, errors.New("node.listen needs at least one address"))
	}
	for _, addr := range c.Node.Listen {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			errs = append(errs, fmt.Errorf("node.listen %q: %w", addr, err))
		}
	}
	if c.Discovery.Rendezvous != "" {
		if _, err := ma.NewMultiaddr(c.Discovery.Rendezvous); err != nil {
			errs = append(errs, fmt.Errorf("discovery.rendezvous: %w", err))
		}
	}
	if c.Discovery.Namespace == "" {
		errs = append(errs, errors.New("discovery.namespace is required"))
	}
	if c.Network.CommandBuffer < 1 {
		errs = append(errs, errors.New("network.command_buffer must be positive"))
	}
	return errors.Join(errs...)
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Home(), FileName)
}

// Home returns the swapbytes data directory.
func Home() string {
	if env := os.Getenv("SWAPBYTES_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".swapbytes")
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
