// Package config loads node configuration and builds the genesis block.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `json:"chain_id" yaml:"chain_id"`
	Alloc   map[string]uint64 `json:"alloc" yaml:"alloc"` // pubkey hex → initial balance
}

// LedgerConfig sets the kitty ledger parameters.
type LedgerConfig struct {
	KittyPrice      uint64 `json:"kitty_price" yaml:"kitty_price"`           // escrow reserved per kitty; 0 → 10
	MaxOwned        int    `json:"max_owned" yaml:"max_owned"`               // kitties per account; 0 → 3
	MaxKittyID      uint64 `json:"max_kitty_id" yaml:"max_kitty_id"`         // id counter ceiling; 0 → full uint64 range
	WorkerAuthority string `json:"worker_authority" yaml:"worker_authority"` // pubkey allowed to send update_kitty; empty → any
}

// WorkerConfig controls the offchain compute worker.
type WorkerConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	ComputeDelayMS int     `json:"compute_delay_ms" yaml:"compute_delay_ms"` // simulated compute time; 0 → 2000
	SubmitRate     float64 `json:"submit_rate" yaml:"submit_rate"`           // callback txs per second; 0 → 5
}

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id" yaml:"node_id"`
	DataDir         string        `json:"data_dir" yaml:"data_dir"`
	RPCPort         int           `json:"rpc_port" yaml:"rpc_port"`
	RPCAuthToken    string        `json:"rpc_auth_token" yaml:"rpc_auth_token"` // empty → no auth
	BlockIntervalMS int           `json:"block_interval_ms" yaml:"block_interval_ms"`
	MaxBlockTxs     int           `json:"max_block_txs" yaml:"max_block_txs"` // max transactions per block; 0 → 500
	Ledger          LedgerConfig  `json:"ledger" yaml:"ledger"`
	Worker          WorkerConfig  `json:"worker" yaml:"worker"`
	Genesis         GenesisConfig `json:"genesis" yaml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		RPCPort:         8545,
		BlockIntervalMS: 1000,
		MaxBlockTxs:     500,
		Ledger: LedgerConfig{
			KittyPrice: 10,
			MaxOwned:   3,
		},
		Worker: WorkerConfig{
			Enabled:        true,
			ComputeDelayMS: 2000,
			SubmitRate:     5,
		},
		Genesis: GenesisConfig{
			ChainID: "kittychain-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Load reads a config file from path, decoded by extension: .yaml/.yml are
// parsed as YAML, everything else as JSON. Missing fields keep defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
