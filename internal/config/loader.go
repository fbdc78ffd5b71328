package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// load reads a YAML file into cfg, expanding ${VAR} references first.
// A missing path leaves cfg zero-valued so defaults apply.
func load(path string, cfg any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// LoadMarket loads, defaults, and validates a marketd config.
func LoadMarket(path string) (*MarketConfig, error) {
	var cfg MarketConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadBank loads, defaults, and validates a bankd config.
func LoadBank(path string) (*BankConfig, error) {
	var cfg BankConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadRegistry loads, defaults, and validates a registryd config.
func LoadRegistry(path string) (*RegistryConfig, error) {
	var cfg RegistryConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadTrader loads, defaults, and validates a trader CLI config.
func LoadTrader(path string) (*TraderConfig, error) {
	var cfg TraderConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
