// Package config loads and validates the YAML configuration of the
// marketplace daemons. Config files may reference environment variables
// with ${VAR}; they are expanded before parsing.
package config

import "time"

// MarketConfig is the root configuration for marketd.
type MarketConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Registry  RegistryRef     `yaml:"registry"`
	Bank      BankRef         `yaml:"bank"`
	Callbacks CallbacksConfig `yaml:"callbacks"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// BankConfig is the root configuration for bankd.
type BankConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryRef    `yaml:"registry"`
}

// RegistryConfig is the root configuration for registryd.
type RegistryConfig struct {
	Server ServerConfig `yaml:"server"`
}

// TraderConfig is the configuration for the trader CLI.
type TraderConfig struct {
	Name     string      `yaml:"name"`
	Registry RegistryRef `yaml:"registry"`
	Market   string      `yaml:"market"`
	Bank     string      `yaml:"bank"`
}

// InstanceConfig names a service instance; the name is what gets bound
// in the registry.
type InstanceConfig struct {
	Name string `yaml:"name"`
}

// ServerConfig holds HTTP listener settings. AdvertiseURL is the
// endpoint registered in the name service; it defaults to
// http://<host>:<port> with localhost standing in for a wildcard host.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	AdvertiseURL string `yaml:"advertise_url"`
}

// RegistryRef points a service at the name service.
type RegistryRef struct {
	URL string `yaml:"url"`
}

// BankRef tells the market which bank to look up and how to call it.
type BankRef struct {
	Name       string        `yaml:"name"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CallbacksConfig holds callback delivery settings.
type CallbacksConfig struct {
	BufferSize   int           `yaml:"buffer_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// LedgerConfig holds the optional settlement audit ledger settings.
// The ledger is disabled unless enabled is set.
type LedgerConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	DB            DBConfig      `yaml:"db"`
}

// DBConfig holds a Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
