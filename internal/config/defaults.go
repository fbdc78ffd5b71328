package config

import (
	"fmt"
	"time"
)

// Default values for optional configuration fields. The registry port
// default matches the original deployment convention.
const (
	DefaultMarketName   = "Market"
	DefaultBankName     = "Nordea"
	DefaultRegistryPort = 1099
	DefaultMarketPort   = 8080
	DefaultBankPort     = 8081

	DefaultBankTimeout    = 10 * time.Second
	DefaultBankMaxRetries = 2

	DefaultCallbackBufferSize   = 256
	DefaultCallbackWriteTimeout = 5 * time.Second
	DefaultCallbackPingInterval = 15 * time.Second

	DefaultLedgerBatchSize     = 64
	DefaultLedgerFlushInterval = time.Second
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"

	DefaultTraderName = "trader"
)

// DefaultRegistryURL is where services expect the name service unless
// configured otherwise.
var DefaultRegistryURL = fmt.Sprintf("http://localhost:%d", DefaultRegistryPort)

func (c *MarketConfig) applyDefaults() {
	if c.Instance.Name == "" {
		c.Instance.Name = DefaultMarketName
	}
	c.Server.applyDefaults(DefaultMarketPort)
	if c.Registry.URL == "" {
		c.Registry.URL = DefaultRegistryURL
	}
	if c.Bank.Name == "" {
		c.Bank.Name = DefaultBankName
	}
	if c.Bank.Timeout == 0 {
		c.Bank.Timeout = DefaultBankTimeout
	}
	if c.Bank.MaxRetries == 0 {
		c.Bank.MaxRetries = DefaultBankMaxRetries
	}
	if c.Callbacks.BufferSize == 0 {
		c.Callbacks.BufferSize = DefaultCallbackBufferSize
	}
	if c.Callbacks.WriteTimeout == 0 {
		c.Callbacks.WriteTimeout = DefaultCallbackWriteTimeout
	}
	if c.Callbacks.PingInterval == 0 {
		c.Callbacks.PingInterval = DefaultCallbackPingInterval
	}
	if c.Ledger.BatchSize == 0 {
		c.Ledger.BatchSize = DefaultLedgerBatchSize
	}
	if c.Ledger.FlushInterval == 0 {
		c.Ledger.FlushInterval = DefaultLedgerFlushInterval
	}
	if c.Ledger.DB.Port == 0 {
		c.Ledger.DB.Port = DefaultDBPort
	}
	if c.Ledger.DB.SSLMode == "" {
		c.Ledger.DB.SSLMode = DefaultDBSSLMode
	}
}

func (c *BankConfig) applyDefaults() {
	if c.Instance.Name == "" {
		c.Instance.Name = DefaultBankName
	}
	c.Server.applyDefaults(DefaultBankPort)
	if c.Registry.URL == "" {
		c.Registry.URL = DefaultRegistryURL
	}
}

func (c *RegistryConfig) applyDefaults() {
	c.Server.applyDefaults(DefaultRegistryPort)
}

func (c *TraderConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultTraderName
	}
	if c.Registry.URL == "" {
		c.Registry.URL = DefaultRegistryURL
	}
	if c.Market == "" {
		c.Market = DefaultMarketName
	}
	if c.Bank == "" {
		c.Bank = DefaultBankName
	}
}

func (s *ServerConfig) applyDefaults(port int) {
	if s.Port == 0 {
		s.Port = port
	}
	if s.AdvertiseURL == "" {
		host := s.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		s.AdvertiseURL = fmt.Sprintf("http://%s:%d", host, s.Port)
	}
}
