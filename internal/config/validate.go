package config

import (
	"errors"
	"fmt"
)

// Validate checks that required fields are set and values are sane.
func (c *MarketConfig) Validate() error {
	if c.Instance.Name == "" {
		return errors.New("instance.name is required")
	}
	if err := c.Server.validate("server"); err != nil {
		return err
	}
	if c.Registry.URL == "" {
		return errors.New("registry.url is required")
	}
	if c.Bank.Name == "" {
		return errors.New("bank.name is required")
	}
	if c.Callbacks.BufferSize < 1 {
		return errors.New("callbacks.buffer_size must be >= 1")
	}
	if c.Ledger.Enabled {
		if err := c.Ledger.DB.validate("ledger.db"); err != nil {
			return err
		}
		if c.Ledger.BatchSize < 1 {
			return errors.New("ledger.batch_size must be >= 1")
		}
	}
	return nil
}

// Validate checks bankd settings.
func (c *BankConfig) Validate() error {
	if c.Instance.Name == "" {
		return errors.New("instance.name is required")
	}
	if err := c.Server.validate("server"); err != nil {
		return err
	}
	if c.Registry.URL == "" {
		return errors.New("registry.url is required")
	}
	return nil
}

// Validate checks registryd settings.
func (c *RegistryConfig) Validate() error {
	return c.Server.validate("server")
}

// Validate checks trader CLI settings.
func (c *TraderConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Registry.URL == "" {
		return errors.New("registry.url is required")
	}
	return nil
}

func (s *ServerConfig) validate(prefix string) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, s.Port)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	return nil
}
