package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port          int    `toml:"port"`
	JWTSecret     string `toml:"jwt_secret"`
	RateLimit     int    `toml:"rate_limit"`      // requests per window
	RateWindowSec int    `toml:"rate_window_sec"` // window length in seconds
}

type BlacklistConfig struct {
	Addr       string `toml:"addr"`        // host:port of the blacklist service
	TimeoutSec int    `toml:"timeout_sec"` // per-call dial+IO deadline
}

type BlacklistServiceConfig struct {
	Listen    string `toml:"listen"`     // listen address for the service binary
	DataDir   string `toml:"data_dir"`   // bloom state file + URL database
	BloomBits uint64 `toml:"bloom_bits"` // bit array size
	BloomHash int    `toml:"bloom_hash"` // number of hash functions
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type UsersConfig struct {
	Seed []string `toml:"seed"` // mailboxes provisioned at startup
}

type Config struct {
	Server           ServerConfig           `toml:"server"`
	Blacklist        BlacklistConfig        `toml:"blacklist"`
	BlacklistService BlacklistServiceConfig `toml:"blacklist_service"`
	Storage          StorageConfig          `toml:"storage"`
	Users            UsersConfig            `toml:"users"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Server.RateLimit = 100
	config.Server.RateWindowSec = 60
	config.Blacklist.Addr = "127.0.0.1:8080"
	config.Blacklist.TimeoutSec = 5
	config.BlacklistService.Listen = ":8080"
	config.BlacklistService.DataDir = "./data/blacklist"
	config.BlacklistService.BloomBits = 1 << 16
	config.BlacklistService.BloomHash = 2
	config.Storage.DataDir = "./data"

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &config, nil
}

// Validate checks the loaded configuration for values the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 || c.Server.RateWindowSec < 1 {
		return fmt.Errorf("server.rate_limit and server.rate_window_sec must be positive")
	}
	if c.Blacklist.TimeoutSec <= 0 {
		return fmt.Errorf("blacklist.timeout_sec must be positive")
	}
	if c.BlacklistService.BloomBits == 0 {
		return fmt.Errorf("blacklist_service.bloom_bits must be positive")
	}
	if c.BlacklistService.BloomHash < 1 {
		return fmt.Errorf("blacklist_service.bloom_hash must be at least 1")
	}
	return nil
}
