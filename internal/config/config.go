package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingBaseURI = errors.New("indexer.base_uri is required")
	ErrNoChains       = errors.New("at least one chain must be configured")
)

type Config struct {
	Indexer struct {
		BaseURI   string `yaml:"base_uri"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"indexer"`
	Chains         []uint64 `yaml:"chains"`
	DefaultChainID uint64   `yaml:"default_chain_id"`
	Polling        struct {
		RefreshMs int `yaml:"refresh_ms"`
		Workers   int `yaml:"workers"`
	} `yaml:"polling"`
	Catalog struct {
		Categories map[string]bool `yaml:"categories"`
		Partners   map[string]bool `yaml:"partners"`
	} `yaml:"catalog"`
	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Indexer.TimeoutMs == 0 {
		c.Indexer.TimeoutMs = 10000
	}
	if c.Polling.RefreshMs == 0 {
		c.Polling.RefreshMs = 60000
	}
	if c.Polling.Workers == 0 {
		c.Polling.Workers = 4
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "catalog.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.DefaultChainID == 0 && len(c.Chains) > 0 {
		c.DefaultChainID = c.Chains[0]
	}
}

// Validate rejects deployments that cannot work at all. These are hard failures.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Indexer.BaseURI) == "" {
		return ErrMissingBaseURI
	}
	if len(c.Chains) == 0 {
		return ErrNoChains
	}
	return nil
}

func (c *Config) IndexerTimeout() time.Duration {
	return time.Duration(c.Indexer.TimeoutMs) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Polling.RefreshMs) * time.Millisecond
}
