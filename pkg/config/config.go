// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/chains/evm"
	"github.com/sigweihq/beatmarket/pkg/store/postgres"
	redisstore "github.com/sigweihq/beatmarket/pkg/store/redis"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Store       StoreConfig       `yaml:"store"`
	Database    postgres.Config   `yaml:"database"`
	Redis       redisstore.Config `yaml:"redis"`
	Pinata      PinataConfig      `yaml:"pinata"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Chains      ChainsConfig      `yaml:"chains"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, postgres, redis
}

// PinataConfig holds the pinning service credentials. Uploads are disabled
// without a JWT.
type PinataConfig struct {
	URL string `yaml:"url"`
	JWT string `yaml:"jwt"`
}

// MarketplaceConfig holds contract settings.
type MarketplaceConfig struct {
	DefaultChain    string `yaml:"default_chain"`
	ContractAddress string `yaml:"contract_address"`
}

// ChainsConfig controls network discovery.
type ChainsConfig struct {
	Discover     bool                       `yaml:"discover"`      // merge chainlist endpoints
	ChainlistURL string                     `yaml:"chainlist_url"` // defaults to chainlist.org
	HealthCheck  bool                       `yaml:"health_check"`  // put healthy endpoints first at startup
	Networks     []chains.NetworkDescriptor `yaml:"networks"`      // added to or replacing the defaults
	Endpoints    map[string][]string        `yaml:"endpoints"`     // chain id -> RPC URLs
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding ${VAR} references from the environment, and
// applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Marketplace.DefaultChain == "" {
		c.Marketplace.DefaultChain = "137"
	}
	if c.Chains.ChainlistURL == "" {
		c.Chains.ChainlistURL = evm.ChainlistURL
	}
	for i := range c.Chains.Networks {
		if c.Chains.Networks[i].Family == "" {
			c.Chains.Networks[i].Family = chains.FamilyEVM
		}
	}
}

// Validate reports settings that cannot work together.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("store driver %q requires database.url", c.Store.Driver)
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("store driver %q requires redis.url", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	for _, n := range c.Chains.Networks {
		if strings.TrimSpace(string(n.ChainID)) == "" {
			return fmt.Errorf("network %q has no id", n.Name)
		}
		if n.Decimals < 0 {
			return fmt.Errorf("network %s has negative decimals", n.ChainID)
		}
	}
	return nil
}

// Registry builds the chain registry: the defaults, then the configured
// networks, then the endpoint overrides.
func (c *AppConfig) Registry() *chains.Registry {
	registry := chains.NewRegistry(chains.DefaultNetworks()...)
	for _, n := range c.Chains.Networks {
		registry.Register(n)
	}
	for id, urls := range c.Chains.Endpoints {
		desc, err := registry.Describe(chains.ChainID(id))
		if err != nil || len(urls) == 0 {
			continue
		}
		desc.RPCURLs = urls
		registry.Register(desc)
	}
	return registry
}
