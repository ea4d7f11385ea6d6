package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   Storage         `yaml:"storage"`
	Inventory InventoryConfig `yaml:"inventory"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	AdminPort int    `yaml:"admin_port"`
	TickRate  int    `yaml:"tick_rate"` // Hz
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyFile       string `yaml:"public_key_file"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
	AdminPermission     int64  `yaml:"admin_permission"` // bit in the permissions claim
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
}

// Storage selects and configures the inventory persistence backend.
type Storage struct {
	Backend         string `yaml:"backend"`
	Path            string `yaml:"path"` // file dir or sqlite db file
	DSN             string `yaml:"dsn"`  // postgres
	KeyPrefix       string `yaml:"key_prefix"`
	AutosaveSeconds int    `yaml:"autosave_seconds"` // 0 disables autosave
}

// InventoryConfig describes the inventory a new owner starts with.
type InventoryConfig struct {
	Category string `yaml:"category"`
	Bags     []int  `yaml:"bags"`
}

// CatalogConfig points at the static definitions file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, then applies a .env file (if
// present) and environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AdminPort == 0 {
		c.Server.AdminPort = 8081
	}
	if c.Server.TickRate == 0 {
		c.Server.TickRate = 20
	}
	if c.JWT.PublicKeyRefreshHrs == 0 {
		c.JWT.PublicKeyRefreshHrs = 24
	}
	if c.JWT.AdminPermission == 0 {
		c.JWT.AdminPermission = 1
	}
	if c.Redis.BlacklistPrefix == "" {
		c.Redis.BlacklistPrefix = "blacklist:"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "inventory:"
	}
	if c.Inventory.Category == "" {
		c.Inventory.Category = "general"
	}
	if len(c.Inventory.Bags) == 0 {
		c.Inventory.Bags = []int{16}
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/definitions.yaml"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := getenv("STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := getenv("CATALOG_PATH"); v != "" {
		c.Catalog.Path = v
	}
	if v := getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := getenv("ADMIN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_PORT %q: %w", v, err)
		}
		c.Server.AdminPort = port
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.AdminPort < 0 || c.Server.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("server.admin_port %d out of range", c.Server.AdminPort))
	}
	if c.Server.AdminPort != 0 && c.Server.AdminPort == c.Server.Port {
		errs = append(errs, errors.New("server.admin_port must differ from server.port"))
	}
	if c.Server.TickRate <= 0 || c.Server.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("server.tick_rate %d must be in 1..1000", c.Server.TickRate))
	}
	if c.JWT.AdminPermission < 0 {
		errs = append(errs, errors.New("jwt.admin_permission must not be negative"))
	}
	for i, capacity := range c.Inventory.Bags {
		if capacity <= 0 {
			errs = append(errs, fmt.Errorf("inventory.bags[%d] capacity must be positive", i))
		}
	}
	if c.Storage.AutosaveSeconds < 0 {
		errs = append(errs, errors.New("storage.autosave_seconds must not be negative"))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path required for %s backend", c.Storage.Backend))
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn required for postgres backend"))
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			errs = append(errs, errors.New("redis.address required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}
