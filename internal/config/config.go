package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const EnvDevelopment = "development"

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Auth       AuthConfig       `toml:"auth"`
	Settlement SettlementConfig `toml:"settlement"`
	Database   DatabaseConfig   `toml:"database"`
	Network    NetworkConfig    `toml:"network"`
	Data       DataConfig       `toml:"data"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Logging    LoggingConfig    `toml:"logging"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
}

type ServerConfig struct {
	Name string `toml:"name"`
	Env  string `toml:"env"`  // "development" or "production"
	Port int    `toml:"port"` // required outside development
}

type AuthConfig struct {
	// BackendPublicKey is the PEM RS256 key tokens are verified against.
	// Empty disables verification: the authenticate token is taken as the
	// user id (development mode only).
	BackendPublicKey string `toml:"backend_public_key"`
}

type SettlementConfig struct {
	Endpoint   string `toml:"endpoint"`
	PrivateKey string `toml:"private_key"` // PEM RS256 signing key
}

type DatabaseConfig struct {
	// DSN enables the trade audit log when set; empty runs without a database.
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	InQueueSize  int           `toml:"in_queue_size"`
	OutQueueSize int           `toml:"out_queue_size"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type DataConfig struct {
	// ItemsFile points at the YAML item catalog; empty disables the
	// non-tradeable item check.
	ItemsFile string `toml:"items_file"`
}

type ScriptingConfig struct {
	// Dir holds operator Lua hooks; empty disables scripting.
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled         bool `toml:"enabled"`
	EventsPerSecond int  `toml:"events_per_second"`
}

// Load reads the TOML config file (missing file falls back to defaults),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv maps the deployment environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BACKEND_PUBLIC_KEY"); v != "" {
		c.Auth.BackendPublicKey = v
	}
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		c.Settlement.PrivateKey = v
	}
	if v := os.Getenv("PERFORM_TRADE_ENDPOINT"); v != "" {
		c.Settlement.Endpoint = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
}

// Validate enforces the boot-time requirements. Outside development every
// deployment variable is mandatory. Settlement without token verification is
// always refused: unauthenticated user ids cannot be bound to real accounts
// in the settlement backend.
func (c *Config) Validate() error {
	dev := c.Server.Env == EnvDevelopment

	if !dev {
		var missing []string
		if c.Server.Port == 0 {
			missing = append(missing, "PORT")
		}
		if c.Auth.BackendPublicKey == "" {
			missing = append(missing, "BACKEND_PUBLIC_KEY")
		}
		if c.Settlement.PrivateKey == "" {
			missing = append(missing, "PRIVATE_KEY")
		}
		if c.Settlement.Endpoint == "" {
			missing = append(missing, "PERFORM_TRADE_ENDPOINT")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required configuration: %v", missing)
		}
	}

	if c.SettlementEnabled() && c.Auth.BackendPublicKey == "" {
		return fmt.Errorf("settlement is configured but authentication is disabled")
	}

	return nil
}

// SettlementEnabled reports whether completed trades are dispatched to the
// external settlement endpoint.
func (c *Config) SettlementEnabled() bool {
	return c.Settlement.Endpoint != "" && c.Settlement.PrivateKey != ""
}

// BindAddress returns the listen address for the websocket server.
func (c *Config) BindAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "tradegate",
			Env:  EnvDevelopment,
			Port: 8081,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			InQueueSize:  64,
			OutQueueSize: 128,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			EventsPerSecond: 30,
		},
	}
}
