package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devJWTSecret = "dev-secret-change-in-production-min-32-chars"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	AirMedia AirMediaConfig `mapstructure:"airmedia"`
	Devices  DevicesConfig  `mapstructure:"devices"`
}

type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig points at the optional statistics history store.
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`

	// Retention is how long statistics snapshots are kept. Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention"`
}

type AuthConfig struct {
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Users          []UserConfig  `mapstructure:"users"`
}

// UserConfig is an API operator. PasswordHash is an argon2id hash as printed
// by cmd/hashpw.
type UserConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// AirMediaConfig holds the defaults applied to every inventory device that
// does not set its own value.
type AirMediaConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	VerifyTLS      bool          `mapstructure:"verify_tls"`
}

type DevicesConfig struct {
	InventoryPath string `mapstructure:"inventory_path"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "airmedia")
	v.SetDefault("database.user", "airmedia")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.retention", "168h")

	v.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	v.SetDefault("auth.access_token_ttl", "60m")

	v.SetDefault("airmedia.request_timeout", "30s")
	v.SetDefault("airmedia.poll_interval", "60s")
	v.SetDefault("airmedia.verify_tls", false)

	v.SetDefault("devices.inventory_path", "configs/devices.yaml")

	// AIRMEDIA_SERVER_HTTP_PORT overrides server.http_port and so on.
	v.SetEnvPrefix("AIRMEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.GRPCPort < 0 {
		return fmt.Errorf("invalid config: ports must not be negative")
	}
	if c.AirMedia.PollInterval <= 0 {
		return fmt.Errorf("invalid config: airmedia.poll_interval must be positive")
	}
	if c.AirMedia.RequestTimeout <= 0 {
		return fmt.Errorf("invalid config: airmedia.request_timeout must be positive")
	}
	if c.Database.Retention < 0 {
		return fmt.Errorf("invalid config: database.retention must not be negative")
	}
	if c.Devices.InventoryPath == "" {
		return fmt.Errorf("invalid config: devices.inventory_path is required")
	}

	seen := make(map[string]bool, len(c.Auth.Users))
	for _, u := range c.Auth.Users {
		if u.Username == "" {
			return fmt.Errorf("invalid config: auth user without username")
		}
		if seen[u.Username] {
			return fmt.Errorf("invalid config: duplicate auth user %q", u.Username)
		}
		seen[u.Username] = true

		switch u.Role {
		case "operator", "technician", "admin":
		default:
			return fmt.Errorf("invalid config: user %q has unknown role %q", u.Username, u.Role)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// GetJWTSecret reads the signing secret from the configured environment
// variable and falls back to a development secret.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return devJWTSecret
	}
	return secret
}

func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != devJWTSecret && len(secret) >= 32
}
