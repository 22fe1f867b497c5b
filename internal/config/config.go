package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage drivers understood by cmd/api.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

type AppConfig struct {
	ListenAddr string        `yaml:"listen_addr" env:"CAPWA_LISTEN_ADDR" env-default:":8080"`
	GRPCAddr   string        `yaml:"grpc_addr" env:"CAPWA_GRPC_ADDR" env-default:":9090"`
	Storage    StorageConfig `yaml:"storage"`
	Auth       AuthConfig    `yaml:"auth"`
	Audit      AuditConfig   `yaml:"audit"`
	Stats      StatsConfig   `yaml:"stats"`
	HTTP       HTTPConfig    `yaml:"http"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver" env:"CAPWA_STORAGE_DRIVER" env-default:"memory"`
	PostgresDSN   string `yaml:"postgres_dsn" env:"CAPWA_PG_DSN"`
	SQLitePath    string `yaml:"sqlite_path" env:"CAPWA_SQLITE_PATH" env-default:"data/capwa.db"`
	RedisAddr     string `yaml:"redis_addr" env:"CAPWA_REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"CAPWA_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"CAPWA_REDIS_DB" env-default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" env:"CAPWA_REDIS_PREFIX" env-default:"capwa"`
}

type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret" env:"CAPWA_AUTH_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"CAPWA_TOKEN_TTL" env-default:"1h"`
	Issuer      string        `yaml:"issuer" env:"CAPWA_TOKEN_ISSUER" env-default:"capwa"`
	Admin       AdminSeed     `yaml:"bootstrap_admin"`
}

// AdminSeed describes the account created on first start when missing.
type AdminSeed struct {
	Email    string `yaml:"email" env:"CAPWA_ADMIN_EMAIL"`
	Password string `yaml:"password" env:"CAPWA_ADMIN_PASSWORD"`
	Name     string `yaml:"name" env:"CAPWA_ADMIN_NAME" env-default:"Administrator"`
}

type AuditConfig struct {
	Retention int `yaml:"retention" env:"CAPWA_AUDIT_RETENTION" env-default:"100"`
}

type StatsConfig struct {
	ActiveWindow time.Duration `yaml:"active_window" env:"CAPWA_ACTIVE_WINDOW" env-default:"720h"`
}

type HTTPConfig struct {
	RateBurst    int   `yaml:"rate_burst" env:"CAPWA_RATE_BURST" env-default:"20"`
	RatePerSec   int   `yaml:"rate_per_sec" env:"CAPWA_RATE_PER_SEC" env-default:"10"`
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"CAPWA_MAX_BODY_BYTES" env-default:"1048576"`
	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is believed.
	TrustedProxies []string `yaml:"trusted_proxies" env:"CAPWA_TRUSTED_PROXIES" env-separator:","`
}

// Load reads path (YAML) when given, otherwise the environment only.
// Environment variables override values from the file.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	var err error
	if strings.TrimSpace(path) != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if strings.TrimSpace(c.Auth.TokenSecret) == "" {
		return errors.New("config: auth token secret is required (CAPWA_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: token ttl must be positive")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return errors.New("config: postgres driver requires CAPWA_PG_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Audit.Retention <= 0 {
		return errors.New("config: audit retention must be positive")
	}
	if (c.Auth.Admin.Email == "") != (c.Auth.Admin.Password == "") {
		return errors.New("config: bootstrap admin needs both email and password")
	}
	return nil
}
