package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	AllowedOrigin  string        `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	ReportCacheTTL time.Duration `envconfig:"REPORT_CACHE_TTL" default:"30s"`
	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`
	LoginDomain    string        `envconfig:"LOGIN_DOMAIN" default:"agrokoperasi.my"`
	SeedDemo       bool          `envconfig:"SEED_DEMO" default:"true"`

	BootstrapAdminUsername string `envconfig:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`

	AuditJournalPath string `envconfig:"AUDIT_JOURNAL_PATH"`

	ExportBucket    string `envconfig:"EXPORT_S3_BUCKET"`
	ExportRegion    string `envconfig:"EXPORT_S3_REGION" default:"ap-southeast-1"`
	ExportEndpoint  string `envconfig:"EXPORT_S3_ENDPOINT"`
	ExportPathStyle bool   `envconfig:"EXPORT_S3_PATH_STYLE" default:"false"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("processing env: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.LoginDomain = strings.TrimPrefix(strings.TrimSpace(cfg.LoginDomain), "@")
	if cfg.ReportCacheTTL < time.Second {
		cfg.ReportCacheTTL = 30 * time.Second
	}
	if cfg.AccessTokenTTL < time.Minute {
		cfg.AccessTokenTTL = 24 * time.Hour
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
