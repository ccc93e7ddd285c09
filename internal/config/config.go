package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	Redis    RedisConfig
	PDF      PDFConfig
	Upload   UploadConfig
	Settings SettingsConfig
}

// Load reads the configuration from the environment. Each field resolves from
// its bare key (PORT, DATABASE_URL, ...).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if strings.TrimSpace(cfg.DB.URL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(cfg.App.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.App.Timezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env         string `envconfig:"BIERSERV_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8081"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	Timezone    string `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "production") || strings.EqualFold(a.Env, "prod")
}

// Location returns the configured business timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(a.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DBConfig struct {
	URL         string `envconfig:"DATABASE_URL" required:"true"`
	MaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

type JWTConfig struct {
	Secret     string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTTL  time.Duration `envconfig:"ACCESS_TTL" default:"15m"`
	RefreshTTL time.Duration `envconfig:"REFRESH_TTL" default:"168h"`
}

// RedisConfig is optional; an empty URL disables every Redis-backed feature.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type PDFConfig struct {
	ChromePath string        `envconfig:"CHROME_PATH"`
	Timeout    time.Duration `envconfig:"PDF_TIMEOUT" default:"30s"`
}

type UploadConfig struct {
	Dir          string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	BaseURL      string `envconfig:"UPLOAD_BASE_URL" default:"/uploads"`
	MaxMB        int64  `envconfig:"UPLOAD_MAX_MB" default:"5"`
	ImageMaxDim  int    `envconfig:"IMAGE_MAX_DIM" default:"1200"`
	ImageQuality int    `envconfig:"IMAGE_QUALITY" default:"85"`
}

// MaxBytes is the upload limit in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return u.MaxMB << 20
}

type SettingsConfig struct {
	CacheTTL time.Duration `envconfig:"SETTINGS_CACHE_TTL" default:"30s"`
}
