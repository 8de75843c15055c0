package config

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/vidtube/vidtube/pkg/config"
)

const (
	defaultAccessSecret  = "change-this-access-token-secret"
	defaultRefreshSecret = "change-this-refresh-token-secret"
	minSecretLength      = 32
)

// Config holds all configuration for the vidtube service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8000"`

	// Storage backend for accounts and media: "postgres" or "memory".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"vidtube"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"vidtube_secret"`
	PostgresDB            string `env:"POSTGRES_DB" envDefault:"vidtube"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	RedisTimeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"250ms"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// JWT
	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET" envDefault:"change-this-access-token-secret"`
	AccessTokenExpiry  string `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET" envDefault:"change-this-refresh-token-secret"`
	RefreshTokenExpiry string `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`

	// Password hashing
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Cookies
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain string `env:"COOKIE_DOMAIN" envDefault:""`

	// Media storage: "s3" or "memory".
	MediaDriver         string `env:"MEDIA_DRIVER" envDefault:"s3"`
	MediaMaxUploadBytes int64  `env:"MEDIA_MAX_UPLOAD_BYTES" envDefault:"5242880"`
	S3Endpoint          string `env:"S3_ENDPOINT" envDefault:""`
	S3Region            string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket            string `env:"S3_BUCKET" envDefault:"vidtube-media"`
	S3AccessKey         string `env:"S3_ACCESS_KEY" envDefault:""`
	S3SecretKey         string `env:"S3_SECRET_KEY" envDefault:""`
	S3PublicBaseURL     string `env:"S3_PUBLIC_BASE_URL" envDefault:""`
	S3UsePathStyle      bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	// Login rate limiting
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"10"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`

	// Per-IP throttling of register, login and refresh. Zero RPS disables it.
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"20"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("load vidtube config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StorageBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: want postgres or memory", c.StorageBackend)
	}
	switch c.MediaDriver {
	case "s3", "memory":
	default:
		return fmt.Errorf("invalid MEDIA_DRIVER %q: want s3 or memory", c.MediaDriver)
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	// In non-development environments, require explicitly set, strong secrets.
	if c.Environment != "development" {
		if c.AccessTokenSecret == defaultAccessSecret {
			return fmt.Errorf("ACCESS_TOKEN_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if c.RefreshTokenSecret == defaultRefreshSecret {
			return fmt.Errorf("REFRESH_TOKEN_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.AccessTokenSecret) < minSecretLength {
			return fmt.Errorf("ACCESS_TOKEN_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.AccessTokenSecret))
		}
		if len(c.RefreshTokenSecret) < minSecretLength {
			return fmt.Errorf("REFRESH_TOKEN_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.RefreshTokenSecret))
		}
	}

	var err error
	if c.accessExpiry, err = time.ParseDuration(c.AccessTokenExpiry); err != nil {
		return fmt.Errorf("parse ACCESS_TOKEN_EXPIRY %q: %w", c.AccessTokenExpiry, err)
	}
	if c.refreshExpiry, err = time.ParseDuration(c.RefreshTokenExpiry); err != nil {
		return fmt.Errorf("parse REFRESH_TOKEN_EXPIRY %q: %w", c.RefreshTokenExpiry, err)
	}
	if c.accessExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be positive, got %s", c.accessExpiry)
	}
	if c.refreshExpiry <= c.accessExpiry {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRY (%s) must exceed ACCESS_TOKEN_EXPIRY (%s)", c.refreshExpiry, c.accessExpiry)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.LoginMaxAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got %d", c.LoginMaxAttempts)
	}
	if c.AuthRateLimitRPS < 0 || (c.AuthRateLimitRPS > 0 && c.AuthRateLimitBurst < 1) {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS must be >= 0 with a positive AUTH_RATE_LIMIT_BURST")
	}
	if c.MediaMaxUploadBytes < 1 {
		return fmt.Errorf("MEDIA_MAX_UPLOAD_BYTES must be positive, got %d", c.MediaMaxUploadBytes)
	}
	return nil
}

// AccessExpiry returns the parsed access token lifetime.
func (c *Config) AccessExpiry() time.Duration { return c.accessExpiry }

// RefreshExpiry returns the parsed refresh token lifetime.
func (c *Config) RefreshExpiry() time.Duration { return c.refreshExpiry }

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool { return c.Environment == "development" }
