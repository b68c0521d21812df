package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// MaxPepperBytes bounds PASSWORD_PEPPER so that peppered passwords still fit
// the 72 byte hasher limit with room to spare.
const MaxPepperBytes = 32

type Config struct {
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	HashAlgorithm  string
	HashWorkFactor int
	PasswordPepper string

	StoreDriver     string
	StoreTimeout    time.Duration
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	RedisAddress    string
	RedisPassword   string
	RedisDB         int
	AccountCacheTTL time.Duration

	HTTPAddress      string
	GRPCAddress      string
	HTTPSCertFile    string
	HTTPSKeyFile     string
	AllowedOrigins   []string
	AllowCredentials bool
	CookieDomain     string
	RateLimitRPS     int
	RateLimitBurst   int

	LogLevel string
}

var keys = []string{
	"JWT_SECRET", "JWT_ISSUER", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"HASH_ALGORITHM", "HASH_WORK_FACTOR", "PASSWORD_PEPPER",
	"STORE_DRIVER", "STORE_TIMEOUT", "DATABASE_URL", "MONGO_URI", "MONGO_DATABASE",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "ACCOUNT_CACHE_TTL",
	"HTTP_ADDRESS", "GRPC_ADDRESS", "HTTPS_CERT_FILE", "HTTPS_KEY_FILE",
	"ALLOWED_ORIGINS", "ALLOW_CREDENTIALS", "COOKIE_DOMAIN",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL",
}

// Load reads config.json from the working directory when present and lets
// environment variables override it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	v.SetDefault("ACCESS_TOKEN_TTL", 2*time.Hour)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("HASH_ALGORITHM", "bcrypt")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("STORE_TIMEOUT", 5*time.Second)
	v.SetDefault("MONGO_DATABASE", "credentials")
	v.SetDefault("ACCOUNT_CACHE_TTL", 10*time.Minute)
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("GRPC_ADDRESS", ":50051")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("LOG_LEVEL", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTIssuer:       v.GetString("JWT_ISSUER"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),

		HashAlgorithm:  v.GetString("HASH_ALGORITHM"),
		HashWorkFactor: v.GetInt("HASH_WORK_FACTOR"),
		PasswordPepper: v.GetString("PASSWORD_PEPPER"),

		StoreDriver:     v.GetString("STORE_DRIVER"),
		StoreTimeout:    v.GetDuration("STORE_TIMEOUT"),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		MongoURI:        v.GetString("MONGO_URI"),
		MongoDatabase:   v.GetString("MONGO_DATABASE"),
		RedisAddress:    v.GetString("REDIS_ADDRESS"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		AccountCacheTTL: v.GetDuration("ACCOUNT_CACHE_TTL"),

		HTTPAddress:      v.GetString("HTTP_ADDRESS"),
		GRPCAddress:      v.GetString("GRPC_ADDRESS"),
		HTTPSCertFile:    v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:     v.GetString("HTTPS_KEY_FILE"),
		AllowedOrigins:   splitList(v.GetString("ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("ALLOW_CREDENTIALS"),
		CookieDomain:     v.GetString("COOKIE_DOMAIN"),
		RateLimitRPS:     v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if len(c.PasswordPepper) > MaxPepperBytes {
		return fmt.Errorf("PASSWORD_PEPPER must be at most %d bytes", MaxPepperBytes)
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if (c.HTTPSCertFile == "") != (c.HTTPSKeyFile == "") {
		return errors.New("HTTPS_CERT_FILE and HTTPS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.HTTPSCertFile != "" && c.HTTPSKeyFile != ""
}

// splitList accepts "a,b" as well as the JSON-ish `["a","b"]` form.
func splitList(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
