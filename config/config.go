package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every setting when read from the environment
const EnvPrefix = "TASTING"

// Config holds the runtime settings of the service
type Config struct {
	Bind    string
	Port    int
	GinMode string
	Verbose bool

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL    string
	EventsExchange string

	RateLimit RateLimitConfig

	ShutdownTimeout time.Duration
}

// DSN builds the Postgres connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=disable TimeZone=UTC",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresDB, c.PostgresPassword)
}

// Addr returns the address the HTTP server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt-secret must be set")
	}
	if c.PostgresHost == "" || c.PostgresDB == "" {
		return errors.New("postgres-host and postgres-db must be set")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit values must be positive")
	}
	return nil
}

// BindFlags registers every setting as a flag and binds it to v, so that a
// value is taken from the flag, then TASTING_<NAME>, then the default.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.String("bind", "0.0.0.0", "address to bind to (env: TASTING_BIND)")
	fs.Int("port", 8080, "port to listen on (env: TASTING_PORT)")
	fs.String("gin-mode", "release", "gin mode: debug, release or test (env: TASTING_GIN_MODE)")
	fs.BoolP("verbose", "v", false, "log debug output in text format (env: TASTING_VERBOSE)")
	fs.String("postgres-host", "localhost", "postgres host (env: TASTING_POSTGRES_HOST or POSTGRES_HOST)")
	fs.String("postgres-port", "5432", "postgres port (env: TASTING_POSTGRES_PORT or POSTGRES_PORT)")
	fs.String("postgres-user", "postgres", "postgres user (env: TASTING_POSTGRES_USER or POSTGRES_USER)")
	fs.String("postgres-password", "", "postgres password (env: TASTING_POSTGRES_PASSWORD or POSTGRES_PASSWORD)")
	fs.String("postgres-db", "tasting", "postgres database (env: TASTING_POSTGRES_DB or POSTGRES_DB)")
	fs.String("jwt-secret", "", "HMAC secret used to verify bearer tokens (env: TASTING_JWT_SECRET or JWT_SECRET)")
	fs.String("redis-addr", "", "redis address for cross-instance realtime fan-out, empty to disable (env: TASTING_REDIS_ADDR)")
	fs.String("redis-password", "", "redis password (env: TASTING_REDIS_PASSWORD)")
	fs.Int("redis-db", 0, "redis database number (env: TASTING_REDIS_DB)")
	fs.String("rabbitmq-url", "", "AMQP url for domain events, empty to disable (env: TASTING_RABBITMQ_URL)")
	fs.String("events-exchange", "tasting.events", "AMQP topic exchange for domain events (env: TASTING_EVENTS_EXCHANGE)")
	fs.Float64("rate-limit-rps", DefaultRateLimitConfig.RequestsPerSecond, "requests per second allowed per client IP (env: TASTING_RATE_LIMIT_RPS)")
	fs.Int("rate-limit-burst", DefaultRateLimitConfig.Burst, "burst allowed per client IP (env: TASTING_RATE_LIMIT_BURST)")
	fs.Duration("shutdown-timeout", 10*time.Second, "time allowed for graceful shutdown (env: TASTING_SHUTDOWN_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// NewViper returns a viper instance reading TASTING_* environment variables.
// The unprefixed POSTGRES_* and JWT_SECRET names are accepted too.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"postgres-host", "postgres-port", "postgres-user", "postgres-password", "postgres-db", "jwt-secret"} {
		envKey := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		_ = v.BindEnv(key, EnvPrefix+"_"+envKey, envKey)
	}
	return v
}

// LoadEnvFile loads a .env file into the process environment when present
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := godotenv.Read(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load resolves the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Bind:             v.GetString("bind"),
		Port:             v.GetInt("port"),
		GinMode:          v.GetString("gin-mode"),
		Verbose:          v.GetBool("verbose"),
		PostgresHost:     v.GetString("postgres-host"),
		PostgresPort:     v.GetString("postgres-port"),
		PostgresUser:     v.GetString("postgres-user"),
		PostgresPassword: v.GetString("postgres-password"),
		PostgresDB:       v.GetString("postgres-db"),
		JWTSecret:        v.GetString("jwt-secret"),
		RedisAddr:        v.GetString("redis-addr"),
		RedisPassword:    v.GetString("redis-password"),
		RedisDB:          v.GetInt("redis-db"),
		RabbitMQURL:      v.GetString("rabbitmq-url"),
		EventsExchange:   v.GetString("events-exchange"),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate-limit-rps"),
			Burst:             v.GetInt("rate-limit-burst"),
		},
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
