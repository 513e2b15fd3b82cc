package config

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	RealtimeLocal    = "local"
	RealtimePostgres = "postgres"
)

type Config struct {
	DBDriver   string `env:"DB_DRIVER" env-default:"postgres"`
	DBHost     string `env:"DB_HOST" env-default:"localhost"`
	DBPort     string `env:"DB_PORT" env-default:"5432"`
	DBUser     string `env:"DB_USER" env-default:"taskboard"`
	DBPassword string `env:"DB_PASSWORD" env-default:"taskboard"`
	DBName     string `env:"DB_NAME" env-default:"taskboard"`
	SQLitePath string `env:"SQLITE_PATH" env-default:"data/taskboard.db"`

	ServerPort     string `env:"SERVER_PORT" env-default:"8080"`
	JWTSecret      string `env:"JWT_SECRET" env-default:"supersecretkey"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" env-default:"72"`
	LogLevel       string `env:"LOG_LEVEL" env-default:"INFO"`

	RealtimeBackend     string `env:"REALTIME_BACKEND" env-default:"local"`
	RealtimePingSeconds int    `env:"REALTIME_PING_SECONDS" env-default:"25"`
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.RealtimeBackend {
	case RealtimeLocal:
	case RealtimePostgres:
		if c.DBDriver != DriverPostgres {
			return fmt.Errorf("REALTIME_BACKEND=postgres requires DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported REALTIME_BACKEND %q", c.RealtimeBackend)
	}
	if c.JWTExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	return nil
}

// PostgresDSN is the keyword/value form understood by gorm and pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// PostgresURL is the URL form golang-migrate expects, under the pgx5 scheme.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

func (c *Config) PingInterval() time.Duration {
	if c.RealtimePingSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.RealtimePingSeconds) * time.Second
}
