package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
		Mode string `yaml:"mode" env:"SERVER_MODE"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	// Library holds the lending rules shared by the ledger, imports and dashboards.
	Library struct {
		DailyFineRate      int64 `yaml:"daily_fine_rate" env:"LIBRARY_DAILY_FINE_RATE"`
		LoanPeriodDays     int   `yaml:"loan_period_days" env:"LIBRARY_LOAN_PERIOD_DAYS"`
		RenewalDays        int   `yaml:"renewal_days" env:"LIBRARY_RENEWAL_DAYS"`
		MaxRenewals        int   `yaml:"max_renewals" env:"LIBRARY_MAX_RENEWALS"`
		LowStockThreshold  int   `yaml:"low_stock_threshold" env:"LIBRARY_LOW_STOCK_THRESHOLD"`
		ImportMessageLimit int   `yaml:"import_message_limit" env:"LIBRARY_IMPORT_MESSAGE_LIMIT"`
		ImportMaxBytes     int64 `yaml:"import_max_bytes" env:"LIBRARY_IMPORT_MAX_BYTES"`

		// OverdueSweepSchedule is a cron spec ("@hourly", "*/15 * * * *"); empty turns the background sweep off.
		OverdueSweepSchedule string `yaml:"overdue_sweep_schedule" env:"LIBRARY_OVERDUE_SWEEP_SCHEDULE"`
	} `yaml:"library"`

	Seed struct {
		AdminUsername string `yaml:"admin_username" env:"SEED_ADMIN_USERNAME"`
		AdminPassword string `yaml:"admin_password" env:"SEED_ADMIN_PASSWORD"`
	} `yaml:"seed"`
}

// LoadConfig loads configuration from a file, an optional .env file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "schoollib"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"

	config.JWT.AccessTokenExpiration = "12h"
	config.JWT.Issuer = "schoollib.app"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Library.DailyFineRate = 1000
	config.Library.LoanPeriodDays = 14
	config.Library.RenewalDays = 14
	config.Library.MaxRenewals = 2
	config.Library.LowStockThreshold = 2
	config.Library.ImportMessageLimit = 10
	config.Library.ImportMaxBytes = 5 << 20
	config.Library.OverdueSweepSchedule = "@hourly"

	config.Seed.AdminUsername = "admin"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.JWT.AccessTokenExpiration); err != nil {
		return fmt.Errorf("invalid JWT access token expiration format: %w", err)
	}

	if config.Library.DailyFineRate < 0 {
		return fmt.Errorf("library daily fine rate cannot be negative")
	}
	if config.Library.LoanPeriodDays <= 0 || config.Library.RenewalDays <= 0 {
		return fmt.Errorf("library loan period and renewal days must be positive")
	}
	if config.Library.MaxRenewals < 0 {
		return fmt.Errorf("library max renewals cannot be negative")
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
