package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"store-monitor/pkg/database"
)

// Store universe choices for which stores get a report row.
const (
	UniverseObservations  = "observations"
	UniverseBusinessHours = "business_hours"
	UniverseUnion         = "union"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Report   ReportConfig   `yaml:"report"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ReportConfig tunes report computation and job execution.
type ReportConfig struct {
	DefaultTimezone   string `yaml:"default_timezone"`
	StoreUniverse     string `yaml:"store_universe"`
	FallbackStatus    string `yaml:"fallback_status"`
	Workers           int    `yaml:"workers"`
	StoreBatchSize    int    `yaml:"store_batch_size"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	ReportsDir        string `yaml:"reports_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			Database:        "store_monitoring",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		Report: ReportConfig{
			DefaultTimezone:   "America/Chicago",
			StoreUniverse:     UniverseObservations,
			FallbackStatus:    "active",
			Workers:           8,
			StoreBatchSize:    500,
			MaxConcurrentJobs: 2,
			ReportsDir:        "reports",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file named by
// STORE_MONITOR_CONFIG, and environment overrides, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("STORE_MONITOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString(&cfg.Server.Host, "SERVER_HOST")
	errs = append(errs, setInt(&cfg.Server.Port, "SERVER_PORT"))
	errs = append(errs, setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT"))
	errs = append(errs, setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT"))
	errs = append(errs, setDuration(&cfg.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT"))

	setString(&cfg.Database.Host, "DB_HOST")
	errs = append(errs, setInt(&cfg.Database.Port, "DB_PORT"))
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Database, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	errs = append(errs, setInt(&cfg.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS"))
	errs = append(errs, setInt(&cfg.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS"))
	errs = append(errs, setDuration(&cfg.Database.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME"))
	errs = append(errs, setDuration(&cfg.Database.ConnMaxIdleTime, "DB_CONN_MAX_IDLE_TIME"))

	setString(&cfg.Logging.Level, "LOG_LEVEL")

	setString(&cfg.Report.DefaultTimezone, "REPORT_DEFAULT_TIMEZONE")
	setString(&cfg.Report.StoreUniverse, "REPORT_STORE_UNIVERSE")
	setString(&cfg.Report.FallbackStatus, "REPORT_FALLBACK_STATUS")
	errs = append(errs, setInt(&cfg.Report.Workers, "REPORT_WORKERS"))
	errs = append(errs, setInt(&cfg.Report.StoreBatchSize, "REPORT_STORE_BATCH_SIZE"))
	errs = append(errs, setInt(&cfg.Report.MaxConcurrentJobs, "REPORT_MAX_CONCURRENT_JOBS"))
	if v, ok := os.LookupEnv("REPORT_REPORTS_DIR"); ok {
		cfg.Report.ReportsDir = v
	}

	return errors.Join(errs...)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database pool sizes must not be negative"))
	}

	switch c.Report.StoreUniverse {
	case UniverseObservations, UniverseBusinessHours, UniverseUnion:
	default:
		errs = append(errs, fmt.Errorf("report.store_universe must be one of %s, %s, %s: got %q",
			UniverseObservations, UniverseBusinessHours, UniverseUnion, c.Report.StoreUniverse))
	}
	switch strings.ToLower(c.Report.FallbackStatus) {
	case "active", "inactive":
	default:
		errs = append(errs, fmt.Errorf("report.fallback_status must be active or inactive: got %q", c.Report.FallbackStatus))
	}
	if c.Report.DefaultTimezone == "" {
		errs = append(errs, errors.New("report.default_timezone is required"))
	} else if _, err := time.LoadLocation(c.Report.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("report.default_timezone: %w", err))
	}
	if c.Report.Workers <= 0 {
		errs = append(errs, fmt.Errorf("report.workers must be positive: %d", c.Report.Workers))
	}
	if c.Report.StoreBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("report.store_batch_size must be positive: %d", c.Report.StoreBatchSize))
	}
	if c.Report.MaxConcurrentJobs <= 0 {
		errs = append(errs, fmt.Errorf("report.max_concurrent_jobs must be positive: %d", c.Report.MaxConcurrentJobs))
	}

	return errors.Join(errs...)
}

// ConnConfig converts the database section into pool settings.
func (d DatabaseConfig) ConnConfig() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}
