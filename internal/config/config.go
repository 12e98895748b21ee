package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Company    CompanyConfig    `mapstructure:"company"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// SMTPConfig holds outbound mail transport configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// StorageConfig holds the S3 document store configuration. With
// Enabled false the service runs without document attachment support.
type StorageConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

// SweepConfig holds the background sweep cadence. Deadline reminders
// run daily at DeadlineHour; overdue detection and outbox draining run
// on their own intervals. Granularity is deliberately configuration,
// not a constant.
type SweepConfig struct {
	DeadlineHour           int `mapstructure:"deadline_hour"`
	OverdueIntervalMinutes int `mapstructure:"overdue_interval_minutes"`
	DispatchIntervalSecs   int `mapstructure:"dispatch_interval_seconds"`
}

// DispatcherConfig holds worker pool and transport retry settings
type DispatcherConfig struct {
	Workers       int     `mapstructure:"workers"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	MaxRetries    int     `mapstructure:"max_retries"`
}

// CompanyConfig holds the practice identity used in template variables
type CompanyConfig struct {
	CompanyName    string `mapstructure:"company_name"`
	AccountantName string `mapstructure:"accountant_name"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("smtp.port", 587)

	viper.SetDefault("storage.enabled", false)
	viper.SetDefault("storage.region", "eu-central-1")

	viper.SetDefault("sweep.deadline_hour", 8)
	viper.SetDefault("sweep.overdue_interval_minutes", 60)
	viper.SetDefault("sweep.dispatch_interval_seconds", 30)

	viper.SetDefault("dispatcher.workers", 4)
	viper.SetDefault("dispatcher.rate_per_second", 5)
	viper.SetDefault("dispatcher.max_retries", 3)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")

	viper.BindEnv("storage.enabled", "STORAGE_ENABLED")
	viper.BindEnv("storage.region", "STORAGE_REGION")
	viper.BindEnv("storage.bucket", "STORAGE_BUCKET")
	viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")

	viper.BindEnv("sweep.deadline_hour", "SWEEP_DEADLINE_HOUR")
	viper.BindEnv("sweep.overdue_interval_minutes", "SWEEP_OVERDUE_INTERVAL_MINUTES")
	viper.BindEnv("sweep.dispatch_interval_seconds", "SWEEP_DISPATCH_INTERVAL_SECONDS")

	viper.BindEnv("dispatcher.workers", "DISPATCHER_WORKERS")
	viper.BindEnv("dispatcher.rate_per_second", "DISPATCHER_RATE_PER_SECOND")
	viper.BindEnv("dispatcher.max_retries", "DISPATCHER_MAX_RETRIES")

	viper.BindEnv("company.company_name", "COMPANY_NAME")
	viper.BindEnv("company.accountant_name", "ACCOUNTANT_NAME")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}
	if c.SMTP.Host == "" || c.SMTP.From == "" {
		return fmt.Errorf("smtp host and from address are required")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required when storage is enabled")
	}
	if c.Sweep.DeadlineHour < 0 || c.Sweep.DeadlineHour > 23 {
		return fmt.Errorf("sweep deadline hour must be 0-23")
	}
	if c.Sweep.OverdueIntervalMinutes <= 0 {
		return fmt.Errorf("overdue sweep interval must be greater than 0")
	}
	if c.Sweep.DispatchIntervalSecs <= 0 {
		return fmt.Errorf("dispatch interval must be greater than 0")
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("dispatcher workers must be greater than 0")
	}
	return nil
}
