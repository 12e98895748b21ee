package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			Port:   3306,
			User:   "test",
			DBName: "test",
		},
		SMTP: SMTPConfig{
			Host: "smtp.example.com",
			Port: 587,
			From: "office@example.com",
		},
		Sweep: SweepConfig{
			DeadlineHour:           8,
			OverdueIntervalMinutes: 60,
			DispatchIntervalSecs:   30,
		},
		Dispatcher: DispatcherConfig{
			Workers:       4,
			RatePerSecond: 5,
			MaxRetries:    3,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Database.Host = ""
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.SMTP.From = ""
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Sweep.DeadlineHour = 24
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Sweep.OverdueIntervalMinutes = 0
	assert.Error(t, invalid.Validate())

	invalid = validConfig()
	invalid.Dispatcher.Workers = 0
	assert.Error(t, invalid.Validate())
}

func TestStorageValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Storage.Bucket = "logistiko-documents"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := cfg.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}
