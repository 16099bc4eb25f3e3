// Package config loads the service configuration from YAML with ${ENV}
// placeholders.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPath = "configs/config.yaml"

type ServerConfig struct {
	Address         string `yaml:"address"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MailConfig struct {
	APIKey       string  `yaml:"api_key"`
	SecretKey    string  `yaml:"secret_key"`
	Endpoint     string  `yaml:"endpoint"`
	FromEmail    string  `yaml:"from_email"`
	FromName     string  `yaml:"from_name"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	Attempts     int     `yaml:"attempts"`
	RetryDelayMS int     `yaml:"retry_delay_ms"`
	RatePerSec   float64 `yaml:"rate_per_sec"`
	Burst        int     `yaml:"burst"`
}

type RemindersConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	TimeoutMinutes  int  `yaml:"timeout_minutes"`
	LockTTLMinutes  int  `yaml:"lock_ttl_minutes"`
	RunOnStart      bool `yaml:"run_on_start"`
}

type SecurityConfig struct {
	APIKey        string `yaml:"api_key"`
	CronSecret    string `yaml:"cron_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type ReportConfig struct {
	Enabled            bool `yaml:"enabled"`
	EventRetentionDays int  `yaml:"event_retention_days"`
	ExportOnStart      bool `yaml:"export_on_start"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Mail       MailConfig       `yaml:"mail"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Security   SecurityConfig   `yaml:"security"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Backup     BackupConfig     `yaml:"backup"`
	Report     ReportConfig     `yaml:"report"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads the YAML file at path. A .env file next to the working
// directory is loaded first when present, so its values can fill ${VAR}
// placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse expands environment placeholders in data, decodes it and fills
// defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/inkflow.db"
	}
	if c.Mail.Endpoint == "" {
		c.Mail.Endpoint = "https://api.mailjet.com/v3.1/send"
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "InkFlow"
	}
	if c.Mail.TimeoutSec <= 0 {
		c.Mail.TimeoutSec = 10
	}
	if c.Mail.Attempts <= 0 {
		c.Mail.Attempts = 2
	}
	if c.Mail.RetryDelayMS <= 0 {
		c.Mail.RetryDelayMS = 500
	}
	if c.Mail.RatePerSec <= 0 {
		c.Mail.RatePerSec = 5
	}
	if c.Mail.Burst <= 0 {
		c.Mail.Burst = 10
	}
	if c.Reminders.IntervalMinutes <= 0 {
		c.Reminders.IntervalMinutes = 5
	}
	if c.Reminders.TimeoutMinutes <= 0 {
		c.Reminders.TimeoutMinutes = 4
	}
	if c.Reminders.LockTTLMinutes <= 0 {
		c.Reminders.LockTTLMinutes = 10
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Report.EventRetentionDays <= 0 {
		c.Report.EventRetentionDays = 365
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Reminders.IntervalMinutes) * time.Minute
}

func (c *Config) SweepTimeout() time.Duration {
	return time.Duration(c.Reminders.TimeoutMinutes) * time.Minute
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Reminders.LockTTLMinutes) * time.Minute
}

func (c *Config) MailTimeout() time.Duration {
	return time.Duration(c.Mail.TimeoutSec) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Mail.RetryDelayMS) * time.Millisecond
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Security.APIKey == "" {
		errs = append(errs, errors.New("security.api_key is required"))
	}
	if c.Security.CronSecret == "" {
		errs = append(errs, errors.New("security.cron_secret is required"))
	}
	if c.Reminders.Enabled && (c.Mail.APIKey == "" || c.Mail.SecretKey == "") {
		errs = append(errs, errors.New("mail.api_key and mail.secret_key are required when reminders are enabled"))
	}
	if c.Reminders.Enabled && c.Mail.FromEmail == "" {
		errs = append(errs, errors.New("mail.from_email is required when reminders are enabled"))
	}
	return errors.Join(errs...)
}
