// Package config provides configuration management for the FightPulse
// calibration engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Calibration CalibrationConfig `mapstructure:"calibration" validate:"required"`
	Labeling    LabelingConfig    `mapstructure:"labeling" validate:"required"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics" validate:"required"`
	Notify      NotifyConfig      `mapstructure:"notify"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
}

// CalibrationConfig represents recalibration policy configuration
type CalibrationConfig struct {
	Streams              []string  `mapstructure:"streams" validate:"required,min=1,streams"`
	WindowMonths         int       `mapstructure:"window_months" validate:"required,gt=0"`
	MinSamples           int       `mapstructure:"min_samples" validate:"required,gt=0"`
	ECEThreshold         float64   `mapstructure:"ece_threshold" validate:"required,gt=0,lte=1"`
	BrierThreshold       float64   `mapstructure:"brier_threshold" validate:"required,gt=0,lte=1"`
	MCEThreshold         float64   `mapstructure:"mce_threshold" validate:"required,gt=0,lte=1"`
	CoverageLevels       []float64 `mapstructure:"coverage_levels" validate:"required,min=1,dive,gt=0,lt=1"`
	CoverageGapLimit     float64   `mapstructure:"coverage_gap_limit" validate:"required,gt=0,lte=0.5"`
	ValidityDays         int       `mapstructure:"validity_days" validate:"required,gt=0"`
	Bins                 int       `mapstructure:"bins" validate:"gte=0"`
	ParamCacheTTLSeconds int       `mapstructure:"param_cache_ttl_seconds" validate:"required,gt=0"`
}

// LabelingConfig represents weak label batch configuration
type LabelingConfig struct {
	ConfidenceFloor float64 `mapstructure:"confidence_floor" validate:"gte=0,lte=1"`
	BatchLimit      int     `mapstructure:"batch_limit" validate:"gte=0"`
	Concurrency     int     `mapstructure:"concurrency" validate:"required,gt=0"`
}

// SchedulerConfig represents daemon scheduling configuration.
// Cron expressions run in UTC.
type SchedulerConfig struct {
	RecalibrationCron string `mapstructure:"recalibration_cron" validate:"required,cron"`
	LabelingCron      string `mapstructure:"labeling_cron" validate:"required,cron"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// NotifyConfig represents webhook notification configuration
type NotifyConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	WebhookURL     string `mapstructure:"webhook_url" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// WindowStart returns the start of the rolling outcome window ending at now
func (c *CalibrationConfig) WindowStart(now time.Time) time.Time {
	return now.AddDate(0, -c.WindowMonths, 0)
}

// Validity returns the parameter validity period as a duration
func (c *CalibrationConfig) Validity() time.Duration {
	return time.Duration(c.ValidityDays) * 24 * time.Hour
}

// ParamCacheTTL returns how long the scorer may cache active parameters
func (c *CalibrationConfig) ParamCacheTTL() time.Duration {
	return time.Duration(c.ParamCacheTTLSeconds) * time.Second
}

// Timeout returns the webhook request timeout
func (n *NotifyConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}
