// Package config provides configuration management for the race time predictor.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app" validate:"required"`
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	ReferenceData ReferenceDataConfig `mapstructure:"reference_data" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Models        ModelsConfig        `mapstructure:"models" validate:"required"`
	MLService     MLServiceConfig     `mapstructure:"ml_service"`
	Geocoding     GeocodingConfig     `mapstructure:"geocoding" validate:"required"`
	Distance      DistanceConfig      `mapstructure:"distance" validate:"required"`
	CentroidStore CentroidStoreConfig `mapstructure:"centroid_store"`
	PredictionLog PredictionLogConfig `mapstructure:"prediction_log"`
	Metrics       MetricsConfig       `mapstructure:"metrics" validate:"required"`
	Health        HealthConfig        `mapstructure:"health"`
	Secrets       SecretsConfig       `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ServerConfig represents the prediction API server
type ServerConfig struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds" validate:"gte=0"`
}

// ReferenceDataConfig represents where the reference tables are read from
type ReferenceDataConfig struct {
	Source     string            `mapstructure:"source" validate:"required,oneof=csv postgres sqlite"`
	Dir        string            `mapstructure:"dir"`
	Files      map[string]string `mapstructure:"files"`
	SQLitePath string            `mapstructure:"sqlite_path"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
}

// ModelsConfig maps each race segment to the model that predicts it
type ModelsConfig struct {
	Dir      string                 `mapstructure:"dir"`
	Segments map[string]ModelConfig `mapstructure:"segments" validate:"required,min=1,dive,keys,segment,endkeys"`
}

// ModelConfig describes one segment model
type ModelConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=xgboost http grpc"`
	// Path is the model file for the xgboost backend
	Path string `mapstructure:"path"`
	// Name identifies the model on a remote ML service
	Name string `mapstructure:"name"`
	// Features overrides the feature names stored in the model file
	Features []string `mapstructure:"features"`
	Cache    bool     `mapstructure:"cache"`
}

// MLServiceConfig represents the remote ML service used by http and grpc models
type MLServiceConfig struct {
	HTTPAddress           string `mapstructure:"http_address" validate:"omitempty,url"`
	GRPCAddress           string `mapstructure:"grpc_address"`
	UseTLS                bool   `mapstructure:"use_tls"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gte=0"`
	RetryAttempts         int    `mapstructure:"retry_attempts" validate:"gte=0"`
	CacheTTLSeconds       int    `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheMaxSize          int    `mapstructure:"cache_max_size" validate:"gte=0"`
}

// GeocodingConfig represents the country centroid geocoder
type GeocodingConfig struct {
	Provider           string  `mapstructure:"provider" validate:"required,oneof=nominatim static"`
	BaseURL            string  `mapstructure:"base_url" validate:"omitempty,url"`
	UserAgent          string  `mapstructure:"user_agent"`
	CentroidsFile      string  `mapstructure:"centroids_file"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	RateLimit          float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RetryAttempts      int     `mapstructure:"retry_attempts" validate:"gte=0"`
	BreakerFailures    uint32  `mapstructure:"breaker_failures"`
	BreakerTimeoutSecs int     `mapstructure:"breaker_timeout_seconds" validate:"gte=0"`
	NegativeTTLSeconds int     `mapstructure:"negative_ttl_seconds" validate:"gte=0"`
}

// DistanceConfig decides what happens when the distance feature is unavailable
type DistanceConfig struct {
	OnUnavailable string  `mapstructure:"on_unavailable" validate:"required,distancepolicy"`
	DefaultMeters float64 `mapstructure:"default_meters" validate:"gte=0"`
}

// CentroidStoreConfig represents persistence of resolved centroids
type CentroidStoreConfig struct {
	Type          string `mapstructure:"type" validate:"omitempty,oneof=none postgres redis"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	TTLHours      int    `mapstructure:"ttl_hours" validate:"gte=0"`
}

// PredictionLogConfig represents the prediction audit log
type PredictionLogConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RetentionDays int    `mapstructure:"retention_days" validate:"gte=0"`
	PruneSchedule string `mapstructure:"prune_schedule"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig represents the health check server
type HealthConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	ProbeSchedule      string `mapstructure:"probe_schedule"`
	ProbeTimeoutSecond int    `mapstructure:"probe_timeout_seconds" validate:"gte=0"`
}

// SecretsConfig represents the optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
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

// ServerAddress returns the host:port the API listens on
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// NeedsDatabase checks if any component reads or writes PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.ReferenceData.Source == "postgres" ||
		c.CentroidStore.Type == "postgres" ||
		c.PredictionLog.Enabled
}

// RequestTimeout returns the remote model request timeout
func (m MLServiceConfig) RequestTimeout() time.Duration {
	if m.RequestTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the geocoder call timeout
func (g GeocodingConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}
