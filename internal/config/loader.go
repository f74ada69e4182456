package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "TRI_PREDICTOR"

// Load reads the configuration file, expands ${VAR} placeholders and applies
// TRI_PREDICTOR_* environment overrides. The file must exist.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadWithDefaults is Load for deployments configured purely through the
// environment: a missing file leaves the defaults in place.
func LoadWithDefaults(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, requireFile bool) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err) && !requireFile:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers values for optional settings
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "race-time-predictor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 10)
	v.SetDefault("reference_data.source", "csv")
	v.SetDefault("reference_data.dir", "data")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)
	v.SetDefault("ml_service.request_timeout_seconds", 5)
	v.SetDefault("ml_service.cache_ttl_seconds", 300)
	v.SetDefault("ml_service.cache_max_size", 10000)
	v.SetDefault("geocoding.provider", "nominatim")
	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "race-time-predictor")
	v.SetDefault("geocoding.timeout_seconds", 5)
	v.SetDefault("geocoding.rate_limit", 1.0)
	v.SetDefault("geocoding.retry_attempts", 2)
	v.SetDefault("geocoding.breaker_failures", 5)
	v.SetDefault("geocoding.breaker_timeout_seconds", 60)
	v.SetDefault("geocoding.negative_ttl_seconds", 300)
	v.SetDefault("distance.on_unavailable", "fail")
	v.SetDefault("centroid_store.type", "none")
	v.SetDefault("centroid_store.key_prefix", "centroid:")
	v.SetDefault("prediction_log.retention_days", 30)
	v.SetDefault("prediction_log.prune_schedule", "0 3 * * *")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
	v.SetDefault("health.probe_schedule", "@every 1m")
	v.SetDefault("health.probe_timeout_seconds", 5)
}
