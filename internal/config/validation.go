package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	v.RegisterValidation("environment", validateEnvironment)
	v.RegisterValidation("loglevel", validateLogLevel)
	v.RegisterValidation("segment", validateSegment)
	v.RegisterValidation("distancepolicy", validateDistancePolicy)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	switch env {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateSegment validates race segment names used as model keys
func validateSegment(fl validator.FieldLevel) bool {
	return models.Segment(fl.Field().String()).IsValid()
}

// validateDistancePolicy validates the missing distance policy
func validateDistancePolicy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "fail", "default":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.NeedsDatabase() && !cfg.Database.Enabled {
		return fmt.Errorf("database must be enabled for postgres reference data, postgres centroid store or prediction log")
	}

	// Validate production environment requirements
	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	// Validate connection pool settings
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	switch cfg.ReferenceData.Source {
	case "csv":
		if cfg.ReferenceData.Dir == "" {
			return fmt.Errorf("reference_data.dir is required for the csv source")
		}
	case "sqlite":
		if cfg.ReferenceData.SQLitePath == "" {
			return fmt.Errorf("reference_data.sqlite_path is required for the sqlite source")
		}
	}

	for segment, m := range cfg.Models.Segments {
		switch m.Backend {
		case "xgboost":
			if m.Path == "" {
				return fmt.Errorf("models.segments.%s.path is required for the xgboost backend", segment)
			}
		case "http":
			if cfg.MLService.HTTPAddress == "" {
				return fmt.Errorf("ml_service.http_address is required for the %s http model", segment)
			}
		case "grpc":
			if cfg.MLService.GRPCAddress == "" {
				return fmt.Errorf("ml_service.grpc_address is required for the %s grpc model", segment)
			}
		}
	}

	if cfg.Geocoding.Provider == "static" && cfg.Geocoding.CentroidsFile == "" {
		return fmt.Errorf("geocoding.centroids_file is required for the static provider")
	}
	if cfg.Geocoding.Provider == "nominatim" && cfg.Geocoding.BaseURL == "" {
		return fmt.Errorf("geocoding.base_url is required for the nominatim provider")
	}

	if cfg.CentroidStore.Type == "redis" && cfg.CentroidStore.RedisAddr == "" {
		return fmt.Errorf("centroid_store.redis_addr is required for the redis store")
	}

	if cfg.PredictionLog.Enabled && cfg.PredictionLog.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PredictionLog.PruneSchedule); err != nil {
			return fmt.Errorf("invalid prediction_log.prune_schedule: %w", err)
		}
	}
	if cfg.Health.ProbeSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Health.ProbeSchedule); err != nil {
			return fmt.Errorf("invalid health.probe_schedule: %w", err)
		}
	}

	return nil
}

// formatValidationErrors lists every failing field by its config path
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fe := range validationErrors {
		field := fe.Namespace()
		switch fe.Tag() {
		case "required", "required_if":
			fmt.Fprintf(&b, "- %s is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- %s must be a valid URL, got '%v'\n", field, fe.Value())
		case "min", "max", "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- %s violates %s=%s, got %v\n", field, fe.Tag(), fe.Param(), fe.Value())
		case "environment":
			fmt.Fprintf(&b, "- %s must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- %s must be one of: debug, info, warn, error\n", field)
		case "segment":
			fmt.Fprintf(&b, "- %s has unknown segment '%v', want one of: %s\n", field, fe.Value(), segmentNames())
		case "distancepolicy":
			fmt.Fprintf(&b, "- %s must be one of: fail, default\n", field)
		case "oneof":
			fmt.Fprintf(&b, "- %s must be one of: %s, got '%v'\n", field, fe.Param(), fe.Value())
		default:
			fmt.Fprintf(&b, "- %s failed validation: %s\n", field, fe.Tag())
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}

func segmentNames() string {
	names := make([]string, len(models.AllSegments))
	for i, s := range models.AllSegments {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		// Production must have SSL enabled
		if cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}

		// The public Nominatim service requires an identifying user agent
		if cfg.Geocoding.Provider == "nominatim" && isPlaceholder(cfg.Geocoding.UserAgent) {
			return fmt.Errorf("production environment requires a real geocoding user_agent")
		}
	}

	if cfg.IsDevelopment() && cfg.Secrets.Enabled {
		return fmt.Errorf("secrets manager overlay should be disabled in development mode")
	}

	return nil
}

// isPlaceholder checks if a value looks like an unfilled template value
func isPlaceholder(value string) bool {
	if value == "" {
		return true
	}
	testPatterns := []string{
		"test", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, value); match {
			return true
		}
	}

	return false
}
