package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsOverlay is the JSON document stored in AWS Secrets Manager. Empty
// fields leave the file configuration untouched.
type SecretsOverlay struct {
	DatabasePassword  string `json:"database_password"`
	RedisPassword     string `json:"redis_password"`
	GeocoderUserAgent string `json:"geocoder_user_agent"`
}

// SecretsGetter is the part of the Secrets Manager client the overlay needs
type SecretsGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecretsFromAWS overlays credentials from AWS Secrets Manager when
// secrets.enabled is set
func LoadSecretsFromAWS(ctx context.Context, cfg *Config) error {
	if !cfg.Secrets.Enabled {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Secrets.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	return LoadSecrets(ctx, cfg, secretsmanager.NewFromConfig(awsCfg))
}

// LoadSecrets fetches cfg.Secrets.SecretName through client and applies it
func LoadSecrets(ctx context.Context, cfg *Config, client SecretsGetter) error {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.Secrets.SecretName),
	})
	if err != nil {
		return fmt.Errorf("failed to get secret %s: %w", cfg.Secrets.SecretName, err)
	}

	secrets, err := parseSecretData(out)
	if err != nil {
		return err
	}
	overlaySecretsOnConfig(cfg, secrets)
	return nil
}

func parseSecretData(out *secretsmanager.GetSecretValueOutput) (*SecretsOverlay, error) {
	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return nil, errors.New("no secret data found in AWS Secrets Manager")
	}

	var secrets SecretsOverlay
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secret: %w", err)
	}
	return &secrets, nil
}

func overlaySecretsOnConfig(cfg *Config, secrets *SecretsOverlay) {
	if secrets.DatabasePassword != "" {
		cfg.Database.Password = secrets.DatabasePassword
	}
	if secrets.RedisPassword != "" {
		cfg.CentroidStore.RedisPassword = secrets.RedisPassword
	}
	if secrets.GeocoderUserAgent != "" {
		cfg.Geocoding.UserAgent = secrets.GeocoderUserAgent
	}
}
