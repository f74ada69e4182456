package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	out    *secretsmanager.GetSecretValueOutput
	err    error
	lastID string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.lastID = aws.ToString(in.SecretId)
	return f.out, f.err
}

func secretsConfig() *Config {
	cfg := &Config{}
	cfg.Secrets = SecretsConfig{Enabled: true, Region: "eu-west-1", SecretName: "race-time-predictor/production"}
	cfg.Database.Password = "from-file"
	cfg.Geocoding.UserAgent = "race-time-predictor"
	return cfg
}

func TestLoadSecretsString(t *testing.T) {
	cfg := secretsConfig()
	client := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"database_password":"from-aws","redis_password":"redis-secret"}`),
	}}

	require.NoError(t, LoadSecrets(context.Background(), cfg, client))
	assert.Equal(t, "race-time-predictor/production", client.lastID)
	assert.Equal(t, "from-aws", cfg.Database.Password)
	assert.Equal(t, "redis-secret", cfg.CentroidStore.RedisPassword)
	assert.Equal(t, "race-time-predictor", cfg.Geocoding.UserAgent)
}

func TestLoadSecretsBinary(t *testing.T) {
	cfg := secretsConfig()
	client := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
		SecretBinary: []byte(`{"geocoder_user_agent":"predictor/2.0 (ops@example.com)"}`),
	}}

	require.NoError(t, LoadSecrets(context.Background(), cfg, client))
	assert.Equal(t, "predictor/2.0 (ops@example.com)", cfg.Geocoding.UserAgent)
	assert.Equal(t, "from-file", cfg.Database.Password)
}

func TestLoadSecretsErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeSecrets
	}{
		{"fetch fails", &fakeSecrets{err: errors.New("access denied")}},
		{"empty secret", &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}}},
		{"not json", &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("hunter2")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := secretsConfig()
			assert.Error(t, LoadSecrets(context.Background(), cfg, tt.client))
			assert.Equal(t, "from-file", cfg.Database.Password)
		})
	}
}

func TestLoadSecretsFromAWSDisabled(t *testing.T) {
	cfg := secretsConfig()
	cfg.Secrets.Enabled = false
	assert.NoError(t, LoadSecretsFromAWS(context.Background(), cfg))
}
