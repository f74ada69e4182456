package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/config"
)

// HTTPModel is a model served by the ML service over HTTP
type HTTPModel struct {
	client   *retryablehttp.Client
	baseURL  string
	name     string
	features []string
	logger   *logrus.Entry
}

type schemaResponse struct {
	Model        string   `json:"model"`
	FeatureNames []string `json:"feature_names"`
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction *float64 `json:"prediction"`
}

// NewHTTPModel creates a client for a remote model and fetches its feature
// schema. features overrides the remote schema when set.
func NewHTTPModel(ctx context.Context, cfg config.MLServiceConfig, name string, features []string, logger *logrus.Logger) (*HTTPModel, error) {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.RequestTimeout()
	client.RetryMax = cfg.RetryAttempts
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	m := &HTTPModel{
		client:  client,
		baseURL: cfg.HTTPAddress,
		name:    name,
		logger:  logger.WithFields(logrus.Fields{"component": "ml", "model": name}),
	}

	if len(features) > 0 {
		m.features = append([]string(nil), features...)
		return m, nil
	}

	var schema schemaResponse
	if err := m.do(ctx, http.MethodGet, "schema", nil, &schema); err != nil {
		return nil, err
	}
	if len(schema.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: model %s has an empty schema", ErrInvalidResponse, name)
	}
	m.features = schema.FeatureNames

	m.logger.WithField("features_count", len(m.features)).Info("Remote model schema loaded")
	return m, nil
}

// Name returns the model name
func (m *HTTPModel) Name() string {
	return m.name
}

// FeatureNames returns the ordered feature names
func (m *HTTPModel) FeatureNames() []string {
	return m.features
}

// Predict evaluates one feature vector remotely
func (m *HTTPModel) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := checkFeatureCount(m, features); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() {
		MLPredictionLatency.WithLabelValues("http").Observe(time.Since(start).Seconds())
	}()

	var resp predictResponse
	if err := m.do(ctx, http.MethodPost, "predict", predictRequest{Features: features}, &resp); err != nil {
		return 0, err
	}
	if resp.Prediction == nil {
		MLRemoteErrorsTotal.WithLabelValues("http", "predict", "empty").Inc()
		return 0, fmt.Errorf("%w: response has no prediction", ErrInvalidPrediction)
	}

	MLPredictionsTotal.WithLabelValues("http", "false").Inc()
	return *resp.Prediction, nil
}

// HealthCheck checks ML service health
func (m *HTTPModel) HealthCheck(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := m.client.HTTPClient.Do(req.Request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMLServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrMLServiceUnavailable, resp.StatusCode)
	}

	return nil
}

func (m *HTTPModel) do(ctx context.Context, method, action string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	endpoint := fmt.Sprintf("%s/api/v1/models/%s/%s", m.baseURL, url.PathEscape(m.name), action)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		MLRemoteErrorsTotal.WithLabelValues("http", action, "network").Inc()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		MLRemoteErrorsTotal.WithLabelValues("http", action, "http_error").Inc()
		return fmt.Errorf("%w: %s request failed with status %d: %s", ErrMLServiceUnavailable, action, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		MLRemoteErrorsTotal.WithLabelValues("http", action, "decode").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
