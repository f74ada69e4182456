package ml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourusername/race-time-predictor/internal/config"
)

// Methods of the remote model service. Messages are google.protobuf.Struct so
// no generated stubs are needed on either side.
const (
	GRPCSchemaMethod  = "/racetime.ml.v1.ModelService/GetSchema"
	GRPCPredictMethod = "/racetime.ml.v1.ModelService/Predict"
)

// NewGRPCConn creates a connection to the ML service
func NewGRPCConn(cfg config.MLServiceConfig) (*grpc.ClientConn, error) {
	creds := grpc.WithTransportCredentials(insecure.NewCredentials())
	if cfg.UseTLS {
		creds = grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, ""))
	}

	connectParams := grpc.ConnectParams{
		Backoff: backoff.Config{
			BaseDelay:  1 * time.Second,
			Multiplier: 1.6,
			Jitter:     0.2,
			MaxDelay:   5 * time.Second,
		},
		MinConnectTimeout: 10 * time.Second,
	}

	keepAlive := keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}

	conn, err := grpc.NewClient(cfg.GRPCAddress,
		creds,
		grpc.WithConnectParams(connectParams),
		grpc.WithKeepaliveParams(keepAlive),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return conn, nil
}

// GRPCModel is a model served by the ML service over gRPC
type GRPCModel struct {
	conn     grpc.ClientConnInterface
	health   grpc_health_v1.HealthClient
	name     string
	features []string
	timeout  time.Duration
	logger   *logrus.Entry
}

// NewGRPCModel creates a client for a remote model and fetches its feature
// schema. features overrides the remote schema when set.
func NewGRPCModel(ctx context.Context, conn grpc.ClientConnInterface, name string, features []string, timeout time.Duration, logger *logrus.Logger) (*GRPCModel, error) {
	m := &GRPCModel{
		conn:    conn,
		health:  grpc_health_v1.NewHealthClient(conn),
		name:    name,
		timeout: timeout,
		logger:  logger.WithFields(logrus.Fields{"component": "ml", "model": name}),
	}

	if len(features) > 0 {
		m.features = append([]string(nil), features...)
		return m, nil
	}

	req, err := structpb.NewStruct(map[string]interface{}{"model": name})
	if err != nil {
		return nil, err
	}
	resp := &structpb.Struct{}
	if err := m.invoke(ctx, GRPCSchemaMethod, req, resp); err != nil {
		return nil, err
	}

	for _, v := range resp.GetFields()["feature_names"].GetListValue().GetValues() {
		feature, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: non-string feature name in schema", ErrInvalidResponse)
		}
		m.features = append(m.features, feature.StringValue)
	}
	if len(m.features) == 0 {
		return nil, fmt.Errorf("%w: model %s has an empty schema", ErrInvalidResponse, m.name)
	}

	m.logger.WithField("features_count", len(m.features)).Info("Remote model schema loaded")
	return m, nil
}

// Name returns the model name
func (m *GRPCModel) Name() string {
	return m.name
}

// FeatureNames returns the ordered feature names
func (m *GRPCModel) FeatureNames() []string {
	return m.features
}

// Predict evaluates one feature vector remotely
func (m *GRPCModel) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := checkFeatureCount(m, features); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() {
		MLPredictionLatency.WithLabelValues("grpc").Observe(time.Since(start).Seconds())
	}()

	values := make([]interface{}, len(features))
	for i, f := range features {
		values[i] = f
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"model":    m.name,
		"features": values,
	})
	if err != nil {
		return 0, err
	}

	resp := &structpb.Struct{}
	if err := m.invoke(ctx, GRPCPredictMethod, req, resp); err != nil {
		return 0, err
	}

	prediction, ok := resp.GetFields()["prediction"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		MLRemoteErrorsTotal.WithLabelValues("grpc", "Predict", "empty").Inc()
		return 0, fmt.Errorf("%w: response has no numeric prediction", ErrInvalidPrediction)
	}

	MLPredictionsTotal.WithLabelValues("grpc", "false").Inc()
	return prediction.NumberValue, nil
}

// HealthCheck checks ML service health through the standard gRPC health service
func (m *GRPCModel) HealthCheck(ctx context.Context) error {
	resp, err := m.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMLServiceUnavailable, err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: status %s", ErrMLServiceUnavailable, resp.GetStatus())
	}
	return nil
}

func (m *GRPCModel) invoke(ctx context.Context, method string, req, resp *structpb.Struct) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.conn.Invoke(ctx, method, req, resp); err != nil {
		short := method[strings.LastIndex(method, "/")+1:]
		MLRemoteErrorsTotal.WithLabelValues("grpc", short, status.Code(err).String()).Inc()
		m.logger.WithError(err).WithField("method", short).Error("Remote model call failed")
		return fmt.Errorf("%w: %v", ErrMLServiceUnavailable, err)
	}
	return nil
}
