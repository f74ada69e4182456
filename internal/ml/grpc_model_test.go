package ml

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// modelService is an in-process ML service. Predict returns the sum of the
// features, or fails when prediction is unset.
type modelService struct {
	features []interface{}
	omit     bool
}

func (s *modelService) schema(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req.GetFields()["model"].GetStringValue() != "total-v2" {
		return nil, status.Error(codes.NotFound, "unknown model")
	}
	return structpb.NewStruct(map[string]interface{}{"feature_names": s.features})
}

func (s *modelService) predict(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.omit {
		return &structpb.Struct{}, nil
	}
	sum := 0.0
	for _, v := range req.GetFields()["features"].GetListValue().GetValues() {
		sum += v.GetNumberValue()
	}
	return structpb.NewStruct(map[string]interface{}{"prediction": sum})
}

func unaryHandler(call func(*modelService, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		return call(srv.(*modelService), ctx, req)
	}
}

var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: "racetime.ml.v1.ModelService",
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSchema", Handler: unaryHandler((*modelService).schema)},
		{MethodName: "Predict", Handler: unaryHandler((*modelService).predict)},
	},
}

func startModelService(t *testing.T, svc *modelService) (*grpc.ClientConn, *health.Server) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	server.RegisterService(&modelServiceDesc, svc)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)

	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, hs
}

// TestGRPCModelSchemaAndPredict tests schema discovery and remote evaluation
func TestGRPCModelSchemaAndPredict(t *testing.T) {
	conn, _ := startModelService(t, &modelService{features: []interface{}{"Gender_M", "AgeBand"}})
	ctx := context.Background()

	m, err := NewGRPCModel(ctx, conn, "total-v2", nil, 2*time.Second, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "total-v2", m.Name())
	assert.Equal(t, []string{"Gender_M", "AgeBand"}, m.FeatureNames())

	seconds, err := m.Predict(ctx, []float64{1, 35})
	require.NoError(t, err)
	assert.Equal(t, 36.0, seconds)

	_, err = m.Predict(ctx, []float64{1})
	assert.True(t, errors.Is(err, ErrFeatureCount))
}

// TestGRPCModelUnknownModel tests a schema request the service rejects
func TestGRPCModelUnknownModel(t *testing.T) {
	conn, _ := startModelService(t, &modelService{features: []interface{}{"a"}})

	_, err := NewGRPCModel(context.Background(), conn, "swim-v9", nil, time.Second, testLogger())
	assert.True(t, errors.Is(err, ErrMLServiceUnavailable))
}

// TestGRPCModelInvalidSchema tests schemas that cannot be aligned
func TestGRPCModelInvalidSchema(t *testing.T) {
	conn, _ := startModelService(t, &modelService{features: []interface{}{}})
	_, err := NewGRPCModel(context.Background(), conn, "total-v2", nil, time.Second, testLogger())
	assert.True(t, errors.Is(err, ErrInvalidResponse))

	conn, _ = startModelService(t, &modelService{features: []interface{}{"a", 3.0}})
	_, err = NewGRPCModel(context.Background(), conn, "total-v2", nil, time.Second, testLogger())
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

// TestGRPCModelMissingPrediction tests a response without a numeric prediction
func TestGRPCModelMissingPrediction(t *testing.T) {
	conn, _ := startModelService(t, &modelService{omit: true})

	m, err := NewGRPCModel(context.Background(), conn, "total-v2", []string{"a"}, time.Second, testLogger())
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), []float64{1})
	assert.True(t, errors.Is(err, ErrInvalidPrediction))
}

// TestGRPCModelHealthCheck tests probing through the gRPC health service
func TestGRPCModelHealthCheck(t *testing.T) {
	conn, hs := startModelService(t, &modelService{})
	ctx := context.Background()

	m, err := NewGRPCModel(ctx, conn, "total-v2", []string{"a"}, time.Second, testLogger())
	require.NoError(t, err)
	require.NoError(t, m.HealthCheck(ctx))

	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	assert.True(t, errors.Is(m.HealthCheck(ctx), ErrMLServiceUnavailable))
}
