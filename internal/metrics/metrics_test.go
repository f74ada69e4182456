package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordSegment(t *testing.T) {
	InitRegistry()

	before := testutil.ToFloat64(SegmentPredictionsTotal.WithLabelValues("swim", "error"))
	RecordSegment("swim", false)
	RecordSegment("swim", true)
	assert.Equal(t, before+1, testutil.ToFloat64(SegmentPredictionsTotal.WithLabelValues("swim", "error")))
}

func TestRecordPrediction(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordPrediction("ok", 0.012)
		RecordHTTPRequest("POST", "/api/v1/predictions", "200", 0.02)
	})
}

func TestUpdateReferenceRows(t *testing.T) {
	InitRegistry()

	UpdateReferenceRows(map[string]int{"country-frequency": 12, "location-attributes": 3})
	assert.Equal(t, 12.0, testutil.ToFloat64(ReferenceTableRows.WithLabelValues("country-frequency")))

	UpdateModelsLoaded(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(ModelsLoaded))

	before := testutil.ToFloat64(PredictionLogPrunedTotal)
	RecordPruned(7)
	assert.Equal(t, before+7, testutil.ToFloat64(PredictionLogPrunedTotal))
}

func TestHandlerServesDefaultRegistry(t *testing.T) {
	promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_handler_test_total",
		Help: "Counter registered on the default registry",
	}).Inc()
	UpdateModelsLoaded(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "metrics_handler_test_total"))
	assert.True(t, strings.Contains(body, "race_time_predictor_models_loaded"))
}
