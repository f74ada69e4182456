package ml

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneTree builds a model document with a single stump on feature 0
func oneTree(objective, baseScore string) string {
	return `{"learner": {
		"feature_names": ["x"],
		"learner_model_param": {"base_score": "` + baseScore + `", "num_feature": "1", "num_class": "0"},
		"objective": {"name": "` + objective + `"},
		"gradient_booster": {"name": "gbtree", "model": {"trees": [{
			"left_children": [1, -1, -1],
			"right_children": [2, -1, -1],
			"split_indices": [0, 0, 0],
			"split_conditions": [1, 0.25, 0.5],
			"default_left": [0, 0, 0]
		}]}}
	}}`
}

// TestLoadXGBoostModel tests loading the model file and its metadata
func TestLoadXGBoostModel(t *testing.T) {
	m, err := LoadXGBoostModel("testdata/swim_model.json", "swim-v1", nil)
	require.NoError(t, err)

	assert.Equal(t, "swim-v1", m.Name())
	assert.Equal(t, []string{"Gender_M", "AgeBand"}, m.FeatureNames())
	assert.Equal(t, 2, m.NumTrees())
}

// TestXGBoostPredict tests tree traversal and the base score
func TestXGBoostPredict(t *testing.T) {
	m, err := LoadXGBoostModel("testdata/swim_model.json", "swim-v1", nil)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name     string
		features []float64
		want     float64
	}{
		{name: "male 35", features: []float64{1, 35}, want: 21.5},
		{name: "female 18", features: []float64{0, 18}, want: 9.5},
		{name: "boundary goes right", features: []float64{0, 30}, want: 19.5},
		{name: "missing age goes default left", features: []float64{1, math.NaN()}, want: 11.5},
		{name: "missing gender goes default right", features: []float64{math.NaN(), 40}, want: 21.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Predict(ctx, tt.features)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// TestXGBoostPredictFeatureCount tests rejection of misaligned rows
func TestXGBoostPredictFeatureCount(t *testing.T) {
	m, err := LoadXGBoostModel("testdata/swim_model.json", "swim-v1", nil)
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), []float64{1})
	assert.True(t, errors.Is(err, ErrFeatureCount))
}

// TestXGBoostFeatureOverride tests configured names replacing the stored ones
func TestXGBoostFeatureOverride(t *testing.T) {
	m, err := LoadXGBoostModel("testdata/swim_model.json", "swim-v1", []string{"Gender_M", "AgeGroup"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gender_M", "AgeGroup"}, m.FeatureNames())

	_, err = LoadXGBoostModel("testdata/swim_model.json", "swim-v1", []string{"Gender_M"})
	assert.True(t, errors.Is(err, ErrInvalidModel))
}

// TestXGBoostObjectives tests the output transform of each objective family
func TestXGBoostObjectives(t *testing.T) {
	ctx := context.Background()

	m, err := ParseXGBoostModel(strings.NewReader(oneTree("reg:squarederror", "1E0")), "m", nil)
	require.NoError(t, err)
	got, err := m.Predict(ctx, []float64{2})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-9)

	m, err = ParseXGBoostModel(strings.NewReader(oneTree("reg:gamma", "2")), "m", nil)
	require.NoError(t, err)
	got, err = m.Predict(ctx, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(math.Log(2)+0.25), got, 1e-9)

	m, err = ParseXGBoostModel(strings.NewReader(oneTree("reg:linear", "")), "m", nil)
	require.NoError(t, err)
	got, err = m.Predict(ctx, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)
}

// TestXGBoostSplitPrecision tests that values equal to a cut point in float32
// take the right branch
func TestXGBoostSplitPrecision(t *testing.T) {
	doc := strings.Replace(oneTree("reg:squarederror", "0"),
		`"split_conditions": [1, 0.25, 0.5]`, `"split_conditions": [0.012345679, 10, 20]`, 1)
	m, err := ParseXGBoostModel(strings.NewReader(doc), "m", nil)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{name: "rounds onto cut point", value: 0.0123456789, want: 20},
		{name: "exact cut point", value: 0.012345679, want: 20},
		{name: "below cut point", value: 0.0123456, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Predict(ctx, []float64{tt.value})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// TestParseXGBoostModelErrors tests rejection of models that cannot be evaluated
func TestParseXGBoostModelErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{"},
		{name: "classifier", doc: oneTree("binary:logistic", "0.5")},
		{name: "bad base score", doc: oneTree("reg:squarederror", "abc")},
		{name: "log link non positive base", doc: oneTree("reg:gamma", "0")},
		{name: "linear booster", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"gbtree"`, `"gblinear"`, 1)},
		{name: "multi output", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"num_class": "0"`, `"num_class": "3"`, 1)},
		{name: "child before parent", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"left_children": [1, -1, -1]`, `"left_children": [0, -1, -1]`, 1)},
		{name: "split out of range", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"split_indices": [0, 0, 0]`, `"split_indices": [4, 0, 0]`, 1)},
		{name: "ragged arrays", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"default_left": [0, 0, 0]`, `"default_left": [0, 0]`, 1)},
		{name: "categorical split", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"default_left": [0, 0, 0]`, `"default_left": [0, 0, 0], "split_type": [1, 0, 0]`, 1)},
		{name: "no trees", doc: strings.Replace(oneTree("reg:squarederror", "0.5"), `"trees": [{`, `"trees": [], "x": [{`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseXGBoostModel(strings.NewReader(tt.doc), "m", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidModel), "got %v", err)
		})
	}
}

// TestLoadXGBoostModelMissingFile tests the error for an absent file
func TestLoadXGBoostModelMissingFile(t *testing.T) {
	_, err := LoadXGBoostModel("testdata/absent.json", "m", nil)
	require.Error(t, err)
}

func BenchmarkXGBoostPredict(b *testing.B) {
	m, err := LoadXGBoostModel("testdata/swim_model.json", "swim-v1", nil)
	require.NoError(b, err)
	ctx := context.Background()
	row := []float64{1, 35}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Predict(ctx, row)
	}
}
