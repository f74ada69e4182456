// Package ml provides the trained segment models: an in-process XGBoost
// evaluator and clients for models served by a remote ML service.
package ml

import (
	"context"
	"fmt"
)

// Model is a trained regressor that maps a feature vector to seconds
type Model interface {
	// Name identifies the model in logs and errors
	Name() string

	// FeatureNames returns the ordered feature names the model was trained on
	FeatureNames() []string

	// Predict evaluates one feature vector aligned to FeatureNames
	Predict(ctx context.Context, features []float64) (float64, error)
}

// Prober is implemented by models that depend on a remote service
type Prober interface {
	HealthCheck(ctx context.Context) error
}

func checkFeatureCount(m Model, features []float64) error {
	if want := len(m.FeatureNames()); len(features) != want {
		return fmt.Errorf("%w: model %s wants %d features, got %d", ErrFeatureCount, m.Name(), want, len(features))
	}
	return nil
}
