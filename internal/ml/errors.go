package ml

import "errors"

var (
	// ErrMLServiceUnavailable indicates the ML service is unreachable
	ErrMLServiceUnavailable = errors.New("ml service unavailable")

	// ErrInvalidPrediction indicates the prediction response is invalid
	ErrInvalidPrediction = errors.New("invalid prediction response")

	// ErrConnectionFailed indicates the connection to the ML service failed
	ErrConnectionFailed = errors.New("ml service connection failed")

	// ErrInvalidResponse indicates invalid response from ML service
	ErrInvalidResponse = errors.New("invalid response from ml service")

	// ErrInvalidModel indicates a model file that cannot be evaluated
	ErrInvalidModel = errors.New("invalid model file")

	// ErrFeatureCount indicates a feature vector of the wrong length
	ErrFeatureCount = errors.New("feature count mismatch")
)
