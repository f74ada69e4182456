package api

import (
	"errors"
	"net/http"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnknownCategory    = "UNKNOWN_CATEGORY"
	CodeModelUnavailable   = "MODEL_UNAVAILABLE"
	CodeGeocodeUnavailable = "GEOCODE_UNAVAILABLE"
	CodeModelSchemaFault   = "MODEL_SCHEMA_FAULT"
	CodeUnknownSegment     = "UNKNOWN_SEGMENT"
	CodeInternal           = "INTERNAL_ERROR"
)

// classify maps a prediction failure to an HTTP status and error code
func classify(err error) (int, string) {
	var input *models.InputError
	switch {
	case errors.As(err, &input):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, models.ErrUnjoinableRow):
		return http.StatusUnprocessableEntity, CodeUnknownCategory
	case errors.Is(err, models.ErrModelUnavailable):
		return http.StatusServiceUnavailable, CodeModelUnavailable
	case errors.Is(err, models.ErrGeocodeUnavailable):
		return http.StatusServiceUnavailable, CodeGeocodeUnavailable
	case errors.Is(err, models.ErrMissingFeature):
		return http.StatusInternalServerError, CodeModelSchemaFault
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
