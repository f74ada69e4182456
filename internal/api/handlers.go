// Package api provides the HTTP API of the prediction service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/metrics"
	"github.com/yourusername/race-time-predictor/internal/ml"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// Predictor runs segment predictions
type Predictor interface {
	Predict(ctx context.Context, segment models.Segment, query models.AthleteQuery) (float64, error)
	PredictAll(ctx context.Context, query models.AthleteQuery) (*models.PredictionSet, error)
}

// ModelCatalog lists the segment models and their load state
type ModelCatalog interface {
	Entries() []ml.Entry
}

// PredictionHandler handles prediction and catalog endpoints
type PredictionHandler struct {
	predictor Predictor
	tables    *models.ReferenceTables
	catalog   ModelCatalog
	logger    *logrus.Entry
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(predictor Predictor, tables *models.ReferenceTables, catalog ModelCatalog, logger *logrus.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		tables:    tables,
		catalog:   catalog,
		logger:    logger.WithField("component", "api"),
	}
}

// PredictionRequest is the body of a prediction request
type PredictionRequest struct {
	Age           *int   `json:"age" binding:"required"`
	Gender        string `json:"gender" binding:"required"`
	Country       string `json:"country" binding:"required"`
	EventLocation string `json:"event_location" binding:"required"`
	Elite         bool   `json:"elite"`
}

func (r PredictionRequest) query() models.AthleteQuery {
	return models.AthleteQuery{
		Age:           *r.Age,
		Gender:        models.Gender(r.Gender),
		Country:       r.Country,
		EventLocation: r.EventLocation,
		IsElite:       r.Elite,
	}
}

// SegmentResult is the outcome of one segment in a response
type SegmentResult struct {
	Segment    models.Segment     `json:"segment"`
	Seconds    *float64           `json:"seconds,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorCode  string             `json:"error_code,omitempty"`
	Comparison *models.Comparison `json:"comparison,omitempty"`
}

// PredictionResponse is the body of a successful multi-segment prediction
type PredictionResponse struct {
	ID            uuid.UUID           `json:"id"`
	Query         models.AthleteQuery `json:"query"`
	Segments      []SegmentResult     `json:"segments"`
	SumOfSegments *float64            `json:"sum_of_segments,omitempty"`
	PredictedAt   time.Time           `json:"predicted_at"`
}

// SinglePredictionResponse is the body of a one-segment prediction
type SinglePredictionResponse struct {
	Segment models.Segment `json:"segment"`
	Seconds float64        `json:"seconds"`
}

// CatalogResponse lists the values accepted by the prediction endpoints
type CatalogResponse struct {
	EventLocations []string        `json:"event_locations"`
	Countries      []string        `json:"countries"`
	Genders        []models.Gender `json:"genders"`
	Models         []ModelStatus   `json:"models"`
}

// ModelStatus describes one configured segment model
type ModelStatus struct {
	Segment   models.Segment `json:"segment"`
	Backend   string         `json:"backend"`
	Name      string         `json:"name,omitempty"`
	Features  []string       `json:"features,omitempty"`
	Available bool           `json:"available"`
	Error     string         `json:"error,omitempty"`
}

// PredictAll handles POST /api/v1/predictions
func (h *PredictionHandler) PredictAll(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Code:    CodeInvalidRequest,
			Details: map[string]string{"validation_error": err.Error()},
		})
		return
	}

	start := time.Now()
	set, err := h.predictor.PredictAll(c.Request.Context(), req.query())
	if err != nil {
		metrics.RecordPrediction("rejected", time.Since(start).Seconds())
		h.writeError(c, err)
		return
	}

	resp := PredictionResponse{
		ID:            set.ID,
		Query:         set.Query,
		SumOfSegments: set.SumOfSegments,
		PredictedAt:   set.PredictedAt,
	}
	failed := 0
	for _, segment := range models.AllSegments {
		p, ok := set.Segments[segment]
		if !ok {
			continue
		}
		result := SegmentResult{Segment: segment, Comparison: p.Comparison}
		if p.OK() {
			seconds := p.Seconds
			result.Seconds = &seconds
		} else {
			_, result.ErrorCode = classify(p.Err)
			result.Error = p.Error
			failed++
		}
		metrics.RecordSegment(string(segment), p.OK())
		resp.Segments = append(resp.Segments, result)
	}

	status := "ok"
	if failed == len(resp.Segments) {
		status = "failed"
	} else if failed > 0 {
		status = "partial"
	}
	metrics.RecordPrediction(status, time.Since(start).Seconds())

	c.JSON(http.StatusOK, resp)
}

// PredictSegment handles POST /api/v1/predictions/:segment
func (h *PredictionHandler) PredictSegment(c *gin.Context) {
	segment := models.Segment(c.Param("segment"))
	if !segment.IsValid() {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Unknown segment " + string(segment),
			Code:  CodeUnknownSegment,
		})
		return
	}

	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Code:    CodeInvalidRequest,
			Details: map[string]string{"validation_error": err.Error()},
		})
		return
	}

	seconds, err := h.predictor.Predict(c.Request.Context(), segment, req.query())
	metrics.RecordSegment(string(segment), err == nil)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SinglePredictionResponse{Segment: segment, Seconds: seconds})
}

// Catalog handles GET /api/v1/catalog
func (h *PredictionHandler) Catalog(c *gin.Context) {
	resp := CatalogResponse{
		EventLocations: h.tables.EventLocations(),
		Countries:      h.tables.Countries(),
		Genders:        []models.Gender{models.GenderMale, models.GenderFemale},
		Models:         []ModelStatus{},
	}

	for _, e := range h.catalog.Entries() {
		status := ModelStatus{Segment: e.Segment, Backend: e.Backend, Available: e.Err == nil && e.Model != nil}
		if e.Model != nil {
			status.Name = e.Model.Name()
			status.Features = e.Model.FeatureNames()
		}
		if e.Err != nil {
			status.Error = e.Err.Error()
		}
		resp.Models = append(resp.Models, status)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PredictionHandler) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("code", code).Error("Prediction request failed")
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
