package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// NominatimConfig holds configuration for the Nominatim geocoder
type NominatimConfig struct {
	BaseURL         string
	UserAgent       string
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	RateLimit       float64 // requests per second
	BreakerFailures uint32  // consecutive failures before the breaker opens
	BreakerTimeout  time.Duration
}

// DefaultNominatimConfig returns defaults matching the public Nominatim usage policy
func DefaultNominatimConfig() NominatimConfig {
	return NominatimConfig{
		BaseURL:         "https://nominatim.openstreetmap.org",
		UserAgent:       "race-time-predictor",
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		RateLimit:       1.0,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
}

// NominatimGeocoder geocodes country names against an OpenStreetMap Nominatim server
type NominatimGeocoder struct {
	client    *retryablehttp.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	baseURL   string
	userAgent string
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a new rate-limited Nominatim client
func NewNominatimGeocoder(cfg NominatimConfig, logger *logrus.Logger) *NominatimGeocoder {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = retryPolicy
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	entry := logger.WithField("component", "geocoder")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "nominatim",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || err == ErrPlaceNotFound
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			entry.WithFields(logrus.Fields{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &NominatimGeocoder{
		client:    retryClient,
		limiter:   rate.NewLimiter(limit, 1),
		breaker:   breaker,
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
	}
}

// Name returns the provider name
func (g *NominatimGeocoder) Name() string {
	return "nominatim"
}

// Geocode resolves a country name to the coordinates of its best match
func (g *NominatimGeocoder) Geocode(ctx context.Context, place string) (models.Coordinates, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.search(ctx, place)
	})
	if err != nil {
		return models.Coordinates{}, err
	}
	return result.(models.Coordinates), nil
}

func (g *NominatimGeocoder) search(ctx context.Context, place string) (models.Coordinates, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return models.Coordinates{}, fmt.Errorf("rate limiter error: %w", err)
	}

	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("featureType", "country")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, err
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Coordinates{}, fmt.Errorf("geocode request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if len(places) == 0 {
		return models.Coordinates{}, ErrPlaceNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}
	return models.Coordinates{Lat: lat, Lon: lon}, nil
}

// retryPolicy retries network errors, rate limiting and server errors
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, err
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}
