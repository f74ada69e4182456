package geo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// ErrPlaceNotFound indicates the geocoder has no match for a place name
var ErrPlaceNotFound = errors.New("place not found")

// Geocoder turns a place name into coordinates. Implementations return
// ErrPlaceNotFound when the place is unknown.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (models.Coordinates, error)
	Name() string
}

// CentroidStore persists resolved centroids across process restarts
type CentroidStore interface {
	GetCentroid(ctx context.Context, country string) (models.Coordinates, bool, error)
	PutCentroid(ctx context.Context, country string, c models.Coordinates) error
}

// ResolverConfig holds resolver timeouts
type ResolverConfig struct {
	// Timeout bounds a single external geocode call
	Timeout time.Duration
	// NegativeTTL is how long a failed lookup is remembered; zero disables it
	NegativeTTL time.Duration
}

type centroidEntry struct {
	coords models.Coordinates
	err    error
}

// Resolver resolves country centroids through a geocoder, caching every
// resolved country for the lifetime of the process
type Resolver struct {
	geocoder Geocoder
	store    CentroidStore
	cache    *cache.Cache
	group    singleflight.Group
	cfg      ResolverConfig
	logger   *logrus.Entry
	lookups  atomic.Uint64
	calls    atomic.Uint64
}

// NewResolver creates a new centroid resolver. store may be nil.
func NewResolver(geocoder Geocoder, store CentroidStore, cfg ResolverConfig, logger *logrus.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Resolver{
		geocoder: geocoder,
		store:    store,
		cache:    cache.New(cache.NoExpiration, time.Minute),
		cfg:      cfg,
		logger:   logger.WithField("component", "geo"),
	}
}

// ResolveCentroid returns the centroid of a country. Failures wrap
// models.ErrGeocodeUnavailable.
func (r *Resolver) ResolveCentroid(ctx context.Context, country string) (models.Coordinates, error) {
	r.lookups.Add(1)
	if entry, ok := r.cached(country); ok {
		return entry.coords, entry.err
	}

	ch := r.group.DoChan(country, func() (interface{}, error) {
		if entry, ok := r.cached(country); ok {
			return entry, nil
		}
		return r.resolve(country), nil
	})

	select {
	case <-ctx.Done():
		return models.Coordinates{}, fmt.Errorf("%w: %s: %v", models.ErrGeocodeUnavailable, country, ctx.Err())
	case res := <-ch:
		entry := res.Val.(centroidEntry)
		return entry.coords, entry.err
	}
}

// DistanceFromCountry returns the geodesic distance in meters between a
// country's centroid and an event
func (r *Resolver) DistanceFromCountry(ctx context.Context, country string, event models.Coordinates) (float64, error) {
	centroid, err := r.ResolveCentroid(ctx, country)
	if err != nil {
		return 0, err
	}
	return DistanceMeters(centroid, event), nil
}

// Stats returns the number of lookups served and external geocode calls made
func (r *Resolver) Stats() (lookups, geocodeCalls uint64) {
	return r.lookups.Load(), r.calls.Load()
}

func (r *Resolver) cached(country string) (centroidEntry, bool) {
	v, found := r.cache.Get(country)
	if !found {
		return centroidEntry{}, false
	}
	entry := v.(centroidEntry)
	if entry.err != nil {
		CentroidCacheLookupsTotal.WithLabelValues("negative_hit").Inc()
	} else {
		CentroidCacheLookupsTotal.WithLabelValues("hit").Inc()
	}
	return entry, true
}

// resolve runs outside of any request context so one caller giving up does
// not fail the others waiting on the same country
func (r *Resolver) resolve(country string) centroidEntry {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	if r.store != nil {
		coords, found, err := r.store.GetCentroid(ctx, country)
		if err != nil {
			r.logger.WithError(err).WithField("country", country).Warn("Centroid store lookup failed")
		} else if found {
			CentroidCacheLookupsTotal.WithLabelValues("store_hit").Inc()
			entry := centroidEntry{coords: coords}
			r.cache.Set(country, entry, cache.NoExpiration)
			return entry
		}
	}

	CentroidCacheLookupsTotal.WithLabelValues("miss").Inc()
	r.calls.Add(1)
	start := time.Now()
	coords, err := r.geocoder.Geocode(ctx, country)
	GeocodeLatency.WithLabelValues(r.geocoder.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		result := "error"
		if errors.Is(err, ErrPlaceNotFound) {
			result = "not_found"
		}
		GeocodeRequestsTotal.WithLabelValues(r.geocoder.Name(), result).Inc()
		r.logger.WithError(err).WithFields(logrus.Fields{
			"country":  country,
			"provider": r.geocoder.Name(),
		}).Warn("Country centroid unavailable")

		entry := centroidEntry{err: fmt.Errorf("%w: %s: %v", models.ErrGeocodeUnavailable, country, err)}
		if r.cfg.NegativeTTL > 0 {
			r.cache.Set(country, entry, r.cfg.NegativeTTL)
		}
		return entry
	}

	GeocodeRequestsTotal.WithLabelValues(r.geocoder.Name(), "ok").Inc()
	entry := centroidEntry{coords: coords}
	r.cache.Set(country, entry, cache.NoExpiration)

	if r.store != nil {
		if err := r.store.PutCentroid(ctx, country, coords); err != nil {
			r.logger.WithError(err).WithField("country", country).Warn("Failed to persist centroid")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"country": country,
		"lat":     coords.Lat,
		"lon":     coords.Lon,
	}).Debug("Country centroid resolved")

	return entry
}
